package feed

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/erain9/clobreplay/pkg/core"
)

// GeneratorConfig shapes a synthetic order log
type GeneratorConfig struct {
	Rows      int
	Tickers   []string
	LimitRate float64
	MinPrice  float64
	MaxPrice  float64
	MinVolume int64
	MaxVolume int64
}

// DefaultGeneratorConfig mirrors the historical generator
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Rows:      100000,
		Tickers:   []string{"1131", "2211", "2313"},
		LimitRate: 0.7,
		MinPrice:  40.0,
		MaxPrice:  238.4,
		MinVolume: 1,
		MaxVolume: 590,
	}
}

// Validate checks the configuration
func (c GeneratorConfig) Validate() error {
	switch {
	case len(c.Tickers) == 0:
		return ErrEmptyTickerList
	case c.Rows < 0:
		return fmt.Errorf("%w: rows %d", ErrInvalidGenerateCfg, c.Rows)
	case c.LimitRate < 0 || c.LimitRate > 1:
		return fmt.Errorf("%w: limit rate %v", ErrInvalidGenerateCfg, c.LimitRate)
	case c.MinPrice <= 0 || c.MaxPrice < c.MinPrice:
		return fmt.Errorf("%w: price range [%v, %v]", ErrInvalidGenerateCfg, c.MinPrice, c.MaxPrice)
	case c.MinVolume <= 0 || c.MaxVolume < c.MinVolume:
		return fmt.Errorf("%w: volume range [%d, %d]", ErrInvalidGenerateCfg, c.MinVolume, c.MaxVolume)
	}
	return nil
}

// Generate produces cfg.Rows add orders with sequence indices 0..Rows-1.
// Limit prices are uniform in [MinPrice, MaxPrice) at two decimals.
func Generate(rng *rand.Rand, cfg GeneratorConfig) ([]*core.Order, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orders := make([]*core.Order, 0, cfg.Rows)
	for seq := 0; seq < cfg.Rows; seq++ {
		ticker := cfg.Tickers[rng.Intn(len(cfg.Tickers))]
		isLimit := rng.Float64() < cfg.LimitRate
		side := core.Buy
		if rng.Intn(2) == 1 {
			side = core.Sell
		}
		price := cfg.MinPrice + rng.Float64()*(cfg.MaxPrice-cfg.MinPrice)
		volume := cfg.MinVolume + rng.Int63n(cfg.MaxVolume-cfg.MinVolume+1)

		var (
			order *core.Order
			err   error
		)
		if isLimit {
			p, perr := ParsePrice(strconv.FormatFloat(price, 'f', 2, 64))
			if perr != nil {
				return nil, perr
			}
			order, err = core.NewLimitOrder(int64(seq), side, ticker, volume, p)
		} else {
			order, err = core.NewMarketOrder(int64(seq), side, ticker, volume)
		}
		if err != nil {
			return nil, fmt.Errorf("generating row %d: %w", seq, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// GenerateLog is Generate wrapped into a Log
func GenerateLog(rng *rand.Rand, cfg GeneratorConfig) (*Log, error) {
	orders, err := Generate(rng, cfg)
	if err != nil {
		return nil, err
	}
	return NewLog(orders)
}
