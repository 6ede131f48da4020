package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const importBatchSize = 1000

func init() {
	feed.RegisterLoader(feed.FormatSQLite, func(path string) (*feed.Log, error) {
		store, err := Open(path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(context.Background())
	})
}

// OrderRecord is one row of the order log table
type OrderRecord struct {
	Seq        int64  `gorm:"primaryKey;autoIncrement:false"`
	Instrument string `gorm:"index;not null"`
	Type       string `gorm:"size:1;not null"`
	Side       string `gorm:"size:4;not null"`
	Price      string `gorm:"not null"`
	Volume     int64  `gorm:"not null"`
}

// TableName overrides the gorm default
func (OrderRecord) TableName() string {
	return "orders"
}

// Store persists an order log in a SQLite database (pure Go driver)
type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&OrderRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Import appends the log to the table in one transaction
func (s *Store) Import(ctx context.Context, log *feed.Log) error {
	records := make([]OrderRecord, 0, log.Len())
	for _, order := range log.Orders() {
		records = append(records, toRecord(order))
	}
	if len(records) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(records, importBatchSize).Error; err != nil {
			return fmt.Errorf("failed to import orders: %w", err)
		}
		return nil
	})
}

// Load reads the whole table ordered by sequence index
func (s *Store) Load(ctx context.Context) (*feed.Log, error) {
	var records []OrderRecord
	if err := s.db.WithContext(ctx).Order("seq ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	orders := make([]*core.Order, 0, len(records))
	for i, record := range records {
		order, err := fromRecord(record)
		if err != nil {
			// Rows have no file line; report the 1-based row position
			return nil, &feed.RecordError{Line: i + 1, Err: err}
		}
		orders = append(orders, order)
	}
	return feed.NewLog(orders)
}

// Count returns the number of stored orders
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&OrderRecord{}).Count(&n).Error
	return n, err
}

// Close releases the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(order *core.Order) OrderRecord {
	record := OrderRecord{
		Seq:        order.Seq(),
		Instrument: order.Instrument(),
		Type:       "L",
		Side:       "Sell",
		Price:      order.Price().String(),
		Volume:     order.Quantity(),
	}
	if order.IsMarketOrder() {
		record.Type = "M"
		record.Price = "-1"
	}
	if order.Side() == core.Buy {
		record.Side = "Buy"
	}
	return record
}

func fromRecord(record OrderRecord) (*core.Order, error) {
	orderType, err := core.ParseOrderType(record.Type)
	if err != nil {
		return nil, err
	}
	side, err := core.ParseSide(record.Side)
	if err != nil {
		return nil, err
	}
	if orderType == core.TypeMarket {
		return core.NewMarketOrder(record.Seq, side, record.Instrument, record.Volume)
	}
	price, err := feed.ParsePrice(record.Price)
	if err != nil {
		return nil, err
	}
	return core.NewLimitOrder(record.Seq, side, record.Instrument, record.Volume, price)
}
