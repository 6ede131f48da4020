package main

import (
	"fmt"

	"github.com/erain9/clobreplay/pkg/backend/memory"
	"github.com/erain9/clobreplay/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

func main() {
	// One venue, books created lazily per instrument on the in-memory backend
	venue := core.NewVenue(memory.Factory)

	sell1, err := core.NewLimitOrder(0, core.Sell, "1131", 50, fpdecimal.FromInt(10))
	if err != nil {
		panic(err)
	}
	sell2, err := core.NewLimitOrder(1, core.Sell, "1131", 30, fpdecimal.FromFloat(9.5))
	if err != nil {
		panic(err)
	}
	buy, err := core.NewMarketOrder(2, core.Buy, "1131", 60)
	if err != nil {
		panic(err)
	}

	for _, order := range []*core.Order{sell1, sell2, buy} {
		done, err := venue.Process(order)
		if err != nil {
			panic(err)
		}
		fmt.Printf("#%d %s %s: processed=%d left=%d stored=%t notional=%s\n",
			order.Seq(), order.Side(), order.Instrument(),
			done.Processed, done.Left, done.Stored, done.Notional)
	}

	fmt.Println(venue.Snapshot("1131", 2))
	fmt.Printf("Cash flow: %s\n", venue.CashFlow())
}
