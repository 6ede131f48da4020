package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisbackend "github.com/erain9/clobreplay/pkg/backend/redis"
	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/erain9/clobreplay/pkg/replay"
	"github.com/redis/go-redis/v9"
)

const (
	redisAddr = "localhost:6379"
	redisDB   = 0
	prefix    = "clob-example"
)

const orders = `ID,Ticker,Type,Side,Price,Volume
0,1131,L,Sell,10.0,50
1,1131,L,Sell,9.5,30
2,1131,M,Buy,-1,60
3,1131,L,Buy,9.0,20
`

func main() {
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "", // no password set
		DB:       redisDB,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	fmt.Printf("Redis connection established: %s\n", pong)

	cache := redisbackend.NewReportCache(client, prefix, time.Minute, nil)
	defer cache.Close()

	orderLog, err := feed.ReadCSV(strings.NewReader(orders))
	if err != nil {
		panic(err)
	}
	driver := replay.New(orderLog)
	fingerprint := orderLog.Fingerprint()

	for _, index := range []int64{2, 3, 2} {
		snapshot, hit, err := cache.Get(ctx, "example", fingerprint, "1131", index)
		if err != nil {
			panic(err)
		}
		if !hit {
			if snapshot, err = driver.Query(ctx, "1131", index); err != nil {
				panic(err)
			}
			if err := cache.Set(ctx, "example", fingerprint, snapshot); err != nil {
				panic(err)
			}
		}
		fmt.Printf("index %d (cached=%t):\n%s\n", index, hit, snapshot)
	}

	removed, err := cache.Invalidate(ctx, "example")
	if err != nil {
		panic(err)
	}
	fmt.Printf("Invalidated %d cached reports\n", removed)
}
