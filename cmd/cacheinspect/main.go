// Package main prints the leaderboard aggregations held in an on-disk cache.
//
// Usage:
//
//	LEADERBOARD_CACHE_DIR=./data/cache go run ./cmd/cacheinspect
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/cache"
)

func main() {
	dir := os.Getenv("LEADERBOARD_CACHE_DIR")
	if dir == "" {
		log.Fatal("LEADERBOARD_CACHE_DIR is not set; in-memory caches cannot be inspected")
	}

	c, err := cache.Open(cache.Config{Dir: dir, ReadOnly: true}, nil)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer c.Close()

	periods, err := c.Periods()
	if err != nil {
		log.Fatalf("Failed to list cache: %v", err)
	}

	fmt.Println("=== Leaderboard Cache ===")
	fmt.Println()

	now := time.Now()
	for _, p := range periods {
		expiry := "never"
		if !p.ExpiresAt.IsZero() {
			expiry = p.ExpiresAt.Sub(now).Round(time.Second).String()
		}
		fmt.Printf("Period %s: %d active users, expires in %s\n", p.Period, p.Users, expiry)
	}

	fmt.Println()
	fmt.Printf("Total cached periods: %d\n", len(periods))
}
