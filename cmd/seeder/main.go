//cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/config"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
)

func main() {
	key := flag.String("campaign", "DEMO-SPRING", "campaign key to create")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger.New(os.Stderr, "warn"))
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close(ctx)

	opts := app.DefaultSeed(cfg.Vendor.DefaultGoods)
	opts.CampaignKey = *key

	c, err := a.Seed(ctx, opts)
	if err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	fmt.Printf("Seeded campaign %s (id %d) with %d recipients\n", c.CampaignKey, c.ID, len(opts.Recipients))
	fmt.Println("Database seeding completed successfully!")
}
