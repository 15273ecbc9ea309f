package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"webtoonhub/internal/auth"
	"webtoonhub/internal/webtoon"
	"webtoonhub/pkg/database"
	"webtoonhub/pkg/logger"
	"webtoonhub/pkg/utils"
)

func main() {
	var (
		in      = flag.String("webtoons", "data/webtoons.csv", "input CSV path for webtoons")
		clerkID = flag.String("user", "", "assign every row to this clerk id (default: author_id column)")
	)
	flag.Parse()

	cfg := utils.Load()
	log := logger.Must(cfg.Debug).Named("import")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(cfg.DB, log)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}

	authorID := ""
	if *clerkID != "" {
		u, err := auth.NewRepo(db).GetByClerkID(ctx, *clerkID)
		if err != nil {
			log.Fatal("lookup user failed", zap.Error(err))
		}
		if u == nil {
			log.Fatal("unknown user", zap.String("clerk_id", *clerkID))
		}
		authorID = u.ID
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatal("open input failed", zap.Error(err))
	}
	items, err := webtoon.ReadCSV(f)
	_ = f.Close()
	if err != nil {
		log.Fatal("parse csv failed", zap.String("path", *in), zap.Error(err))
	}

	created, updated, err := webtoon.NewRepo(db).Import(ctx, items, authorID)
	if err != nil {
		log.Fatal("import failed", zap.Int("created", created), zap.Int("updated", updated), zap.Error(err))
	}
	log.Info("import done", zap.String("path", *in), zap.Int("created", created), zap.Int("updated", updated))
}
