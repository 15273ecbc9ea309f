package main

import (
	"context"
	"encoding/csv"
	"flag"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"webtoonhub/internal/auth"
	"webtoonhub/internal/webtoon"
	"webtoonhub/pkg/database"
	"webtoonhub/pkg/logger"
	"webtoonhub/pkg/models"
	"webtoonhub/pkg/utils"
)

func main() {
	var (
		webtoonsOut = flag.String("webtoons", "data/webtoons.csv", "output CSV path for webtoons")
		usersOut    = flag.String("users", "data/users.csv", "output CSV path for users")
		clerkID     = flag.String("user", "", "only export webtoons of this clerk id")
	)
	flag.Parse()

	cfg := utils.Load()
	log := logger.Must(cfg.Debug).Named("export")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(cfg.DB, log)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}

	users := auth.NewRepo(db)
	webtoons := webtoon.NewRepo(db)

	q := webtoon.ListQuery{Limit: -1}
	if *clerkID != "" {
		u, err := users.GetByClerkID(ctx, *clerkID)
		if err != nil {
			log.Fatal("lookup user failed", zap.Error(err))
		}
		if u == nil {
			log.Fatal("unknown user", zap.String("clerk_id", *clerkID))
		}
		q.AuthorID = u.ID
	}

	items, err := webtoons.List(ctx, q)
	if err != nil {
		log.Fatal("list webtoons failed", zap.Error(err))
	}
	if err := writeFile(*webtoonsOut, func(f *os.File) error { return webtoon.WriteCSV(f, items) }); err != nil {
		log.Fatal("export webtoons failed", zap.Error(err))
	}

	all, err := users.List(ctx)
	if err != nil {
		log.Fatal("list users failed", zap.Error(err))
	}
	if err := writeFile(*usersOut, func(f *os.File) error { return writeUsers(f, all) }); err != nil {
		log.Fatal("export users failed", zap.Error(err))
	}

	log.Info("export done",
		zap.Int("webtoons", len(items)), zap.String("webtoons_path", *webtoonsOut),
		zap.Int("users", len(all)), zap.String("users_path", *usersOut))
}

func writeFile(path string, fn func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeUsers(f *os.File, users []models.User) error {
	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "clerk_id", "email", "name", "created_at"}); err != nil {
		return err
	}
	for _, u := range users {
		if err := w.Write([]string{u.ID, u.ClerkID, u.Email, u.Name, u.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
