package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"webtoonhub/internal/auth"
	"webtoonhub/internal/webtoon"
	"webtoonhub/pkg/database"
	"webtoonhub/pkg/logger"
	"webtoonhub/pkg/models"
	"webtoonhub/pkg/utils"
)

type demoUser struct {
	clerkID, email, name string
	webtoons             []models.Webtoon
}

func at(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

var demo = []demoUser{
	{
		clerkID: "clerk_123", email: "user1@example.com", name: "Demo User 1",
		webtoons: []models.Webtoon{
			{Title: "Tower of God", URL: "https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95",
				Status: "reading", Tags: []string{"fantasy", "action"}, CreatedAt: at("2023-01-01T10:00:00Z")},
			{Title: "Lore Olympus", URL: "https://www.webtoons.com/en/romance/lore-olympus/list?title_no=1320",
				Status: "completed", Tags: []string{"romance"}, CreatedAt: at("2023-02-01T12:00:00Z")},
		},
	},
	{
		clerkID: "clerk_456", email: "user2@example.com", name: "Demo User 2",
		webtoons: []models.Webtoon{
			{Title: "Unordinary", URL: "https://www.webtoons.com/en/action/unordinary/list?title_no=679",
				Status: "reading", Tags: []string{"action"}, CreatedAt: at("2023-03-01T15:00:00Z")},
			{Title: "Let's Play", URL: "https://www.webtoons.com/en/romance/letsplay/list?title_no=1218",
				Status: "on-hold", Tags: []string{"romance", "comedy"}, CreatedAt: at("2023-04-01T18:00:00Z")},
		},
	},
}

func main() {
	flag.Parse()

	cfg := utils.Load()
	log := logger.Must(cfg.Debug).Named("seed")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(cfg.DB, log)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}

	users, webtoons, err := seed(ctx, auth.NewRepo(db), webtoon.NewRepo(db), log)
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("seed done", zap.Int("users", users), zap.Int("webtoons", webtoons))
}

// seed inserts the demo users and their webtoons. Users that already
// exist are left alone together with their webtoons, so reruns are no-ops.
func seed(ctx context.Context, users *auth.Repo, webtoons *webtoon.Repo, log *zap.Logger) (int, int, error) {
	var nu, nw int
	for _, d := range demo {
		existing, err := users.GetByClerkID(ctx, d.clerkID)
		if err != nil {
			return nu, nw, err
		}
		if existing != nil {
			log.Info("user exists, skipping", zap.String("clerk_id", d.clerkID))
			continue
		}

		u := models.User{ID: uuid.NewString(), ClerkID: d.clerkID, Email: d.email, Name: d.name}
		if err := users.CreateUser(ctx, u); err != nil {
			return nu, nw, err
		}
		nu++

		for _, w := range d.webtoons {
			w.ID = uuid.NewString()
			w.AuthorID = u.ID
			if err := webtoons.Create(ctx, w); err != nil {
				return nu, nw, err
			}
			nw++
		}
	}
	return nu, nw, nil
}
