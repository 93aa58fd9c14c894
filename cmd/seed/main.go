// Package main provides a tool to seed the database with test workout data.
//
// It creates a small crew of users in two groups, befriends them, and logs two
// weeks of workouts through the activity pipeline so leaderboards,
// achievements and levels all have something to show.
//
// Usage:
//
//	DB_PATH=./data/ironcrew.db go run ./cmd/seed
//	DB_PATH=./data/ironcrew.db go run ./cmd/seed --token-for usr-alice  # Print an access token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/achievements"
	"github.com/ironcrew/ironcrew-server/internal/auth"
	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/scoring"
	"github.com/ironcrew/ironcrew-server/internal/service"
	"github.com/ironcrew/ironcrew-server/internal/store"
	"github.com/ironcrew/ironcrew-server/internal/store/sqlite"
)

var (
	days     = flag.Int("days", 14, "Number of past days to log workouts for")
	tokenFor = flag.String("token-for", "", "Print an access token for this user ID and exit")
)

type seedUser struct {
	id, name string
}

var crew = []seedUser{
	{"usr-alice", "Alice"},
	{"usr-bob", "Bob"},
	{"usr-carol", "Carol"},
	{"usr-dave", "Dave"},
	{"usr-erin", "Erin"},
	{"usr-frank", "Frank"},
}

// Groups are keyed by ID; the first member owns the group.
var groups = []struct {
	id, name string
	members  []string
}{
	{"grp-early-birds", "Early Birds", []string{"usr-alice", "usr-bob", "usr-carol"}},
	{"grp-night-owls", "Night Owls", []string{"usr-dave", "usr-erin", "usr-frank"}},
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/ironcrew.db"
	}

	if *tokenFor != "" {
		printToken(*tokenFor)
		return
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	createUsers(ctx, s)
	createGroups(ctx, s)
	befriend(ctx, s)

	levels, err := service.NewLevelService(s, scoring.DefaultXPWeights(), scoring.DefaultTiers, logger)
	if err != nil {
		log.Fatalf("Failed to build level table: %v", err)
	}
	activity := newActivityService(s, levels, logger)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	for _, u := range crew {
		logged := 0
		// Oldest first so the running streak builds up day by day.
		for day := *days - 1; day >= 0; day-- {
			// Always log today and yesterday to keep an active streak.
			if day > 1 && rng.Float32() > 0.75 {
				continue
			}
			res, err := activity.LogWorkout(ctx, u.id, now.AddDate(0, 0, -day))
			if domainerrors.CodeOf(err) == domainerrors.CodeConflict {
				continue
			}
			if err != nil {
				log.Printf("Failed to log workout for %s: %v", u.id, err)
				continue
			}
			logged++
			for _, a := range res.NewlyUnlocked {
				fmt.Printf("  %s unlocked %q\n", u.name, a.Definition.Title)
			}
		}
		fmt.Printf("Logged %d workouts for %s\n", logged, u.name)
	}

	printLevels(ctx, s, levels)

	fmt.Println("\nSeeding complete. Try: go run ./cmd/seed --token-for usr-alice")
}

// printLevels lists every user in the database, seeded or not, with their level.
func printLevels(ctx context.Context, s *sqlite.Store, levels *service.LevelService) {
	ids, err := s.ListUserIDs(ctx)
	if err != nil {
		log.Printf("Failed to list users: %v", err)
		return
	}

	fmt.Printf("\n%d users:\n", len(ids))
	for _, userID := range ids {
		lvl, err := levels.LevelForUser(ctx, userID)
		if err != nil {
			log.Printf("Failed to derive level for %s: %v", userID, err)
			continue
		}
		fmt.Printf("  %-12s tier %d (%s), %d XP\n", userID, lvl.Tier, lvl.Name, lvl.XP)
	}
}

func createUsers(ctx context.Context, s *sqlite.Store) {
	for _, u := range crew {
		err := s.CreateUser(ctx, &domain.User{ID: u.id, DisplayName: u.name, CreatedAt: time.Now()})
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			fmt.Printf("User %s already exists\n", u.id)
		case err != nil:
			log.Fatalf("Failed to create user %s: %v", u.id, err)
		default:
			fmt.Printf("Created user %s (%s)\n", u.name, u.id)
		}
	}
}

func createGroups(ctx context.Context, s *sqlite.Store) {
	for _, g := range groups {
		err := s.CreateGroup(ctx, &domain.Group{ID: g.id, Name: g.name, OwnerID: g.members[0], CreatedAt: time.Now()})
		if errors.Is(err, store.ErrAlreadyExists) {
			fmt.Printf("Group %s already exists\n", g.id)
			continue
		}
		if err != nil {
			log.Fatalf("Failed to create group %s: %v", g.id, err)
		}
		for _, m := range g.members[1:] {
			if err := s.AddGroupMember(ctx, g.id, m, domain.GroupRoleMember); err != nil {
				log.Fatalf("Failed to add %s to %s: %v", m, g.id, err)
			}
		}
		fmt.Printf("Created group %s with %d members\n", g.name, len(g.members))
	}
}

// befriend links neighbours in the crew list, crossing group lines.
func befriend(ctx context.Context, s *sqlite.Store) {
	for i := 0; i+1 < len(crew); i++ {
		err := s.CreateFriendship(ctx, crew[i].id, crew[i+1].id, domain.FriendshipAccepted)
		if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			log.Fatalf("Failed to befriend %s and %s: %v", crew[i].id, crew[i+1].id, err)
		}
	}
}

func newActivityService(s *sqlite.Store, levels *service.LevelService, logger *slog.Logger) *service.ActivityService {
	announcer := service.NewAnnouncementService(s, nil, logger)
	leaderboard := service.NewLeaderboardService(s, service.LeaderboardOptions{
		Points: scoring.DefaultPointsEngine(),
	}, logger)

	return service.NewActivityService(s, service.ActivityDeps{
		Leaderboard:  leaderboard,
		Competitions: service.NewCompetitionService(s, service.CompetitionOptions{Announcer: announcer, Leaderboard: leaderboard}, logger),
		Duels:        service.NewDuelService(s, service.DuelOptions{Announcer: announcer}, logger),
		Achievements: service.NewAchievementService(s, achievements.Default(), nil, logger),
		Levels:       levels,
		Announcer:    announcer,
	}, logger)
}

func printToken(userID string) {
	keyPath := os.Getenv("AUTH_KEY_PATH")
	if keyPath == "" {
		keyPath = "./data/auth.key"
	}

	key, err := auth.LoadOrGenerateKey(keyPath)
	if err != nil {
		log.Fatalf("Failed to load auth key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, 24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}
	token, err := tokens.GenerateAccessToken(userID)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	fmt.Println(token)
}
