package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/besedka-chat/besedka/internal/chats"
	"github.com/besedka-chat/besedka/internal/db"
	"github.com/besedka-chat/besedka/internal/users"
	"github.com/besedka-chat/besedka/pkg/config"
)

type seedOptions struct {
	Users    int
	Chats    int
	Messages int
}

func parseSeedArgs(args []string) (seedOptions, error) {
	opts := seedOptions{Users: 10, Chats: 5, Messages: 50}

	for i := 0; i < len(args); i++ {
		flag := args[i]
		switch flag {
		case "--users", "--chats", "--messages":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", flag)
			}
			value, err := strconv.Atoi(args[i+1])
			if err != nil || value < 0 {
				return opts, fmt.Errorf("invalid value for %s: %s", flag, args[i+1])
			}
			switch flag {
			case "--users":
				opts.Users = value
			case "--chats":
				opts.Chats = value
			case "--messages":
				opts.Messages = value
			}
			i++
		default:
			return opts, fmt.Errorf("unknown seed flag: %s", flag)
		}
	}

	return opts, nil
}

// runSeed fills both stores with generated users, chats and chatter for
// local development. It goes through the store services, so seeded data
// obeys the same rules as real traffic.
func runSeed(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseSeedArgs(args)
	if err != nil {
		return err
	}

	gofakeit.Seed(time.Now().UnixNano())
	ctx := context.Background()

	database, err := db.New(cfg.ChatDBPath, cfg.UsersDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	defer database.Close()

	userSvc := users.New(database.Users())
	chatSvc := chats.New(database.Chats(), userSvc)

	type seededUser struct {
		id    int64
		login string
	}

	seeded := make([]seededUser, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		login := gofakeit.Username()
		id, err := userSvc.Register(ctx, login, gofakeit.Password(true, true, true, false, false, 10))
		if err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		seeded = append(seeded, seededUser{id: id, login: login})
	}

	if len(seeded) < 2 {
		fmt.Fprintf(out, "Seeded %d users, skipping chats (need at least 2 users)\n", len(seeded))
		return nil
	}

	chatIDs := make([]int64, 0, opts.Chats)
	for i := 0; i < opts.Chats; i++ {
		if i%2 == 0 {
			a, b := pickPair(len(seeded))
			id, _, _, err := chatSvc.CreatePrivateChat(ctx, seeded[a].id, seeded[b].id)
			if err != nil {
				return fmt.Errorf("failed to seed private chat: %w", err)
			}
			chatIDs = append(chatIDs, id)
			continue
		}

		creator := seeded[rand.Intn(len(seeded))]
		members := make([]int64, 0, 3)
		for j := 0; j < 3; j++ {
			members = append(members, seeded[rand.Intn(len(seeded))].id)
		}
		id, _, err := chatSvc.CreateGroupChat(ctx, gofakeit.HackerNoun(), creator.id, members)
		if err != nil {
			return fmt.Errorf("failed to seed group chat: %w", err)
		}
		chatIDs = append(chatIDs, id)
	}

	if len(chatIDs) == 0 {
		fmt.Fprintf(out, "Seeded %d users, skipping messages (no chats)\n", len(seeded))
		return nil
	}

	for i := 0; i < opts.Messages; i++ {
		chatID := chatIDs[rand.Intn(len(chatIDs))]
		sender := seeded[rand.Intn(len(seeded))]
		if err := chatSvc.SendMessage(ctx, chatID, sender.login, gofakeit.Sentence(6), ""); err != nil {
			return fmt.Errorf("failed to seed message: %w", err)
		}
	}

	fmt.Fprintf(out, "Seeded %d users, %d chats, %d messages\n", len(seeded), len(chatIDs), opts.Messages)
	return nil
}

// pickPair returns two distinct indexes in [0, n).
func pickPair(n int) (int, int) {
	a := rand.Intn(n)
	b := rand.Intn(n - 1)
	if b >= a {
		b++
	}
	return a, b
}
