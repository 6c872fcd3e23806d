package chats

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/besedka-chat/besedka/internal/db"
	"github.com/besedka-chat/besedka/internal/users"
)

type testEnv struct {
	chats *Service
	users *users.Service
	db    *db.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "chat.db"), filepath.Join(dir, "login.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	userSvc := users.New(database.Users())
	return &testEnv{
		chats: New(database.Chats(), userSvc),
		users: userSvc,
		db:    database,
	}
}

func (e *testEnv) register(t *testing.T, login string) int64 {
	t.Helper()
	id, err := e.users.Register(context.Background(), login, "pw-"+login)
	if err != nil {
		t.Fatalf("Failed to register %s: %v", login, err)
	}
	return id
}

func (e *testEnv) memberCount(t *testing.T, chatID int64) int {
	t.Helper()
	var count int
	err := e.db.Chats().QueryRow(
		"SELECT COUNT(*) FROM chat_members WHERE chat_id = ?", chatID).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count members: %v", err)
	}
	return count
}

func TestCreateOpenChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chatID, err := env.chats.CreateOpenChat(ctx, "lobby")
	if err != nil {
		t.Fatalf("CreateOpenChat() returned error: %v", err)
	}

	if got := env.memberCount(t, chatID); got != 0 {
		t.Errorf("Open chat has %d members, want 0", got)
	}

	var creatorID any
	if err := env.db.Chats().QueryRow(
		"SELECT creator_id FROM chats WHERE id = ?", chatID).Scan(&creatorID); err != nil {
		t.Fatalf("Failed to read chat row: %v", err)
	}
	if creatorID != nil {
		t.Errorf("Open chat creator_id = %v, want NULL", creatorID)
	}

	if _, err := env.chats.CreateOpenChat(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("CreateOpenChat(\"\") error = %v, want ErrValidation", err)
	}
}

func TestCreateGroupChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	t.Run("creator added and duplicates collapsed", func(t *testing.T) {
		chatID, members, err := env.chats.CreateGroupChat(ctx, "team", alice, []int64{bob, carol, bob})
		if err != nil {
			t.Fatalf("CreateGroupChat() returned error: %v", err)
		}
		if len(members) != 3 {
			t.Errorf("CreateGroupChat() members = %v, want 3 distinct ids", members)
		}
		if got := env.memberCount(t, chatID); got != 3 {
			t.Errorf("Group has %d membership rows, want 3", got)
		}
	})

	t.Run("creator already listed", func(t *testing.T) {
		chatID, members, err := env.chats.CreateGroupChat(ctx, "pair", alice, []int64{alice, bob})
		if err != nil {
			t.Fatalf("CreateGroupChat() returned error: %v", err)
		}
		if len(members) != 2 {
			t.Errorf("CreateGroupChat() members = %v, want 2", members)
		}
		if got := env.memberCount(t, chatID); got != 2 {
			t.Errorf("Group has %d membership rows, want 2", got)
		}
	})

	t.Run("announcement message", func(t *testing.T) {
		chatID, _, err := env.chats.CreateGroupChat(ctx, "announce", alice, nil)
		if err != nil {
			t.Fatalf("CreateGroupChat() returned error: %v", err)
		}
		msgs, err := env.chats.Messages(ctx, chatID, alice)
		if err != nil {
			t.Fatalf("Messages() returned error: %v", err)
		}
		if len(msgs) != 1 || msgs[0].Login != SystemLogin {
			t.Fatalf("Expected a single system message, got %+v", msgs)
		}
		if msgs[0].Message == nil || *msgs[0].Message != "Group 'announce' created" {
			t.Errorf("System message = %v", msgs[0].Message)
		}
	})

	t.Run("validation", func(t *testing.T) {
		if _, _, err := env.chats.CreateGroupChat(ctx, "", alice, nil); !errors.Is(err, ErrValidation) {
			t.Errorf("CreateGroupChat without name error = %v, want ErrValidation", err)
		}
		if _, _, err := env.chats.CreateGroupChat(ctx, "x", 0, nil); !errors.Is(err, ErrValidation) {
			t.Errorf("CreateGroupChat without creator error = %v, want ErrValidation", err)
		}
	})
}

func TestCreatePrivateChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	chatID, name, existed, err := env.chats.CreatePrivateChat(ctx, alice, bob)
	if err != nil {
		t.Fatalf("CreatePrivateChat() returned error: %v", err)
	}
	if existed {
		t.Error("First CreatePrivateChat() reported an existing chat")
	}
	if name == "" {
		t.Error("CreatePrivateChat() returned empty name")
	}
	if got := env.memberCount(t, chatID); got != 2 {
		t.Errorf("Private chat has %d members, want 2", got)
	}

	t.Run("idempotent same order", func(t *testing.T) {
		again, _, existed, err := env.chats.CreatePrivateChat(ctx, alice, bob)
		if err != nil {
			t.Fatalf("CreatePrivateChat() returned error: %v", err)
		}
		if !existed || again != chatID {
			t.Errorf("CreatePrivateChat() = (%d, existed=%v), want (%d, true)", again, existed, chatID)
		}
	})

	t.Run("idempotent reversed order", func(t *testing.T) {
		again, _, existed, err := env.chats.CreatePrivateChat(ctx, bob, alice)
		if err != nil {
			t.Fatalf("CreatePrivateChat() returned error: %v", err)
		}
		if !existed || again != chatID {
			t.Errorf("CreatePrivateChat(reversed) = (%d, existed=%v), want (%d, true)", again, existed, chatID)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if _, _, _, err := env.chats.CreatePrivateChat(ctx, alice, 9999); !errors.Is(err, ErrNotFound) {
			t.Errorf("CreatePrivateChat(unknown) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("zero user id", func(t *testing.T) {
		if _, _, _, err := env.chats.CreatePrivateChat(ctx, 0, bob); !errors.Is(err, ErrNotFound) {
			t.Errorf("CreatePrivateChat(0, bob) error = %v, want ErrNotFound", err)
		}
	})
}

func TestAddMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	chatID, _, err := env.chats.CreateGroupChat(ctx, "team", alice, nil)
	if err != nil {
		t.Fatalf("CreateGroupChat() returned error: %v", err)
	}

	t.Run("creator may add", func(t *testing.T) {
		if err := env.chats.AddMember(ctx, chatID, bob, alice); err != nil {
			t.Fatalf("AddMember() returned error: %v", err)
		}
		if got := env.memberCount(t, chatID); got != 2 {
			t.Errorf("Chat has %d members, want 2", got)
		}
	})

	t.Run("non-creator forbidden", func(t *testing.T) {
		before := env.memberCount(t, chatID)
		if err := env.chats.AddMember(ctx, chatID, carol, bob); !errors.Is(err, ErrForbidden) {
			t.Errorf("AddMember(by member) error = %v, want ErrForbidden", err)
		}
		if got := env.memberCount(t, chatID); got != before {
			t.Errorf("Membership changed on a forbidden request: %d -> %d", before, got)
		}
	})

	t.Run("duplicate membership", func(t *testing.T) {
		before := env.memberCount(t, chatID)
		if err := env.chats.AddMember(ctx, chatID, bob, alice); !errors.Is(err, ErrConflict) {
			t.Errorf("AddMember(duplicate) error = %v, want ErrConflict", err)
		}
		if got := env.memberCount(t, chatID); got != before {
			t.Errorf("Membership changed on a duplicate request: %d -> %d", before, got)
		}
	})

	t.Run("unknown chat forbidden", func(t *testing.T) {
		if err := env.chats.AddMember(ctx, 9999, bob, alice); !errors.Is(err, ErrForbidden) {
			t.Errorf("AddMember(unknown chat) error = %v, want ErrForbidden", err)
		}
	})

	t.Run("open chat never accepts members", func(t *testing.T) {
		openID, err := env.chats.CreateOpenChat(ctx, "lobby")
		if err != nil {
			t.Fatalf("CreateOpenChat() returned error: %v", err)
		}
		if err := env.chats.AddMember(ctx, openID, bob, alice); !errors.Is(err, ErrForbidden) {
			t.Errorf("AddMember(open chat) error = %v, want ErrForbidden", err)
		}
	})
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	chatID, _, _, err := env.chats.CreatePrivateChat(ctx, alice, bob)
	if err != nil {
		t.Fatalf("CreatePrivateChat() returned error: %v", err)
	}

	tests := []struct {
		name     string
		chatID   int64
		login    string
		message  string
		imageURL string
		wantErr  bool
	}{
		{name: "text only", chatID: chatID, login: "alice", message: "hi"},
		{name: "image only", chatID: chatID, login: "alice", imageURL: "/uploads/a.png"},
		{name: "text and image", chatID: chatID, login: "alice", message: "look", imageURL: "/uploads/a.png"},
		{name: "neither", chatID: chatID, login: "alice", wantErr: true},
		{name: "no login", chatID: chatID, message: "hi", wantErr: true},
		{name: "no chat", login: "alice", message: "hi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.chats.SendMessage(ctx, tt.chatID, tt.login, tt.message, tt.imageURL)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("SendMessage() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("SendMessage() returned error: %v", err)
			}
		})
	}
}

func TestMessagesAccessAndOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	chatID, _, _, err := env.chats.CreatePrivateChat(ctx, alice, bob)
	if err != nil {
		t.Fatalf("CreatePrivateChat() returned error: %v", err)
	}

	for _, text := range []string{"first", "second", "third"} {
		if err := env.chats.SendMessage(ctx, chatID, "alice", text, ""); err != nil {
			t.Fatalf("SendMessage(%s) returned error: %v", text, err)
		}
	}

	t.Run("member sees ordered history", func(t *testing.T) {
		msgs, err := env.chats.Messages(ctx, chatID, bob)
		if err != nil {
			t.Fatalf("Messages() returned error: %v", err)
		}
		// System announcement plus three sends, same second, so the id
		// tiebreak carries the order.
		if len(msgs) != 4 {
			t.Fatalf("Messages() returned %d messages, want 4", len(msgs))
		}
		want := []string{"Private chat created", "first", "second", "third"}
		for i, w := range want {
			if msgs[i].Message == nil || *msgs[i].Message != w {
				t.Errorf("messages[%d] = %v, want %q", i, msgs[i].Message, w)
			}
		}
		if msgs[1].IsRead != nil {
			t.Errorf("Fresh message is_read = %v, want unset", *msgs[1].IsRead)
		}
		if msgs[0].IsRead == nil || !*msgs[0].IsRead {
			t.Error("Welcome message should be stored already read")
		}
	})

	t.Run("non-member denied", func(t *testing.T) {
		if _, err := env.chats.Messages(ctx, chatID, carol); !errors.Is(err, ErrForbidden) {
			t.Errorf("Messages(non-member) error = %v, want ErrForbidden", err)
		}
	})
}

func TestUnreadCounting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	chatID, _, _, err := env.chats.CreatePrivateChat(ctx, alice, bob)
	if err != nil {
		t.Fatalf("CreatePrivateChat() returned error: %v", err)
	}

	unreadFor := func(userID int64, login string) int64 {
		t.Helper()
		summaries, err := env.chats.ChatsForUser(ctx, userID, login)
		if err != nil {
			t.Fatalf("ChatsForUser() returned error: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("ChatsForUser() returned %d chats, want 1", len(summaries))
		}
		return summaries[0].UnreadCount
	}

	// The welcome message is stored already read, so a fresh chat shows
	// nothing unread.
	if got := unreadFor(bob, "bob"); got != 0 {
		t.Errorf("Bob's unread count in a fresh chat = %d, want 0", got)
	}

	if err := env.chats.SendMessage(ctx, chatID, "alice", "hello", ""); err != nil {
		t.Fatalf("SendMessage() returned error: %v", err)
	}

	if got := unreadFor(bob, "bob"); got != 1 {
		t.Errorf("Bob's unread count after one message = %d, want 1", got)
	}

	if err := env.chats.SendMessage(ctx, chatID, "alice", "you there?", ""); err != nil {
		t.Fatalf("SendMessage() returned error: %v", err)
	}

	if got := unreadFor(bob, "bob"); got != 2 {
		t.Errorf("Bob's unread count = %d, want 2", got)
	}
	// Alice's own sends never count against her.
	if got := unreadFor(alice, "alice"); got != 0 {
		t.Errorf("Alice's unread count = %d, want 0", got)
	}

	if err := env.chats.MarkRead(ctx, chatID); err != nil {
		t.Fatalf("MarkRead() returned error: %v", err)
	}

	if got := unreadFor(bob, "bob"); got != 0 {
		t.Errorf("Bob's unread count after MarkRead = %d, want 0", got)
	}

	msgs, err := env.chats.Messages(ctx, chatID, bob)
	if err != nil {
		t.Fatalf("Messages() returned error: %v", err)
	}
	for _, msg := range msgs {
		if msg.IsRead == nil || !*msg.IsRead {
			t.Errorf("Message %d still unread after MarkRead", msg.ID)
		}
	}
}

func TestOpenChatsInvisibleInListings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	if _, err := env.chats.CreateOpenChat(ctx, "lobby"); err != nil {
		t.Fatalf("CreateOpenChat() returned error: %v", err)
	}
	if _, _, _, err := env.chats.CreatePrivateChat(ctx, alice, bob); err != nil {
		t.Fatalf("CreatePrivateChat() returned error: %v", err)
	}

	summaries, err := env.chats.ChatsForUser(ctx, alice, "alice")
	if err != nil {
		t.Fatalf("ChatsForUser() returned error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("ChatsForUser() returned %d chats, want only the private one", len(summaries))
	}
	if !summaries[0].IsPrivate {
		t.Errorf("Listed chat is not the private one: %+v", summaries[0])
	}
}
