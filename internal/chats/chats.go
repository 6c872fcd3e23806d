package chats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/besedka-chat/besedka/internal/models"
)

var (
	// ErrValidation marks a request with missing or malformed fields.
	ErrValidation = errors.New("missing or invalid required fields")
	// ErrNotFound marks a reference to a user or chat that does not exist.
	ErrNotFound = errors.New("one or both users not found")
	// ErrForbidden marks an authorization rule violation.
	ErrForbidden = errors.New("access denied")
	// ErrConflict marks an attempt to insert a duplicate membership row.
	ErrConflict = errors.New("user is already in the chat")
)

// SystemLogin is the sender recorded on auto-inserted chat lifecycle messages.
const SystemLogin = "system"

// TimestampLayout is the wire and storage format for all chat timestamps.
// Day-first, so string ordering is only chronological within a month.
const TimestampLayout = "02/01/2006 15:04:05"

// UserDirectory is the slice of the credential store the chat store needs:
// existence checks for the ids referenced by private chat creation.
type UserDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service is the chat store: chats, membership, messages and unread
// accounting, plus the access rules gating them. Multi-statement writes
// run in a single transaction and roll back as a unit.
type Service struct {
	db    *sql.DB
	users UserDirectory
}

func New(db *sql.DB, users UserDirectory) *Service {
	return &Service{db: db, users: users}
}

func (s *Service) now() string {
	return time.Now().Format(TimestampLayout)
}

// CreateOpenChat inserts a chat with no creator and no membership rows.
// Open chats never show up in membership-gated listings; they exist for
// callers that want the legacy broadcast mode.
func (s *Service) CreateOpenChat(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("no chat name provided: %w", ErrValidation)
	}

	createdAt := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO chats (name, created_at) VALUES (?, ?)", name, createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create chat: %w", err)
	}

	chatID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get chat id: %w", err)
	}

	if err := insertSystemMessage(ctx, tx, chatID, "This is a new chat", createdAt); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chat: %w", err)
	}

	return chatID, nil
}

// CreateGroupChat inserts a chat, one membership row per listed user and
// a system announcement, atomically. The creator is always a member even
// when omitted from memberIDs; duplicate ids in the input are collapsed.
// The returned slice is the final membership.
func (s *Service) CreateGroupChat(ctx context.Context, name string, creatorID int64, memberIDs []int64) (int64, []int64, error) {
	if name == "" || creatorID == 0 {
		return 0, nil, fmt.Errorf("missing name or creator_id: %w", ErrValidation)
	}

	members := dedupe(memberIDs)
	if !contains(members, creatorID) {
		members = append(members, creatorID)
	}

	createdAt := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO chats (name, created_at, is_private, creator_id) VALUES (?, ?, 0, ?)",
		name, createdAt, creatorID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create chat: %w", err)
	}

	chatID, err := result.LastInsertId()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get chat id: %w", err)
	}

	for _, userID := range members {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chat_members (chat_id, user_id) VALUES (?, ?)", chatID, userID); err != nil {
			return 0, nil, fmt.Errorf("failed to add member %d: %w", userID, err)
		}
	}

	announcement := fmt.Sprintf("Group '%s' created", name)
	if err := insertSystemMessage(ctx, tx, chatID, announcement, createdAt); err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("failed to commit chat: %w", err)
	}

	return chatID, members, nil
}

// CreatePrivateChat returns the existing private chat between the two
// users regardless of argument order, or creates one with exactly two
// membership rows. Two near-simultaneous first calls can both miss the
// lookup and each commit a chat; the first committer wins and the
// duplicate is tolerated. Ids that resolve to no user, zero and missing
// ids included, yield ErrNotFound.
func (s *Service) CreatePrivateChat(ctx context.Context, user1ID, user2ID int64) (chatID int64, name string, existed bool, err error) {
	for _, id := range []int64{user1ID, user2ID} {
		ok, err := s.users.Exists(ctx, id)
		if err != nil {
			return 0, "", false, fmt.Errorf("failed to check user %d: %w", id, err)
		}
		if !ok {
			return 0, "", false, ErrNotFound
		}
	}

	var existingID int64
	err = s.db.QueryRowContext(ctx, `
		SELECT c.id FROM chats c
		JOIN chat_members cm1 ON c.id = cm1.chat_id AND cm1.user_id = ?
		JOIN chat_members cm2 ON c.id = cm2.chat_id AND cm2.user_id = ?
		WHERE c.is_private = 1
	`, user1ID, user2ID).Scan(&existingID)
	if err == nil {
		return existingID, "", true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, "", false, fmt.Errorf("failed to check existing chat: %w", err)
	}

	createdAt := s.now()
	name = fmt.Sprintf("Private chat %d-%d", user1ID, user2ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO chats (name, created_at, is_private, creator_id) VALUES (?, ?, 1, ?)",
		name, createdAt, user1ID)
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to create chat: %w", err)
	}

	chatID, err = result.LastInsertId()
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to get chat id: %w", err)
	}

	for _, userID := range []int64{user1ID, user2ID} {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chat_members (chat_id, user_id) VALUES (?, ?)", chatID, userID); err != nil {
			return 0, "", false, fmt.Errorf("failed to add member %d: %w", userID, err)
		}
	}

	if err := insertSystemMessage(ctx, tx, chatID, "Private chat created", createdAt); err != nil {
		return 0, "", false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, "", false, fmt.Errorf("failed to commit chat: %w", err)
	}

	return chatID, name, false, nil
}

// AddMember inserts a membership row. Only the chat's recorded creator
// may add members; chats without a creator (open chats) never accept
// additions.
func (s *Service) AddMember(ctx context.Context, chatID, userID, adderID int64) error {
	if chatID == 0 || userID == 0 || adderID == 0 {
		return fmt.Errorf("missing required fields: %w", ErrValidation)
	}

	var creatorID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT creator_id FROM chats WHERE id = ?", chatID).Scan(&creatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrForbidden
		}
		return fmt.Errorf("failed to query chat: %w", err)
	}
	if !creatorID.Valid || creatorID.Int64 != adderID {
		return ErrForbidden
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = ? AND user_id = ?)",
		chatID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to query membership: %w", err)
	}
	if exists {
		return ErrConflict
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO chat_members (chat_id, user_id) VALUES (?, ?)", chatID, userID); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrConflict
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// SendMessage inserts a message with a fresh timestamp and unset read
// flag. A message must carry text or an image URL, never neither.
func (s *Service) SendMessage(ctx context.Context, chatID int64, login, message, imageURL string) error {
	if chatID == 0 || login == "" || (message == "" && imageURL == "") {
		return fmt.Errorf("no message, chat_id, or login provided: %w", ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, message, timestamp, login, image_url)
		VALUES (?, ?, ?, ?, ?)
	`, chatID, nullString(message), s.now(), login, nullString(imageURL))
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// Messages returns the chat's messages ordered by timestamp, with the
// insertion order breaking same-second ties. Only members may read.
func (s *Service) Messages(ctx context.Context, chatID, userID int64) ([]models.Message, error) {
	if chatID == 0 || userID == 0 {
		return nil, fmt.Errorf("no chat_id or user_id provided: %w", ErrValidation)
	}

	member, err := s.isMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrForbidden
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, message, timestamp, login, image_url, is_read
		FROM messages
		WHERE chat_id = ?
		ORDER BY timestamp, id
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg      models.Message
			text     sql.NullString
			imageURL sql.NullString
			isRead   sql.NullBool
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &text, &msg.Timestamp, &msg.Login, &imageURL, &isRead); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if text.Valid {
			msg.Message = &text.String
		}
		if imageURL.Valid {
			msg.ImageURL = &imageURL.String
		}
		if isRead.Valid {
			msg.IsRead = &isRead.Bool
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkRead flips is_read on every message in the chat. There is no
// requester check: any caller may clear a chat's unread state.
func (s *Service) MarkRead(ctx context.Context, chatID int64) error {
	if chatID == 0 {
		return fmt.Errorf("no chat_id provided: %w", ErrValidation)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE messages SET is_read = 1 WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to mark messages as read: %w", err)
	}

	return nil
}

// ChatsForUser lists the chats the user is a member of, each with the
// count of messages that are unread (never marked, or marked false) and
// were not authored by the user's own login.
func (s *Service) ChatsForUser(ctx context.Context, userID int64, login string) ([]models.ChatSummary, error) {
	if userID == 0 {
		return nil, fmt.Errorf("no user_id provided: %w", ErrValidation)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chats.id, chats.name, chats.is_private, chats.creator_id, chats.created_at,
		       COUNT(CASE WHEN (messages.is_read IS NULL OR messages.is_read = 0)
		                   AND messages.login != ? THEN 1 END) AS unread_count
		FROM chats
		JOIN chat_members ON chats.id = chat_members.chat_id
		LEFT JOIN messages ON chats.id = messages.chat_id
		WHERE chat_members.user_id = ?
		GROUP BY chats.id
	`, login, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var result []models.ChatSummary
	for rows.Next() {
		var (
			summary   models.ChatSummary
			creatorID sql.NullInt64
		)
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.IsPrivate, &creatorID,
			&summary.CreatedAt, &summary.UnreadCount); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		if creatorID.Valid {
			summary.CreatorID = &creatorID.Int64
		}
		result = append(result, summary)
	}

	return result, rows.Err()
}

func (s *Service) isMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var member bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = ? AND user_id = ?)",
		chatID, userID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("failed to query membership: %w", err)
	}
	return member, nil
}

// insertSystemMessage records a chat lifecycle announcement. Stored as
// already read: welcome messages must never inflate unread counts.
func insertSystemMessage(ctx context.Context, tx *sql.Tx, chatID int64, text, timestamp string) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (chat_id, message, timestamp, login, is_read) VALUES (?, ?, ?, ?, 1)",
		chatID, text, timestamp, SystemLogin); err != nil {
		return fmt.Errorf("failed to insert system message: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
