package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB holds the two stores the application persists into: chats/messages/
// membership in one file, login credentials in the other. Both handles are
// pooled and opened once at startup.
type DB struct {
	chats *sql.DB
	users *sql.DB
}

func New(chatPath, usersPath string) (*DB, error) {
	chats, err := open(chatPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}

	users, err := open(usersPath)
	if err != nil {
		chats.Close()
		return nil, fmt.Errorf("failed to open users database: %w", err)
	}

	db := &DB{chats: chats, users: users}

	if err := db.migrate(); err != nil {
		chats.Close()
		users.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}

func open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL lets readers proceed while a writer is writing.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait up to 5s instead of failing with SQLITE_BUSY under concurrent writes.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA cache_size=-64000"); err != nil {
		return nil, fmt.Errorf("failed to set cache size: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

func (db *DB) migrate() error {
	chatSchema := `
	CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		is_private INTEGER NOT NULL DEFAULT 0,
		creator_id INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		message TEXT,
		timestamp TEXT NOT NULL,
		login TEXT NOT NULL,
		image_url TEXT,
		is_read INTEGER,
		FOREIGN KEY (chat_id) REFERENCES chats (id)
	);

	CREATE TABLE IF NOT EXISTS chat_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		FOREIGN KEY (chat_id) REFERENCES chats (id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_members_chat_user ON chat_members(chat_id, user_id);
	CREATE INDEX IF NOT EXISTS idx_chat_members_user_id ON chat_members(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);
	CREATE INDEX IF NOT EXISTS idx_chats_is_private ON chats(is_private);
	`

	if _, err := db.chats.Exec(chatSchema); err != nil {
		return err
	}

	// Historical table name, kept because the wire API is named after it.
	// login carries no UNIQUE constraint: duplicate logins are accepted.
	usersSchema := `
	CREATE TABLE IF NOT EXISTS personal_date (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		login TEXT NOT NULL,
		password TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_personal_date_login ON personal_date(login);
	`

	_, err := db.users.Exec(usersSchema)
	return err
}

func (db *DB) Close() error {
	cerr := db.chats.Close()
	uerr := db.users.Close()
	if cerr != nil {
		return cerr
	}
	return uerr
}

// Chats returns the pooled handle for the chat store.
func (db *DB) Chats() *sql.DB {
	return db.chats
}

// Users returns the pooled handle for the credential store.
func (db *DB) Users() *sql.DB {
	return db.users
}
