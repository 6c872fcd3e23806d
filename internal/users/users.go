package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/besedka-chat/besedka/internal/models"
)

var (
	// ErrValidation marks a request missing a required field.
	ErrValidation = errors.New("login and password are required")
	// ErrNotFound marks a lookup for a user that does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials marks a failed login/password match.
	ErrInvalidCredentials = errors.New("invalid login or password")
)

// Service is the credential store: plaintext login/password rows in the
// personal_date table. Authentication is a direct equality lookup; there
// is deliberately no hashing and no uniqueness check on login.
type Service struct {
	db *sql.DB
}

func New(db *sql.DB) *Service {
	return &Service{db: db}
}

// Register inserts a new credential row and returns its id. Duplicate
// logins are accepted; only empty fields are rejected.
func (s *Service) Register(ctx context.Context, login, password string) (int64, error) {
	if login == "" || password == "" {
		return 0, ErrValidation
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO personal_date (login, password) VALUES (?, ?)",
		login, password,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to register user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get user id: %w", err)
	}

	return id, nil
}

// FindByLogin returns the rows matching login, passwords included. An
// empty login returns every row in the store ("no filter = full dump").
func (s *Service) FindByLogin(ctx context.Context, login string) ([]models.User, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if login != "" {
		rows, err = s.db.QueryContext(ctx,
			"SELECT id, login, password FROM personal_date WHERE login = ?", login)
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT id, login, password FROM personal_date")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Login, &u.Password); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, u)
	}

	return result, rows.Err()
}

// Authenticate matches login and password exactly against a stored row
// and returns the user id.
func (s *Service) Authenticate(ctx context.Context, login, password string) (int64, error) {
	if login == "" || password == "" {
		return 0, ErrValidation
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM personal_date WHERE login = ? AND password = ?",
		login, password,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInvalidCredentials
		}
		return 0, fmt.Errorf("failed to query user: %w", err)
	}

	return id, nil
}

// ListAll returns every (id, login) pair for roster listings. Passwords
// are excluded here, unlike FindByLogin.
func (s *Service) ListAll(ctx context.Context) ([]models.UserRef, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, login FROM personal_date")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var result []models.UserRef
	for rows.Next() {
		var u models.UserRef
		if err := rows.Scan(&u.ID, &u.Login); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, u)
	}

	return result, rows.Err()
}

// IDForLogin resolves a login to a user id. With duplicate logins the
// first inserted row wins.
func (s *Service) IDForLogin(ctx context.Context, login string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM personal_date WHERE login = ? ORDER BY id LIMIT 1", login,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to query user: %w", err)
	}
	return id, nil
}

// LoginForID resolves a user id to its login.
func (s *Service) LoginForID(ctx context.Context, id int64) (string, error) {
	var login string
	err := s.db.QueryRowContext(ctx,
		"SELECT login FROM personal_date WHERE id = ?", id,
	).Scan(&login)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to query user: %w", err)
	}
	return login, nil
}

// Exists reports whether a user with the given id exists.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM personal_date WHERE id = ?)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return exists, nil
}
