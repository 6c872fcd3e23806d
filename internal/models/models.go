package models

// User is a row of the personal_date credential store. Passwords are
// stored and returned in plaintext; FindByLogin dumps rows verbatim,
// so the JSON tag is intentional.
type User struct {
	ID       int64  `json:"id"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// UserRef is the roster view of a user, without the password column.
type UserRef struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type Chat struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	// CreatorID is nil for open chats, which record no creator.
	CreatorID *int64 `json:"creator_id"`
	CreatedAt string `json:"created_at"`
}

// ChatSummary is a chat as it appears in a user's chat list. UnreadCount
// counts unmarked messages in the chat that the user did not author.
type ChatSummary struct {
	Chat
	UnreadCount int64 `json:"unread_count"`
}

type Message struct {
	ID     int64 `json:"id"`
	ChatID int64 `json:"chat_id"`
	// Message is nil for image-only messages.
	Message   *string `json:"message"`
	Timestamp string  `json:"timestamp"`
	// Login is the sender's login, denormalized. System messages use "system".
	Login    string  `json:"login"`
	ImageURL *string `json:"image_url"`
	IsRead   *bool   `json:"is_read"`
}
