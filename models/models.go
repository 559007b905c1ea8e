package models

import "time"

// Conversation types as the Community API reports them.
const (
	TypeGroup  = "group"
	TypeDirect = "dm"
)

// User is one entry of the registered-user directory.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Message is a single thread entry as the UI renders it.
type Message struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	SenderName string    `json:"senderName"`
	IsMine     bool      `json:"isMine"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation is the client-side view of a group or direct chat.
// Favorite is local-only state and never reaches the remote API.
// Messages stay empty until the thread is opened for the first time.
type Conversation struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Favorite  bool      `json:"favorite"`
	UpdatedAt time.Time `json:"updatedAt"`
	Members   []User    `json:"members,omitempty"`
	Messages  []Message `json:"messages"`
}

func (c *Conversation) IsGroup() bool {
	return c.Type == TypeGroup
}

// WSMessage is the envelope pushed to connected UI clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
