package models

import (
	"strings"
	"time"
)

// ConversationPayload is a conversation as the Community API returns it.
// Group chats carry Name, direct chats carry DMName.
type ConversationPayload struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name,omitempty"`
	DMName    string          `json:"dmName,omitempty"`
	Type      string          `json:"type"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Members   []MemberPayload `json:"members,omitempty"`
}

// DisplayName resolves the title the UI shows for the conversation.
func (p ConversationPayload) DisplayName() string {
	if p.Type == TypeDirect && strings.TrimSpace(p.DMName) != "" {
		return p.DMName
	}
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	if strings.TrimSpace(p.DMName) != "" {
		return p.DMName
	}
	return "Conversation"
}

// ToConversation converts the remote payload into the client-side view.
func (p ConversationPayload) ToConversation() Conversation {
	members := make([]User, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, m.AsUser())
	}
	return Conversation{
		ID:        p.ID,
		Name:      p.DisplayName(),
		Type:      p.Type,
		UpdatedAt: p.UpdatedAt,
		Members:   members,
		Messages:  []Message{},
	}
}

type ConversationsResponse struct {
	Conversations []ConversationPayload `json:"conversations"`
}

// MessagePayload is a message as the Community API returns it.
type MessagePayload struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    struct {
		Name string `json:"name"`
		IsMe bool   `json:"isMe"`
	} `json:"sender"`
}

// ToMessage converts the remote payload into the client-side view.
func (p MessagePayload) ToMessage() Message {
	return Message{
		ID:         p.ID,
		Content:    p.Content,
		SenderName: p.Sender.Name,
		IsMine:     p.Sender.IsMe,
		CreatedAt:  p.CreatedAt,
	}
}

type MessagesResponse struct {
	Messages []MessagePayload `json:"messages"`
}

type SendMessageRequest struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
}

type SendMessageResponse struct {
	Data struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
	} `json:"data"`
}

type CreateGroupRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"memberIds"`
}

type CreateGroupResponse struct {
	Group ConversationPayload `json:"group"`
}

type DirectChatResponse struct {
	Conversation struct {
		ID int64 `json:"id"`
	} `json:"conversation"`
}

// MemberPayload accepts both member shapes the API is known to return:
// flat {id,name,email} and nested {user:{id,name,email}}.
type MemberPayload struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// AsUser normalizes either shape into a directory user.
func (m MemberPayload) AsUser() User {
	if m.User != nil {
		return *m.User
	}
	return User{ID: m.ID, Name: m.Name, Email: m.Email}
}

type MembersResponse struct {
	Members []MemberPayload `json:"members"`
}

type AddMembersRequest struct {
	MemberIDs []int64 `json:"memberIds"`
}
