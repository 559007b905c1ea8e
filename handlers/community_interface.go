package handlers

import (
	"context"

	"community-chat/models"
)

// CommunityAPI is the remote backend surface the handlers compose with local
// state. community.Client implements it; tests stub it.
type CommunityAPI interface {
	VerifySession(ctx context.Context) (*models.User, error)
	ListDirectory(ctx context.Context) ([]models.User, error)
	ListConversations(ctx context.Context) ([]models.ConversationPayload, error)
	ListMessages(ctx context.Context, conversationID int64) ([]models.MessagePayload, error)
	SendMessage(ctx context.Context, conversationID int64, content string) (*models.Message, error)
	CreateGroup(ctx context.Context, name string, memberIDs []int64) (*models.ConversationPayload, error)
	OpenDirectChat(ctx context.Context, userID int64) (int64, error)
	ListMembers(ctx context.Context, conversationID int64) ([]models.User, error)
	AddMembers(ctx context.Context, conversationID int64, memberIDs []int64) error
	RemoveMember(ctx context.Context, conversationID, memberID int64) error
	DeleteGroup(ctx context.Context, conversationID int64) error
}
