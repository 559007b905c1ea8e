package community

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"community-chat/models"
)

// Errors the UI layers branch on. ErrUnauthorized drives the session gate,
// the validation errors stop a request from ever leaving the client.
var (
	ErrUnauthorized = errors.New("community: unauthorized")
	ErrEmptyMessage = errors.New("community: empty message content")
	ErrNoMembers    = errors.New("community: no members selected")
	ErrEmptyName    = errors.New("community: empty group name")
)

// Client talks to the remote Community backend. Every request carries the
// bearer token; every call is a single request/response with no retry.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the given API host.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request body: %v", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response of %s %s: %v", method, path, err)
	}
	return nil
}

// VerifySession checks the stored credential against the API and returns the
// session user. Returns ErrUnauthorized when the credential is rejected.
func (c *Client) VerifySession(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListDirectory returns the full registered-user list.
func (c *Client) ListDirectory(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/all", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListConversations returns the caller's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationPayload, error) {
	var resp models.ConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// ListMessages returns the messages of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]models.MessagePayload, error) {
	var resp models.MessagesResponse
	path := fmt.Sprintf("/api/messages/%d", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage posts a new message. Whitespace-only content is rejected here,
// before any request is issued. The returned message is the local echo of
// the acknowledged send; the caller fills in the sender name.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	var resp models.SendMessageResponse
	reqBody := models.SendMessageRequest{
		ConversationID: conversationID,
		Content:        content,
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages", reqBody, &resp); err != nil {
		return nil, err
	}

	echoed := resp.Data.Content
	if echoed == "" {
		echoed = content
	}
	return &models.Message{
		ID:        resp.Data.ID,
		Content:   echoed,
		IsMine:    true,
		CreatedAt: time.Now(),
	}, nil
}

// CreateGroup creates a named group conversation. An empty name or an empty
// member selection never reaches the API.
func (c *Client) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*models.ConversationPayload, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if len(memberIDs) == 0 {
		return nil, ErrNoMembers
	}

	var resp models.CreateGroupResponse
	reqBody := models.CreateGroupRequest{
		Name:      name,
		MemberIDs: memberIDs,
	}
	if err := c.do(ctx, http.MethodPost, "/api/conversations/group", reqBody, &resp); err != nil {
		return nil, err
	}
	group := resp.Group
	if group.Type == "" {
		group.Type = models.TypeGroup
	}
	return &group, nil
}

// OpenDirectChat opens (or creates) the direct conversation with a user and
// returns its id.
func (c *Client) OpenDirectChat(ctx context.Context, userID int64) (int64, error) {
	var resp models.DirectChatResponse
	path := fmt.Sprintf("/api/conversations/dm?userId=%d", userID)
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return 0, err
	}
	return resp.Conversation.ID, nil
}

// ListMembers returns the members of a conversation, normalized from either
// payload shape the API uses.
func (c *Client) ListMembers(ctx context.Context, conversationID int64) ([]models.User, error) {
	var resp models.MembersResponse
	path := fmt.Sprintf("/api/conversations/%d/members", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	members := make([]models.User, 0, len(resp.Members))
	for _, m := range resp.Members {
		members = append(members, m.AsUser())
	}
	return members, nil
}

// AddMembers adds users to a group conversation.
func (c *Client) AddMembers(ctx context.Context, conversationID int64, memberIDs []int64) error {
	if len(memberIDs) == 0 {
		return ErrNoMembers
	}
	path := fmt.Sprintf("/api/conversations/%d/members", conversationID)
	return c.do(ctx, http.MethodPost, path, models.AddMembersRequest{MemberIDs: memberIDs}, nil)
}

// RemoveMember removes a single member from a group conversation. Removing
// the caller's own id is how "leave group" is expressed.
func (c *Client) RemoveMember(ctx context.Context, conversationID, memberID int64) error {
	path := fmt.Sprintf("/api/conversations/%d/members/%d", conversationID, memberID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteGroup deletes a group conversation.
func (c *Client) DeleteGroup(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/conversations/%d", conversationID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
