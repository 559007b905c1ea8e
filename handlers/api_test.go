package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"community-chat/models"
	"community-chat/store"
)

// stubCommunityAPI records calls and serves canned responses, so the handlers
// can be exercised without a remote backend.
type stubCommunityAPI struct {
	conversations []models.ConversationPayload
	messages      []models.MessagePayload
	members       []models.User
	sendResult    *models.Message
	groupResult   *models.ConversationPayload
	dmResult      int64
	err           error

	sendCalls   int
	sendContent string
	dmCalls     int
	groupCalls  int
	removeCalls []int64
}

func (s *stubCommunityAPI) VerifySession(ctx context.Context) (*models.User, error) {
	return &models.User{ID: 1, Name: "Ada"}, s.err
}

func (s *stubCommunityAPI) ListDirectory(ctx context.Context) ([]models.User, error) {
	return []models.User{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Grace"}}, s.err
}

func (s *stubCommunityAPI) ListConversations(ctx context.Context) ([]models.ConversationPayload, error) {
	return s.conversations, s.err
}

func (s *stubCommunityAPI) ListMessages(ctx context.Context, conversationID int64) ([]models.MessagePayload, error) {
	return s.messages, s.err
}

func (s *stubCommunityAPI) SendMessage(ctx context.Context, conversationID int64, content string) (*models.Message, error) {
	s.sendCalls++
	s.sendContent = content
	return s.sendResult, s.err
}

func (s *stubCommunityAPI) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*models.ConversationPayload, error) {
	s.groupCalls++
	return s.groupResult, s.err
}

func (s *stubCommunityAPI) OpenDirectChat(ctx context.Context, userID int64) (int64, error) {
	s.dmCalls++
	return s.dmResult, s.err
}

func (s *stubCommunityAPI) ListMembers(ctx context.Context, conversationID int64) ([]models.User, error) {
	return s.members, s.err
}

func (s *stubCommunityAPI) AddMembers(ctx context.Context, conversationID int64, memberIDs []int64) error {
	return s.err
}

func (s *stubCommunityAPI) RemoveMember(ctx context.Context, conversationID, memberID int64) error {
	s.removeCalls = append(s.removeCalls, memberID)
	return s.err
}

func (s *stubCommunityAPI) DeleteGroup(ctx context.Context, conversationID int64) error {
	return s.err
}

func newTestRouter(api CommunityAPI, state *store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	log := logrus.New()
	log.SetOutput(io.Discard)
	SetupAPIRoutes(router, api, state, log)
	return router
}

func authedState() *store.Store {
	state := store.New()
	state.SetSession(&models.User{ID: 1, Name: "Ada"})
	return state
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSessionEndpointGatesUnauthenticated(t *testing.T) {
	router := newTestRouter(&stubCommunityAPI{}, store.New())

	w := doJSON(t, router, http.MethodGet, "/api/session", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp["redirect"] != "/login" {
		t.Fatalf("expected login redirect hint, got %+v", resp)
	}
}

func TestAuthedRoutesRejectWithoutSession(t *testing.T) {
	api := &stubCommunityAPI{}
	router := newTestRouter(api, store.New())

	w := doJSON(t, router, http.MethodGet, "/api/conversations", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestConversationListRefreshAndFilter(t *testing.T) {
	api := &stubCommunityAPI{
		conversations: []models.ConversationPayload{
			{ID: 10, Name: "Hiking", Type: models.TypeGroup},
			{ID: 20, DMName: "Grace", Type: models.TypeDirect},
		},
	}
	state := authedState()
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodGet, "/api/conversations?filter=groups", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(resp.Conversations) != 1 || resp.Conversations[0].ID != 10 {
		t.Fatalf("unexpected groups view: %+v", resp.Conversations)
	}
}

func TestSendMessageRejectsBlankWithoutRemoteCall(t *testing.T) {
	api := &stubCommunityAPI{}
	state := authedState()
	state.ReplaceConversations([]models.Conversation{{ID: 10, Name: "Hiking", Type: models.TypeGroup}})
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodPost, "/api/conversations/10/messages", gin.H{"content": "   \n\t"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if api.sendCalls != 0 {
		t.Fatalf("blank content reached the remote API (%d calls)", api.sendCalls)
	}
	if len(state.Messages(10)) != 0 {
		t.Fatal("blank content appended to the thread")
	}
}

func TestSendMessageAppendsAcknowledgedMessage(t *testing.T) {
	api := &stubCommunityAPI{
		sendResult: &models.Message{ID: 42, Content: "hello", IsMine: true, CreatedAt: time.Now()},
	}
	state := authedState()
	state.ReplaceConversations([]models.Conversation{{ID: 10, Name: "Hiking", Type: models.TypeGroup}})
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodPost, "/api/conversations/10/messages", gin.H{"content": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if api.sendCalls != 1 || api.sendContent != "hello" {
		t.Fatalf("unexpected remote call state: calls=%d content=%q", api.sendCalls, api.sendContent)
	}

	messages := state.Messages(10)
	if len(messages) != 1 {
		t.Fatalf("expected 1 message in the thread, got %d", len(messages))
	}
	last := messages[len(messages)-1]
	if !last.IsMine || last.Content != "hello" {
		t.Fatalf("appended message not the local echo: %+v", last)
	}
	if last.SenderName != "Ada" {
		t.Fatalf("sender name not filled from the session: %q", last.SenderName)
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	api := &stubCommunityAPI{}
	router := newTestRouter(api, authedState())

	w := doJSON(t, router, http.MethodPost, "/api/conversations/999/messages", gin.H{"content": "hi"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if api.sendCalls != 0 {
		t.Fatal("unknown conversation reached the remote API")
	}
}

func TestCreateGroupRejectsEmptySelection(t *testing.T) {
	api := &stubCommunityAPI{}
	router := newTestRouter(api, authedState())

	w := doJSON(t, router, http.MethodPost, "/api/conversations/group", gin.H{"name": "Trip", "memberIds": []int64{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/api/conversations/group", gin.H{"name": "  ", "memberIds": []int64{2}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", w.Code)
	}
	if api.groupCalls != 0 {
		t.Fatalf("invalid group creation reached the remote API (%d calls)", api.groupCalls)
	}
}

func TestCreateGroupStoresNewConversation(t *testing.T) {
	api := &stubCommunityAPI{
		groupResult: &models.ConversationPayload{ID: 55, Name: "Trip", Type: models.TypeGroup},
	}
	state := authedState()
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodPost, "/api/conversations/group", gin.H{"name": "Trip", "memberIds": []int64{2, 3}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := state.Get(55); !ok {
		t.Fatal("created group not stored locally")
	}
}

func TestOpenDirectChatReusesExistingConversation(t *testing.T) {
	api := &stubCommunityAPI{dmResult: 77}
	state := authedState()
	state.ReplaceConversations([]models.Conversation{
		{ID: 20, Name: "Grace", Type: models.TypeDirect,
			Members: []models.User{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Grace"}}},
	})
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodPost, "/api/conversations/dm", gin.H{"userId": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if api.dmCalls != 0 {
		t.Fatalf("existing DM triggered a remote call (%d calls)", api.dmCalls)
	}
	var resp struct {
		Conversation models.Conversation `json:"conversation"`
		Existing     bool                `json:"existing"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if !resp.Existing || resp.Conversation.ID != 20 {
		t.Fatalf("expected existing conversation 20, got %+v", resp)
	}
	if len(state.Conversations(store.FilterAll)) != 1 {
		t.Fatal("opening an existing DM duplicated the conversation")
	}
}

func TestOpenDirectChatCreatesWhenMissing(t *testing.T) {
	api := &stubCommunityAPI{dmResult: 77}
	state := authedState()
	state.SetDirectory([]models.User{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Grace"}})
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodPost, "/api/conversations/dm", gin.H{"userId": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if api.dmCalls != 1 {
		t.Fatalf("expected 1 remote call, got %d", api.dmCalls)
	}
	conv, ok := state.Get(77)
	if !ok {
		t.Fatal("new DM not stored locally")
	}
	if conv.Name != "Grace" || conv.Type != models.TypeDirect {
		t.Fatalf("unexpected DM conversation: %+v", conv)
	}

	// Opening again must reuse the stored conversation.
	w = doJSON(t, router, http.MethodPost, "/api/conversations/dm", gin.H{"userId": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if api.dmCalls != 1 {
		t.Fatalf("second open triggered another remote call (%d calls)", api.dmCalls)
	}
	if len(state.Conversations(store.FilterAll)) != 1 {
		t.Fatal("second open duplicated the conversation")
	}
}

func TestFavoriteToggleIsIdempotentOverTwoCalls(t *testing.T) {
	api := &stubCommunityAPI{}
	state := authedState()
	state.ReplaceConversations([]models.Conversation{{ID: 10, Name: "Hiking", Type: models.TypeGroup}})
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodPost, "/api/conversations/10/favorite", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !state.IsFavorite(10) {
		t.Fatal("first toggle did not mark the favorite")
	}

	w = doJSON(t, router, http.MethodPost, "/api/conversations/10/favorite", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if state.IsFavorite(10) {
		t.Fatal("second toggle did not restore the original state")
	}
}

func TestFavoriteUnknownConversation(t *testing.T) {
	router := newTestRouter(&stubCommunityAPI{}, authedState())

	w := doJSON(t, router, http.MethodPost, "/api/conversations/999/favorite", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMessagesLoadedLazilyOnce(t *testing.T) {
	api := &stubCommunityAPI{
		messages: []models.MessagePayload{{ID: 1, Content: "hi"}},
	}
	state := authedState()
	state.ReplaceConversations([]models.Conversation{{ID: 10, Name: "Hiking", Type: models.TypeGroup}})
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodGet, "/api/conversations/10/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !state.MessagesLoaded(10) {
		t.Fatal("thread not marked loaded after first open")
	}

	// The second open serves from local state; the stub now erroring would
	// surface if the handler hit the remote again.
	api.err = context.DeadlineExceeded
	w = doJSON(t, router, http.MethodGet, "/api/conversations/10/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second open should serve locally, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLeaveRemovesOwnMembership(t *testing.T) {
	api := &stubCommunityAPI{}
	state := authedState()
	state.ReplaceConversations([]models.Conversation{{ID: 10, Name: "Hiking", Type: models.TypeGroup}})
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodPost, "/api/conversations/10/leave", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(api.removeCalls) != 1 || api.removeCalls[0] != 1 {
		t.Fatalf("expected removal of the session user's id, got %v", api.removeCalls)
	}
	if _, ok := state.Get(10); ok {
		t.Fatal("left conversation still present locally")
	}
}

func TestDeleteConversation(t *testing.T) {
	api := &stubCommunityAPI{}
	state := authedState()
	state.ReplaceConversations([]models.Conversation{{ID: 10, Name: "Hiking", Type: models.TypeGroup}})
	router := newTestRouter(api, state)

	w := doJSON(t, router, http.MethodDelete, "/api/conversations/10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := state.Get(10); ok {
		t.Fatal("deleted conversation still present locally")
	}
}

func TestInvalidConversationID(t *testing.T) {
	router := newTestRouter(&stubCommunityAPI{}, authedState())

	w := doJSON(t, router, http.MethodGet, "/api/conversations/not-a-number/messages", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
