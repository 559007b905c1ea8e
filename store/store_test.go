package store

import (
	"testing"
	"time"

	"community-chat/models"
)

func seedStore() *Store {
	s := New()
	s.SetSession(&models.User{ID: 1, Name: "Ada"})
	s.ReplaceConversations([]models.Conversation{
		{ID: 10, Name: "Hiking", Type: models.TypeGroup, UpdatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{ID: 20, Name: "Grace", Type: models.TypeDirect, UpdatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			Members: []models.User{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Grace"}}},
		{ID: 30, Name: "Cycling", Type: models.TypeGroup, UpdatedAt: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
	})
	return s
}

func TestConversationsSortedByActivity(t *testing.T) {
	s := seedStore()

	list := s.Conversations(FilterAll)
	if len(list) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(list))
	}
	if list[0].ID != 30 || list[1].ID != 20 || list[2].ID != 10 {
		t.Fatalf("unexpected order: %d, %d, %d", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestConversationFilters(t *testing.T) {
	s := seedStore()
	s.ToggleFavorite(10)

	groups := s.Conversations(FilterGroups)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	for _, conv := range groups {
		if conv.Type != models.TypeGroup {
			t.Fatalf("non-group in groups view: %+v", conv)
		}
	}

	direct := s.Conversations(FilterDirect)
	if len(direct) != 1 || direct[0].ID != 20 {
		t.Fatalf("unexpected direct view: %+v", direct)
	}

	favorites := s.Conversations(FilterFavorites)
	if len(favorites) != 1 || favorites[0].ID != 10 {
		t.Fatalf("unexpected favorites view: %+v", favorites)
	}
	if !favorites[0].Favorite {
		t.Fatal("favorite flag not applied to snapshot")
	}
}

func TestToggleFavoriteDoubleToggleRestoresState(t *testing.T) {
	s := seedStore()

	if on := s.ToggleFavorite(10); !on {
		t.Fatal("first toggle should mark the favorite")
	}
	if off := s.ToggleFavorite(10); off {
		t.Fatal("second toggle should unmark the favorite")
	}
	if s.IsFavorite(10) {
		t.Fatal("conversation still marked after double toggle")
	}
	if len(s.Conversations(FilterFavorites)) != 0 {
		t.Fatal("favorites view not empty after double toggle")
	}
}

func TestToggleFavoriteUnknownConversation(t *testing.T) {
	s := seedStore()
	if s.ToggleFavorite(999) {
		t.Fatal("unknown conversation must stay unmarked")
	}
}

func TestFavoritesSurviveListRefresh(t *testing.T) {
	s := seedStore()
	s.ToggleFavorite(10)

	// A refresh replaces the conversation set but not the client-side marks.
	s.ReplaceConversations([]models.Conversation{
		{ID: 10, Name: "Hiking", Type: models.TypeGroup},
	})
	if !s.IsFavorite(10) {
		t.Fatal("favorite mark lost across refresh")
	}
}

func TestFreshStoreHasNoFavorites(t *testing.T) {
	s := seedStore()
	s.ToggleFavorite(10)

	// A restart builds a brand-new store; marks never persist.
	restarted := New()
	restarted.ReplaceConversations(s.Conversations(FilterAll))
	if restarted.IsFavorite(10) {
		t.Fatal("favorite mark must not survive a restart")
	}
}

func TestUpsertDoesNotDuplicate(t *testing.T) {
	s := seedStore()

	if s.Upsert(models.Conversation{ID: 20, Name: "Grace again"}) {
		t.Fatal("existing conversation reported as new")
	}
	conv, _ := s.Get(20)
	if conv.Name != "Grace" {
		t.Fatalf("existing conversation overwritten: %q", conv.Name)
	}

	if !s.Upsert(models.Conversation{ID: 40, Name: "New", Type: models.TypeDirect}) {
		t.Fatal("new conversation not reported as new")
	}
	if len(s.Conversations(FilterAll)) != 4 {
		t.Fatalf("expected 4 conversations, got %d", len(s.Conversations(FilterAll)))
	}
}

func TestMessagesLazyLoading(t *testing.T) {
	s := seedStore()

	if s.MessagesLoaded(10) {
		t.Fatal("thread marked loaded before first open")
	}
	s.SetMessages(10, []models.Message{
		{ID: 1, Content: "hi", CreatedAt: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)},
	})
	if !s.MessagesLoaded(10) {
		t.Fatal("thread not marked loaded after SetMessages")
	}
	if len(s.Messages(10)) != 1 {
		t.Fatalf("expected 1 message, got %d", len(s.Messages(10)))
	}

	// A list refresh resets the lazy-load state.
	s.ReplaceConversations([]models.Conversation{{ID: 10, Name: "Hiking", Type: models.TypeGroup}})
	if s.MessagesLoaded(10) {
		t.Fatal("loaded flag survived a refresh")
	}
}

func TestAppendMessageBumpsActivity(t *testing.T) {
	s := seedStore()

	s.AppendMessage(10, models.Message{
		ID:        5,
		Content:   "see you there",
		IsMine:    true,
		CreatedAt: time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	})

	list := s.Conversations(FilterAll)
	if list[0].ID != 10 {
		t.Fatalf("conversation with newest message should sort first, got %d", list[0].ID)
	}
	messages := s.Messages(10)
	if len(messages) != 1 || !messages[len(messages)-1].IsMine {
		t.Fatalf("appended message missing or not marked mine: %+v", messages)
	}
}

func TestDirectWithFindsExistingDM(t *testing.T) {
	s := seedStore()

	id, ok := s.DirectWith(2)
	if !ok || id != 20 {
		t.Fatalf("expected existing DM 20, got %d (ok=%v)", id, ok)
	}
	if _, ok := s.DirectWith(999); ok {
		t.Fatal("found a DM for an unknown user")
	}
	// The session user's own id never matches a counterpart.
	if _, ok := s.DirectWith(1); ok {
		t.Fatal("matched the session user as DM counterpart")
	}
}

func TestRemoveMemberDropsFromLocalList(t *testing.T) {
	s := seedStore()
	s.SetMembers(10, []models.User{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Grace"}})

	s.RemoveMember(10, 2)
	conv, _ := s.Get(10)
	if len(conv.Members) != 1 || conv.Members[0].ID != 1 {
		t.Fatalf("unexpected member list after removal: %+v", conv.Members)
	}
}

func TestRemoveDropsAllState(t *testing.T) {
	s := seedStore()
	s.ToggleFavorite(10)
	s.SetMessages(10, []models.Message{{ID: 1, Content: "hi"}})

	s.Remove(10)
	if _, ok := s.Get(10); ok {
		t.Fatal("conversation still present after Remove")
	}
	if s.IsFavorite(10) || s.MessagesLoaded(10) {
		t.Fatal("favorite or loaded state survived Remove")
	}
}
