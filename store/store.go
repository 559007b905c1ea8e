package store

import (
	"sort"
	"strings"
	"sync"

	"community-chat/models"
)

// Filter names for the conversation list views.
const (
	FilterAll       = "all"
	FilterFavorites = "favorites"
	FilterGroups    = "groups"
	FilterDirect    = "direct"
)

// Store holds all client-side state: the verified session, the loaded
// conversation set, the user directory and the favorite marks. Everything
// lives in memory only; a restart starts from scratch.
type Store struct {
	mu            sync.RWMutex
	session       *models.User
	conversations map[int64]*models.Conversation
	loaded        map[int64]bool
	favorites     map[int64]bool
	directory     []models.User
}

func New() *Store {
	return &Store{
		conversations: make(map[int64]*models.Conversation),
		loaded:        make(map[int64]bool),
		favorites:     make(map[int64]bool),
	}
}

// SetSession records the verified session user. A nil user marks the
// session as invalid, which gates the UI surfaces.
func (s *Store) SetSession(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = user
}

func (s *Store) Session() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	user := *s.session
	return &user
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

func (s *Store) SetDirectory(users []models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory = append([]models.User(nil), users...)
}

func (s *Store) Directory() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.User(nil), s.directory...)
}

// ReplaceConversations swaps in a freshly fetched conversation set. Loaded
// message lists are dropped so threads go back to lazy loading; favorite
// marks survive because they are client state, not server state.
func (s *Store) ReplaceConversations(list []models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make(map[int64]*models.Conversation, len(list))
	s.loaded = make(map[int64]bool, len(list))
	for i := range list {
		conv := list[i]
		if conv.Messages == nil {
			conv.Messages = []models.Message{}
		}
		s.conversations[conv.ID] = &conv
	}
}

// Upsert inserts a conversation if its id is not already loaded. Returns
// true when the conversation was new. An existing entry is left untouched,
// which is what keeps a re-opened DM from duplicating.
func (s *Store) Upsert(conv models.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return false
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	s.conversations[conv.ID] = &conv
	return true
}

func (s *Store) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	delete(s.loaded, id)
	delete(s.favorites, id)
}

// Get returns a copy of the conversation with its favorite flag applied.
func (s *Store) Get(id int64) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, false
	}
	return s.snapshot(conv), true
}

// Conversations returns the filtered view, newest activity first.
func (s *Store) Conversations(filter string) []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		switch filter {
		case FilterFavorites:
			if !s.favorites[conv.ID] {
				continue
			}
		case FilterGroups:
			if conv.Type != models.TypeGroup {
				continue
			}
		case FilterDirect:
			if conv.Type != models.TypeDirect {
				continue
			}
		}
		result = append(result, s.snapshot(conv))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result
}

// ToggleFavorite flips the client-only favorite mark and returns the new
// state. Unknown ids stay unmarked.
func (s *Store) ToggleFavorite(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return false
	}
	next := !s.favorites[id]
	if next {
		s.favorites[id] = true
	} else {
		delete(s.favorites, id)
	}
	return next
}

func (s *Store) IsFavorite(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites[id]
}

// MessagesLoaded reports whether the thread has been opened before.
func (s *Store) MessagesLoaded(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[id]
}

// SetMessages stores a freshly fetched thread and marks it loaded.
func (s *Store) SetMessages(id int64, messages []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return
	}
	conv.Messages = append([]models.Message(nil), messages...)
	s.loaded[id] = true
	if n := len(conv.Messages); n > 0 && conv.Messages[n-1].CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = conv.Messages[n-1].CreatedAt
	}
}

func (s *Store) Messages(id int64) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil
	}
	return append([]models.Message(nil), conv.Messages...)
}

// AppendMessage adds an acknowledged message to the thread and bumps the
// conversation's last activity.
func (s *Store) AppendMessage(id int64, message models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return
	}
	conv.Messages = append(conv.Messages, message)
	if message.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = message.CreatedAt
	}
}

// SetMembers replaces the member list of a conversation.
func (s *Store) SetMembers(id int64, members []models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return
	}
	conv.Members = append([]models.User(nil), members...)
}

// RemoveMember drops a single member from the local member list.
func (s *Store) RemoveMember(id, memberID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return
	}
	members := conv.Members[:0]
	for _, m := range conv.Members {
		if m.ID != memberID {
			members = append(members, m)
		}
	}
	conv.Members = members
}

// DirectWith looks for an already-loaded direct conversation with the given
// user, so opening a DM twice never creates a second entry.
func (s *Store) DirectWith(userID int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	selfID := int64(0)
	if s.session != nil {
		selfID = s.session.ID
	}
	for _, conv := range s.conversations {
		if conv.Type != models.TypeDirect {
			continue
		}
		for _, m := range conv.Members {
			if m.ID == userID && m.ID != selfID {
				return conv.ID, true
			}
		}
	}
	return 0, false
}

// snapshot copies a conversation with the favorite flag applied. Callers
// must hold at least the read lock.
func (s *Store) snapshot(conv *models.Conversation) models.Conversation {
	copied := *conv
	copied.Favorite = s.favorites[conv.ID]
	copied.Members = append([]models.User(nil), conv.Members...)
	copied.Messages = append([]models.Message(nil), conv.Messages...)
	if copied.Messages == nil {
		copied.Messages = []models.Message{}
	}
	return copied
}
