package inmem

import (
	"context"
	"sort"

	"github.com/kazimoto/mipango/core/chat"
)

type chatRepository struct {
	db *DB
}

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateConversation(_ context.Context, conv chat.Conversation) (chat.Conversation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	conv.ID = newID()
	repo.db.conversations[conv.ID] = conv
	return conv, nil
}

func (repo *chatRepository) GetConversationByID(_ context.Context, id string) (chat.Conversation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if conv, ok := repo.db.conversations[id]; ok {
		return conv, nil
	}
	return chat.Conversation{}, chat.ErrNotFound
}

func (repo *chatRepository) QueryConversationsForUser(_ context.Context, userID string) ([]chat.Conversation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	convs := make([]chat.Conversation, 0)
	for _, conv := range repo.db.conversations {
		if conv.UserID == userID {
			convs = append(convs, conv)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

func (repo *chatRepository) UpdateConversation(_ context.Context, conv chat.Conversation) (chat.Conversation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.conversations[conv.ID]; !ok {
		return chat.Conversation{}, chat.ErrNotFound
	}
	repo.db.conversations[conv.ID] = conv
	return conv, nil
}

func (repo *chatRepository) DeleteConversationsByID(_ context.Context, ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for _, id := range ids {
		delete(repo.db.conversations, id)
	}
	return nil
}
