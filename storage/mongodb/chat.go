package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kazimoto/mipango/core/chat"
)

type (
	messageDoc struct {
		Role      string    `bson:"role"`
		Content   string    `bson:"content"`
		CreatedAt time.Time `bson:"created_at"`
	}

	conversationDoc struct {
		ID        primitive.ObjectID `bson:"_id,omitempty"`
		UserID    string             `bson:"user_id"`
		Title     string             `bson:"title"`
		Messages  []messageDoc       `bson:"messages"`
		CreatedAt time.Time          `bson:"created_at"`
		UpdatedAt time.Time          `bson:"updated_at"`
	}
)

func newConversationDoc(conv chat.Conversation) conversationDoc {
	doc := conversationDoc{
		UserID:    conv.UserID,
		Title:     conv.Title,
		Messages:  make([]messageDoc, 0, len(conv.Messages)),
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	for _, msg := range conv.Messages {
		doc.Messages = append(doc.Messages, messageDoc(msg))
	}
	return doc
}

func (d conversationDoc) toCore() chat.Conversation {
	conv := chat.Conversation{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Title:     d.Title,
		Messages:  make([]chat.Message, 0, len(d.Messages)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, msg := range d.Messages {
		conv.Messages = append(conv.Messages, chat.Message(msg))
	}
	return conv
}

type chatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(db *mongo.Database) chat.Repository {
	return &chatRepository{col: db.Collection(colConversations)}
}

func (repo *chatRepository) CreateConversation(ctx context.Context, conv chat.Conversation) (chat.Conversation, error) {
	doc := newConversationDoc(conv)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.col.InsertOne(ctx, doc); err != nil {
		return chat.Conversation{}, errors.Wrap(err, "inserting conversation")
	}
	return doc.toCore(), nil
}

func (repo *chatRepository) GetConversationByID(ctx context.Context, id string) (chat.Conversation, error) {
	oid, err := parseID(id, chat.ErrNotFound)
	if err != nil {
		return chat.Conversation{}, err
	}
	var doc conversationDoc
	if err = repo.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return chat.Conversation{}, trapNoDocsErr(err, chat.ErrNotFound)
	}
	return doc.toCore(), nil
}

func (repo *chatRepository) QueryConversationsForUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	cur, err := repo.col.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	var docs []conversationDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding conversations")
	}

	convs := make([]chat.Conversation, 0, len(docs))
	for _, doc := range docs {
		convs = append(convs, doc.toCore())
	}
	return convs, nil
}

func (repo *chatRepository) UpdateConversation(ctx context.Context, conv chat.Conversation) (chat.Conversation, error) {
	oid, err := parseID(conv.ID, chat.ErrNotFound)
	if err != nil {
		return chat.Conversation{}, err
	}
	doc := newConversationDoc(conv)
	doc.ID = oid
	res, err := repo.col.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return chat.Conversation{}, errors.Wrap(err, "replacing conversation")
	}
	if res.MatchedCount == 0 {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return doc.toCore(), nil
}

func (repo *chatRepository) DeleteConversationsByID(ctx context.Context, ids ...string) error {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil
	}
	_, err := repo.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	return errors.Wrap(err, "deleting conversations")
}
