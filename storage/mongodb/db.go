// Package mongodb implements the core repositories on top of a MongoDB
// database. Documents keep primitive.ObjectID keys; the core models carry
// them as hex strings.
package mongodb

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kazimoto/mipango/core"
)

// collections
const (
	colUsers         = "users"
	colPlans         = "plans"
	colEvents        = "events"
	colPolicies      = "policies"
	colConversations = "conversations"
)

func Connect(ctx context.Context, conf *core.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, conf.Database.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "pinging mongodb")
	}
	return client.Database(conf.Database.Name), nil
}

func Disconnect(ctx context.Context, db *mongo.Database) error {
	return db.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on; idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	nonEmpty := func(field string) bson.M {
		return bson.M{field: bson.M{"$gt": ""}}
	}

	for col, models := range map[string][]mongo.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty("username")),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty("email")),
			},
		},
		colPlans: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "collaborators.user_id", Value: 1}}},
			{Keys: bson.D{{Key: "checklist.due_date", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "guests.user_id", Value: 1}}},
			{Keys: bson.D{{Key: "remind_at", Value: 1}}},
		},
		colPolicies: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colConversations: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
	} {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", col)
		}
	}
	return nil
}

// parseID decodes a hex document ID; notFoundErr stands in for malformed IDs
// so bogus IDs behave like missing documents.
func parseID(id string, notFoundErr error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFoundErr
	}
	return oid, nil
}

// trapNoDocsErr converts the driver's not-found sentinel to the domain's.
func trapNoDocsErr(err, notFoundErr error) error {
	if errors.Cause(err) == mongo.ErrNoDocuments {
		return notFoundErr
	}
	return err
}

// containsRegex builds a case-insensitive substring matcher.
func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// prefixRegex builds an anchored prefix matcher; used for role lookups.
func prefixRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s), Options: ""}
}
