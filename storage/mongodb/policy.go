package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kazimoto/mipango/core/policy"
)

type policyDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Code      string             `bson:"code"`
	Title     string             `bson:"title"`
	Body      string             `bson:"body"`
	Keywords  []string           `bson:"keywords"`
	Category  string             `bson:"category"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d policyDoc) toCore() policy.Policy {
	return policy.Policy{
		ID:        d.ID.Hex(),
		Code:      d.Code,
		Title:     d.Title,
		Body:      d.Body,
		Keywords:  d.Keywords,
		Category:  d.Category,
		UpdatedAt: d.UpdatedAt,
	}
}

type policyRepository struct {
	col *mongo.Collection
}

func NewPolicyRepository(db *mongo.Database) policy.Repository {
	return &policyRepository{col: db.Collection(colPolicies)}
}

func (repo *policyRepository) CheckCodeUniqueness(ctx context.Context, code string, excluded ...policy.Policy) error {
	exclIDs := make([]primitive.ObjectID, 0, len(excluded))
	for _, pol := range excluded {
		if oid, err := primitive.ObjectIDFromHex(pol.ID); err == nil {
			exclIDs = append(exclIDs, oid)
		}
	}

	filter := bson.M{"code": code}
	if len(exclIDs) > 0 {
		filter["_id"] = bson.M{"$nin": exclIDs}
	}
	n, err := repo.col.CountDocuments(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "counting policies")
	}
	if n > 0 {
		return policy.ErrCodeExists
	}
	return nil
}

func (repo *policyRepository) CreatePolicy(ctx context.Context, pol policy.Policy) (policy.Policy, error) {
	doc := policyDoc{
		ID:        primitive.NewObjectID(),
		Code:      pol.Code,
		Title:     pol.Title,
		Body:      pol.Body,
		Keywords:  pol.Keywords,
		Category:  pol.Category,
		UpdatedAt: pol.UpdatedAt,
	}
	if _, err := repo.col.InsertOne(ctx, doc); err != nil {
		return policy.Policy{}, errors.Wrap(err, "inserting policy")
	}
	return doc.toCore(), nil
}

func (repo *policyRepository) QueryAllPolicies(ctx context.Context) ([]policy.Policy, error) {
	cur, err := repo.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying policies")
	}
	var docs []policyDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding policies")
	}

	pols := make([]policy.Policy, 0, len(docs))
	for _, doc := range docs {
		pols = append(pols, doc.toCore())
	}
	return pols, nil
}

func (repo *policyRepository) GetPolicyByID(ctx context.Context, id string) (policy.Policy, error) {
	oid, err := parseID(id, policy.ErrNotFound)
	if err != nil {
		return policy.Policy{}, err
	}
	var doc policyDoc
	if err = repo.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return policy.Policy{}, trapNoDocsErr(err, policy.ErrNotFound)
	}
	return doc.toCore(), nil
}

func (repo *policyRepository) UpdatePolicy(ctx context.Context, pol policy.Policy) (policy.Policy, error) {
	oid, err := parseID(pol.ID, policy.ErrNotFound)
	if err != nil {
		return policy.Policy{}, err
	}

	// only save set fields
	set := bson.M{}
	if pol.Title != "" {
		set["title"] = pol.Title
	}
	if pol.Body != "" {
		set["body"] = pol.Body
	}
	if pol.Keywords != nil {
		set["keywords"] = pol.Keywords
	}
	if pol.Category != "" {
		set["category"] = pol.Category
	}
	if !pol.UpdatedAt.IsZero() {
		set["updated_at"] = pol.UpdatedAt
	}

	var doc policyDoc
	err = repo.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return policy.Policy{}, trapNoDocsErr(err, policy.ErrNotFound)
	}
	return doc.toCore(), nil
}

func (repo *policyRepository) DeletePoliciesByID(ctx context.Context, ids ...string) error {
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
	return errors.Wrap(err, "deleting policies")
}
