package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kazimoto/mipango/core/plan"
)

type (
	checklistItemDoc struct {
		ID             string    `bson:"id"`
		Text           string    `bson:"text"`
		Done           bool      `bson:"done"`
		DueDate        time.Time `bson:"due_date"`
		LastRemindedAt time.Time `bson:"last_reminded_at"`
	}

	collaboratorDoc struct {
		UserID string `bson:"user_id"`
		Role   string `bson:"role"`
	}

	planDoc struct {
		ID            primitive.ObjectID `bson:"_id,omitempty"`
		OwnerID       string             `bson:"owner_id"`
		Title         string             `bson:"title"`
		Description   string             `bson:"description"`
		ProgramType   string             `bson:"program_type"`
		Status        string             `bson:"status"`
		TargetDate    time.Time          `bson:"target_date"`
		Checklist     []checklistItemDoc `bson:"checklist"`
		Collaborators []collaboratorDoc  `bson:"collaborators"`
		CreatedAt     time.Time          `bson:"created_at"`
		UpdatedAt     time.Time          `bson:"updated_at"`
	}
)

func newPlanDoc(pln plan.ProgramPlan) planDoc {
	doc := planDoc{
		OwnerID:       pln.OwnerID,
		Title:         pln.Title,
		Description:   pln.Description,
		ProgramType:   pln.ProgramType,
		Status:        pln.Status,
		TargetDate:    pln.TargetDate,
		Checklist:     make([]checklistItemDoc, 0, len(pln.Checklist)),
		Collaborators: make([]collaboratorDoc, 0, len(pln.Collaborators)),
		CreatedAt:     pln.CreatedAt,
		UpdatedAt:     pln.UpdatedAt,
	}
	for _, item := range pln.Checklist {
		doc.Checklist = append(doc.Checklist, checklistItemDoc(item))
	}
	for _, c := range pln.Collaborators {
		doc.Collaborators = append(doc.Collaborators, collaboratorDoc(c))
	}
	return doc
}

func (d planDoc) toCore() plan.ProgramPlan {
	pln := plan.ProgramPlan{
		ID:            d.ID.Hex(),
		OwnerID:       d.OwnerID,
		Title:         d.Title,
		Description:   d.Description,
		ProgramType:   d.ProgramType,
		Status:        d.Status,
		TargetDate:    d.TargetDate,
		Checklist:     make([]plan.ChecklistItem, 0, len(d.Checklist)),
		Collaborators: make([]plan.Collaborator, 0, len(d.Collaborators)),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, item := range d.Checklist {
		pln.Checklist = append(pln.Checklist, plan.ChecklistItem(item))
	}
	for _, c := range d.Collaborators {
		pln.Collaborators = append(pln.Collaborators, plan.Collaborator(c))
	}
	return pln
}

type planRepository struct {
	col *mongo.Collection
}

func NewPlanRepository(db *mongo.Database) plan.Repository {
	return &planRepository{col: db.Collection(colPlans)}
}

func (repo *planRepository) CreatePlan(ctx context.Context, pln plan.ProgramPlan) (plan.ProgramPlan, error) {
	doc := newPlanDoc(pln)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.col.InsertOne(ctx, doc); err != nil {
		return plan.ProgramPlan{}, errors.Wrap(err, "inserting plan")
	}
	return doc.toCore(), nil
}

func (repo *planRepository) GetPlanByID(ctx context.Context, id string) (plan.ProgramPlan, error) {
	oid, err := parseID(id, plan.ErrNotFound)
	if err != nil {
		return plan.ProgramPlan{}, err
	}
	var doc planDoc
	if err = repo.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return plan.ProgramPlan{}, trapNoDocsErr(err, plan.ErrNotFound)
	}
	return doc.toCore(), nil
}

func (repo *planRepository) FilterPlansForUser(ctx context.Context, userID string, filter plan.QueryFilter) ([]plan.ProgramPlan, error) {
	query := bson.M{
		"$or": bson.A{
			bson.M{"owner_id": userID},
			bson.M{"collaborators.user_id": userID},
		},
	}
	if filter.Search != "" {
		re := containsRegex(filter.Search)
		query["$and"] = bson.A{bson.M{"$or": bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}}}
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.ProgramType != "" {
		query["program_type"] = filter.ProgramType
	}

	cur, err := repo.col.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying plans")
	}
	var docs []planDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding plans")
	}

	plans := make([]plan.ProgramPlan, 0, len(docs))
	for _, doc := range docs {
		plans = append(plans, doc.toCore())
	}
	return plans, nil
}

func (repo *planRepository) UpdatePlan(ctx context.Context, pln plan.ProgramPlan) (plan.ProgramPlan, error) {
	oid, err := parseID(pln.ID, plan.ErrNotFound)
	if err != nil {
		return plan.ProgramPlan{}, err
	}
	doc := newPlanDoc(pln)
	doc.ID = oid
	res, err := repo.col.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return plan.ProgramPlan{}, errors.Wrap(err, "replacing plan")
	}
	if res.MatchedCount == 0 {
		return plan.ProgramPlan{}, plan.ErrNotFound
	}
	return doc.toCore(), nil
}

func (repo *planRepository) DeletePlansByID(ctx context.Context, ids ...string) error {
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
	return errors.Wrap(err, "deleting plans")
}

func (repo *planRepository) PlansWithDueItems(ctx context.Context, from, to time.Time) ([]plan.ProgramPlan, error) {
	query := bson.M{
		"checklist": bson.M{"$elemMatch": bson.M{
			"done":     false,
			"due_date": bson.M{"$gte": from, "$lte": to},
		}},
	}
	cur, err := repo.col.Find(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying plans with due items")
	}
	var docs []planDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding plans")
	}

	plans := make([]plan.ProgramPlan, 0, len(docs))
	for _, doc := range docs {
		plans = append(plans, doc.toCore())
	}
	return plans, nil
}

func (repo *planRepository) MarkItemsReminded(ctx context.Context, planID string, itemIDs []string, at time.Time) error {
	oid, err := parseID(planID, plan.ErrNotFound)
	if err != nil {
		return err
	}
	res, err := repo.col.UpdateOne(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"checklist.$[it].last_reminded_at": at}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: bson.A{bson.M{"it.id": bson.M{"$in": itemIDs}}},
		}),
	)
	if err != nil {
		return errors.Wrap(err, "marking items reminded")
	}
	if res.MatchedCount == 0 {
		return plan.ErrNotFound
	}
	return nil
}
