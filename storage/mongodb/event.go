package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kazimoto/mipango/core/event"
)

type (
	guestDoc struct {
		UserID string `bson:"user_id"`
		RSVP   string `bson:"rsvp"`
	}

	eventDoc struct {
		ID             primitive.ObjectID `bson:"_id,omitempty"`
		OwnerID        string             `bson:"owner_id"`
		PlanID         string             `bson:"plan_id,omitempty"`
		Title          string             `bson:"title"`
		Description    string             `bson:"description"`
		Location       string             `bson:"location"`
		StartsAt       time.Time          `bson:"starts_at"`
		EndsAt         time.Time          `bson:"ends_at"`
		Guests         []guestDoc         `bson:"guests"`
		RemindAt       time.Time          `bson:"remind_at"`
		LastRemindedAt time.Time          `bson:"last_reminded_at"`
		CreatedAt      time.Time          `bson:"created_at"`
		UpdatedAt      time.Time          `bson:"updated_at"`
	}
)

func newEventDoc(evt event.Event) eventDoc {
	doc := eventDoc{
		OwnerID:        evt.OwnerID,
		PlanID:         evt.PlanID,
		Title:          evt.Title,
		Description:    evt.Description,
		Location:       evt.Location,
		StartsAt:       evt.StartsAt,
		EndsAt:         evt.EndsAt,
		Guests:         make([]guestDoc, 0, len(evt.Guests)),
		RemindAt:       evt.RemindAt,
		LastRemindedAt: evt.LastRemindedAt,
		CreatedAt:      evt.CreatedAt,
		UpdatedAt:      evt.UpdatedAt,
	}
	for _, g := range evt.Guests {
		doc.Guests = append(doc.Guests, guestDoc(g))
	}
	return doc
}

func (d eventDoc) toCore() event.Event {
	evt := event.Event{
		ID:             d.ID.Hex(),
		OwnerID:        d.OwnerID,
		PlanID:         d.PlanID,
		Title:          d.Title,
		Description:    d.Description,
		Location:       d.Location,
		StartsAt:       d.StartsAt,
		EndsAt:         d.EndsAt,
		Guests:         make([]event.Guest, 0, len(d.Guests)),
		RemindAt:       d.RemindAt,
		LastRemindedAt: d.LastRemindedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, g := range d.Guests {
		evt.Guests = append(evt.Guests, event.Guest(g))
	}
	return evt
}

type eventRepository struct {
	col *mongo.Collection
}

func NewEventRepository(db *mongo.Database) event.Repository {
	return &eventRepository{col: db.Collection(colEvents)}
}

func (repo *eventRepository) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	doc := newEventDoc(evt)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.col.InsertOne(ctx, doc); err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return doc.toCore(), nil
}

func (repo *eventRepository) GetEventByID(ctx context.Context, id string) (event.Event, error) {
	oid, err := parseID(id, event.ErrNotFound)
	if err != nil {
		return event.Event{}, err
	}
	var doc eventDoc
	if err = repo.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return event.Event{}, trapNoDocsErr(err, event.ErrNotFound)
	}
	return doc.toCore(), nil
}

func (repo *eventRepository) FilterEventsForUser(ctx context.Context, userID string, filter event.QueryFilter) ([]event.Event, error) {
	query := bson.M{
		"$or": bson.A{
			bson.M{"owner_id": userID},
			bson.M{"guests.user_id": userID},
		},
	}
	if filter.Search != "" {
		re := containsRegex(filter.Search)
		query["$and"] = bson.A{bson.M{"$or": bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
			bson.M{"location": re},
		}}}
	}
	if filter.Upcoming != nil {
		if *filter.Upcoming {
			query["ends_at"] = bson.M{"$gt": time.Now().UTC()}
		} else {
			query["ends_at"] = bson.M{"$lte": time.Now().UTC()}
		}
	}

	cur, err := repo.col.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	var docs []eventDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding events")
	}

	events := make([]event.Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, doc.toCore())
	}
	return events, nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	oid, err := parseID(evt.ID, event.ErrNotFound)
	if err != nil {
		return event.Event{}, err
	}
	doc := newEventDoc(evt)
	doc.ID = oid
	res, err := repo.col.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "replacing event")
	}
	if res.MatchedCount == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return doc.toCore(), nil
}

func (repo *eventRepository) DeleteEventsByID(ctx context.Context, ids ...string) error {
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
	return errors.Wrap(err, "deleting events")
}

func (repo *eventRepository) EventsDueForReminder(ctx context.Context, now, since time.Time) ([]event.Event, error) {
	query := bson.M{
		"remind_at":        bson.M{"$gt": time.Time{}, "$lte": now},
		"last_reminded_at": bson.M{"$lt": since},
	}
	cur, err := repo.col.Find(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying events due for reminder")
	}
	var docs []eventDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding events")
	}

	events := make([]event.Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, doc.toCore())
	}
	return events, nil
}

func (repo *eventRepository) MarkEventReminded(ctx context.Context, eventID string, at time.Time) error {
	oid, err := parseID(eventID, event.ErrNotFound)
	if err != nil {
		return err
	}
	res, err := repo.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"last_reminded_at": at}})
	if err != nil {
		return errors.Wrap(err, "marking event reminded")
	}
	if res.MatchedCount == 0 {
		return event.ErrNotFound
	}
	return nil
}
