package inmem

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kazimoto/mipango/core/event"
)

type eventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) event.Repository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) query() []event.Event {
	events := make([]event.Event, 0, len(repo.db.events))
	for _, e := range repo.db.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartsAt.Before(events[j].StartsAt) })
	return events
}

func (repo *eventRepository) CreateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	evt.ID = newID()
	repo.db.events[evt.ID] = evt
	return evt, nil
}

func (repo *eventRepository) GetEventByID(_ context.Context, id string) (event.Event, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if evt, ok := repo.db.events[id]; ok {
		return evt, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) FilterEventsForUser(_ context.Context, userID string, filter event.QueryFilter) ([]event.Event, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	events := make([]event.Event, 0)
	for _, evt := range repo.query() {
		if !evt.CanView(userID) {
			continue
		}
		if matchEvent(evt, filter) {
			events = append(events, evt)
		}
	}
	return events, nil
}

func matchEvent(evt event.Event, filter event.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(evt.Title), search) &&
			!strings.Contains(strings.ToLower(evt.Description), search) &&
			!strings.Contains(strings.ToLower(evt.Location), search) {
			return false
		}
	}
	if filter.Upcoming != nil {
		upcoming := evt.EndsAt.After(time.Now().UTC())
		if upcoming != *filter.Upcoming {
			return false
		}
	}
	return true
}

func (repo *eventRepository) UpdateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.events[evt.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.db.events[evt.ID] = evt
	return evt, nil
}

func (repo *eventRepository) DeleteEventsByID(_ context.Context, ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for _, id := range ids {
		delete(repo.db.events, id)
	}
	return nil
}

func (repo *eventRepository) EventsDueForReminder(_ context.Context, now, since time.Time) ([]event.Event, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	events := make([]event.Event, 0)
	for _, evt := range repo.query() {
		if evt.RemindAt.IsZero() || evt.RemindAt.After(now) {
			continue
		}
		if !evt.LastRemindedAt.IsZero() && evt.LastRemindedAt.After(since) {
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}

func (repo *eventRepository) MarkEventReminded(_ context.Context, eventID string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	evt, ok := repo.db.events[eventID]
	if !ok {
		return event.ErrNotFound
	}
	evt.LastRemindedAt = at
	repo.db.events[eventID] = evt
	return nil
}
