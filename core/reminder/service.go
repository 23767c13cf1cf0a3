package reminder

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/user"
)

// remindedCutoff guards against double-sending when the sweep is re-run
// (manually or after a crash) within the same day.
const remindedCutoff = 20 * time.Hour

type (
	PlanSource interface {
		PlansWithDueItems(ctx context.Context, from, to time.Time) ([]plan.ProgramPlan, error)
		MarkItemsReminded(ctx context.Context, planID string, itemIDs []string, at time.Time) error
	}

	EventSource interface {
		DueForReminder(ctx context.Context, now, since time.Time) ([]event.Event, error)
		MarkReminded(ctx context.Context, eventID string, at time.Time) error
	}

	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		plans   PlanSource
		events  EventSource
		users   UserDirectory
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}

	// Stats summarizes one sweep run.
	Stats struct {
		PlansSwept     int
		EventsSwept    int
		UsersNotified  int
		ItemsRemindedN int
	}

	// DueItem is one checklist entry in a user's digest.
	DueItem struct {
		PlanID    string
		PlanTitle string
		Text      string
		DueDate   time.Time
	}

	digest struct {
		usr    user.User
		items  []DueItem
		events []event.Event
	}
)

func NewService(plans PlanSource, events EventSource, users UserDirectory, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		plans:   plans,
		events:  events,
		users:   users,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

// Run executes one reminder sweep: checklist items due within the configured
// window and events whose RemindAt has passed are bundled into one digest
// email per affected user, then marked reminded.
func (svc *Service) Run(ctx context.Context, now time.Time) (Stats, error) {
	now = now.UTC()
	var stats Stats
	digests := make(map[string]*digest) // by user ID

	collect := func(userID string) *digest {
		if d, ok := digests[userID]; ok {
			return d
		}
		usr, err := svc.users.GetByID(ctx, userID)
		if err != nil || usr.Email == "" || !usr.IsActive {
			return nil
		}
		d := &digest{usr: usr}
		digests[userID] = d
		return d
	}

	// due checklist items
	since := now.Add(-remindedCutoff)
	plans, err := svc.plans.PlansWithDueItems(ctx, now, now.Add(svc.conf.Reminder.Window))
	if err != nil {
		return stats, errors.Wrap(err, "sweeping plans")
	}
	for _, pln := range plans {
		var itemIDs []string
		var items []DueItem
		for _, it := range pln.Checklist {
			if it.Done || it.DueDate.IsZero() {
				continue
			}
			if it.DueDate.Before(now) || it.DueDate.After(now.Add(svc.conf.Reminder.Window)) {
				continue
			}
			if !it.LastRemindedAt.IsZero() && it.LastRemindedAt.After(since) {
				continue
			}
			itemIDs = append(itemIDs, it.ID)
			items = append(items, DueItem{PlanID: pln.ID, PlanTitle: pln.Title, Text: it.Text, DueDate: it.DueDate})
		}
		if len(items) == 0 {
			continue
		}

		recipients := []string{pln.OwnerID}
		for _, c := range pln.Collaborators {
			recipients = append(recipients, c.UserID)
		}
		for _, uid := range recipients {
			if d := collect(uid); d != nil {
				d.items = append(d.items, items...)
			}
		}

		if err = svc.plans.MarkItemsReminded(ctx, pln.ID, itemIDs, now); err != nil {
			svc.logger.Error(fmt.Sprintf("marking plan %s items reminded: %v", pln.ID, err), err)
			continue
		}
		stats.PlansSwept++
		stats.ItemsRemindedN += len(itemIDs)
	}

	// due event reminders
	events, err := svc.events.DueForReminder(ctx, now, since)
	if err != nil {
		return stats, errors.Wrap(err, "sweeping events")
	}
	for _, evt := range events {
		recipients := []string{evt.OwnerID}
		for _, g := range evt.Guests {
			if g.RSVP != event.RSVPDeclined {
				recipients = append(recipients, g.UserID)
			}
		}
		for _, uid := range recipients {
			if d := collect(uid); d != nil {
				d.events = append(d.events, evt)
			}
		}

		if err = svc.events.MarkReminded(ctx, evt.ID, now); err != nil {
			svc.logger.Error(fmt.Sprintf("marking event %s reminded: %v", evt.ID, err), err)
			continue
		}
		stats.EventsSwept++
	}

	// one digest email per user
	msgs := make([]*core.EmailMessage, 0, len(digests))
	for _, d := range digests {
		if len(d.items) == 0 && len(d.events) == 0 {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: d.usr.Name, Address: d.usr.Email}},
			Subject:      "Your program reminders",
			TemplateName: "reminder",
			TemplateData: struct {
				User   user.User
				Items  []DueItem
				Events []event.Event
			}{d.usr, d.items, d.events},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	stats.UsersNotified = len(msgs)

	svc.logger.Info(fmt.Sprintf(
		"reminder sweep done: %d plans, %d events, %d users notified",
		stats.PlansSwept, stats.EventsSwept, stats.UsersNotified))
	return stats, nil
}
