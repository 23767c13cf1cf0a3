package reminder_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/reminder"
	"github.com/kazimoto/mipango/core/user"
	emailsvc "github.com/kazimoto/mipango/services/email"
	logsvc "github.com/kazimoto/mipango/services/logger"
	"github.com/kazimoto/mipango/storage/inmem"
)

var ctx = context.Background()

type reminderFixture struct {
	svc      *reminder.Service
	planSvc  *plan.Service
	eventSvc *event.Service
	usrSvc   *user.Service
	conf     *core.Config
	owner    user.User
	collab   user.User
	sleeper  user.User // deactivated
}

func setup(t *testing.T) *reminderFixture {
	t.Helper()
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	core.ParseEmailTemplates(conf, logger)

	db := inmem.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(inmem.NewUserRepository(db), mailSvc, conf)
	planSvc := plan.NewService(inmem.NewPlanRepository(db), usrSvc)
	eventSvc := event.NewService(inmem.NewEventRepository(db), usrSvc, planSvc, mailSvc, conf)
	svc := reminder.NewService(planSvc, eventSvc, usrSvc, mailSvc, conf, logger)

	newUsr := func(name string) user.User {
		usr, err := usrSvc.Create(ctx, user.NewUser{
			Name:     name,
			Email:    name + "@test.cu",
			Password: "verysecret",
		})
		require.NoError(t, err)
		return usr
	}
	fx := &reminderFixture{
		svc:      svc,
		planSvc:  planSvc,
		eventSvc: eventSvc,
		usrSvc:   usrSvc,
		conf:     conf,
		owner:    newUsr("owner"),
		collab:   newUsr("collab"),
		sleeper:  newUsr("sleeper"),
	}
	inactive := false
	_, err := usrSvc.Update(ctx, fx.sleeper.ID, user.UpdateUser{IsActive: &inactive})
	require.NoError(t, err)
	emailsvc.ClearSentMessages()
	return fx
}

func recipients(t *testing.T) []string {
	t.Helper()
	var addrs []string
	for _, msg := range emailsvc.SentMessages {
		require.Len(t, msg.To, 1)
		addrs = append(addrs, msg.To[0].Address)
	}
	return addrs
}

func TestService_Run_checklistDigest(t *testing.T) {
	fx := setup(t)
	now := time.Now().UTC()

	pln, err := fx.planSvc.Create(ctx, fx.owner.ID, plan.NewPlan{Title: "Club Fair", ProgramType: plan.TypeOther})
	require.NoError(t, err)
	_, err = fx.planSvc.AddCollaborator(ctx, pln.ID, fx.owner.ID, plan.NewCollaborator{UserID: fx.collab.ID, Role: plan.CollabViewer})
	require.NoError(t, err)

	_, err = fx.planSvc.AddItem(ctx, pln.ID, fx.owner.ID, plan.NewChecklistItem{Text: "print posters", DueDate: now.Add(24 * time.Hour)})
	require.NoError(t, err)
	_, err = fx.planSvc.AddItem(ctx, pln.ID, fx.owner.ID, plan.NewChecklistItem{Text: "way later", DueDate: now.Add(fx.conf.Reminder.Window + 48*time.Hour)})
	require.NoError(t, err)
	_, err = fx.planSvc.AddItem(ctx, pln.ID, fx.owner.ID, plan.NewChecklistItem{Text: "undated"})
	require.NoError(t, err)

	stats, err := fx.svc.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PlansSwept)
	assert.Equal(t, 1, stats.ItemsRemindedN)
	assert.Equal(t, 0, stats.EventsSwept)
	assert.Equal(t, 2, stats.UsersNotified)

	// owner and collaborator each get one digest
	assert.ElementsMatch(t, []string{fx.owner.Email, fx.collab.Email}, recipients(t))
	for _, msg := range emailsvc.SentMessages {
		assert.Equal(t, "Your program reminders", msg.Subject)
		assert.Contains(t, msg.TextContent, "print posters")
		assert.NotContains(t, msg.TextContent, "way later")
	}

	// re-running within the cutoff sends nothing
	emailsvc.ClearSentMessages()
	stats, err = fx.svc.Run(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, stats.UsersNotified)
	assert.Empty(t, emailsvc.SentMessages)
}

func TestService_Run_eventDigest(t *testing.T) {
	fx := setup(t)
	now := time.Now().UTC()

	evt, err := fx.eventSvc.Create(ctx, fx.owner.ID, event.NewEvent{
		Title:    "Budget Townhall",
		StartsAt: now.Add(48 * time.Hour),
		EndsAt:   now.Add(50 * time.Hour),
		RemindAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)
	_, err = fx.eventSvc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.collab.ID})
	require.NoError(t, err)

	// declined guests are left alone
	decliner, err := fx.usrSvc.Create(ctx, user.NewUser{Name: "decliner", Email: "decliner@test.cu", Password: "verysecret"})
	require.NoError(t, err)
	_, err = fx.eventSvc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: decliner.ID})
	require.NoError(t, err)
	_, err = fx.eventSvc.RSVP(ctx, evt.ID, decliner.ID, event.RSVPRequest{RSVP: event.RSVPDeclined})
	require.NoError(t, err)

	emailsvc.ClearSentMessages()
	stats, err := fx.svc.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EventsSwept)
	assert.Equal(t, 2, stats.UsersNotified)
	assert.ElementsMatch(t, []string{fx.owner.Email, fx.collab.Email}, recipients(t))
	assert.Contains(t, emailsvc.SentMessages[0].TextContent, "Budget Townhall")

	// second sweep within the cutoff is a no-op
	emailsvc.ClearSentMessages()
	stats, err = fx.svc.Run(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, stats.EventsSwept)
	assert.Empty(t, emailsvc.SentMessages)
}

func TestService_Run_skipsInactiveAndDone(t *testing.T) {
	fx := setup(t)
	now := time.Now().UTC()

	pln, err := fx.planSvc.Create(ctx, fx.sleeper.ID, plan.NewPlan{Title: "Ghost Plan", ProgramType: plan.TypeOther})
	require.NoError(t, err)
	pln, err = fx.planSvc.AddItem(ctx, pln.ID, fx.sleeper.ID, plan.NewChecklistItem{Text: "due", DueDate: now.Add(time.Hour)})
	require.NoError(t, err)
	done := true
	_, err = fx.planSvc.AddItem(ctx, pln.ID, fx.sleeper.ID, plan.NewChecklistItem{Text: "finished", DueDate: now.Add(time.Hour)})
	require.NoError(t, err)
	pln, err = fx.planSvc.Get(ctx, pln.ID, fx.sleeper.ID)
	require.NoError(t, err)
	_, err = fx.planSvc.UpdateItem(ctx, pln.ID, pln.Checklist[1].ID, fx.sleeper.ID, plan.UpdateChecklistItem{Done: &done})
	require.NoError(t, err)

	stats, err := fx.svc.Run(ctx, now)
	require.NoError(t, err)
	// the plan is swept but its deactivated owner gets no email
	assert.Equal(t, 1, stats.PlansSwept)
	assert.Equal(t, 1, stats.ItemsRemindedN)
	assert.Zero(t, stats.UsersNotified)
	assert.Empty(t, emailsvc.SentMessages)
}

func TestService_Run_empty(t *testing.T) {
	fx := setup(t)

	stats, err := fx.svc.Run(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, reminder.Stats{}, stats)
	assert.Empty(t, emailsvc.SentMessages)
}
