package event_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/user"
	emailsvc "github.com/kazimoto/mipango/services/email"
	logsvc "github.com/kazimoto/mipango/services/logger"
	"github.com/kazimoto/mipango/storage/inmem"
)

var ctx = context.Background()

type eventFixture struct {
	svc     *event.Service
	planSvc *plan.Service
	owner   user.User
	guest   user.User
	outcast user.User
}

func setup(t *testing.T) *eventFixture {
	t.Helper()
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	core.ParseEmailTemplates(conf, logger)

	db := inmem.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(inmem.NewUserRepository(db), mailSvc, conf)
	planSvc := plan.NewService(inmem.NewPlanRepository(db), usrSvc)
	svc := event.NewService(inmem.NewEventRepository(db), usrSvc, planSvc, mailSvc, conf)

	newUsr := func(name string) user.User {
		usr, err := usrSvc.Create(ctx, user.NewUser{
			Name:     name,
			Email:    name + "@test.cu",
			Password: "verysecret",
		})
		require.NoError(t, err)
		return usr
	}
	emailsvc.ClearSentMessages()
	return &eventFixture{
		svc:     svc,
		planSvc: planSvc,
		owner:   newUsr("owner"),
		guest:   newUsr("guest"),
		outcast: newUsr("outcast"),
	}
}

func (fx *eventFixture) newEvent(t *testing.T, ne event.NewEvent) event.Event {
	t.Helper()
	if ne.Title == "" {
		ne.Title = "Open Mic Night"
	}
	if ne.StartsAt.IsZero() {
		ne.StartsAt = time.Now().AddDate(0, 0, 7).UTC()
	}
	if ne.EndsAt.IsZero() {
		ne.EndsAt = ne.StartsAt.Add(2 * time.Hour)
	}
	evt, err := fx.svc.Create(ctx, fx.owner.ID, ne)
	require.NoError(t, err)
	return evt
}

func TestService_Create_planLink(t *testing.T) {
	fx := setup(t)
	pln, err := fx.planSvc.Create(ctx, fx.owner.ID, plan.NewPlan{Title: "Talent Show", ProgramType: plan.TypeSocial})
	require.NoError(t, err)

	evt := fx.newEvent(t, event.NewEvent{PlanID: pln.ID})
	assert.Equal(t, pln.ID, evt.PlanID)
	assert.NotNil(t, evt.Guests)

	// linking requires edit rights on the plan
	var vErr *core.ValidationError
	_, err = fx.svc.Create(ctx, fx.guest.ID, event.NewEvent{
		PlanID:   pln.ID,
		Title:    "Hijacked",
		StartsAt: evt.StartsAt,
		EndsAt:   evt.EndsAt,
	})
	assert.ErrorAs(t, err, &vErr)
}

func TestService_Get_permissions(t *testing.T) {
	fx := setup(t)
	evt := fx.newEvent(t, event.NewEvent{})
	_, err := fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.guest.ID})
	require.NoError(t, err)

	_, err = fx.svc.Get(ctx, evt.ID, fx.owner.ID)
	assert.NoError(t, err)
	_, err = fx.svc.Get(ctx, evt.ID, fx.guest.ID)
	assert.NoError(t, err)
	_, err = fx.svc.Get(ctx, evt.ID, fx.outcast.ID)
	assert.Equal(t, event.ErrNotFound, errors.Cause(err))
}

func TestService_Update(t *testing.T) {
	fx := setup(t)
	evt := fx.newEvent(t, event.NewEvent{})
	_, err := fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.guest.ID})
	require.NoError(t, err)

	// guests may look but not touch
	_, err = fx.svc.Update(ctx, evt.ID, fx.guest.ID, event.UpdateEvent{Title: "Mine"})
	assert.Equal(t, event.ErrForbidden, errors.Cause(err))

	loc := "Union Hall B"
	got, err := fx.svc.Update(ctx, evt.ID, fx.owner.ID, event.UpdateEvent{Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, loc, got.Location)
	assert.Equal(t, evt.Title, got.Title)

	// cannot end before it starts
	badEnd := evt.StartsAt.Add(-time.Hour)
	var vErr *core.ValidationError
	_, err = fx.svc.Update(ctx, evt.ID, fx.owner.ID, event.UpdateEvent{EndsAt: &badEnd})
	assert.ErrorAs(t, err, &vErr)
}

func TestService_Update_reArmsReminder(t *testing.T) {
	fx := setup(t)
	now := time.Now().UTC()
	evt := fx.newEvent(t, event.NewEvent{RemindAt: now.Add(-time.Minute)})

	require.NoError(t, fx.svc.MarkReminded(ctx, evt.ID, now))
	due, err := fx.svc.DueForReminder(ctx, now, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	remindAt := now.Add(-time.Second)
	_, err = fx.svc.Update(ctx, evt.ID, fx.owner.ID, event.UpdateEvent{RemindAt: &remindAt})
	require.NoError(t, err)

	due, err = fx.svc.DueForReminder(ctx, now.Add(time.Second), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, evt.ID, due[0].ID)
}

func TestService_InviteGuest(t *testing.T) {
	fx := setup(t)
	evt := fx.newEvent(t, event.NewEvent{Title: "Karaoke", Location: "Union Hall"})

	// only the owner invites
	_, err := fx.svc.InviteGuest(ctx, evt.ID, fx.guest.ID, event.NewGuest{UserID: fx.outcast.ID})
	assert.Equal(t, event.ErrNotFound, errors.Cause(err)) // not even a guest yet

	got, err := fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.guest.ID})
	require.NoError(t, err)
	require.Len(t, got.Guests, 1)
	assert.Equal(t, event.RSVPInvited, got.Guests[0].RSVP)

	// invitation email went out
	require.NotEmpty(t, emailsvc.SentMessages)
	last := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	assert.Equal(t, "You are invited: Karaoke", last.Subject)
	require.Len(t, last.To, 1)
	assert.Equal(t, fx.guest.Email, last.To[0].Address)

	// inviting twice is a no-op
	got, err = fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.guest.ID})
	require.NoError(t, err)
	assert.Len(t, got.Guests, 1)

	// owner cannot invite themselves, unknowns rejected
	var vErr *core.ValidationError
	_, err = fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.owner.ID})
	assert.ErrorAs(t, err, &vErr)
	_, err = fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: "unknown"})
	assert.ErrorAs(t, err, &vErr)
}

func TestService_RemoveGuest(t *testing.T) {
	fx := setup(t)
	evt := fx.newEvent(t, event.NewEvent{})
	_, err := fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.guest.ID})
	require.NoError(t, err)

	// guests may leave on their own
	got, err := fx.svc.RemoveGuest(ctx, evt.ID, fx.guest.ID, fx.guest.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Guests)

	_, err = fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.guest.ID})
	require.NoError(t, err)

	// but cannot remove others
	_, err = fx.svc.RemoveGuest(ctx, evt.ID, fx.guest.ID, fx.owner.ID)
	assert.Equal(t, event.ErrForbidden, errors.Cause(err))

	got, err = fx.svc.RemoveGuest(ctx, evt.ID, fx.owner.ID, fx.guest.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Guests)
}

func TestService_RSVP(t *testing.T) {
	fx := setup(t)
	evt := fx.newEvent(t, event.NewEvent{})
	_, err := fx.svc.InviteGuest(ctx, evt.ID, fx.owner.ID, event.NewGuest{UserID: fx.guest.ID})
	require.NoError(t, err)

	got, err := fx.svc.RSVP(ctx, evt.ID, fx.guest.ID, event.RSVPRequest{RSVP: event.RSVPGoing})
	require.NoError(t, err)
	assert.Equal(t, event.RSVPGoing, got.Guests[0].RSVP)

	// the owner has no invitation to answer
	_, err = fx.svc.RSVP(ctx, evt.ID, fx.owner.ID, event.RSVPRequest{RSVP: event.RSVPDeclined})
	assert.Equal(t, event.ErrForbidden, errors.Cause(err))
}

func TestService_Filter(t *testing.T) {
	fx := setup(t)
	now := time.Now().UTC()
	past := fx.newEvent(t, event.NewEvent{Title: "Last Week", StartsAt: now.AddDate(0, 0, -7), EndsAt: now.AddDate(0, 0, -7).Add(time.Hour)})
	next := fx.newEvent(t, event.NewEvent{Title: "Next Week"})
	_, err := fx.svc.InviteGuest(ctx, next.ID, fx.owner.ID, event.NewGuest{UserID: fx.guest.ID})
	require.NoError(t, err)

	evts, err := fx.svc.Filter(ctx, fx.owner.ID, nil)
	require.NoError(t, err)
	assert.Len(t, evts, 2)

	// guests see what they are invited to
	evts, err = fx.svc.Filter(ctx, fx.guest.ID, nil)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, next.ID, evts[0].ID)

	upcoming := true
	evts, err = fx.svc.Filter(ctx, fx.owner.ID, &event.QueryFilter{Upcoming: &upcoming})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, next.ID, evts[0].ID)

	upcoming = false
	evts, err = fx.svc.Filter(ctx, fx.owner.ID, &event.QueryFilter{Upcoming: &upcoming})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, past.ID, evts[0].ID)

	evts, err = fx.svc.Filter(ctx, fx.owner.ID, &event.QueryFilter{Search: "last"})
	require.NoError(t, err)
	assert.Len(t, evts, 1)
}
