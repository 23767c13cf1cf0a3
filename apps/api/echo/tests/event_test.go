package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/user"
	emailsvc "github.com/kazimoto/mipango/services/email"
)

func Test_eventApi_crud(t *testing.T) {
	server := setup(t)
	ctx := context.Background()

	owner := createUser(t, "Owner", "owner01", "owner@test.cu", "verysecret", []string{user.RoleStudent}, true)
	stranger := createUser(t, "Stranger", "stranger", "stranger@test.cu", "verysecret", []string{user.RoleStudent}, true)
	ownerToken := getToken(t, owner)

	startsAt := time.Now().AddDate(0, 0, 7).UTC().Truncate(time.Second)
	endsAt := startsAt.Add(2 * time.Hour)

	// create
	req, rec := newAuthRequest(http.MethodPost, "/v1/events", ownerToken, marchallObj(t, map[string]interface{}{
		"title":     "Open Mic Night",
		"location":  "Union Hall",
		"starts_at": startsAt,
		"ends_at":   endsAt,
	}))
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: code = %v; body = %s", rec.Code, rec.Body.String())
	}
	var evt event.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &evt); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/events", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "ends before start rejected", method: http.MethodPost, path: "/v1/events", token: ownerToken,
			body: marchallObj(t, map[string]interface{}{
				"title": "Backwards", "starts_at": endsAt, "ends_at": startsAt,
			}),
			wantCode: http.StatusBadRequest,
		},
		{name: "owner lists", method: http.MethodGet, path: "/v1/events", token: ownerToken, wantCode: http.StatusOK, wantData: marchallList(t, evt)},
		{name: "stranger sees nothing", method: http.MethodGet, path: "/v1/events", token: getToken(t, stranger), wantCode: http.StatusOK, wantData: marchallList(t, []interface{}{}...)},
		{name: "owner retrieves", method: http.MethodGet, path: "/v1/events/" + evt.ID, token: ownerToken, wantCode: http.StatusOK, wantData: marchallObj(t, evt)},
		{
			name: "stranger retrieve is hidden", method: http.MethodGet, path: "/v1/events/" + evt.ID, token: getToken(t, stranger),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "owner updates location", method: http.MethodPut, path: "/v1/events/" + evt.ID, token: ownerToken,
			body: marchallObj(t, map[string]string{"location": "Quad Lawn"}), wantCode: http.StatusOK,
		},
		{
			name: "stranger cannot delete", method: http.MethodDelete, path: "/v1/events/" + evt.ID, token: getToken(t, stranger),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{name: "owner deletes", method: http.MethodDelete, path: "/v1/events/" + evt.ID, token: ownerToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	if _, err := eventSvc.Get(ctx, evt.ID, owner.ID); err == nil {
		t.Errorf("event still exists after delete")
	}
}

func Test_eventApi_planLink(t *testing.T) {
	server := setup(t)
	ctx := context.Background()

	owner := createUser(t, "Owner", "owner01", "owner@test.cu", "verysecret", []string{user.RoleStudent}, true)
	other := createUser(t, "Other", "otherrr", "other@test.cu", "verysecret", []string{user.RoleStudent}, true)

	pln, err := planSvc.Create(ctx, owner.ID, plan.NewPlan{Title: "Talent Show", ProgramType: plan.TypeSocial})
	if err != nil {
		t.Fatalf("creating plan: %v", err)
	}

	startsAt := time.Now().AddDate(0, 0, 3).UTC()
	body := func(planID string) []byte {
		return marchallObj(t, map[string]interface{}{
			"plan_id":   planID,
			"title":     "Dress Rehearsal",
			"starts_at": startsAt,
			"ends_at":   startsAt.Add(time.Hour),
		})
	}

	tests := []httpTest{
		{name: "owner links own plan", token: getToken(t, owner), body: body(pln.ID), wantCode: http.StatusCreated},
		{name: "cannot link someone else's plan", token: getToken(t, other), body: body(pln.ID), wantCode: http.StatusBadRequest},
		{name: "cannot link unknown plan", token: getToken(t, owner), body: body("nope"), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/events", tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_eventApi_queryFilters(t *testing.T) {
	server := setup(t)
	ctx := context.Background()

	owner := createUser(t, "Owner", "owner01", "owner@test.cu", "verysecret", []string{user.RoleStudent}, true)
	token := getToken(t, owner)

	now := time.Now().UTC()
	past, err := eventSvc.Create(ctx, owner.ID, event.NewEvent{Title: "Winter Gala", StartsAt: now.AddDate(0, -1, 0), EndsAt: now.AddDate(0, -1, 0).Add(time.Hour)})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	upcoming, err := eventSvc.Create(ctx, owner.ID, event.NewEvent{Title: "Spring Picnic", StartsAt: now.AddDate(0, 0, 5), EndsAt: now.AddDate(0, 0, 5).Add(time.Hour)})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}

	tests := []httpTest{
		{name: "all", path: "/v1/events", wantCode: http.StatusOK, wantData: marchallList(t, past, upcoming)},
		{name: "upcoming only", path: "/v1/events?upcoming=true", wantCode: http.StatusOK, wantData: marchallList(t, upcoming)},
		{name: "search", path: "/v1/events?search=gala", wantCode: http.StatusOK, wantData: marchallList(t, past)},
		{name: "search no hit", path: "/v1/events?search=rodeo", wantCode: http.StatusOK, wantData: marchallList(t, []interface{}{}...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_eventApi_guestsAndRSVP(t *testing.T) {
	server := setup(t)
	ctx := context.Background()

	owner := createUser(t, "Owner", "owner01", "owner@test.cu", "verysecret", []string{user.RoleStudent}, true)
	guest := createUser(t, "Guest", "guest01", "guest@test.cu", "verysecret", []string{user.RoleStudent}, true)
	ownerToken := getToken(t, owner)
	guestToken := getToken(t, guest)

	startsAt := time.Now().AddDate(0, 0, 7).UTC()
	evt, err := eventSvc.Create(ctx, owner.ID, event.NewEvent{Title: "Karaoke", StartsAt: startsAt, EndsAt: startsAt.Add(time.Hour)})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	emailsvc.ClearSentMessages()

	tests := []httpTest{
		{
			name: "guest cannot invite", method: http.MethodPost, path: "/v1/events/" + evt.ID + "/guests", token: guestToken,
			body: marchallObj(t, map[string]string{"user_id": guest.ID}), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "owner invites guest", method: http.MethodPost, path: "/v1/events/" + evt.ID + "/guests", token: ownerToken,
			body: marchallObj(t, map[string]string{"user_id": guest.ID}), wantCode: http.StatusOK, extra: "invited",
		},
		{
			name: "owner cannot invite themselves", method: http.MethodPost, path: "/v1/events/" + evt.ID + "/guests", token: ownerToken,
			body:     marchallObj(t, map[string]string{"user_id": owner.ID}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"user_id": "owner cannot be invited as guest"}),
		},
		{
			name: "invalid rsvp value", method: http.MethodPost, path: "/v1/events/" + evt.ID + "/rsvp", token: guestToken,
			body: marchallObj(t, map[string]string{"rsvp": "maybe"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "guest rsvps going", method: http.MethodPost, path: "/v1/events/" + evt.ID + "/rsvp", token: guestToken,
			body: marchallObj(t, map[string]string{"rsvp": event.RSVPGoing}), wantCode: http.StatusOK, extra: event.RSVPGoing,
		},
		{
			name: "owner has no rsvp", method: http.MethodPost, path: "/v1/events/" + evt.ID + "/rsvp", token: ownerToken,
			body: marchallObj(t, map[string]string{"rsvp": event.RSVPGoing}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		},
		{
			name: "guest leaves", method: http.MethodDelete, path: "/v1/events/" + evt.ID + "/guests/" + guest.ID, token: guestToken,
			wantCode: http.StatusOK,
		},
		{
			name: "guest lost access", method: http.MethodGet, path: "/v1/events/" + evt.ID, token: guestToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if wantRSVP, ok := tt.extra.(string); ok && rec.Code == http.StatusOK {
				var got event.Event
				if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
					t.Fatalf("unmarshalling event: %v", err)
				}
				if len(got.Guests) != 1 || got.Guests[0].RSVP != wantRSVP {
					t.Errorf("guests = %+v; want one guest with rsvp %q", got.Guests, wantRSVP)
				}
			}
		})
	}

	// invitation email went out exactly once
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent emails = %d; want 1", len(emailsvc.SentMessages))
	}
	if subj := emailsvc.SentMessages[0].Subject; subj != "You are invited: Karaoke" {
		t.Errorf("subject = %q", subj)
	}
}
