package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kazimoto/mipango/core/policy"
	"github.com/kazimoto/mipango/core/user"
)

func seedPolicies(t *testing.T) {
	t.Helper()
	for _, np := range policy.Seed {
		if _, err := policySvc.Create(context.Background(), np); err != nil {
			t.Fatalf("seeding policies: %v", err)
		}
	}
}

func Test_policyApi_query(t *testing.T) {
	server := setup(t)
	seedPolicies(t)

	usr := createUser(t, "Student", "student", "student@test.cu", "verysecret", []string{user.RoleStudent}, true)
	token := getToken(t, usr)

	pols, err := policySvc.QueryAll(context.Background())
	if err != nil {
		t.Fatalf("querying policies: %v", err)
	}

	tests := []httpTest{
		{name: "auth required", path: "/v1/policies", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "get all", path: "/v1/policies", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, pols)},
		{name: "retrieve", path: "/v1/policies/" + pols[0].ID, token: token, wantCode: http.StatusOK, wantData: marchallObj(t, pols[0])},
		{name: "unknown id", path: "/v1/policies/nope", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_policyApi_relevant(t *testing.T) {
	server := setup(t)
	seedPolicies(t)

	usr := createUser(t, "Student", "student", "student@test.cu", "verysecret", []string{user.RoleStudent}, true)
	token := getToken(t, usr)

	tests := []httpTest{
		{
			name: "q is required", path: "/v1/policies/relevant", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"q": "this query parameter is required"}),
		},
		{name: "funding question", path: "/v1/policies/relevant?q=how+do+I+request+funding+for+a+fundraiser", token: token, wantCode: http.StatusOK, extra: []string{"rso-103", "rso-130"}},
		{name: "room question", path: "/v1/policies/relevant?q=reserve+a+room", token: token, wantCode: http.StatusOK, extra: []string{"rso-110"}},
		{name: "limit", path: "/v1/policies/relevant?q=how+do+I+request+funding+for+a+fundraiser&limit=1", token: token, wantCode: http.StatusOK, extra: []string{"rso-103"}},
		{name: "no match", path: "/v1/policies/relevant?q=quantum+entanglement", token: token, wantCode: http.StatusOK, extra: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			wantCodes, ok := tt.extra.([]string)
			if !ok || rec.Code != http.StatusOK {
				return
			}
			var matches []policy.Match
			if err := json.Unmarshal(rec.Body.Bytes(), &matches); err != nil {
				t.Fatalf("unmarshalling matches: %v", err)
			}
			if len(matches) != len(wantCodes) {
				t.Fatalf("got %d matches; want %d; body = %s", len(matches), len(wantCodes), rec.Body.String())
			}
			for i, want := range wantCodes {
				if matches[i].Policy.Code != want {
					t.Errorf("match[%d] = %q; want %q", i, matches[i].Policy.Code, want)
				}
			}
		})
	}
}

func Test_policyApi_catalogWrites(t *testing.T) {
	server := setup(t)
	seedPolicies(t)

	student := createUser(t, "Student", "student", "student@test.cu", "verysecret", []string{user.RoleStudent}, true)
	staff := createUser(t, "Staff", "staffer", "staff@test.cu", "verysecret", []string{user.RoleStaff}, true)
	admin := createUser(t, "Admin", "adminer", "admin@test.cu", "verysecret", []string{user.RoleAdmin}, true)
	studentToken := getToken(t, student)
	staffToken := getToken(t, staff)
	adminToken := getToken(t, admin)

	newPol := marchallObj(t, map[string]interface{}{
		"code":     "RSO-200",
		"title":    "Amplified Sound",
		"body":     "Amplified sound outdoors requires a permit and must end by 10pm on weekdays.",
		"keywords": []string{"sound", "noise", "amplified"},
		"category": policy.CategoryGeneral,
	})

	// create
	createTests := []httpTest{
		{name: "student cannot create", token: studentToken, body: newPol, wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)},
		{name: "staff creates", token: staffToken, body: newPol, wantCode: http.StatusCreated},
		{
			name: "duplicate code rejected", token: adminToken, body: newPol,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"code": "a policy with this code already exists"}),
		},
		{
			name: "bad category rejected", token: staffToken,
			body: marchallObj(t, map[string]interface{}{
				"code": "rso-201", "title": "X", "body": "Y", "keywords": []string{"z"}, "category": "vibes",
			}),
			wantCode: http.StatusBadRequest,
		},
	}
	var pol policy.Policy
	for _, tt := range createTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/policies", tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusCreated {
				if err := json.Unmarshal(rec.Body.Bytes(), &pol); err != nil {
					t.Fatalf("unmarshalling policy: %v", err)
				}
				if pol.Code != "rso-200" { // codes are lowercased
					t.Errorf("code = %q; want %q", pol.Code, "rso-200")
				}
			}
		})
	}
	if pol.ID == "" {
		t.Fatal("policy was not created")
	}

	// update & destroy
	tests := []httpTest{
		{
			name: "student cannot update", method: http.MethodPut, path: "/v1/policies/" + pol.ID, token: studentToken,
			body: marchallObj(t, map[string]string{"title": "Nope"}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		},
		{
			name: "staff updates title", method: http.MethodPut, path: "/v1/policies/" + pol.ID, token: staffToken,
			body: marchallObj(t, map[string]string{"title": "Amplified Sound and Noise"}), wantCode: http.StatusOK,
		},
		{
			name: "update unknown id", method: http.MethodPut, path: "/v1/policies/nope", token: staffToken,
			body: marchallObj(t, map[string]string{"title": "X"}), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "student cannot destroy", method: http.MethodDelete, path: "/v1/policies/" + pol.ID, token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied),
		},
		{name: "admin destroys", method: http.MethodDelete, path: "/v1/policies/" + pol.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "destroy again", method: http.MethodDelete, path: "/v1/policies/" + pol.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the snapshot no longer serves the deleted entry
	if matches := policySvc.Relevant("amplified sound noise", 5); len(matches) != 0 {
		t.Errorf("deleted policy still relevant: %+v", matches)
	}
}
