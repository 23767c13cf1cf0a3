package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core/chat"
	"github.com/kazimoto/mipango/core/user"
)

func Test_chatApi_send(t *testing.T) {
	server := setup(t)
	ctx := context.Background()

	usr := createUser(t, "Student", "student", "student@test.cu", "verysecret", []string{user.RoleStudent}, true)
	stranger := createUser(t, "Stranger", "stranger", "stranger@test.cu", "verysecret", []string{user.RoleStudent}, true)
	token := getToken(t, usr)

	assistantReply = "Start with a budget and book the room early."

	// first turn opens a conversation
	req, rec := newAuthRequest(http.MethodPost, "/v1/chat/messages", token, marchallObj(t, map[string]string{
		"message": "How do I plan a bake sale fundraiser?",
	}))
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("send: code = %v; body = %s", rec.Code, rec.Body.String())
	}
	var reply chat.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.ConversationID == "" {
		t.Fatal("no conversation ID in reply")
	}
	if reply.Message.Role != chat.RoleAssistant || reply.Message.Content != assistantReply {
		t.Errorf("reply message = %+v", reply.Message)
	}

	tests := []httpTest{
		{name: "auth required", body: marchallObj(t, map[string]string{"message": "hi"}), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "message required", token: token, body: marchallObj(t, map[string]string{"message": "  "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"message": "this field is required"}),
		},
		{
			name: "follow-up lands in same conversation", token: token,
			body:     marchallObj(t, map[string]string{"conversation_id": reply.ConversationID, "message": "What about food permits?"}),
			wantCode: http.StatusOK,
		},
		{
			name: "cannot append to someone else's conversation", token: getToken(t, stranger),
			body:     marchallObj(t, map[string]string{"conversation_id": reply.ConversationID, "message": "hello"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/chat/messages", tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	conv, err := chatSvc.Get(ctx, reply.ConversationID, usr.ID)
	if err != nil {
		t.Fatalf("getting conversation: %v", err)
	}
	if len(conv.Messages) != 4 { // two user turns, two assistant turns
		t.Errorf("messages = %d; want 4", len(conv.Messages))
	}
	if conv.Title != "How do I plan a bake sale" {
		t.Errorf("title = %q", conv.Title)
	}
}

func Test_chatApi_sendAssistantDown(t *testing.T) {
	server := setup(t)

	usr := createUser(t, "Student", "student", "student@test.cu", "verysecret", []string{user.RoleStudent}, true)
	token := getToken(t, usr)

	assistantErr = errors.New("upstream timeout")

	req, rec := newAuthRequest(http.MethodPost, "/v1/chat/messages", token, marchallObj(t, map[string]string{
		"message": "Anyone home?",
	}))
	server.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusBadGateway, wantData: marchallObj(t, httpErr{Error: "assistant is unavailable"})}
	checkCodeAndData(t, tt, rec)

	// the user turn survived the outage
	convs, err := chatSvc.QueryForUser(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("querying conversations: %v", err)
	}
	if len(convs) != 1 || len(convs[0].Messages) != 1 {
		t.Fatalf("conversations = %+v; want one with the lone user turn", convs)
	}
}

func Test_chatApi_sendRateLimited(t *testing.T) {
	server := setup(t)

	usr := createUser(t, "Student", "student", "student@test.cu", "verysecret", []string{user.RoleStudent}, true)
	token := getToken(t, usr)

	body := marchallObj(t, map[string]string{"message": "spam"})
	for i := 0; i < conf.RateLimit.ChatPerMin; i++ {
		req, rec := newAuthRequest(http.MethodPost, "/v1/chat/messages", token, body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("send %d: code = %v; body = %s", i, rec.Code, rec.Body.String())
		}
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/chat/messages", token, body)
	server.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusTooManyRequests, wantData: marchallObj(t, httpErr{Error: "rate limit exceeded"})}
	checkCodeAndData(t, tt, rec)
}

func Test_chatApi_conversations(t *testing.T) {
	server := setup(t)
	ctx := context.Background()

	usr := createUser(t, "Student", "student", "student@test.cu", "verysecret", []string{user.RoleStudent}, true)
	stranger := createUser(t, "Stranger", "stranger", "stranger@test.cu", "verysecret", []string{user.RoleStudent}, true)
	token := getToken(t, usr)

	var convIDs []string
	for i := 0; i < 3; i++ {
		reply, err := chatSvc.Send(ctx, usr.ID, chat.SendRequest{Message: fmt.Sprintf("question %d", i)})
		if err != nil {
			t.Fatalf("seeding conversation: %v", err)
		}
		convIDs = append(convIDs, reply.ConversationID)
	}

	convs, err := chatSvc.QueryForUser(ctx, usr.ID)
	if err != nil {
		t.Fatalf("querying conversations: %v", err)
	}

	tests := []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/chat/conversations", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "list newest first", method: http.MethodGet, path: "/v1/chat/conversations", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, convs)},
		{name: "stranger has none", method: http.MethodGet, path: "/v1/chat/conversations", token: getToken(t, stranger), wantCode: http.StatusOK, wantData: marchallList(t, []interface{}{}...)},
		{name: "retrieve", method: http.MethodGet, path: "/v1/chat/conversations/" + convIDs[0], token: token, wantCode: http.StatusOK},
		{
			name: "stranger retrieve is hidden", method: http.MethodGet, path: "/v1/chat/conversations/" + convIDs[0], token: getToken(t, stranger),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{name: "destroy", method: http.MethodDelete, path: "/v1/chat/conversations/" + convIDs[0], token: token, wantCode: http.StatusNoContent},
		{
			name: "destroyed conversation is gone", method: http.MethodGet, path: "/v1/chat/conversations/" + convIDs[0], token: token,
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
}
