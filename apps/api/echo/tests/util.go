package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/kazimoto/mipango/apps/api/echo"
	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/chat"
	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/policy"
	"github.com/kazimoto/mipango/core/user"
	emailsvc "github.com/kazimoto/mipango/services/email"
	logsvc "github.com/kazimoto/mipango/services/logger"
	"github.com/kazimoto/mipango/storage/inmem"
)

var (
	conf *core.Config

	usrSvc    *user.Service
	planSvc   *plan.Service
	eventSvc  *event.Service
	policySvc *policy.Service
	chatSvc   *chat.Service

	// stub assistant knobs
	assistantReply string
	assistantErr   error

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNotFound     = httpErr{Error: "not found"}
	errPermDenied   = httpErr{Error: "permission denied"}
)

type stubAssistant struct{}

func (stubAssistant) Complete(context.Context, []chat.Message) (string, error) {
	if assistantErr != nil {
		return "", assistantErr
	}
	return assistantReply, nil
}

func setup(t *testing.T) Server {
	t.Helper()

	conf = core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	core.ParseEmailTemplates(conf, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(conf, logger)

	// set up DB & services
	db := inmem.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc = user.NewService(inmem.NewUserRepository(db), mailSvc, conf)
	policySvc = policy.NewService(inmem.NewPolicyRepository(db))
	planSvc = plan.NewService(inmem.NewPlanRepository(db), usrSvc)
	eventSvc = event.NewService(inmem.NewEventRepository(db), usrSvc, planSvc, mailSvc, conf)
	chatSvc = chat.NewService(inmem.NewChatRepository(db), stubAssistant{}, policySvc, logger)

	assistantReply = "ok"
	assistantErr = nil
	emailsvc.ClearSentMessages()

	return NewServer(ServerDeps{
		Conf:        conf,
		Logger:      logger,
		UserSvc:     usrSvc,
		PlanSvc:     planSvc,
		EventSvc:    eventSvc,
		PolicySvc:   policySvc,
		ChatSvc:     chatSvc,
		Validate:    validate,
		Translator:  translator,
		RateLimiter: NewMemoryRateLimiter(),
	})
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func createUser(t *testing.T, name, uname, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()
	usr, err := usrSvc.Create(context.Background(), user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
		Password: pwd,
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	if !isActive {
		active := false
		if usr, err = usrSvc.Update(context.Background(), usr.ID, user.UpdateUser{IsActive: &active}); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	return usr
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(conf, usr)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body = %s", rec.Code, tt.wantCode, rec.Body.String())
		return
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("failed! err: %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
