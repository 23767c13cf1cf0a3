package main

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/policy"
	"github.com/kazimoto/mipango/core/reminder"
	"github.com/kazimoto/mipango/core/user"
	emailsvc "github.com/kazimoto/mipango/services/email"
	logsvc "github.com/kazimoto/mipango/services/logger"
	"github.com/kazimoto/mipango/storage/inmem"
)

var (
	usrSvc    *user.Service
	policySvc *policy.Service
	planSvc   *plan.Service
	eventSvc  *event.Service
)

func setup(t *testing.T) *commandLine {
	t.Helper()
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & services
	db := inmem.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc = user.NewService(inmem.NewUserRepository(db), mailSvc, conf)
	policySvc = policy.NewService(inmem.NewPolicyRepository(db))
	planSvc = plan.NewService(inmem.NewPlanRepository(db), usrSvc)
	eventSvc = event.NewService(inmem.NewEventRepository(db), usrSvc, planSvc, mailSvc, conf)
	reminderSvc := reminder.NewService(planSvc, eventSvc, usrSvc, mailSvc, conf, logger)

	emailsvc.ClearSentMessages()

	// start CLI
	return &commandLine{
		usrSvc:      usrSvc,
		policySvc:   policySvc,
		reminderSvc: reminderSvc,
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	extra   interface{}
}

type pwdExtra struct {
	pwd string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, onSuccess func(t *testing.T, tt cliTest)) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(pwdExtra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				if tt.wantErr != nil {
					t.Errorf("cli.run() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if onSuccess != nil {
					onSuccess(t, tt)
				}
			} else if errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "awe"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"adduser", "-username", "awe", "-email", "awe@test.cu"}, wantErr: errHelp},
		{name: "create", args: []string{"adduser", "-username", "awe", "-email", "awe@test.cu"}, extra: pwdExtra{pwd: "mdr"}},
		{name: "update existing", args: []string{"adduser", "-username", "awe", "-email", "new@test.cu"}, extra: pwdExtra{pwd: "lol"}},
		{name: "grant admin", args: []string{"adduser", "-username", "awe", "-email", "new@test.cu", "-admin"}, extra: pwdExtra{pwd: "lol"}},
	}
	runCLITests(t, cli, tests, nil)

	usr, err := usrSvc.GetByUsername(context.Background(), "awe")
	if err != nil {
		t.Fatalf("GetByUsername() failed, %v", err)
	}
	if usr.Email != "new@test.cu" {
		t.Errorf("email = %s; want new@test.cu", usr.Email)
	}
	if err = usr.CheckPassword("lol"); err != nil {
		t.Error("failed to update new password")
	}
	if !usr.IsAdmin() {
		t.Errorf("roles = %v; want admin", usr.Roles)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr, err := usrSvc.Create(context.Background(), user.NewUser{
		Name: "User", Username: "awe", Email: "awe@test.cu", Password: "mdr",
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: pwdExtra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: pwdExtra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: pwdExtra{pwd: "lmao"}},
	}
	runCLITests(t, cli, tests, nil)

	refreshed, err := usrSvc.GetByID(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetByID() failed, %v", err)
	}
	if err = refreshed.CheckPassword("lmao"); err != nil {
		t.Error("failed to update new password")
	}
}

func Test_commandLine_seedPolicies(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	if err := cli.run([]string{"admin", "seedpolicies"}); err != nil {
		t.Fatalf("cli.run() error = %v", err)
	}
	pols, err := policySvc.QueryAll(ctx)
	if err != nil {
		t.Fatalf("QueryAll() failed, %v", err)
	}
	if len(pols) != len(policy.Seed) {
		t.Errorf("policies = %d; want %d", len(pols), len(policy.Seed))
	}

	// rerun skips entries whose code is taken
	if err = cli.run([]string{"admin", "seedpolicies"}); err != nil {
		t.Fatalf("cli.run() error = %v", err)
	}
	if pols, err = policySvc.QueryAll(ctx); err != nil {
		t.Fatalf("QueryAll() failed, %v", err)
	}
	if len(pols) != len(policy.Seed) {
		t.Errorf("policies after rerun = %d; want %d", len(pols), len(policy.Seed))
	}
}

func Test_commandLine_sendReminders(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr, err := usrSvc.Create(ctx, user.NewUser{Name: "User", Username: "awe", Email: "awe@test.cu", Password: "mdr"})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	pln, err := planSvc.Create(ctx, usr.ID, plan.NewPlan{Title: "Club Fair", ProgramType: plan.TypeSocial})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	due := time.Now().UTC().Add(24 * time.Hour)
	if _, err = planSvc.AddItem(ctx, pln.ID, usr.ID, plan.NewChecklistItem{Text: "book tables", DueDate: due}); err != nil {
		t.Fatalf("AddItem() failed, %v", err)
	}
	emailsvc.ClearSentMessages()

	if err = cli.run([]string{"admin", "sendreminders"}); err != nil {
		t.Fatalf("cli.run() error = %v", err)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent emails = %d; want 1", len(emailsvc.SentMessages))
	}
}
