package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/tests"
)

const cronPath = "/api/cron/inactive_user_reminder"

// seedInactive creates users around the cutoff of 2024-06-15 08:00 Manila time
// (2024-03-15 00:00 UTC) and returns the expected recipients in dispatch order.
func seedInactive(t *testing.T, env *testEnv) []string {
	cutoff := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	noProfile := env.createUser(t, "dan", user.RoleAlumni)
	testutil.SetLastLogin(t, env.repo, noProfile, cutoff.AddDate(0, -4, 0))

	older := env.createUser(t, "ben", user.RoleAlumni)
	older = testutil.SetLastLogin(t, env.repo, older, cutoff.AddDate(0, -2, 0))
	testutil.CreateProfile(t, env.repo, older, "ben@mail.ph")

	onCutoff := env.createUser(t, "ana", user.RoleAlumni)
	onCutoff = testutil.SetLastLogin(t, env.repo, onCutoff, cutoff)
	testutil.CreateProfile(t, env.repo, onCutoff, "ana@mail.ph")

	recent := env.createUser(t, "cora", user.RoleAlumni)
	recent = testutil.SetLastLogin(t, env.repo, recent, cutoff.Add(time.Minute))
	testutil.CreateProfile(t, env.repo, recent, "cora@mail.ph")

	return []string{"ben@mail.ph", "ana@mail.ph"}
}

func sentTo(env *testEnv) []string {
	var to []string
	for _, msg := range env.mailSvc.SentMessages() {
		to = append(to, msg.To[0].Address)
	}
	return to
}

func Test_server_runInactiveUserReminder(t *testing.T) {
	env := newTestEnv(t)
	want := seedInactive(t, env)

	rec := env.do(httpTest{path: cronPath})
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, MessageResponse{Message: "Cron job executed successfully"}),
	}, rec)
	assert.Equal(t, want, sentTo(env))
	assert.Equal(t, 2, env.selfCalls("/api/sendmail"))

	for _, msg := range env.mailSvc.SentMessages() {
		assert.Equal(t, "We miss you!", msg.Subject)
		assert.Contains(t, msg.TextContent, "since")
	}

	rec = env.do(httpTest{path: "/metrics"})
	assert.Contains(t, rec.Body.String(), "portal_reminders_sent_total 2")
	assert.Contains(t, rec.Body.String(), `portal_reminder_runs_total{outcome="completed"} 1`)
}

func Test_server_runInactiveUserReminder_modes(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantCode   int
		wantMsg    string
		wantErr    bool
		wantSent   int
		wantFailed int
		summary    bool
	}{
		{
			name: "fail-fast stops at the first failure", path: cronPath,
			wantCode: http.StatusInternalServerError, wantMsg: "Error running cron job", wantErr: true,
		},
		{
			name: "best-effort reports every user", path: cronPath + "?mode=best-effort",
			wantCode: http.StatusOK, wantMsg: "Cron job executed successfully", wantFailed: 2, summary: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			seedInactive(t, env)
			env.mailSvc.Fail = errors.New("smtp down")

			rec := env.do(httpTest{path: tt.path})
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			var res cronResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Equal(t, tt.wantErr, res.Error != "")
			if !tt.summary {
				assert.Nil(t, res.Summary)
				assert.Equal(t, 1, env.selfCalls("/api/sendmail"), "aborted after one dispatch")
				return
			}
			require.NotNil(t, res.Summary)
			assert.Equal(t, reminder.ModeBestEffort, res.Summary.Mode)
			assert.Equal(t, 3, res.Summary.Qualified)
			assert.Equal(t, 1, res.Summary.Skipped)
			assert.Equal(t, tt.wantFailed, res.Summary.Failed)
			assert.Equal(t, tt.wantSent, res.Summary.Sent)
			assert.Equal(t, 2, env.selfCalls("/api/sendmail"))
		})
	}
}

func Test_server_runInactiveUserReminder_errors(t *testing.T) {
	t.Run("unknown mode", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(httpTest{path: cronPath + "?mode=sometimes"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"mode"`)
	})

	t.Run("unparseable server time", func(t *testing.T) {
		env := newTestEnv(t)
		env.setNow("yesterday-ish")
		rec := env.do(httpTest{path: cronPath})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var res cronResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "Error running cron job", res.Message)
		assert.Contains(t, res.Error, "reading server time")
	})
}

func Test_server_runInactiveUserReminder_cronSecret(t *testing.T) {
	env := newTestEnv(t, func(conf *core.Config) {
		conf.Reminder.CronSecret = "s3cret"
	})
	want := seedInactive(t, env)

	rec := env.do(httpTest{path: cronPath})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req, rec := newRequest(http.MethodGet, cronPath, nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, want, sentTo(env), "the dispatcher presents the secret")
}

func Test_server_runInactiveUserReminder_cooldown(t *testing.T) {
	env := newTestEnv(t, func(conf *core.Config) {
		conf.Reminder.Cooldown = 24 * time.Hour
	})
	seedInactive(t, env)

	rec := env.do(httpTest{path: cronPath + "?mode=best-effort"})
	require.Equal(t, http.StatusOK, rec.Code)
	env.mailSvc.Reset()

	rec = env.do(httpTest{path: cronPath + "?mode=best-effort"})
	require.Equal(t, http.StatusOK, rec.Code)
	var res cronResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Summary)
	assert.Equal(t, 0, res.Summary.Sent)
	assert.Equal(t, 3, res.Summary.Skipped)
	assert.Empty(t, env.mailSvc.SentMessages())
}
