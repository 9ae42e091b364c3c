package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/executor"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/models"
	"pinrunner/pkg/retry"
	"pinrunner/pkg/ui"
)

func testApp(attempts int) *app {
	log := logger.NewTestLogger()
	rc := retry.FromConfig(config.RetryConfig{MaxAttempts: attempts}, log)
	rc.Backoff = &retry.ConstantBackoff{}
	return &app{cfg: config.DefaultConfig(), log: log, retry: rc, out: ui.NewPrinter(&bytes.Buffer{})}
}

func TestReadWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		outcomes  []executor.Outcome
		wantCalls int
		want      executor.Status
	}{
		{
			name:      "retryable failure then success",
			outcomes:  []executor.Outcome{{Status: executor.StatusFailed, Err: errs.New(errs.KindNavigation, "timeout")}, {Status: executor.StatusSuccess}},
			wantCalls: 2,
			want:      executor.StatusSuccess,
		},
		{
			name:      "auth expired is not retried",
			outcomes:  []executor.Outcome{{Status: executor.StatusFailed, Err: errs.New(errs.KindAuthExpired, "login wall")}},
			wantCalls: 1,
			want:      executor.StatusFailed,
		},
		{
			name:      "rejected is returned as is",
			outcomes:  []executor.Outcome{{Status: executor.StatusRejected, Err: errs.New(errs.KindValidation, "bad ref")}},
			wantCalls: 1,
			want:      executor.StatusRejected,
		},
		{
			name: "gives up after the configured attempts",
			outcomes: []executor.Outcome{
				{Status: executor.StatusFailed, Err: errs.New(errs.KindElementNotFound, "grid")},
				{Status: executor.StatusFailed, Err: errs.New(errs.KindElementNotFound, "grid")},
				{Status: executor.StatusFailed, Err: errs.New(errs.KindElementNotFound, "grid")},
			},
			wantCalls: 3,
			want:      executor.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp(3)
			calls := 0
			pins, out := readWithRetry(context.Background(), a, func() ([]models.Pin, executor.Outcome) {
				o := tt.outcomes[calls]
				calls++
				if o.Status == executor.StatusSuccess {
					return []models.Pin{{ID: "1"}}, o
				}
				return nil, o
			})
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.want, out.Status)
			if tt.want == executor.StatusSuccess {
				assert.Len(t, pins, 1)
			}
		})
	}
}

func TestReport(t *testing.T) {
	a := testApp(1)
	assert.NoError(t, a.report(executor.Outcome{Operation: "like_pin", Status: executor.StatusSuccess}))

	err := a.report(executor.Outcome{Operation: "delete_pin", Status: executor.StatusUnconfirmed, Err: errs.New(errs.KindUnconfirmedOutcome, "still on pin")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete_pin unconfirmed")
	assert.True(t, errs.Is(err, errs.KindUnconfirmedOutcome))

	err = a.report(executor.Outcome{Operation: "follow_user", Status: executor.StatusFailed})
	assert.EqualError(t, err, "follow_user failed")
}

func TestUniquePins(t *testing.T) {
	got := uniquePins([]models.Pin{
		{ID: "1"},
		{},
		{ImageURL: "https://i.example.test/ad.jpg"},
		{ID: "2"},
		{ID: "1"},
		{ImageURL: "https://i.example.test/ad.jpg"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "https://i.example.test/ad.jpg", got[1].ImageURL, "kept without an ID")
	assert.Equal(t, "2", got[2].ID)
}

func TestFlagValuesOnlyChanged(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().Bool("headless", true, "")
	cmd.Flags().String("output", "", "")

	logLevel, retries, proxyServer, cookieFile, metricsAddr = "", 0, "", "", ""
	assert.Empty(t, flagValues(cmd))

	require.NoError(t, cmd.Flags().Set("headless", "false"))
	require.NoError(t, cmd.Flags().Set("output", "/tmp/imgs"))
	headless = false
	logLevel = "debug"
	defer func() { headless, logLevel = true, "" }()

	flags := flagValues(cmd)
	assert.Equal(t, false, flags["headless"])
	assert.Equal(t, "/tmp/imgs", flags["output"])
	assert.Equal(t, "debug", flags["log-level"])
}

func TestCommandTree(t *testing.T) {
	want := []string{
		"login", "session show", "session clear",
		"auth login", "auth logout", "auth status", "auth list",
		"pin create", "pin repin", "pin like", "pin unlike", "pin comment", "pin delete", "pin download", "pin get",
		"board create", "board follow", "board unfollow", "board pins", "board list",
		"user follow", "user unfollow", "user profile",
		"search", "screenshot",
		"config init", "config show", "config validate",
	}
	for _, path := range want {
		args := strings.Fields(path)
		cmd, rest, err := rootCmd.Find(args)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, args[len(args)-1], cmd.Name(), path)
	}
}
