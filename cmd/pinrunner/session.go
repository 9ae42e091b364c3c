package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pinrunner/pkg/login"
	"pinrunner/pkg/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and save the session cookies",
	Long: `Open the site with the saved cookies and sign in when they no longer
authenticate. Stored credentials are used when a login form appears. The
resulting cookies are written to every configured sink.`,
	RunE: runLogin,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or clear the local cookie cache",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the cookies in the local cache",
	RunE:  runSessionShow,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the local cookie cache",
	RunE:  runSessionClear,
}

func init() {
	rootCmd.AddCommand(loginCmd, sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd, sessionClearCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(context.WithoutCancel(ctx)); err != nil {
			a.log.WithError(err).Warn("failed to close client")
		}
	}()

	res, err := a.authenticate(ctx, c)
	printLogin(a, res)
	if err != nil {
		return err
	}
	a.out.Success("Signed in; cookies saved")
	return nil
}

func printLogin(a *app, res login.Result) {
	trace := make([]string, len(res.Trace))
	for i, s := range res.Trace {
		trace[i] = string(s)
	}
	a.out.Info("State", string(res.State))
	if len(trace) > 0 {
		a.out.Info("Trace", strings.Join(trace, " > "))
	}
	if res.Flow != login.FlowNone {
		a.out.Info("Flow", string(res.Flow))
	}
	if res.Challenge != login.ChallengeNone {
		a.out.Warning("Verification required: " + string(res.Challenge))
	}
	if snap := res.Snapshot; snap != nil {
		a.out.Info("Snapshot", strings.TrimSpace(snap.Screenshot+" "+snap.HTML))
	}
}

func localStore(cmd *cobra.Command) (*app, *session.Store, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	return a, session.NewStore(a.cfg.Session, a.log), nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	a, store, err := localStore(cmd)
	if err != nil {
		return err
	}

	cookies, err := store.ReadLocal()
	if err != nil {
		return err
	}
	a.out.Info("Cache", store.Path())
	if len(cookies) == 0 {
		a.out.Warning("No cookies saved")
		return nil
	}

	now := time.Now()
	for _, ck := range cookies {
		expiry := "session"
		if ck.Expires > 0 {
			expiry = time.Unix(int64(ck.Expires), 0).Format("2006-01-02 15:04")
		}
		line := fmt.Sprintf("  %-24s %-28s %s", ck.Name, ck.Domain, expiry)
		if ck.Expired(now) {
			line = a.out.Dim(line + " (expired)")
		}
		fmt.Println(line)
	}
	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	a, store, err := localStore(cmd)
	if err != nil {
		return err
	}
	if err := store.ClearLocal(); err != nil {
		return err
	}
	a.out.Success("Cookie cache cleared")
	return nil
}
