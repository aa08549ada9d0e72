package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rbright/rehearse/internal/api"
	"github.com/rbright/rehearse/internal/cli"
	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/report"
	"github.com/rbright/rehearse/internal/store"
	"golang.org/x/term"
)

// Terminal hooks, replaced in tests.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
	termSize     = term.GetSize
)

// readSecret prompts for a password. A terminal stdin is read with echo
// off; anything else is read as one line so the password can be piped in.
func (r Runner) readSecret(prompt string) (string, error) {
	if r.Stdin == nil {
		return "", failure.Validation("a password is required on stdin")
	}
	fmt.Fprint(r.Stderr, prompt)

	var secret string
	if f, ok := r.Stdin.(interface{ Fd() uintptr }); ok && isTerminal(int(f.Fd())) {
		raw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		secret = string(raw)
	} else {
		line, err := bufio.NewReader(r.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}
	if secret == "" {
		return "", failure.Validation("password cannot be empty")
	}
	return secret, nil
}

func (r Runner) commandLogin(ctx context.Context, e *env, username string) int {
	password, err := r.readSecret("password: ")
	if err != nil {
		return r.fail(err)
	}
	res, err := e.client.Login(ctx, api.Credentials{Username: strings.TrimSpace(username), Password: password})
	if err != nil {
		return r.fail(err)
	}
	if err := e.tokens.KV.Set(ctx, store.KeyToken, res.AccessToken); err != nil {
		return r.fail(fmt.Errorf("store credential: %w", err))
	}

	name := res.User.Username
	if name == "" {
		name = strings.TrimSpace(username)
	}
	e.logger.InfoContext(ctx, "login succeeded", "user", name)
	fmt.Fprintf(r.Stdout, "signed in as %s\n", name)
	if info, err := api.InspectToken(res.AccessToken); err == nil && !info.ExpiresAt.IsZero() {
		fmt.Fprintf(r.Stdout, "token expires %s\n", info.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return 0
}

func (r Runner) commandLogout(ctx context.Context, e *env) int {
	if err := e.tokens.Invalidate(ctx); err != nil {
		return r.fail(fmt.Errorf("forget credential: %w", err))
	}
	fmt.Fprintln(r.Stdout, "signed out")
	return 0
}

func (r Runner) commandRegister(ctx context.Context, e *env, username, email string) int {
	password, err := r.readSecret("password: ")
	if err != nil {
		return r.fail(err)
	}
	reg := api.Registration{Username: strings.TrimSpace(username), Email: strings.TrimSpace(email), Password: password}
	if err := e.client.Register(ctx, reg); err != nil {
		return r.fail(err)
	}
	fmt.Fprintf(r.Stdout, "registered %s; sign in with `rehearse login %s`\n", reg.Username, reg.Username)
	return 0
}

func (r Runner) commandProfile(ctx context.Context, e *env, parsed cli.Parsed) int {
	opts := e.reportOptions(parsed.Format, parsed.WithHistory)
	profile, history, err := e.reports.Profile(ctx, opts.ShowHistory)
	if err != nil {
		return r.fail(err)
	}
	if err := report.RenderProfile(r.Stdout, profile, history, opts); err != nil {
		return r.fail(err)
	}
	return 0
}

func (r Runner) commandUpload(ctx context.Context, e *env, parsed cli.Parsed) int {
	res, err := e.client.UploadCV(ctx, api.Upload{
		Path:           parsed.Args[0],
		CompanyName:    parsed.Upload.Company,
		JobRole:        parsed.Upload.Role,
		JobDescription: parsed.Upload.JobDescription,
		InterviewLevel: parsed.Upload.Level,
	})
	if err != nil {
		return r.fail(err)
	}

	// A new upload replaces whatever session was in progress.
	if err := e.session.Clear(ctx); err != nil {
		return r.fail(fmt.Errorf("reset session: %w", err))
	}
	if err := e.session.Set(ctx, store.KeySessionID, res.SessionID); err != nil {
		return r.fail(fmt.Errorf("store session: %w", err))
	}
	e.logger.InfoContext(ctx, "session created", "session_id", res.SessionID, "questions", len(res.Questions))
	fmt.Fprintf(r.Stdout, "session %s created with %d question(s)\n", res.SessionID, len(res.Questions))

	if parsed.Upload.Start {
		return r.commandInterview(ctx, e, parsed.Mute)
	}
	fmt.Fprintln(r.Stdout, "start answering with `rehearse interview`")
	return 0
}
