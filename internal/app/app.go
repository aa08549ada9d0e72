// Package app wires configuration, storage, services and the interview loop
// behind each CLI command.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rbright/rehearse/internal/cli"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/doctor"
	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/rbright/rehearse/internal/logging"
	"github.com/rbright/rehearse/internal/speech"
	"github.com/rbright/rehearse/internal/version"
)

// Runner executes one command line against injected streams.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	newEngine func(config.Config, *slog.Logger) speech.Engine
}

// Execute runs args with a default Runner and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute returns 0 on success, 1 on failure and 2 on usage errors.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("rehearse"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("rehearse"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(slog.LevelInfo)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx, cfgLoaded.Config, logger)
	case cli.CommandListen, cli.CommandStop, cli.CommandToggle, cli.CommandSubmit, cli.CommandRetry:
		return r.forwardOrFail(ctx, parsed.Command)
	}

	env, err := openEnv(ctx, cfgLoaded.Config, logger)
	if err != nil {
		return r.fail(err)
	}
	defer env.Close()

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, doctor.Deps{API: env.client, Tokens: env.tokens, Store: env.db})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandLogin:
		return r.commandLogin(ctx, env, parsed.Args[0])
	case cli.CommandLogout:
		return r.commandLogout(ctx, env)
	case cli.CommandRegister:
		return r.commandRegister(ctx, env, parsed.Args[0], parsed.Args[1])
	case cli.CommandProfile:
		return r.commandProfile(ctx, env, parsed)
	case cli.CommandUpload:
		return r.commandUpload(ctx, env, parsed)
	case cli.CommandInterview:
		return r.commandInterview(ctx, env, parsed.Mute)
	case cli.CommandReport:
		return r.commandReport(ctx, env, parsed)
	case cli.CommandHistory:
		return r.commandHistory(ctx, env, parsed)
	case cli.CommandShow:
		return r.commandShow(ctx, env, parsed)
	case cli.CommandAbandon:
		return r.commandAbandon(ctx, env)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// fail prints err with a remediation hint and returns exit code 1.
func (r Runner) fail(err error) int {
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	if hint := failure.Hint(failure.KindOf(err)); hint != "" {
		fmt.Fprintf(r.Stderr, "hint: %s\n", hint)
	}
	return 1
}

func (r Runner) forwardOrFail(ctx context.Context, name cli.Command) int {
	cmd, err := ipc.ParseCommand(string(name))
	if err != nil {
		return r.fail(err)
	}
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return r.fail(err)
	}

	resp, running, err := ipc.Forward(ctx, socketPath, cmd)
	if !running {
		fmt.Fprintf(r.Stderr, "error: no running interview; start one with `rehearse interview`\n")
		return 1
	}
	if err != nil {
		return r.fail(err)
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, running, err := ipc.Forward(ctx, socketPath, ipc.CommandStatus)
		if running {
			if err != nil {
				return r.fail(err)
			}
			printStatus(r.Stdout, resp)
			return 0
		}
	}

	// No running interview: report the stored session, if any.
	env, err := openEnv(ctx, cfg, logger)
	if err != nil {
		return r.fail(err)
	}
	defer env.Close()

	stored, err := env.storedSession(ctx)
	if err != nil {
		return r.fail(err)
	}
	if stored.ID == "" {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	line := "session " + stored.ID
	if stored.Progress != "" {
		line += " at " + stored.Progress
	}
	fmt.Fprintln(r.Stdout, line+" (not running; resume with `rehearse interview`)")
	return 0
}

func printStatus(w io.Writer, resp ipc.Response) {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	parts := []string{state}
	if resp.Progress > 0 && resp.Total > 0 {
		parts = append(parts, fmt.Sprintf("question %d of %d", resp.Progress, resp.Total))
	}
	if resp.Kind != "" {
		parts = append(parts, "last error: "+resp.Kind)
	}
	fmt.Fprintln(w, strings.Join(parts, " | "))
	if resp.Question != "" {
		fmt.Fprintf(w, "question: %s\n", resp.Question)
	}
	if resp.Answer != "" {
		fmt.Fprintf(w, "answer: %s\n", resp.Answer)
	}
}
