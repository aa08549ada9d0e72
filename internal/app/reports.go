package app

import (
	"context"
	"fmt"

	"github.com/rbright/rehearse/internal/cli"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/rbright/rehearse/internal/report"
)

func (r Runner) commandReport(ctx context.Context, e *env, parsed cli.Parsed) int {
	generated, err := e.reports.Generate(ctx)
	if err != nil {
		return r.fail(err)
	}
	if err := report.Render(r.Stdout, generated.Report, e.reportOptions(parsed.Format, false)); err != nil {
		return r.fail(err)
	}
	return 0
}

func (r Runner) commandHistory(ctx context.Context, e *env, parsed cli.Parsed) int {
	rows, err := e.reports.History(ctx)
	if err != nil {
		return r.fail(err)
	}
	if err := report.RenderHistory(r.Stdout, rows, e.reportOptions(parsed.Format, false)); err != nil {
		return r.fail(err)
	}
	return 0
}

func (r Runner) commandShow(ctx context.Context, e *env, parsed cli.Parsed) int {
	rep, err := e.reports.Show(ctx, parsed.Args[0])
	if err != nil {
		return r.fail(err)
	}
	if err := report.Render(r.Stdout, rep, e.reportOptions(parsed.Format, false)); err != nil {
		return r.fail(err)
	}
	return 0
}

func (r Runner) commandAbandon(ctx context.Context, e *env) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		if alive, _ := ipc.Ping(ctx, socketPath, ipc.PingTimeout); alive {
			fmt.Fprintln(r.Stderr, "error: an interview is running; quit it before abandoning the session")
			return 1
		}
	}

	id, err := e.reports.Abandon(ctx)
	if err != nil {
		return r.fail(err)
	}
	if id == "" {
		fmt.Fprintln(r.Stdout, "no session to abandon")
		return 0
	}
	fmt.Fprintf(r.Stdout, "abandoned session %s\n", id)
	return 0
}
