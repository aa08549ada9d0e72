package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/events"
	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/hypr"
	"github.com/rbright/rehearse/internal/indicator"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/rbright/rehearse/internal/logging"
	"github.com/rbright/rehearse/internal/pipeline"
	"github.com/rbright/rehearse/internal/report"
	"github.com/rbright/rehearse/internal/session"
	"github.com/rbright/rehearse/internal/speech"
	"github.com/rbright/rehearse/internal/tts"
)

const interviewKeys = `keys: Enter start/stop answering | s submit | r retry | q quit | ? help
other terminals: rehearse toggle | submit | retry | status`

// engineFor returns the recognizer for cfg, or nil when speech is disabled.
func engineFor(cfg config.Config, logger *slog.Logger) speech.Engine {
	if !cfg.Speech.Enable {
		return nil
	}
	return pipeline.NewRecognizer(cfg, logger)
}

func (r Runner) commandInterview(ctx context.Context, e *env, mute bool) int {
	cfg, logger := e.cfg, e.logger

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return r.fail(err)
	}
	owner, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: an interview is already running; drive it with `rehearse toggle` and `rehearse submit`")
			return 1
		}
		return r.fail(err)
	}
	defer func() { _ = owner.Close() }()

	stored, err := e.storedSession(ctx)
	if err != nil {
		return r.fail(err)
	}
	if stored.ID != "" {
		ctx = logging.WithAttrs(ctx, slog.String("session_id", stored.ID))
	}

	newEngine := r.newEngine
	if newEngine == nil {
		newEngine = engineFor
	}
	capture := speech.NewCapture(newEngine(cfg, logger))
	if !capture.Supported() {
		fmt.Fprintln(r.Stderr, "warning: speech recognition is disabled; answers cannot be captured")
	}

	var speaker speech.Speaker = speech.Silent{}
	if cfg.TTS.Enable && !mute {
		kokoro, err := tts.New(cfg.TTS, logger, nil)
		if err != nil {
			return r.fail(err)
		}
		defer kokoro.Close()
		player := speech.NewPlayer(kokoro, logger)
		defer player.Close()
		speaker = player
	}

	con := newConsole(r.Stdout, r.Stderr)
	ind := indicator.New(cfg.Indicator, logger)
	defer ind.Close(context.WithoutCancel(ctx))
	observers := []session.Observer{con, ind}
	if url := strings.TrimSpace(cfg.Events.NATSURL); url != "" {
		pub, err := events.Connect(url, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			fmt.Fprintf(r.Stderr, "warning: session events disabled: %v\n", err)
		} else {
			defer pub.Close()
			observers = append(observers, pub)
		}
	}

	controller := session.NewController(logger, e.client, capture, speaker, e.session, session.Observers(observers...))
	defer func() { _ = controller.Close() }()

	if name := cfg.Indicator.Submap; name != "" && cfg.Indicator.Enable {
		leave := enterSubmap(ctx, hypr.CLI{}, name, logger)
		defer leave()
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, owner, controller, logger)
	}()
	stopServer := func() error {
		serverCancel()
		return <-serverErrCh
	}

	if err := controller.Begin(ctx); err != nil && controller.State() != fsm.StateErrored {
		_ = stopServer()
		return r.fail(err)
	}
	fmt.Fprintln(r.Stdout, interviewKeys)

	completed := r.interviewLoop(ctx, controller, con)
	if err := stopServer(); err != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", err)
		return 1
	}
	if !completed {
		snap := controller.Snapshot()
		logger.InfoContext(ctx, "interview paused", "state", string(snap.State), "progress", snap.Cursor.Progress)
		fmt.Fprintln(r.Stdout, "interview paused; resume with `rehearse interview`")
		return 0
	}

	generated, err := e.reports.Generate(ctx)
	if err != nil {
		fmt.Fprintln(r.Stderr, "report generation failed; retry with `rehearse report`")
		return r.fail(err)
	}
	fmt.Fprintln(r.Stdout)
	if err := report.Render(r.Stdout, generated.Report, e.reportOptions("", false)); err != nil {
		return r.fail(err)
	}
	return 0
}

// interviewLoop reads keyboard commands until the interview completes, the
// user quits or ctx ends. It reports whether the interview completed.
func (r Runner) interviewLoop(ctx context.Context, ctrl *session.Controller, con *console) bool {
	lines := readLines(ctx, r.Stdin)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ctrl.Completed():
			return true
		case line, ok := <-lines:
			if !ok {
				// Stdin closed; keep serving IPC until completion or signal.
				lines = nil
				continue
			}
			if quit := r.interviewInput(ctx, ctrl, con, line); quit {
				return false
			}
		}
	}
}

func (r Runner) interviewInput(ctx context.Context, ctrl *session.Controller, con *console, line string) bool {
	var err error
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "t", "toggle":
		err = ctrl.ToggleListening(ctx)
	case "l", "listen":
		err = ctrl.StartListening(ctx)
	case "s", "submit":
		err = ctrl.Submit(ctx)
	case "r", "retry":
		err = ctrl.Retry(ctx)
	case "q", "quit", "exit":
		return true
	case "?", "h", "help":
		fmt.Fprintln(r.Stdout, interviewKeys)
	default:
		fmt.Fprintf(r.Stderr, "unknown input %q; type ? for help\n", strings.TrimSpace(line))
	}
	if err != nil && !con.reported(err) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
	}
	return false
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	if in == nil {
		close(out)
		return out
	}
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// enterSubmap switches Hyprland into name so user keybinds can drive the
// interview, and returns the function that restores the default submap.
func enterSubmap(ctx context.Context, submaps hypr.Submaps, name string, logger *slog.Logger) func() {
	if err := submaps.SetSubmap(ctx, name); err != nil {
		logger.WarnContext(ctx, "enter hyprland submap failed", "submap", name, "error", err.Error())
		return func() {}
	}
	return func() {
		resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := submaps.ResetSubmap(resetCtx); err != nil {
			logger.WarnContext(ctx, "reset hyprland submap failed", "error", err.Error())
		}
	}
}

// console prints interview progress to the terminal.
type console struct {
	out io.Writer
	err io.Writer
	fd  int
	tty bool

	mu    sync.Mutex
	last  error
	live  bool
	heard string
}

var _ session.Observer = (*console)(nil)

const (
	clearLine = "\r\033[2K"
	dim       = "\033[2m"
	reset     = "\033[0m"
)

func newConsole(out, errOut io.Writer) *console {
	c := &console{out: out, err: errOut}
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		c.fd = int(f.Fd())
		c.tty = isTerminal(c.fd)
	}
	return c
}

// endLiveLocked finishes an in-place transcript line before other output.
func (c *console) endLiveLocked() {
	if c.live {
		fmt.Fprintln(c.out)
		c.live = false
	}
}

func (c *console) QuestionLoaded(_ context.Context, s session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLiveLocked()
	c.heard = ""
	fmt.Fprintln(c.out)
	if p := s.Cursor.ProgressText(); p != "" {
		fmt.Fprintln(c.out, p)
	}
	fmt.Fprintf(c.out, "> %s\n", s.Cursor.Question)
}

// TranscriptUpdated redraws the answer in place on a terminal, with the
// interim tail dimmed. Other outputs get a line each time the final text
// grows.
func (c *console) TranscriptUpdated(_ context.Context, s session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	final, interim := strings.TrimSpace(s.Final), strings.TrimSpace(s.Interim)

	if !c.tty {
		if final != "" && final != c.heard {
			c.heard = final
			fmt.Fprintf(c.out, "heard: %s\n", final)
		}
		return
	}

	if final == "" && interim == "" {
		return
	}
	final, interim = c.fitLocked(final, interim)
	line := clearLine + final
	if interim != "" {
		if final != "" {
			line += " "
		}
		line += dim + interim + reset
	}
	fmt.Fprint(c.out, line)
	c.live = true
}

// fitLocked trims the start of the transcript so the live line never wraps;
// a wrapped line cannot be redrawn with a carriage return.
func (c *console) fitLocked(final, interim string) (string, string) {
	width, _, err := termSize(c.fd)
	if err != nil || width < 16 {
		return final, interim
	}
	limit := width - 1
	f, i := []rune(final), []rune(interim)
	total := len(f) + len(i)
	if len(f) > 0 && len(i) > 0 {
		total++
	}
	if total <= limit {
		return final, interim
	}
	drop := total - limit + 1
	if drop >= len(f) {
		rest := drop - len(f)
		if len(f) > 0 {
			rest--
		}
		return "", "…" + string(i[min(max(rest, 0), len(i)):])
	}
	return "…" + string(f[drop:]), interim
}

func (c *console) ListeningChanged(_ context.Context, s session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLiveLocked()
	if s.Listening {
		c.heard = ""
		fmt.Fprintln(c.out, "listening... press Enter to stop")
		return
	}
	if answer := strings.TrimSpace(s.Final); answer != "" {
		fmt.Fprintf(c.out, "answer: %s\n", answer)
		fmt.Fprintln(c.out, "press s to submit or Enter to re-record (replaces this answer)")
		return
	}
	fmt.Fprintln(c.out, "no speech captured yet")
}

func (c *console) Submitting(context.Context, session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLiveLocked()
	fmt.Fprintln(c.out, "submitting answer...")
}

func (c *console) Failed(_ context.Context, _ session.Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLiveLocked()
	c.last = err
	fmt.Fprintf(c.err, "error: %v\n", err)
	if hint := failure.Hint(failure.KindOf(err)); hint != "" {
		fmt.Fprintf(c.err, "hint: %s\n", hint)
	}
	if failure.KindOf(err) != failure.KindEngine && failure.KindOf(err) != failure.KindUnsupportedCapability {
		fmt.Fprintln(c.err, "press r to retry")
	}
}

func (c *console) Completed(context.Context, session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLiveLocked()
	fmt.Fprintln(c.out, "\ninterview complete; generating report...")
}

// reported reports whether err was already printed by Failed.
func (c *console) reported(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return err != nil && err == c.last
}
