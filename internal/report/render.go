package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/rbright/rehearse/internal/api"
)

// Output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Options selects how a page is rendered.
type Options struct {
	Format      string
	ShowHistory bool
	Now         func() time.Time
}

func (o Options) format() string {
	f := strings.ToLower(strings.TrimSpace(o.Format))
	if f == "" {
		return FormatText
	}
	return f
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

var titleCase = cases.Title(language.English)

// Render writes one report.
func Render(w io.Writer, rep api.Report, opts Options) error {
	switch opts.format() {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatYAML:
		return writeYAML(w, rep)
	case FormatMarkdown:
		return renderMarkdown(w, rep)
	case FormatText:
		return renderText(w, rep)
	default:
		return fmt.Errorf("unsupported report format %q", opts.Format)
	}
}

func renderText(w io.Writer, rep api.Report) error {
	p := &printer{w: w}
	p.line("Interview report")
	p.line("================")
	p.line("")
	p.linef("Questions answered: %d of %d", rep.AnswersReceived, rep.TotalQuestions)
	p.linef("Accuracy:           %s", level(rep.AccuracyLevel))
	p.linef("Confidence:         %s", level(rep.ConfidenceLevel))

	for i, d := range rep.DetailedResponses {
		p.line("")
		p.linef("%d. %s", i+1, strings.TrimSpace(d.Question))
		p.linef("   Answer:   %s", orDash(d.AnswerText()))
		if d.Status != "" {
			p.linef("   Status:   %s", d.Status)
		}
		if d.Score != nil {
			p.linef("   Score:    %s", formatScore(*d.Score))
		}
		if fb := strings.TrimSpace(d.Feedback); fb != "" {
			p.linef("   Feedback: %s", plainText(fb))
		}
	}

	if fb := strings.TrimSpace(rep.Feedback); fb != "" {
		p.line("")
		p.line("Feedback")
		p.line("--------")
		p.line(plainText(fb))
	}
	return p.err
}

func renderMarkdown(w io.Writer, rep api.Report) error {
	p := &printer{w: w}
	p.line("# Interview report")
	p.line("")
	p.line("| Metric | Value |")
	p.line("|---|---|")
	p.linef("| Questions answered | %d of %d |", rep.AnswersReceived, rep.TotalQuestions)
	p.linef("| Accuracy | %s |", level(rep.AccuracyLevel))
	p.linef("| Confidence | %s |", level(rep.ConfidenceLevel))

	if len(rep.DetailedResponses) > 0 {
		p.line("")
		p.line("## Responses")
	}
	for i, d := range rep.DetailedResponses {
		p.line("")
		p.linef("### %d. %s", i+1, strings.TrimSpace(d.Question))
		p.line("")
		p.linef("> %s", orDash(d.AnswerText()))
		var meta []string
		if d.Status != "" {
			meta = append(meta, "**Status:** "+d.Status)
		}
		if d.Score != nil {
			meta = append(meta, "**Score:** "+formatScore(*d.Score))
		}
		if len(meta) > 0 {
			p.line("")
			p.line(strings.Join(meta, " · "))
		}
		if fb := strings.TrimSpace(d.Feedback); fb != "" {
			p.line("")
			p.line(fb)
		}
	}

	if fb := strings.TrimSpace(rep.Feedback); fb != "" {
		p.line("")
		p.line("## Feedback")
		p.line("")
		p.line(fb)
	}
	return p.err
}

// RenderHistory writes the report history list.
func RenderHistory(w io.Writer, rows []api.ReportSummary, opts Options) error {
	switch opts.format() {
	case FormatJSON:
		return writeJSON(w, nonNil(rows))
	case FormatYAML:
		return writeYAML(w, nonNil(rows))
	case FormatText, FormatMarkdown:
	default:
		return fmt.Errorf("unsupported report format %q", opts.Format)
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No completed interviews yet.")
		return err
	}
	if opts.format() == FormatMarkdown {
		p := &printer{w: w}
		p.line("| Session | Role | Company | Completed | Score |")
		p.line("|---|---|---|---|---|")
		for _, r := range rows {
			p.linef("| %s | %s | %s | %s | %s |", r.SessionID, orDash(r.CVRole), orDash(r.CVCompany), completed(r.CompletedAt, opts.now()), orDash(r.Score))
		}
		return p.err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tROLE\tCOMPANY\tCOMPLETED\tSCORE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.SessionID, orDash(r.CVRole), orDash(r.CVCompany), completed(r.CompletedAt, opts.now()), orDash(r.Score))
	}
	return tw.Flush()
}

type profilePage struct {
	User    api.User            `json:"user" yaml:"user"`
	CVs     []api.CV            `json:"cvs" yaml:"cvs"`
	Reports []api.ReportSummary `json:"reports,omitempty" yaml:"reports,omitempty"`
}

// RenderProfile writes the profile page. History is shown only when
// opts.ShowHistory is set.
func RenderProfile(w io.Writer, profile api.Profile, history []api.ReportSummary, opts Options) error {
	page := profilePage{User: profile.User, CVs: nonNil(profile.CVs)}
	if opts.ShowHistory {
		page.Reports = nonNil(history)
	}

	switch opts.format() {
	case FormatJSON:
		return writeJSON(w, page)
	case FormatYAML:
		return writeYAML(w, page)
	case FormatText, FormatMarkdown:
	default:
		return fmt.Errorf("unsupported report format %q", opts.Format)
	}

	p := &printer{w: w}
	status := "inactive"
	if profile.User.IsActive {
		status = "active"
	}
	p.linef("%s <%s> (%s)", profile.User.Username, profile.User.Email, status)
	p.line("")
	if len(profile.CVs) == 0 {
		p.line("No CVs uploaded.")
	} else {
		p.line("CVs:")
		for _, cv := range profile.CVs {
			p.linef("  #%d %s at %s (%s)", cv.ID, orDash(cv.JobRole), orDash(cv.CompanyName), level(cv.InterviewLevel))
		}
	}
	if p.err != nil || !opts.ShowHistory {
		return p.err
	}

	p.line("")
	p.line("Reports:")
	if p.err != nil {
		return p.err
	}
	return RenderHistory(w, history, opts)
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s+"\n")
}

func (p *printer) linef(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func level(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return titleCase.String(s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return strings.TrimSpace(s)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

// completed renders a server timestamp relative to now, or verbatim when it
// does not parse.
func completed(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "-"
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return humanize.RelTime(t, now, "ago", "from now")
		}
	}
	return raw
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
