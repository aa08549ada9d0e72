// Package cli parses the rehearse command line.
package cli

import (
	"bytes"
	"io"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandLogin     Command = "login"
	CommandLogout    Command = "logout"
	CommandRegister  Command = "register"
	CommandUpload    Command = "upload"
	CommandInterview Command = "interview"
	CommandListen    Command = "listen"
	CommandStop      Command = "stop"
	CommandToggle    Command = "toggle"
	CommandSubmit    Command = "submit"
	CommandRetry     Command = "retry"
	CommandStatus    Command = "status"
	CommandReport    Command = "report"
	CommandHistory   Command = "history"
	CommandShow      Command = "show"
	CommandProfile   Command = "profile"
	CommandAbandon   Command = "abandon"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

// Upload carries the upload command's flags.
type Upload struct {
	Company        string
	Role           string
	Level          string
	JobDescription string
	Start          bool
}

// Parsed is the outcome of one command line.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Args       []string

	// Format overrides report.format when set.
	Format      string
	WithHistory bool
	Upload      Upload
	Mute        bool
}

// Parse interprets args without running anything.
func Parse(args []string) (Parsed, error) {
	var parsed Parsed
	root := newRoot(&parsed)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	if parsed.Command == "" {
		parsed.Command = CommandHelp
	}
	parsed.ShowHelp = parsed.Command == CommandHelp
	return parsed, nil
}

// HelpText renders the root usage.
func HelpText(binaryName string) string {
	var parsed Parsed
	root := newRoot(&parsed)
	root.Use = binaryName
	var buf bytes.Buffer
	root.SetOut(&buf)
	_ = root.Help()
	return buf.String()
}

const (
	groupInterview = "interview"
	groupReports   = "reports"
	groupAccount   = "account"
	groupSystem    = "system"
)

func newRoot(parsed *Parsed) *cobra.Command {
	var showVersion bool
	root := &cobra.Command{
		Use:   "rehearse",
		Short: "Voice-driven interview practice",
		Long: `rehearse runs spoken mock interviews against the interview service:
upload a CV, answer each question by voice, then read the generated report.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, args []string) {
			if showVersion {
				parsed.Command = CommandVersion
				return
			}
			parsed.Command = CommandHelp
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&parsed.ConfigPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/rehearse/config.jsonc)")
	root.Flags().BoolVar(&showVersion, "version", false, "show version")

	root.AddGroup(
		&cobra.Group{ID: groupInterview, Title: "Interview:"},
		&cobra.Group{ID: groupReports, Title: "Reports:"},
		&cobra.Group{ID: groupAccount, Title: "Account:"},
		&cobra.Group{ID: groupSystem, Title: "System:"},
	)

	leaf := func(cmd Command, group, short string, args cobra.PositionalArgs) *cobra.Command {
		return &cobra.Command{
			Use:     string(cmd),
			GroupID: group,
			Short:   short,
			Args:    args,
			Run: func(_ *cobra.Command, args []string) {
				parsed.Command = cmd
				parsed.Args = args
			},
		}
	}
	withFormat := func(c *cobra.Command) *cobra.Command {
		c.Flags().StringVar(&parsed.Format, "format", "", "output format: text, markdown, json or yaml (default: report.format)")
		return c
	}

	login := leaf(CommandLogin, groupAccount, "Sign in; the password is read from stdin", cobra.ExactArgs(1))
	login.Use = "login USERNAME"
	register := leaf(CommandRegister, groupAccount, "Create an account; the password is read from stdin", cobra.ExactArgs(2))
	register.Use = "register USERNAME EMAIL"
	profile := withFormat(leaf(CommandProfile, groupAccount, "Show the account and uploaded CVs", cobra.NoArgs))
	profile.Flags().BoolVar(&parsed.WithHistory, "history", false, "include the report history (default: report.show_history)")

	upload := leaf(CommandUpload, groupInterview, "Upload a CV (.pdf or .docx) to start a session", cobra.ExactArgs(1))
	upload.Use = "upload CV_FILE"
	upload.Flags().StringVar(&parsed.Upload.Company, "company", "", "company name")
	upload.Flags().StringVar(&parsed.Upload.Role, "role", "", "job role")
	upload.Flags().StringVar(&parsed.Upload.Level, "level", "Intermediate", "interview level: Beginner, Intermediate or Advanced")
	upload.Flags().StringVar(&parsed.Upload.JobDescription, "job-description", "", "optional job description")
	upload.Flags().BoolVar(&parsed.Upload.Start, "start", false, "begin the interview right after uploading")
	_ = upload.MarkFlagRequired("company")
	_ = upload.MarkFlagRequired("role")

	interview := leaf(CommandInterview, groupInterview, "Run the interview for the current session", cobra.NoArgs)
	interview.Flags().BoolVar(&parsed.Mute, "mute", false, "do not read questions aloud")

	show := withFormat(leaf(CommandShow, groupReports, "Show a past report", cobra.ExactArgs(1)))
	show.Use = "show SESSION_ID"

	root.AddCommand(
		login,
		leaf(CommandLogout, groupAccount, "Forget the stored credential", cobra.NoArgs),
		register,
		profile,
		upload,
		interview,
		leaf(CommandListen, groupInterview, "Start capturing the answer", cobra.NoArgs),
		leaf(CommandStop, groupInterview, "Stop capturing the answer", cobra.NoArgs),
		leaf(CommandToggle, groupInterview, "Start or stop capturing the answer", cobra.NoArgs),
		leaf(CommandSubmit, groupInterview, "Submit the captured answer", cobra.NoArgs),
		leaf(CommandRetry, groupInterview, "Retry the failed request", cobra.NoArgs),
		leaf(CommandStatus, groupInterview, "Print interview state", cobra.NoArgs),
		leaf(CommandAbandon, groupInterview, "Discard the current session", cobra.NoArgs),
		withFormat(leaf(CommandReport, groupReports, "Generate the report for the finished session", cobra.NoArgs)),
		withFormat(leaf(CommandHistory, groupReports, "List completed interviews", cobra.NoArgs)),
		show,
		leaf(CommandDevices, groupSystem, "List audio input devices", cobra.NoArgs),
		leaf(CommandDoctor, groupSystem, "Check configuration and services", cobra.NoArgs),
		leaf(CommandVersion, groupSystem, "Print version information", cobra.NoArgs),
	)
	root.SetHelpCommandGroupID(groupSystem)
	return root
}
