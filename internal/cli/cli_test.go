package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/rehearse.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/rehearse.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
		wantArgs []string
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantCmd: CommandStatus, wantPath: "/tmp/cfg"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "flag needs an argument"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag: --bogus"},
		{name: "unknown command", args: []string{"definitely-not-a-command"}, wantErr: "unknown command"},
		{name: "extra args", args: []string{"submit", "now"}, wantErr: "unknown command \"now\""},
		{name: "show needs id", args: []string{"show"}, wantErr: "accepts 1 arg(s)"},
		{name: "show", args: []string{"show", "abc123"}, wantCmd: CommandShow, wantArgs: []string{"abc123"}},
		{name: "login", args: []string{"login", "ada"}, wantCmd: CommandLogin, wantArgs: []string{"ada"}},
		{name: "register", args: []string{"register", "ada", "ada@example.com"}, wantCmd: CommandRegister, wantArgs: []string{"ada", "ada@example.com"}},
		{name: "completion disabled", args: []string{"completion"}, wantErr: "unknown command"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			if tc.wantArgs != nil {
				require.Equal(t, tc.wantArgs, parsed.Args)
			}
		})
	}
}

func TestParseUploadFlags(t *testing.T) {
	parsed, err := Parse([]string{
		"upload", "cv.pdf",
		"--company", "Acme",
		"--role", "Backend Engineer",
		"--job-description", "Go services",
		"--start",
	})
	require.NoError(t, err)
	require.Equal(t, CommandUpload, parsed.Command)
	require.Equal(t, []string{"cv.pdf"}, parsed.Args)
	require.Equal(t, Upload{
		Company:        "Acme",
		Role:           "Backend Engineer",
		Level:          "Intermediate",
		JobDescription: "Go services",
		Start:          true,
	}, parsed.Upload)
}

func TestParseUploadRequiresCompanyAndRole(t *testing.T) {
	_, err := Parse([]string{"upload", "cv.pdf", "--company", "Acme"})
	require.ErrorContains(t, err, `required flag(s) "role" not set`)
}

func TestParseReportFlags(t *testing.T) {
	parsed, err := Parse([]string{"report", "--format", "yaml"})
	require.NoError(t, err)
	require.Equal(t, CommandReport, parsed.Command)
	require.Equal(t, "yaml", parsed.Format)

	parsed, err = Parse([]string{"profile", "--history"})
	require.NoError(t, err)
	require.True(t, parsed.WithHistory)

	parsed, err = Parse([]string{"interview", "--mute"})
	require.NoError(t, err)
	require.True(t, parsed.Mute)
}

func TestHelpTextListsCommands(t *testing.T) {
	text := HelpText("rehearse")
	require.Contains(t, text, "Usage:")
	for _, name := range []string{"interview", "submit", "report", "history", "doctor", "--config"} {
		require.Contains(t, text, name)
	}
	require.NotContains(t, text, "completion")
}
