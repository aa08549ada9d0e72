package indicator

import (
	"fmt"
	"os"
	"strings"

	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/session"
)

type messages struct {
	listening  string
	paused     string
	submitting string
	complete   string
	errorText  string
	byKind     map[failure.Kind]string
}

func messagesFromEnv() messages {
	return messagesFor(os.Getenv("LANG"))
}

// messagesFor returns the catalog for a POSIX locale. Only English exists.
func messagesFor(string) messages {
	return messages{
		listening:  "Listening…",
		paused:     "Answer paused",
		submitting: "Submitting answer…",
		complete:   "Interview complete",
		errorText:  "Something went wrong",
		byKind: map[failure.Kind]string{
			failure.KindEngine:                  "Speech recognition error",
			failure.KindUnsupportedCapability:   "Speech input unavailable",
			failure.KindTransport:               "Interview service unreachable",
			failure.KindServer:                  "Interview service error",
			failure.KindAuthenticationRequired:  "Sign in required",
			failure.KindSessionNotFound:         "Session not found",
			failure.KindSessionAlreadyFinalized: "Session already finished",
			failure.KindValidation:              "Answer is empty",
		},
	}
}

func (m messages) question(c session.Cursor) string {
	if text := c.ProgressText(); text != "" {
		return text
	}
	if q := strings.TrimSpace(c.Question); q != "" {
		return fmt.Sprintf("Question: %s", q)
	}
	return "Question ready"
}

func (m messages) failure(kind failure.Kind) string {
	if text, ok := m.byKind[kind]; ok {
		return text
	}
	return m.errorText
}
