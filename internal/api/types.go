package api

import "strings"

// Question is the response of the current-question endpoint.
type Question struct {
	Completed bool   `json:"completed" yaml:"completed"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
	Text      string `json:"question,omitempty" yaml:"question,omitempty"`
	Progress  int    `json:"progress,omitempty" yaml:"progress,omitempty"`
	Total     int    `json:"total,omitempty" yaml:"total,omitempty"`
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

// AnswerResult is the response of the submit-answer endpoint.
type AnswerResult struct {
	Completed    bool   `json:"completed" yaml:"completed"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty"`
	NextQuestion string `json:"next_question,omitempty" yaml:"next_question,omitempty"`
	Progress     int    `json:"progress,omitempty" yaml:"progress,omitempty"`
	Total        int    `json:"total,omitempty" yaml:"total,omitempty"`
}

// ResponseDetail is the per-question analysis inside a report.
type ResponseDetail struct {
	Question        string   `json:"question" yaml:"question"`
	CandidateAnswer string   `json:"candidate_answer,omitempty" yaml:"candidate_answer,omitempty"`
	Answer          string   `json:"answer,omitempty" yaml:"answer,omitempty"`
	Status          string   `json:"status,omitempty" yaml:"status,omitempty"`
	Score           *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Feedback        string   `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// AnswerText returns the candidate answer under either field name the
// service has used.
func (d ResponseDetail) AnswerText() string {
	if strings.TrimSpace(d.CandidateAnswer) != "" {
		return d.CandidateAnswer
	}
	return d.Answer
}

// Report is the server-computed evaluation of a completed session.
type Report struct {
	TotalQuestions    int              `json:"total_questions" yaml:"total_questions"`
	AnswersReceived   int              `json:"answers_received" yaml:"answers_received"`
	AccuracyLevel     string           `json:"accuracy_level" yaml:"accuracy_level"`
	ConfidenceLevel   string           `json:"confidence_level" yaml:"confidence_level"`
	DetailedResponses []ResponseDetail `json:"detailed_responses" yaml:"detailed_responses"`
	Feedback          string           `json:"feedback" yaml:"feedback"`
}

// ReportSummary is one row of the report history.
type ReportSummary struct {
	SessionID      string `json:"session_id" yaml:"session_id"`
	CVRole         string `json:"cv_role" yaml:"cv_role"`
	CVCompany      string `json:"cv_company" yaml:"cv_company"`
	InterviewLevel string `json:"interview_level,omitempty" yaml:"interview_level,omitempty"`
	CompletedAt    string `json:"completed_at" yaml:"completed_at"`
	Score          string `json:"score" yaml:"score"`
}

// User is an account as returned by the service.
type User struct {
	ID       int    `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}

// CV is an uploaded CV record.
type CV struct {
	ID             int    `json:"id" yaml:"id"`
	CompanyName    string `json:"company_name" yaml:"company_name"`
	JobRole        string `json:"job_role" yaml:"job_role"`
	InterviewLevel string `json:"interview_level" yaml:"interview_level"`
	UserID         int    `json:"user_id" yaml:"user_id"`
}

// Profile is the response of the profile endpoint.
type Profile struct {
	User User `json:"user" yaml:"user"`
	CVs  []CV `json:"cvs" yaml:"cvs"`
}

// Credentials authenticate a login request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration creates a new account.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the issued bearer token.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Interview levels accepted by the upload endpoint.
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
)

// Upload describes a CV upload that starts a new session.
type Upload struct {
	Path           string
	CompanyName    string
	JobRole        string
	JobDescription string
	InterviewLevel string
}

// UploadResult is the response of the upload endpoint.
type UploadResult struct {
	SessionID string   `json:"session_id" yaml:"session_id"`
	Questions []string `json:"questions" yaml:"questions"`
	CV        CV       `json:"cv" yaml:"cv"`
}
