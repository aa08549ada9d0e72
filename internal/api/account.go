package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/rehearse/internal/failure"
)

var allowedCVExtensions = map[string]bool{".pdf": true, ".docx": true}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	const op = "login"
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return LoginResult{}, fmt.Errorf("%s: %w", op, failure.Validation("username and password are required"))
	}

	body, err := c.jsonBody(creds)
	if err != nil {
		return LoginResult{}, err
	}
	var out LoginResult
	if err := c.do(ctx, call{op: op, method: http.MethodPost, path: "/api/login", body: body, public: true}, &out); err != nil {
		return LoginResult{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return LoginResult{}, fmt.Errorf("%s: %w: response has no access token", op, failure.ErrServer)
	}
	return out, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	const op = "register"
	if strings.TrimSpace(reg.Username) == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		return fmt.Errorf("%s: %w", op, failure.Validation("username, email and password are required"))
	}

	body, err := c.jsonBody(reg)
	if err != nil {
		return err
	}
	return c.do(ctx, call{op: op, method: http.MethodPost, path: "/api/register", body: body, public: true}, nil)
}

// Profile fetches the caller's account and uploaded CVs.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out Profile
	if err := c.do(ctx, call{op: "fetch profile", method: http.MethodGet, path: "/api/profile"}, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// Health checks the public health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, call{op: "health", method: http.MethodGet, path: "/api/health", public: true}, nil)
}

// ValidateUpload checks an upload before any file is read.
func ValidateUpload(u Upload) error {
	switch {
	case strings.TrimSpace(u.Path) == "":
		return failure.Validation("a CV file is required")
	case !allowedCVExtensions[strings.ToLower(filepath.Ext(u.Path))]:
		return failure.Validation("only PDF and DOCX files are allowed")
	case strings.TrimSpace(u.CompanyName) == "":
		return failure.Validation("company name is required")
	case strings.TrimSpace(u.JobRole) == "":
		return failure.Validation("job role is required")
	}
	switch u.InterviewLevel {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return nil
	default:
		return failure.Validation(fmt.Sprintf("interview level must be %s, %s or %s", LevelBeginner, LevelIntermediate, LevelAdvanced))
	}
}

// UploadCV uploads a CV and starts a new interview session.
func (c *Client) UploadCV(ctx context.Context, u Upload) (UploadResult, error) {
	const op = "upload cv"
	if err := ValidateUpload(u); err != nil {
		return UploadResult{}, fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.Open(u.Path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("cv_file", filepath.Base(u.Path))
	if err != nil {
		return UploadResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return UploadResult{}, fmt.Errorf("%s: read cv: %w", op, err)
	}
	fields := [][2]string{
		{"company_name", strings.TrimSpace(u.CompanyName)},
		{"job_role", strings.TrimSpace(u.JobRole)},
		{"interview_level", u.InterviewLevel},
		{"job_description", strings.TrimSpace(u.JobDescription)},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := w.WriteField(field[0], field[1]); err != nil {
			return UploadResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var out UploadResult
	if err := c.do(ctx, call{
		op:          op,
		method:      http.MethodPost,
		path:        "/api/upload-cv",
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, &out); err != nil {
		return UploadResult{}, err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return UploadResult{}, fmt.Errorf("%s: %w: response has no session id", op, failure.ErrServer)
	}
	return out, nil
}
