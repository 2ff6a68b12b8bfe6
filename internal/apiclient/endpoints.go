package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	return c.authenticate(ctx, "/auth/login", req, "login failed")
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return c.authenticate(ctx, "/auth/register", req, "registration failed")
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}, fallback string) (*models.User, error) {
	var resp models.AuthResponse
	if err := c.Call(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	if !resp.OK() {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		if msg == "" {
			msg = fallback
		}
		return nil, &APIError{Kind: KindClient, Method: http.MethodPost, Path: path, Status: http.StatusOK, Message: msg}
	}
	if resp.User == nil {
		return nil, &APIError{Kind: KindDecode, Method: http.MethodPost, Path: path, Status: http.StatusOK, Message: "response has no user"}
	}

	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Call(ctx, http.MethodPost, "/logout", nil, nil)
}

func (c *Client) CheckSession(ctx context.Context) (*models.SessionCheckResponse, error) {
	var resp models.SessionCheckResponse
	if err := c.Call(ctx, http.MethodGet, "/check-session", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ProfessorAssignments(ctx context.Context) ([]models.Assignment, error) {
	var out []models.Assignment
	if err := c.Call(ctx, http.MethodGet, "/professor/assignments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StudentAssignments(ctx context.Context) ([]models.Assignment, error) {
	var out []models.Assignment
	if err := c.Call(ctx, http.MethodGet, "/student/assignments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AssignmentSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	var out []models.Submission
	path := fmt.Sprintf("/assignments/%s/submissions", url.PathEscape(assignmentID))
	if err := c.Call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmissionStatus(ctx context.Context, submissionID string) (*models.StatusReport, error) {
	var out models.StatusReport
	path := fmt.Sprintf("/submissions/%s/status", url.PathEscape(submissionID))
	if err := c.Call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ProfessorProfile(ctx context.Context) (*models.ProfessorProfile, error) {
	return c.profile(ctx, http.MethodGet, "/professor/profile", nil, "failed to retrieve professor profile")
}

func (c *Client) UpdateProfessorProfile(ctx context.Context, req models.ProfessorProfileUpdate) (*models.ProfessorProfile, error) {
	return c.profile(ctx, http.MethodPut, "/professor/profile/update", req, "failed to update professor profile")
}

func (c *Client) profile(ctx context.Context, method, path string, body interface{}, fallback string) (*models.ProfessorProfile, error) {
	var resp models.ProfileResponse
	if err := c.Call(ctx, method, path, body, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = fallback
		}
		return nil, &APIError{Kind: KindClient, Method: method, Path: path, Status: http.StatusOK, Message: msg}
	}
	if resp.Profile == nil {
		return nil, &APIError{Kind: KindDecode, Method: method, Path: path, Status: http.StatusOK, Message: "response has no profile"}
	}

	return resp.Profile, nil
}

// DownloadAssignment возвращает PDF с условием задания.
func (c *Client) DownloadAssignment(ctx context.Context, assignmentID string) ([]byte, error) {
	var data []byte
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    fmt.Sprintf("/assignments/%s/download", url.PathEscape(assignmentID)),
		accept:  "application/pdf",
		timeout: c.cfg.UploadTimeout,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) CreateAssignment(ctx context.Context, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	form := newMultipartForm()
	form.field("name", req.Name)
	form.field("course", req.Course)
	form.field("description", req.Description)
	form.field("due_date", req.DueDate)
	for _, section := range req.Sections {
		form.field("sections[]", section)
	}
	if req.QuestionFile != nil {
		form.file("question_file", req.QuestionFile)
	}

	body, contentType, err := form.close()
	if err != nil {
		return nil, err
	}

	var out models.Assignment
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/assignments/create",
		body:        body,
		contentType: contentType,
		accept:      "application/json",
		timeout:     c.cfg.UploadTimeout,
	}, &out)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("assignment_id", out.ID).
		Str("course", out.Course).
		Msg("Assignment created")

	return &out, nil
}

// SubmitAssignment загружает ответ студента. Запрос не повторяется.
func (c *Client) SubmitAssignment(ctx context.Context, assignmentID string, file *models.FileUpload) (*models.SubmitResponse, error) {
	form := newMultipartForm()
	form.file("file", file)

	body, contentType, err := form.close()
	if err != nil {
		return nil, err
	}

	var out models.SubmitResponse
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        fmt.Sprintf("/assignments/%s/submit", url.PathEscape(assignmentID)),
		body:        body,
		contentType: contentType,
		accept:      "application/json",
		timeout:     c.cfg.UploadTimeout,
	}, &out)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("assignment_id", assignmentID).
		Str("submission_id", out.ID).
		Str("processing_status", out.ProcessingStatus.String()).
		Int("size", len(file.Content)).
		Msg("Submission uploaded")

	return &out, nil
}

type multipartForm struct {
	buf    bytes.Buffer
	writer *multipart.Writer
	err    error
}

func newMultipartForm() *multipartForm {
	f := &multipartForm{}
	f.writer = multipart.NewWriter(&f.buf)
	return f
}

func (f *multipartForm) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.writer.WriteField(name, value)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (f *multipartForm) file(field string, upload *models.FileUpload) {
	if f.err != nil {
		return
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(upload.Name)))
	h.Set("Content-Type", contentType)

	part, err := f.writer.CreatePart(h)
	if err != nil {
		f.err = fmt.Errorf("failed to create form file: %w", err)
		return
	}
	if _, err := part.Write(upload.Content); err != nil {
		f.err = fmt.Errorf("failed to copy file content: %w", err)
	}
}

func (f *multipartForm) close() ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return f.buf.Bytes(), f.writer.FormDataContentType(), nil
}
