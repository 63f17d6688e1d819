// Package gateway is the single choke point for every call to the
// document-ingestion service. It decorates requests with the current
// bearer token and classifies every outcome as success, authentication
// required, rejected (HTTP error with a server reason), or unreachable
// (transport failure). No retries happen here; every failure is
// reported exactly once and retry policy belongs to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"docuscan/internal/model"
)

// Session is the credential collaborator. Satisfied by *session.Store.
type Session interface {
	Token(ctx context.Context) (string, bool)
	Save(ctx context.Context, token string, expiresAt time.Time) error
	Logout(ctx context.Context) error
}

// Client calls the document-ingestion service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session Session
	now     func() time.Time
}

// New creates a client with the given request timeout. OCR processing
// on upload can take a while, so timeouts below ~30s are a bad idea.
func New(baseURL string, sess Session, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Session: sess,
		now:     time.Now,
	}
}

// Login authenticates and persists the credential through the session
// store. Blank credentials are a local validation error and never reach
// the network. Nothing is persisted on failure.
func (c *Client) Login(ctx context.Context, username, password string) (model.LoginResponse, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return model.LoginResponse{}, ErrEmptyCredentials
	}

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, bytes.NewReader(body), "application/json", false)
	observe("login", err)
	if err != nil {
		return model.LoginResponse{}, err
	}
	defer resp.Body.Close()

	var out model.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.LoginResponse{}, fmt.Errorf("gateway: decode login response: %w", err)
	}
	expiresAt := c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	if err := c.Session.Save(ctx, out.AccessToken, expiresAt); err != nil {
		return model.LoginResponse{}, fmt.Errorf("gateway: persist credential: %w", err)
	}
	return out, nil
}

// Me returns the authenticated operator's identity.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, "", true)
	observe("me", err)
	if err != nil {
		return model.User{}, err
	}
	defer resp.Body.Close()

	var out model.User
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.User{}, fmt.Errorf("gateway: decode user: %w", err)
	}
	return out, nil
}

// Upload submits one document image as multipart field "file" and
// returns the created record plus OCR metadata.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (model.UploadResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return model.UploadResponse{}, fmt.Errorf("gateway: create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return model.UploadResponse{}, fmt.Errorf("gateway: write form file: %w", err)
	}
	w.Close()

	resp, err := c.do(ctx, http.MethodPost, "/api/upload", nil, &buf, w.FormDataContentType(), true)
	observe("upload", err)
	if err != nil {
		return model.UploadResponse{}, err
	}
	defer resp.Body.Close()

	var out model.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.UploadResponse{}, fmt.Errorf("gateway: decode upload response: %w", err)
	}
	return out, nil
}

// SearchStudents returns one page of records matching query. An empty
// query lists everything.
func (c *Client) SearchStudents(ctx context.Context, query string, page, pageSize int) (model.SearchResponse, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	if query != "" {
		params.Set("query", query)
	}

	resp, err := c.do(ctx, http.MethodGet, "/api/students", params, nil, "", true)
	observe("search", err)
	if err != nil {
		return model.SearchResponse{}, err
	}
	defer resp.Body.Close()

	var out model.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.SearchResponse{}, fmt.Errorf("gateway: decode search response: %w", err)
	}
	return out, nil
}

// GetStudent fetches a single record by id.
func (c *Client) GetStudent(ctx context.Context, id int64) (model.Student, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/students/"+strconv.FormatInt(id, 10), nil, nil, "", true)
	observe("get", err)
	if err != nil {
		return model.Student{}, err
	}
	defer resp.Body.Close()

	var out model.Student
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Student{}, fmt.Errorf("gateway: decode student: %w", err)
	}
	return out, nil
}

// UpdateStudent applies a partial edit and returns the updated record.
func (c *Client) UpdateStudent(ctx context.Context, id int64, update model.StudentUpdate) (model.Student, error) {
	body, err := json.Marshal(update)
	if err != nil {
		return model.Student{}, fmt.Errorf("gateway: encode update: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, "/api/students/"+strconv.FormatInt(id, 10), nil, bytes.NewReader(body), "application/json", true)
	observe("update", err)
	if err != nil {
		return model.Student{}, err
	}
	defer resp.Body.Close()

	var out model.Student
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Student{}, fmt.Errorf("gateway: decode student: %w", err)
	}
	return out, nil
}

// DeleteStudent removes a record. Success is signaled by status alone.
func (c *Client) DeleteStudent(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/students/"+strconv.FormatInt(id, 10), nil, nil, "", true)
	observe("delete", err)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ExportExcel returns the spreadsheet export as opaque bytes. The
// caller decides how to present them as a file.
func (c *Client) ExportExcel(ctx context.Context, query string) ([]byte, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/export/excel", params, nil, "", true)
	observe("export", err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read export payload: %w", err)
	}
	return data, nil
}

// Statistics returns the aggregate view over stored records.
func (c *Client) Statistics(ctx context.Context) (model.Statistics, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, "", true)
	observe("stats", err)
	if err != nil {
		return model.Statistics{}, err
	}
	defer resp.Body.Close()

	var out model.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Statistics{}, fmt.Errorf("gateway: decode statistics: %w", err)
	}
	return out, nil
}

// FileURL builds the direct retrieval URL for a stored document image.
// These are fetched by the presenter directly, not through the JSON path.
func (c *Client) FileURL(studentID, filename string) string {
	return c.BaseURL + "/api/files/" + url.PathEscape(studentID) + "/" + url.PathEscape(filename)
}

// do issues one request with bearer decoration and classifies the
// outcome. Operations that require auth short-circuit with
// ErrAuthenticationRequired when no token is available; no request is
// issued. A 401 response destroys the stored credential before being
// reported as rejected.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string, requireAuth bool) (*http.Response, error) {
	var token string
	if requireAuth {
		var ok bool
		token, ok = c.Session.Token(ctx)
		if !ok {
			return nil, ErrAuthenticationRequired
		}
	}

	target := c.BaseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &UnreachableError{Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	rejected := decodeRejection(resp)
	resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		_ = c.Session.Logout(ctx)
	}
	return nil, rejected
}

// decodeRejection extracts the server-provided reason from an error
// response, falling back to the raw body and then the status line.
func decodeRejection(resp *http.Response) *RejectedError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	message := payload.Detail
	if message == "" {
		message = payload.Error
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = resp.Status
	}
	return &RejectedError{StatusCode: resp.StatusCode, Message: message}
}
