package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"review-agent/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	// assistantsBetaHeader opts every request into the Assistants API surface.
	assistantsBetaHeader = "assistants=v1"
)

// assistantRequest is the request shape for assistant creation.
type assistantRequest struct {
	Name         string        `json:"name,omitempty"`
	Model        string        `json:"model"`
	Instructions string        `json:"instructions,omitempty"`
	Tools        []domain.Tool `json:"tools,omitempty"`
	FileIDs      []string      `json:"file_ids,omitempty"`
}

// assistantUpdateRequest replaces the assistant's tool set and file set
// wholesale; both fields are always serialized so an empty slice clears the
// remote set rather than leaving it untouched.
type assistantUpdateRequest struct {
	Tools   []domain.Tool `json:"tools"`
	FileIDs []string      `json:"file_ids"`
}

// assistantResponse is the minimal assistant shape returned by the service.
type assistantResponse struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Model        string        `json:"model"`
	Instructions string        `json:"instructions"`
	Tools        []domain.Tool `json:"tools"`
	FileIDs      []string      `json:"file_ids"`
}

// fileResponse is the minimal uploaded-file shape returned by the service.
type fileResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

type threadResponse struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

type messageCreateRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagePart mirrors one content element; only text parts carry a value.
type messagePart struct {
	Type string `json:"type"`
	Text *struct {
		Value string `json:"value"`
	} `json:"text,omitempty"`
}

type messageResponse struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"thread_id"`
	Role      string        `json:"role"`
	Content   []messagePart `json:"content"`
	CreatedAt int64         `json:"created_at"`
}

type messageListResponse struct {
	Data []messageResponse `json:"data"`
}

type runCreateRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runResponse struct {
	ID          string `json:"id"`
	ThreadID    string `json:"thread_id"`
	AssistantID string `json:"assistant_id"`
	Status      string `json:"status"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for the Assistants API: assistants, files,
// threads, messages, and runs. It holds no conversation state of its own;
// every method is one request against the remote service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client backed by the given paramstore.Getter for
// API key retrieval. The key is fetched from SSM on the first request and
// reused for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey fetches the API key from SSM on the first call and returns the
// cached result on every subsequent call within the same process lifetime.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
	})
	return c.apiKey, c.keyErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

// resolvedHTTPClient returns the configured HTTP client, or a default with a
// 30s timeout if none was set (e.g. in tests that nil out the field).
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// endpointURL joins the configured base URL with an API path, tolerating
// bases given with or without the /v1 suffix.
func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + path
}

// CreateAssistant registers a new assistant configuration with the remote
// service and returns it with the service-issued ID filled in.
func (c *Client) CreateAssistant(ctx context.Context, cfg domain.AssistantConfig) (domain.AssistantConfig, error) {
	if cfg.Model == "" {
		return domain.AssistantConfig{}, errors.New("openai: model must not be empty")
	}
	var payload assistantResponse
	err := c.call(ctx, http.MethodPost, "/assistants", assistantRequest{
		Name:         cfg.Name,
		Model:        cfg.Model,
		Instructions: cfg.Instructions,
		Tools:        cfg.Tools,
		FileIDs:      cfg.FileIDs,
	}, &payload)
	if err != nil {
		return domain.AssistantConfig{}, fmt.Errorf("openai: create assistant: %w", err)
	}
	if payload.ID == "" {
		return domain.AssistantConfig{}, errors.New("openai: create assistant: response missing id")
	}
	return toDomainAssistant(payload), nil
}

// UpdateAssistant replaces the assistant's tool set and attached file set.
func (c *Client) UpdateAssistant(ctx context.Context, assistantID string, tools []domain.Tool, fileIDs []string) (domain.AssistantConfig, error) {
	if assistantID == "" {
		return domain.AssistantConfig{}, errors.New("openai: assistant id must not be empty")
	}
	if tools == nil {
		tools = []domain.Tool{}
	}
	if fileIDs == nil {
		fileIDs = []string{}
	}
	var payload assistantResponse
	err := c.call(ctx, http.MethodPost, "/assistants/"+assistantID, assistantUpdateRequest{
		Tools:   tools,
		FileIDs: fileIDs,
	}, &payload)
	if err != nil {
		return domain.AssistantConfig{}, fmt.Errorf("openai: update assistant: %w", err)
	}
	return toDomainAssistant(payload), nil
}

// UploadFile submits raw file content with a purpose label and returns the
// service-issued file ID.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader, purpose string) (string, error) {
	if filename == "" {
		return "", errors.New("openai: filename must not be empty")
	}
	if content == nil {
		return "", errors.New("openai: content must not be nil")
	}
	if purpose == "" {
		return "", errors.New("openai: purpose must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", purpose); err != nil {
		return "", fmt.Errorf("openai: write purpose field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("openai: create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("openai: copy file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("openai: finalize multipart body: %w", err)
	}

	url := endpointURL(c.baseURL, "/files")
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if reqErr != nil {
		return "", fmt.Errorf("openai: create upload request: %w", reqErr)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("openai: upload request failed: %w", err)
	}

	var payload fileResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("openai: decode upload response: %w", decErr)
	}
	if payload.ID == "" {
		return "", errors.New("openai: upload response missing file id")
	}
	return payload.ID, nil
}

// CreateThread requests a new empty thread from the remote service.
func (c *Client) CreateThread(ctx context.Context) (domain.Thread, error) {
	var payload threadResponse
	if err := c.call(ctx, http.MethodPost, "/threads", struct{}{}, &payload); err != nil {
		return domain.Thread{}, fmt.Errorf("openai: create thread: %w", err)
	}
	if payload.ID == "" {
		return domain.Thread{}, errors.New("openai: create thread: response missing id")
	}
	return domain.Thread{
		ID:        payload.ID,
		CreatedAt: time.Unix(payload.CreatedAt, 0).UTC(),
	}, nil
}

// CreateMessage appends one message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID string, role domain.MessageRole, content string) (domain.Message, error) {
	if threadID == "" {
		return domain.Message{}, errors.New("openai: thread id must not be empty")
	}
	var payload messageResponse
	err := c.call(ctx, http.MethodPost, "/threads/"+threadID+"/messages", messageCreateRequest{
		Role:    string(role),
		Content: content,
	}, &payload)
	if err != nil {
		return domain.Message{}, fmt.Errorf("openai: create message: %w", err)
	}
	if payload.ID == "" {
		return domain.Message{}, errors.New("openai: create message: response missing id")
	}
	return toDomainMessage(payload, threadID), nil
}

// ListMessages returns the thread's full message log in the requested
// insertion order. Read-only and repeatable.
func (c *Client) ListMessages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.Message, error) {
	if threadID == "" {
		return nil, errors.New("openai: thread id must not be empty")
	}
	if order != domain.SortAscending && order != domain.SortDescending {
		return nil, fmt.Errorf("openai: unsupported sort order %q", order)
	}
	var payload messageListResponse
	path := "/threads/" + threadID + "/messages?order=" + string(order)
	if err := c.call(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("openai: list messages: %w", err)
	}
	msgs := make([]domain.Message, 0, len(payload.Data))
	for _, m := range payload.Data {
		msgs = append(msgs, toDomainMessage(m, threadID))
	}
	return msgs, nil
}

// CreateRun submits one unit of work binding the assistant to the thread.
// It returns immediately with whatever status the service reports.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (domain.Run, error) {
	if threadID == "" {
		return domain.Run{}, errors.New("openai: thread id must not be empty")
	}
	if assistantID == "" {
		return domain.Run{}, errors.New("openai: assistant id must not be empty")
	}
	var payload runResponse
	err := c.call(ctx, http.MethodPost, "/threads/"+threadID+"/runs", runCreateRequest{AssistantID: assistantID}, &payload)
	if err != nil {
		return domain.Run{}, fmt.Errorf("openai: create run: %w", err)
	}
	return toDomainRun(payload, threadID)
}

// GetRun re-fetches the run's current status. Idempotent; never mutates the run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (domain.Run, error) {
	if threadID == "" {
		return domain.Run{}, errors.New("openai: thread id must not be empty")
	}
	if runID == "" {
		return domain.Run{}, errors.New("openai: run id must not be empty")
	}
	var payload runResponse
	if err := c.call(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &payload); err != nil {
		return domain.Run{}, fmt.Errorf("openai: get run: %w", err)
	}
	return toDomainRun(payload, threadID)
}

// call performs one JSON request against the API: marshal body (if any),
// attach auth and beta headers, execute, and decode into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("marshal request: %w", mErr)
		}
		reader = bytes.NewReader(raw)
	}

	url := endpointURL(c.baseURL, path)
	req, reqErr := http.NewRequestWithContext(ctx, method, url, reader)
	if reqErr != nil {
		return fmt.Errorf("create request: %w", reqErr)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("OpenAI-Beta", assistantsBetaHeader)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if out == nil {
		return nil
	}
	if decErr := json.Unmarshal(raw, out); decErr != nil {
		return fmt.Errorf("decode response: %w", decErr)
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func toDomainAssistant(a assistantResponse) domain.AssistantConfig {
	return domain.AssistantConfig{
		ID:           a.ID,
		Name:         a.Name,
		Model:        a.Model,
		Instructions: a.Instructions,
		Tools:        a.Tools,
		FileIDs:      a.FileIDs,
	}
}

func toDomainMessage(m messageResponse, threadID string) domain.Message {
	if m.ThreadID != "" {
		threadID = m.ThreadID
	}
	parts := make([]domain.MessagePart, 0, len(m.Content))
	for _, p := range m.Content {
		dp := domain.MessagePart{Type: p.Type}
		if p.Text != nil {
			dp.Text = p.Text.Value
		}
		parts = append(parts, dp)
	}
	return domain.Message{
		ID:        m.ID,
		ThreadID:  threadID,
		Role:      domain.MessageRole(m.Role),
		Parts:     parts,
		CreatedAt: time.Unix(m.CreatedAt, 0).UTC(),
	}
}

// toDomainRun validates the reported status against the closed status set so
// an unrecognized state fails loudly instead of being polled forever.
func toDomainRun(r runResponse, threadID string) (domain.Run, error) {
	if r.ID == "" {
		return domain.Run{}, errors.New("openai: run response missing id")
	}
	status := domain.RunStatus(r.Status)
	switch status {
	case domain.RunQueued, domain.RunInProgress, domain.RunRequiresAction,
		domain.RunCompleted, domain.RunFailed, domain.RunCancelled:
	default:
		return domain.Run{}, fmt.Errorf("openai: unrecognized run status %q", r.Status)
	}
	if r.ThreadID != "" {
		threadID = r.ThreadID
	}
	return domain.Run{
		ID:          r.ID,
		ThreadID:    threadID,
		AssistantID: r.AssistantID,
		Status:      status,
	}, nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("openai: API token is empty")
	}
	return tp.Token, nil
}
