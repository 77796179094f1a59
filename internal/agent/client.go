package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"voiceloop/client/internal/types"
)

// Client is the HTTP collaborator the session controller talks to.
type Client interface {
	SubmitTurn(ctx context.Context, payload []byte, mode types.Mode, sessionID string) (*types.TurnResult, error)
	GenerateAudio(ctx context.Context, text, voiceID string) (string, error)
	GenerateErrorAudio(ctx context.Context, message string) (string, error)
	FetchHistory(ctx context.Context, sessionID string) ([]types.Turn, error)
	ClearHistory(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]types.SessionSummary, error)
}

// HTTPClient implements Client against the voice-agent backend.
type HTTPClient struct {
	http           *http.Client
	base           string
	requestTimeout time.Duration
	chatTimeout    time.Duration
}

func NewClient(base string, requestTimeout, chatTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		http:           &http.Client{},
		base:           base,
		requestTimeout: requestTimeout,
		chatTimeout:    chatTimeout,
	}
}

// Base returns the backend base URL, used to resolve relative audio_url
// references for playback.
func (c *HTTPClient) Base() string { return c.base }

// turnResponse is the wire shape shared by the echo, llm and chat endpoints.
type turnResponse struct {
	Status        string `json:"status"`
	Transcription string `json:"transcription"`
	LLMResponse   string `json:"llm_response"`
	AudioURL      string `json:"audio_url"`
	MessageCount  int    `json:"message_count"`
	Message       string `json:"message"`
	FallbackText  string `json:"fallback_text"`
}

func endpointFor(mode types.Mode, sessionID string) (string, error) {
	switch mode {
	case types.ModeEcho:
		return "/tts/echo", nil
	case types.ModeLLM:
		return "/llm/query", nil
	case types.ModeChat:
		if sessionID == "" {
			return "", errors.New("agent: chat mode requires a session id")
		}
		return "/agent/chat/" + sessionID, nil
	}
	return "", fmt.Errorf("agent: unknown mode %q", mode)
}

// SubmitTurn uploads a finalized recording to the mode-specific endpoint
// and interprets the structured result. Chat requests get the longer
// timeout since generated responses can be large.
func (c *HTTPClient) SubmitTurn(ctx context.Context, payload []byte, mode types.Mode, sessionID string) (*types.TurnResult, error) {
	path, err := endpointFor(mode, sessionID)
	if err != nil {
		return nil, err
	}
	timeout := c.requestTimeout
	if mode == types.ModeChat {
		timeout = c.chatTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "recording.wav")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metricSubmitErrors.WithLabelValues(string(mode)).Inc()
		return nil, wrapDoError("submit "+path, err)
	}
	defer resp.Body.Close()
	metricSubmitLatency.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode/100 != 2 {
		metricSubmitErrors.WithLabelValues(string(mode)).Inc()
		return nil, apiErrorFromResponse(resp)
	}

	var tr turnResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &TransportError{Op: "decode " + path, Err: err}
	}

	switch tr.Status {
	case "success":
		metricSubmits.WithLabelValues(string(mode), "success").Inc()
		return &types.TurnResult{
			Transcription: tr.Transcription,
			Response:      tr.LLMResponse,
			AudioURL:      tr.AudioURL,
			MessageCount:  tr.MessageCount,
		}, nil
	case "partial_success":
		metricSubmits.WithLabelValues(string(mode), "partial").Inc()
		advisory := tr.Message
		if advisory == "" {
			advisory = tr.FallbackText
		}
		return &types.TurnResult{
			Transcription: tr.Transcription,
			Response:      tr.LLMResponse,
			AudioURL:      tr.AudioURL,
			MessageCount:  tr.MessageCount,
			Partial:       true,
			Advisory:      advisory,
		}, nil
	default:
		// Fallback payloads arrive with a 2xx status and, when the backend
		// managed to synthesize one, a playable error-audio reference.
		metricSubmits.WithLabelValues(string(mode), "fallback").Inc()
		detail := tr.FallbackText
		if detail == "" {
			detail = tr.LLMResponse
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Detail:     detail,
			Fallback:   tr.FallbackText,
			AudioURL:   tr.AudioURL,
		}
	}
}

// GenerateAudio requests synthesized speech for arbitrary text.
func (c *HTTPClient) GenerateAudio(ctx context.Context, text, voiceID string) (string, error) {
	var out struct {
		Status   string `json:"status"`
		AudioURL string `json:"audio_url"`
	}
	if err := c.postJSON(ctx, "/generate-audio", map[string]any{"text": text, "voice_id": voiceID}, &out); err != nil {
		return "", err
	}
	if out.Status != "success" || out.AudioURL == "" {
		return "", &APIError{StatusCode: http.StatusOK, Detail: "audio generation " + out.Status}
	}
	return out.AudioURL, nil
}

// GenerateErrorAudio requests a spoken rendering of an error message.
func (c *HTTPClient) GenerateErrorAudio(ctx context.Context, message string) (string, error) {
	var out struct {
		Status   string `json:"status"`
		AudioURL string `json:"audio_url"`
	}
	if err := c.postJSON(ctx, "/generate-error-audio", map[string]any{"message": message}, &out); err != nil {
		return "", err
	}
	if out.Status != "success" || out.AudioURL == "" {
		return "", &APIError{StatusCode: http.StatusOK, Detail: "error audio " + out.Status}
	}
	return out.AudioURL, nil
}

// FetchHistory retrieves the backend's copy of a session's history.
func (c *HTTPClient) FetchHistory(ctx context.Context, sessionID string) ([]types.Turn, error) {
	var out struct {
		Messages []struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			Timestamp string `json:"timestamp"`
		} `json:"messages"`
	}
	if err := c.getJSON(ctx, "/agent/history/"+sessionID, &out); err != nil {
		return nil, err
	}
	turns := make([]types.Turn, 0, len(out.Messages))
	for _, m := range out.Messages {
		turns = append(turns, types.Turn{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: parseTimestamp(m.Timestamp),
		})
	}
	return turns, nil
}

// ClearHistory asks the backend to erase a session's history. Callers treat
// the outcome as best-effort.
func (c *HTTPClient) ClearHistory(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/agent/history/"+sessionID, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDoError("clear history", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return apiErrorFromResponse(resp)
	}
	return nil
}

// ListSessions fetches session summaries; read-only.
func (c *HTTPClient) ListSessions(ctx context.Context) ([]types.SessionSummary, error) {
	var out struct {
		Sessions []struct {
			SessionID    string `json:"session_id"`
			CreatedAt    string `json:"created_at"`
			UpdatedAt    string `json:"updated_at"`
			MessageCount int    `json:"message_count"`
		} `json:"sessions"`
	}
	if err := c.getJSON(ctx, "/agent/sessions", &out); err != nil {
		return nil, err
	}
	summaries := make([]types.SessionSummary, 0, len(out.Sessions))
	for _, s := range out.Sessions {
		summaries = append(summaries, types.SessionSummary{
			ID:           s.SessionID,
			CreatedAt:    parseTimestamp(s.CreatedAt),
			UpdatedAt:    parseTimestamp(s.UpdatedAt),
			MessageCount: s.MessageCount,
		})
	}
	return summaries, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDoError("post "+path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return apiErrorFromResponse(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDoError("get "+path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return apiErrorFromResponse(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func wrapDoError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Op: op}
	}
	return &TransportError{Op: op, Err: err}
}

// apiErrorFromResponse parses a non-2xx body. The backend sends {detail}
// where detail is either a plain string or {error, fallback}.
func apiErrorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(b) == 0 {
		return apiErr
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Detail = string(b)
		return apiErr
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		apiErr.Detail = s
		return apiErr
	}
	var obj struct {
		Error    string `json:"error"`
		Fallback string `json:"fallback"`
	}
	if err := json.Unmarshal(envelope.Detail, &obj); err == nil {
		apiErr.Detail = obj.Error
		apiErr.Fallback = obj.Fallback
	}
	return apiErr
}

// parseTimestamp handles both RFC3339 and the backend's naive isoformat.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
