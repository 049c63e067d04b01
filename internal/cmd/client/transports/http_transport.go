package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brugmanjoost/drumbeat/internal/access"
	"github.com/brugmanjoost/drumbeat/internal/message"
)

// HTTPTransport implements MessagesTransport over the REST API.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport returns a transport for baseURL authenticating with token.
// The token is sent base64 encoded as a bearer credential.
func NewHTTPTransport(baseURL, token string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Result string          `json:"result"`
	Data   json.RawMessage `json:"data"`
}

func queuePath(queue string, parts ...string) string {
	p := "/" + url.PathEscape(queue)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// do sends the request and decodes an ok envelope's data into out.
func (t *HTTPTransport) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", access.EncodeToken(t.token))
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if env.Result != "ok" {
		return &ResultError{StatusCode: resp.StatusCode, Result: env.Result}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (t *HTTPTransport) Create(ctx context.Context, queue, subject string, requestBody json.RawMessage) (int64, error) {
	body := map[string]any{"subject": subject}
	if len(requestBody) > 0 {
		body["requestBody"] = requestBody
	}
	var id int64
	err := t.do(ctx, http.MethodPost, queuePath(queue), body, &id)
	return id, err
}

func (t *HTTPTransport) List(ctx context.Context, req ListRequest) ([]message.Message, error) {
	q := url.Values{}
	if req.Status != "" {
		q.Set("status", req.Status)
	}
	if req.Filter != "" {
		q.Set("filter", req.Filter)
	}
	path := queuePath(req.Queue) + "/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []message.Message
	err := t.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (t *HTTPTransport) Get(ctx context.Context, queue string, id int64) (message.Message, error) {
	var m message.Message
	err := t.do(ctx, http.MethodGet, queuePath(queue, strconv.FormatInt(id, 10)), nil, &m)
	return m, err
}

func (t *HTTPTransport) Cancel(ctx context.Context, queue string, id int64) error {
	return t.do(ctx, http.MethodPatch, queuePath(queue, strconv.FormatInt(id, 10), "cancel"), nil, nil)
}

func (t *HTTPTransport) Postback(ctx context.Context, queue string, id int64, status string, responseBody json.RawMessage) error {
	body := map[string]any{"status": status}
	if len(responseBody) > 0 {
		body["responseBody"] = responseBody
	}
	return t.do(ctx, http.MethodPatch, queuePath(queue, strconv.FormatInt(id, 10), "postback"), body, nil)
}

func (t *HTTPTransport) Delete(ctx context.Context, queue string, id int64) error {
	return t.do(ctx, http.MethodDelete, queuePath(queue, strconv.FormatInt(id, 10)), nil, nil)
}

// Health calls /v1/healthz, which does not use the envelope.
func (t *HTTPTransport) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/v1/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server not serving (http %d)", resp.StatusCode)
	}
	return nil
}
