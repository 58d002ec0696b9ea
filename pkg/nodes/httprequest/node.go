// Package httprequest provides the http-request node.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/template"
)

const NodeType = "http-request"

const (
	DefaultTimeout = 10 * time.Second
	retryInterval  = 200 * time.Millisecond
)

// HTTPRequestNode performs one HTTP request per execution, retrying transport
// failures. Any response, whatever its status, counts as success.
type HTTPRequestNode struct {
	id     string
	config HTTPRequestConfig
	client *http.Client
}

// HTTPRequestConfig defines the configuration for HTTP request nodes.
type HTTPRequestConfig struct {
	URL          string
	Method       string
	Headers      map[string]any
	Query        map[string]any
	Body         any
	Timeout      time.Duration
	Retries      int
	ResponseType string
}

// NewHTTPRequestNode creates a new HTTP request node.
func NewHTTPRequestNode(id string, config map[string]any) (*HTTPRequestNode, error) {
	rawURL, ok := config["url"].(string)
	if !ok {
		return nil, errors.New("missing required field 'url'")
	}

	headers, err := nodes.JSONObject(config, "headers")
	if err != nil {
		return nil, err
	}

	query, err := nodes.JSONObject(config, "query")
	if err != nil {
		return nil, err
	}

	timeout := nodes.Millis(config, "timeout", DefaultTimeout)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPRequestNode{
		id: id,
		config: HTTPRequestConfig{
			URL:          rawURL,
			Method:       strings.ToUpper(nodes.String(config, "method", http.MethodGet)),
			Headers:      headers,
			Query:        query,
			Body:         parseBody(config["body"]),
			Timeout:      timeout,
			Retries:      max(0, int(nodes.Number(config, "retries", 0))),
			ResponseType: nodes.String(config, "responseType", "json"),
		},
		client: &http.Client{},
	}, nil
}

// parseBody keeps objects as-is and decodes JSON strings, falling back to text.
func parseBody(raw any) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}

	if s == "" {
		return nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		return decoded
	}

	return s
}

// ID returns the node ID.
func (n *HTTPRequestNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *HTTPRequestNode) Type() string {
	return NodeType
}

type response struct {
	status  int
	headers map[string]any
	body    any
}

// Execute performs the HTTP request.
func (n *HTTPRequestNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	scope := template.Scope{Input: input}
	if nctx != nil {
		scope.State = nctx.State
	}

	rawURL, err := template.Fill(n.config.URL, scope, template.Strict())
	if err != nil {
		return models.Failed(fmt.Sprintf("failed to render URL template: %v", err)), nil
	}

	if rawURL == "" {
		return models.Failed("missing url"), nil
	}

	target := withQuery(rawURL, n.config.Query)
	start := time.Now()
	attempt := 0

	resp, err := backoff.Retry(ctx, func() (*response, error) {
		attempt++
		nctx.Log(models.LogLevelLog, fmt.Sprintf("attempt %d %s %s", attempt, n.config.Method, target), nil)

		return n.do(ctx, target)
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(uint(n.config.Retries+1)),
	)
	if err != nil {
		return models.NodeResult{
			Success: false,
			Error:   fmt.Sprintf("request failed: %v", err),
			Output: map[string]any{
				"status":   nil,
				"headers":  map[string]any{},
				"body":     nil,
				"duration": time.Since(start).Milliseconds(),
			},
		}, nil
	}

	return models.Succeeded(map[string]any{
		"status":   resp.status,
		"headers":  resp.headers,
		"body":     resp.body,
		"duration": time.Since(start).Milliseconds(),
	}), nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInterval
	b.RandomizationFactor = 0
	b.Multiplier = 2

	return b
}

// do performs a single attempt. Failures reading a received response are not retried.
func (n *HTTPRequestNode) do(ctx context.Context, target string) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	body, contentType, err := n.encodeBody()
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, target, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	for key, value := range n.config.Headers {
		req.Header.Set(key, template.Stringify(value))
	}

	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = res.Body.Close()
	}()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to read response: %w", err))
	}

	headers := make(map[string]any, len(res.Header))
	for key, values := range res.Header {
		headers[strings.ToLower(key)] = strings.Join(values, ", ")
	}

	return &response{
		status:  res.StatusCode,
		headers: headers,
		body:    n.decodeResponse(raw),
	}, nil
}

func (n *HTTPRequestNode) encodeBody() (io.Reader, string, error) {
	switch b := n.config.Body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode body: %w", err)
		}

		return bytes.NewReader(raw), "application/json", nil
	}
}

// decodeResponse parses JSON bodies when asked to, falling back to text.
func (n *HTTPRequestNode) decodeResponse(raw []byte) any {
	if n.config.ResponseType != "json" {
		return string(raw)
	}

	if len(raw) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}

	return decoded
}

// withQuery appends query params, repeating array values.
func withQuery(rawURL string, query map[string]any) string {
	if len(query) == 0 {
		return rawURL
	}

	values := url.Values{}

	for key, value := range query {
		switch v := value.(type) {
		case nil:
		case []any:
			for _, item := range v {
				values.Add(key, template.Stringify(item))
			}
		default:
			values.Set(key, template.Stringify(v))
		}
	}

	if len(values) == 0 {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}

		return rawURL + sep + values.Encode()
	}

	existing := u.Query()
	for key, vs := range values {
		existing.Del(key)

		for _, v := range vs {
			existing.Add(key, v)
		}
	}

	u.RawQuery = existing.Encode()

	return u.String()
}
