// Package httpcall provides the outbound webhook node, delivering workflow
// data to external HTTP endpoints with retry and backoff.
package httpcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/retry"
	"github.com/atlasfit/automation/pkg/template"
)

const defaultTimeoutSeconds = 30

var (
	// ErrURLRequired is returned when the node configuration has no URL.
	ErrURLRequired = errors.New("missing required field 'url'")
	// ErrMethodInvalid is returned when the configured HTTP method is not allowed.
	ErrMethodInvalid = errors.New("invalid HTTP method")
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Node delivers a rendered payload to an external endpoint. Transient failures
// (5xx, 429, network errors) are retried with exponential backoff; auth
// failures are surfaced immediately.
type Node struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration

	client     *retry.Client
	httpClient *http.Client
}

// NewNode creates an outbound webhook node from configuration.
func NewNode(config map[string]any) (*Node, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, ErrURLRequired
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	method = strings.ToUpper(method)
	if !allowedMethods[method] {
		return nil, fmt.Errorf("%w: %s", ErrMethodInvalid, method)
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	retryConfig := retry.DefaultConfig()
	if retryMap, ok := config["retry"].(map[string]any); ok {
		if attempts, ok := retryMap["max_retries"].(float64); ok {
			retryConfig.MaxRetries = int(attempts)
		}

		if base, ok := retryMap["base_delay_ms"].(float64); ok {
			retryConfig.BaseDelay = time.Duration(base) * time.Millisecond
		}
	}

	return &Node{
		URL:        url,
		Method:     method,
		Headers:    headers,
		Body:       body,
		Timeout:    defaultTimeoutSeconds * time.Second,
		client:     retry.NewClient(retryConfig),
		httpClient: &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
	}, nil
}

// Execute delivers the payload, retrying transient failures.
func (n *Node) Execute(ctx context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	logger = logger.With("module", "httpcall_node")
	logger.InfoContext(ctx, "Executing outbound webhook", "method", n.Method)

	url, body, headers, err := n.render(executionCtx)
	if err != nil {
		return nil, err
	}

	result := n.client.Do(ctx, func(ctx context.Context) (map[string]any, error) {
		return n.deliver(ctx, url, body, headers, logger)
	})

	if !result.Success {
		return nil, fmt.Errorf("outbound webhook failed after %d retries: %w", result.Retries, result.Err)
	}

	result.Data["retries"] = result.Retries

	return &protocol.NodeResult{
		Output:  result.Data,
		Retries: result.Retries,
	}, nil
}

func (n *Node) render(executionCtx *models.ExecutionContext) (string, string, map[string]string, error) {
	urlResult, err := template.RenderWithContext(n.URL, executionCtx)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to render url template: %w", err)
	}

	url := fmt.Sprintf("%v", urlResult)

	body := ""

	if n.Body != "" {
		bodyResult, err := template.RenderWithContext(n.Body, executionCtx)
		if err != nil {
			return "", "", nil, fmt.Errorf("failed to render body template: %w", err)
		}

		if str, ok := bodyResult.(string); ok {
			body = str
		} else {
			bodyBytes, err := json.Marshal(bodyResult)
			if err != nil {
				return "", "", nil, fmt.Errorf("failed to marshal body: %w", err)
			}

			body = string(bodyBytes)
		}
	}

	headers := make(map[string]string, len(n.Headers))

	for key, value := range n.Headers {
		headerResult, err := template.RenderWithContext(value, executionCtx)
		if err != nil {
			return "", "", nil, fmt.Errorf("failed to render header '%s' template: %w", key, err)
		}

		headers[key] = fmt.Sprintf("%v", headerResult)
	}

	return url, body, headers, nil
}

func (n *Node) deliver(ctx context.Context, url, body string, headers map[string]string, logger *slog.Logger) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, n.Method, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, retry.NewError(strconv.Itoa(resp.StatusCode),
			fmt.Sprintf("endpoint returned status %d", resp.StatusCode))
	}

	var respBody any

	err = json.Unmarshal(respBytes, &respBody)
	if err != nil {
		respBody = string(respBytes)
	}

	logger.InfoContext(ctx, "Outbound webhook delivered", "status_code", resp.StatusCode)

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        respBody,
	}, nil
}
