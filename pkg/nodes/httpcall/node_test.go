package httpcall

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestNode_DeliversRenderedPayload(t *testing.T) {
	var received string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = string(body)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	node, err := NewNode(map[string]any{
		"url":  server.URL,
		"body": `{"member": "{{.trigger_data.member_id}}"}`,
	})
	require.NoError(t, err)

	result, err := node.Execute(context.Background(), &models.ExecutionContext{
		TriggerData: map[string]any{"member_id": "m-42"},
	}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, `{"member": "m-42"}`, received)
	assert.Equal(t, http.StatusOK, result.Output["status_code"])
	assert.Equal(t, 0, result.Output["retries"])
}

func TestNode_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	node, err := NewNode(map[string]any{
		"url":   server.URL,
		"retry": map[string]any{"base_delay_ms": float64(1)},
	})
	require.NoError(t, err)

	result, err := node.Execute(context.Background(), &models.ExecutionContext{}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, result.Retries)
}

func TestNode_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	node, err := NewNode(map[string]any{
		"url":   server.URL,
		"retry": map[string]any{"base_delay_ms": float64(1)},
	})
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), &models.ExecutionContext{}, testLogger())

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "permanent failures get a single attempt")
}

func TestNewNode_Validation(t *testing.T) {
	_, err := NewNode(map[string]any{})
	assert.ErrorIs(t, err, ErrURLRequired)

	_, err = NewNode(map[string]any{"url": "http://example.com", "method": "TRACE"})
	assert.ErrorIs(t, err, ErrMethodInvalid)
}
