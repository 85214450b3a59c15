package scoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&APIError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsRetryable(&APIError{StatusCode: http.StatusInternalServerError}))
	assert.True(t, IsRetryable(&APIError{StatusCode: http.StatusBadGateway}))
	assert.False(t, IsRetryable(&APIError{StatusCode: http.StatusBadRequest}))
	assert.False(t, IsRetryable(&APIError{StatusCode: http.StatusUnauthorized}))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

func TestScoreSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/score", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": false, "extracted_text": "{\"score\": 42}"}`))
	}))
	defer server.Close()

	client := New("test-key", server.URL, 60, 0)
	defer client.Close()

	text, err := client.Score(context.Background(), "prompt", "instructions")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 42}`, text)
}

func TestScoreNonRetryableStatusFailsFast(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad prompt"))
	}))
	defer server.Close()

	client := New("test-key", server.URL, 60, 3)
	defer client.Close()

	_, err := client.Score(context.Background(), "prompt", "instructions")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 1, calls, "client errors must not be retried")
}

func TestScoreGatewayReportedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": true, "detail": "model overloaded"}`))
	}))
	defer server.Close()

	client := New("test-key", server.URL, 60, 0)
	defer client.Close()

	_, err := client.Score(context.Background(), "prompt", "instructions")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Detail, "model overloaded")
}
