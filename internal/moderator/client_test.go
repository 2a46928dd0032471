package moderator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orphanbars/orphanbars-api/pkg/config"
)

func moderatorServer(t *testing.T, verdict string, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		body := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": verdict}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestModerateApproved(t *testing.T) {
	server := moderatorServer(t, `{"approved":true,"flagged":false,"reasons":[],"plagiarism_risk":"none"}`, 0)
	defer server.Close()

	client := NewClient(config.ModeratorConfig{BaseURL: server.URL, Timeout: time.Second}, nil)
	result, err := client.Moderate(context.Background(), "clean bar")
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.False(t, result.Flagged)
	assert.Equal(t, "none", result.PlagiarismRisk)
}

func TestModerateRejectedWithReasons(t *testing.T) {
	server := moderatorServer(t, `{"approved":false,"flagged":true,"reasons":["hate speech"],"plagiarism_risk":"high","plagiarism_details":"matches a released track"}`, 0)
	defer server.Close()

	client := NewClient(config.ModeratorConfig{BaseURL: server.URL, Timeout: time.Second}, nil)
	result, err := client.Moderate(context.Background(), "bad bar")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, []string{"hate speech"}, result.Reasons)
	assert.Equal(t, "high", result.PlagiarismRisk)
}

func TestModerateTimeoutIsTransportError(t *testing.T) {
	server := moderatorServer(t, `{"approved":true}`, 200*time.Millisecond)
	defer server.Close()

	client := NewClient(config.ModeratorConfig{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := client.Moderate(context.Background(), "slow bar")
	assert.Error(t, err)
}

func TestModerateGarbageVerdict(t *testing.T) {
	server := moderatorServer(t, `not json at all`, 0)
	defer server.Close()

	client := NewClient(config.ModeratorConfig{BaseURL: server.URL, Timeout: time.Second}, nil)
	_, err := client.Moderate(context.Background(), "bar")
	assert.Error(t, err)
}

func TestModerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.ModeratorConfig{BaseURL: server.URL, Timeout: time.Second}, nil)
	_, err := client.Moderate(context.Background(), "bar")
	assert.Error(t, err)
}
