package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// HTTP Helpers
// =============================================================================

// ServersURL returns the servers collection URL for the e2e tenant.
func ServersURL(suffix string) string {
	return baseURL + "/v2/" + tenantID + "/servers" + suffix
}

// HTTPGet performs a GET request.
func HTTPGet(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := testClient.Get(url)
	require.NoError(t, err)
	return resp
}

// HTTPPost performs a POST request with a JSON body.
func HTTPPost(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := testClient.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

// DecodeJSON reads and decodes a response body, closing it.
func DecodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

// RequireStatus fails the test with the response body when the status differs.
func RequireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode == want {
		return
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
}

// =============================================================================
// Eventually Helper
// =============================================================================

// Eventually retries a condition function until it returns true or timeout.
func Eventually(t *testing.T, timeout, interval time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

func postRaw(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := testClient.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}
