package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/adapters/webhook"
)

func TestValidateNotSSRF_BlocksInternalTargets(t *testing.T) {
	blocked := []string{
		"http://127.0.0.1/hook",
		"http://localhost/hook",
		"http://10.0.0.5/hook",
		"http://172.16.3.4/hook",
		"http://192.168.1.20/hook",
		"http://169.254.169.254/latest/meta-data",
		"http://0.0.0.0/hook",
		"http://[::1]/hook",
	}
	for _, u := range blocked {
		assert.Error(t, webhook.ValidateNotSSRF(u), "expected %q to be blocked", u)
	}
}

func TestValidateNotSSRF_AllowsPublicAddresses(t *testing.T) {
	assert.NoError(t, webhook.ValidateNotSSRF("https://93.184.216.34/hook"))
	assert.NoError(t, webhook.ValidateNotSSRF("http://8.8.8.8/notify"))
}

func TestValidateNotSSRF_RejectsBadURLs(t *testing.T) {
	for _, u := range []string{"ftp://example.com/x", "not a url", "http://", "file:///etc/passwd"} {
		assert.Error(t, webhook.ValidateNotSSRF(u), "expected %q to be rejected", u)
	}
}

func TestSend_BlocksPrivateTargetByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("a blocklisted target must never be contacted")
	}))
	defer srv.Close()

	s := webhook.New(time.Second, false)
	err := s.Send(context.Background(), webhook.Target{Kind: webhook.KindGeneric, URL: srv.URL}, "t", "m")
	assert.Error(t, err)
}

func TestSend_GenericPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	s := webhook.New(time.Second, true) // local test server needs the private-host opt-in
	err := s.Send(context.Background(), webhook.Target{Kind: webhook.KindGeneric, URL: srv.URL}, "Spool low", "Spool 12 is below 100g")

	require.NoError(t, err)
	assert.Equal(t, "Spool low", got["title"])
	assert.Equal(t, "Spool 12 is below 100g", got["message"])
}

func TestSend_DiscordPayloadShape(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	s := webhook.New(time.Second, true)
	err := s.Send(context.Background(), webhook.Target{Kind: webhook.KindDiscord, URL: srv.URL}, "Job failed", "Benchy failed on bay-1")

	require.NoError(t, err)
	assert.Contains(t, got["content"], "**Job failed**")
	assert.Contains(t, got["content"], "Benchy failed on bay-1")
}

func TestSend_NonSuccessStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := webhook.New(time.Second, true)
	err := s.Send(context.Background(), webhook.Target{Kind: webhook.KindGeneric, URL: srv.URL}, "t", "m")
	assert.Error(t, err)
}
