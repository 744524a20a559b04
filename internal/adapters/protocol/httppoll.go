package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

// pollInterval is how often HTTPPollAdapter re-fetches printer state once
// connected, polling /printer/info and /printer/objects/query.
const pollInterval = 2 * time.Second

// HTTPPollAdapter speaks the JSON-over-HTTP vendor transport: no persistent
// connection, just periodic GETs against /printer/info and
// /printer/objects/query, translated into the same normalized StatusFrame
// every other variant produces.
type HTTPPollAdapter struct {
	printerID int64
	baseURL   string
	apiKey    string
	client    *http.Client

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

// NewHTTPPollAdapter constructs an HTTPPollAdapter. creds.Secret carries the
// API key used on every request.
func NewHTTPPollAdapter(printerID int64, creds adapter.Credentials) *HTTPPollAdapter {
	base := creds.Host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &HTTPPollAdapter{
		printerID: printerID,
		baseURL:   strings.TrimRight(base, "/"),
		apiKey:    creds.Secret,
		client:    &http.Client{Timeout: 10 * time.Second, Transport: &http.Transport{TLSClientConfig: &tls.Config{}}},
	}
}

func (a *HTTPPollAdapter) request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
	}
	return a.client.Do(req)
}

func (a *HTTPPollAdapter) fetchOnce(ctx context.Context) (adapter.StatusFrame, error) {
	resp, err := a.request(ctx, http.MethodGet, "/printer/objects/query", nil)
	if err != nil {
		return adapter.StatusFrame{}, shared.NewTransportError("unreachable", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return adapter.StatusFrame{}, shared.NewTransportError("auth_rejected", "printer rejected API key")
	}
	if resp.StatusCode != http.StatusOK {
		return adapter.StatusFrame{}, shared.NewTransportError("protocol_violation", fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	var wf wireFrame
	if err := json.NewDecoder(resp.Body).Decode(&wf); err != nil {
		return adapter.StatusFrame{}, shared.NewTransportError("protocol_violation", fmt.Sprintf("decode report: %v", err))
	}
	return wf.toStatusFrame(a.printerID, time.Now()), nil
}

// Connect fetches the first frame synchronously, then launches a polling
// goroutine feeding sink every pollInterval until Disconnect or ctx ends.
func (a *HTTPPollAdapter) Connect(ctx context.Context, sink chan<- adapter.StatusFrame) error {
	first, err := a.fetchOnce(ctx)
	if err != nil {
		return err
	}
	select {
	case sink <- first:
	default:
	}

	pollCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				frame, err := a.fetchOnce(pollCtx)
				if err != nil {
					continue // transient poll failure; the session's own liveness watchdog notices the gap
				}
				select {
				case sink <- frame:
				default:
					select {
					case <-sink:
					default:
					}
					select {
					case sink <- frame:
					default:
					}
				}
			}
		}
	}()
	return nil
}

// Disconnect stops the polling goroutine; safe to call from any state.
func (a *HTTPPollAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Upload posts the artifact as an authenticated multipart form.
func (a *HTTPPollAdapter) Upload(ctx context.Context, artifactBytes []byte, remoteName string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", remoteName)
	if err != nil {
		return fmt.Errorf("protocol: build multipart upload: %w", err)
	}
	if _, err := part.Write(artifactBytes); err != nil {
		return fmt.Errorf("protocol: write multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("protocol: finalize multipart upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/server/files/upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return shared.NewTransportError("timed_out", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return shared.NewTransportError("protocol_violation", fmt.Sprintf("upload rejected with status %d", resp.StatusCode))
	}
	return nil
}

func (a *HTTPPollAdapter) command(ctx context.Context, env commandEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	resp, err := a.request(ctx, http.MethodPost, "/printer/gcode/script", bytes.NewReader(payload))
	if err != nil {
		return shared.NewTransportError("unreachable", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return shared.NewTransportError("protocol_violation", fmt.Sprintf("command %q rejected with status %d", env.Command, resp.StatusCode))
	}
	return nil
}

func (a *HTTPPollAdapter) StartPrint(ctx context.Context, opts adapter.StartOptions) error {
	return a.command(ctx, commandEnvelope{Command: "start_print", Params: map[string]string{"remote_name": opts.RemoteName, "use_ams": boolParam(opts.UseAMS)}})
}

func (a *HTTPPollAdapter) Pause(ctx context.Context) error  { return a.command(ctx, commandEnvelope{Command: "pause"}) }
func (a *HTTPPollAdapter) Resume(ctx context.Context) error { return a.command(ctx, commandEnvelope{Command: "resume"}) }
func (a *HTTPPollAdapter) Stop(ctx context.Context) error   { return a.command(ctx, commandEnvelope{Command: "stop"}) }

func (a *HTTPPollAdapter) SetFanSpeed(ctx context.Context, pct int) error {
	return a.command(ctx, commandEnvelope{Command: "set_fan_speed", Params: map[string]string{"pct": intParam(pct)}})
}

func (a *HTTPPollAdapter) SetLights(ctx context.Context, on bool) error {
	return a.command(ctx, commandEnvelope{Command: "set_lights", Params: map[string]string{"on": boolParam(on)}})
}

func (a *HTTPPollAdapter) SkipObjects(ctx context.Context, objectIDs []string) error {
	return a.command(ctx, commandEnvelope{Command: "skip_objects", Params: map[string]string{"object_ids": strings.Join(objectIDs, ",")}})
}

// TestConnection probes /printer/info without binding a polling session.
func (a *HTTPPollAdapter) TestConnection(ctx context.Context) error {
	resp, err := a.request(ctx, http.MethodGet, "/printer/info", nil)
	if err != nil {
		return shared.NewTransportError("unreachable", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return shared.NewTransportError("auth_rejected", "printer rejected API key")
	}
	if resp.StatusCode != http.StatusOK {
		return shared.NewTransportError("protocol_violation", fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
