package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

// filePollInterval mirrors HTTPPollAdapter's cadence; the file-session
// vendor reports state the same way once authenticated.
const filePollInterval = 2 * time.Second

// FileSessionAdapter speaks the session-cookie upload vendor transport: a
// login call exchanges credentials for a session cookie (held in an
// http.CookieJar), after which /api endpoints and multipart uploads ride
// that cookie like a browser session.
type FileSessionAdapter struct {
	printerID int64
	baseURL   string
	username  string
	password  string
	client    *http.Client

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

// NewFileSessionAdapter constructs a FileSessionAdapter. creds.Secret
// carries "username|password"; an absent "|" treats the whole secret as a
// password with no username.
func NewFileSessionAdapter(printerID int64, creds adapter.Credentials) *FileSessionAdapter {
	username, password := splitCredentials(creds.Secret)
	jar, _ := cookiejar.New(nil)
	base := creds.Host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &FileSessionAdapter{
		printerID: printerID,
		baseURL:   strings.TrimRight(base, "/"),
		username:  username,
		password:  password,
		client:    &http.Client{Timeout: 10 * time.Second, Jar: jar},
	}
}

func (a *FileSessionAdapter) login(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]string{"username": a.username, "password": a.password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return shared.NewTransportError("unreachable", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return shared.NewTransportError("auth_rejected", "session login rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return shared.NewTransportError("protocol_violation", fmt.Sprintf("login returned status %d", resp.StatusCode))
	}
	// The jar now holds the session cookie; subsequent requests on a.client
	// carry it automatically.
	return nil
}

func (a *FileSessionAdapter) fetchOnce(ctx context.Context) (adapter.StatusFrame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/job", nil)
	if err != nil {
		return adapter.StatusFrame{}, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return adapter.StatusFrame{}, shared.NewTransportError("unreachable", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return adapter.StatusFrame{}, shared.NewTransportError("auth_rejected", "session expired")
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

// Connect logs in, fetches the first frame, and launches a polling
// goroutine that re-authenticates transparently if the session expires.
func (a *FileSessionAdapter) Connect(ctx context.Context, sink chan<- adapter.StatusFrame) error {
	if err := a.login(ctx); err != nil {
		return err
	}
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
		ticker := time.NewTicker(filePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				frame, err := a.fetchOnce(pollCtx)
				if err != nil {
					if te, ok := err.(*shared.TransportError); ok && te.Kind == "auth_rejected" {
						_ = a.login(pollCtx)
					}
					continue
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

// Disconnect stops polling; the session cookie is simply dropped with the
// client, matching the vendor's own session expiry behavior.
func (a *FileSessionAdapter) Disconnect(ctx context.Context) error {
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

// Upload posts the artifact as a cookie-authenticated multipart form.
func (a *FileSessionAdapter) Upload(ctx context.Context, artifactBytes []byte, remoteName string) error {
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/files/local", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
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

func (a *FileSessionAdapter) command(ctx context.Context, env commandEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/job", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return shared.NewTransportError("unreachable", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return shared.NewTransportError("protocol_violation", fmt.Sprintf("command %q rejected with status %d", env.Command, resp.StatusCode))
	}
	return nil
}

func (a *FileSessionAdapter) StartPrint(ctx context.Context, opts adapter.StartOptions) error {
	return a.command(ctx, commandEnvelope{Command: "start_print", Params: map[string]string{"remote_name": opts.RemoteName}})
}

func (a *FileSessionAdapter) Pause(ctx context.Context) error  { return a.command(ctx, commandEnvelope{Command: "pause"}) }
func (a *FileSessionAdapter) Resume(ctx context.Context) error { return a.command(ctx, commandEnvelope{Command: "resume"}) }
func (a *FileSessionAdapter) Stop(ctx context.Context) error   { return a.command(ctx, commandEnvelope{Command: "cancel"}) }

func (a *FileSessionAdapter) SetFanSpeed(ctx context.Context, pct int) error {
	return a.command(ctx, commandEnvelope{Command: "set_fan_speed", Params: map[string]string{"pct": intParam(pct)}})
}

func (a *FileSessionAdapter) SetLights(ctx context.Context, on bool) error {
	return a.command(ctx, commandEnvelope{Command: "set_lights", Params: map[string]string{"on": boolParam(on)}})
}

func (a *FileSessionAdapter) SkipObjects(ctx context.Context, objectIDs []string) error {
	return a.command(ctx, commandEnvelope{Command: "skip_objects", Params: map[string]string{"object_ids": strings.Join(objectIDs, ",")}})
}

// TestConnection attempts a login and immediately discards the session.
func (a *FileSessionAdapter) TestConnection(ctx context.Context) error {
	return a.login(ctx)
}
