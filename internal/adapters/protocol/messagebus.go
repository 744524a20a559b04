package protocol

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/shared"
)

// messageBusPort is the default TLS port for the message-bus vendor.
const messageBusPort = 8883

// connectDeadline bounds how long Connect waits for the first StatusFrame
// before giving up.
const connectDeadline = 15 * time.Second

// MessageBusAdapter speaks the TLS publish/subscribe transport: one
// persistent connection carries newline-delimited JSON report frames on a
// per-device report topic and accepts JSON command envelopes on a command
// topic. Credentials are the pipe-separated "serial|access_code"
// pair, never logged and held only for the life of the
// connection.
type MessageBusAdapter struct {
	printerID int64
	host      string
	serial    string
	accessCode string

	mu       sync.Mutex
	conn     net.Conn
	uploadMu sync.Mutex
}

// NewMessageBusAdapter constructs a MessageBusAdapter. creds.Secret carries
// the raw "serial|access_code" blob as decrypted by the Sealer.
func NewMessageBusAdapter(printerID int64, creds adapter.Credentials) *MessageBusAdapter {
	serial, accessCode := splitCredentials(creds.Secret)
	return &MessageBusAdapter{printerID: printerID, host: creds.Host, serial: serial, accessCode: accessCode}
}

func splitCredentials(secret string) (serial, accessCode string) {
	parts := strings.SplitN(secret, "|", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func (a *MessageBusAdapter) dial(ctx context.Context) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", a.host, messageBusPort)
	dialer := &net.Dialer{Timeout: connectDeadline}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: a.host})
	if err != nil {
		return nil, shared.NewTransportError("unreachable", fmt.Sprintf("dial %s: %v", addr, err))
	}
	return conn, nil
}

// Connect establishes the TLS connection, sends the subscribe handshake for
// this device's report topic, and spawns the reader goroutine that decodes
// frames into sink. It returns once the first frame has arrived or
// connectDeadline elapses.
func (a *MessageBusAdapter) Connect(ctx context.Context, sink chan<- adapter.StatusFrame) error {
	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}

	handshake := commandEnvelope{Command: "subscribe", Params: map[string]string{"serial": a.serial, "access_code": a.accessCode}}
	if err := writeEnvelope(conn, handshake); err != nil {
		conn.Close()
		return shared.NewTransportError("auth_rejected", fmt.Sprintf("subscribe handshake: %v", err))
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	first := make(chan struct{}, 1)
	go a.readLoop(conn, sink, first)

	select {
	case <-first:
		return nil
	case <-time.After(connectDeadline):
		return shared.NewTransportError("timed_out", "no status frame within connect deadline")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *MessageBusAdapter) readLoop(conn net.Conn, sink chan<- adapter.StatusFrame, first chan struct{}) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	reportedFirst := false
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wf wireFrame
		if err := json.Unmarshal(line, &wf); err != nil {
			continue // protocol violation on one frame; keep the connection alive
		}
		frame := wf.toStatusFrame(a.printerID, time.Now())
		select {
		case sink <- frame:
		default:
			// backpressure: drop the oldest non-terminal frame rather than
			// block the adapter; a blocking send here would
			// stall the TLS read loop for every printer behind a slow
			// subscriber.
			select {
			case <-sink:
			default:
			}
			select {
			case sink <- frame:
			default:
			}
		}
		if !reportedFirst {
			reportedFirst = true
			select {
			case first <- struct{}{}:
			default:
			}
		}
	}
}

// Disconnect tears down the TLS connection; safe to call from any state.
func (a *MessageBusAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (a *MessageBusAdapter) send(env commandEnvelope) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return shared.NewTransportError("unreachable", "no active message-bus connection")
	}
	return writeEnvelope(conn, env)
}

func writeEnvelope(conn net.Conn, env commandEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = conn.Write(payload)
	return err
}

// Upload transfers the artifact over a dedicated chunked command sequence:
// a begin-upload command carrying the remote name and size, followed by
// base64 chunk commands, and an end-upload command the peer acknowledges.
// Serialized per adapter instance — only one upload may be in flight per
// printer at a time.
func (a *MessageBusAdapter) Upload(ctx context.Context, artifactBytes []byte, remoteName string) error {
	a.uploadMu.Lock()
	defer a.uploadMu.Unlock()

	if err := a.send(commandEnvelope{Command: "upload_begin", Params: map[string]string{"remote_name": remoteName, "size": intParam(len(artifactBytes))}}); err != nil {
		return shared.NewTransportError("timed_out", fmt.Sprintf("upload_begin: %v", err))
	}
	const chunkSize = 256 * 1024
	for offset := 0; offset < len(artifactBytes); offset += chunkSize {
		end := offset + chunkSize
		if end > len(artifactBytes) {
			end = len(artifactBytes)
		}
		if err := a.send(commandEnvelope{Command: "upload_chunk", Params: map[string]string{"remote_name": remoteName, "data": encodeChunk(artifactBytes[offset:end])}}); err != nil {
			return shared.NewTransportError("timed_out", fmt.Sprintf("upload_chunk at offset %d: %v", offset, err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := a.send(commandEnvelope{Command: "upload_end", Params: map[string]string{"remote_name": remoteName}}); err != nil {
		return shared.NewTransportError("timed_out", fmt.Sprintf("upload_end: %v", err))
	}
	return nil
}

// StartPrint sends the start command; acceptance is observed later via a
// StatusFrame. It returns once the command is written, not when printing
// ends.
func (a *MessageBusAdapter) StartPrint(ctx context.Context, opts adapter.StartOptions) error {
	return a.send(commandEnvelope{Command: "start_print", Params: map[string]string{"remote_name": opts.RemoteName, "use_ams": boolParam(opts.UseAMS)}})
}

func (a *MessageBusAdapter) Pause(ctx context.Context) error { return a.send(commandEnvelope{Command: "pause"}) }
func (a *MessageBusAdapter) Resume(ctx context.Context) error { return a.send(commandEnvelope{Command: "resume"}) }
func (a *MessageBusAdapter) Stop(ctx context.Context) error   { return a.send(commandEnvelope{Command: "stop"}) }

func (a *MessageBusAdapter) SetFanSpeed(ctx context.Context, pct int) error {
	return a.send(commandEnvelope{Command: "set_fan_speed", Params: map[string]string{"pct": intParam(pct)}})
}

func (a *MessageBusAdapter) SetLights(ctx context.Context, on bool) error {
	return a.send(commandEnvelope{Command: "set_lights", Params: map[string]string{"on": boolParam(on)}})
}

func (a *MessageBusAdapter) SkipObjects(ctx context.Context, objectIDs []string) error {
	return a.send(commandEnvelope{Command: "skip_objects", Params: map[string]string{"object_ids": strings.Join(objectIDs, ",")}})
}

// TestConnection probes reachability without binding a session: dial and
// handshake, then tear down immediately.
func (a *MessageBusAdapter) TestConnection(ctx context.Context) error {
	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return writeEnvelope(conn, commandEnvelope{Command: "ping"})
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
