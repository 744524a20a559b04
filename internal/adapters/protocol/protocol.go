// Package protocol holds the concrete ProtocolAdapter variants: MessageBus
// (TLS pub/sub), HTTPPoll (JSON-over-HTTP polling), and FileSession
// (session-cookie multipart upload). Each realizes
// internal/domain/adapter.Printer.
//
// No single vendor's proprietary wire protocol is reproduced here; the
// variants implement the uniform contract with a generic wire format.
package protocol

import (
	"context"
	"fmt"

	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/printer"
)

// TestConnectionByKind probes reachability for a host/credential pair that
// may not yet belong to a persisted Printer — `printer test` runs before
// any Printer record exists.
func TestConnectionByKind(ctx context.Context, kind printer.Kind, creds adapter.Credentials) error {
	var ap adapter.Printer
	switch kind {
	case printer.KindMessageBus:
		ap = NewMessageBusAdapter(0, creds)
	case printer.KindHTTPPoll:
		ap = NewHTTPPollAdapter(0, creds)
	case printer.KindFileSession:
		ap = NewFileSessionAdapter(0, creds)
	default:
		return fmt.Errorf("protocol: unknown printer kind %q", kind)
	}
	return ap.TestConnection(ctx)
}

// NewForPrinter builds the ProtocolAdapter variant matching p.Kind.
func NewForPrinter(p *printer.Printer, creds adapter.Credentials) (adapter.Printer, error) {
	switch p.Kind {
	case printer.KindMessageBus:
		return NewMessageBusAdapter(p.ID, creds), nil
	case printer.KindHTTPPoll:
		return NewHTTPPollAdapter(p.ID, creds), nil
	case printer.KindFileSession:
		return NewFileSessionAdapter(p.ID, creds), nil
	default:
		return nil, fmt.Errorf("protocol: unknown printer kind %q", p.Kind)
	}
}
