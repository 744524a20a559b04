// Package webhook sends Alert notifications to chat-platform and generic
// JSON webhook targets. Every target is validated against an SSRF
// blocklist before any request is made.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Kind identifies which wire format a Target expects.
type Kind string

const (
	KindDiscord  Kind = "discord"
	KindSlack    Kind = "slack"
	KindNtfy     Kind = "ntfy"
	KindTelegram Kind = "telegram"
	KindPushover Kind = "pushover"
	KindWhatsApp Kind = "whatsapp"
	KindGeneric  Kind = "generic"
)

// Target is one configured webhook destination.
type Target struct {
	Kind Kind
	URL  string

	// TelegramChatID, PushoverUser, and WhatsAppPhoneID/WhatsAppTo
	// carry the platform-specific fields their formatters need; only the
	// fields relevant to Kind are read.
	TelegramChatID  string
	PushoverUser    string
	WhatsAppPhoneID string
	WhatsAppTo      string
}

// Sender posts Alert notifications to webhook Targets. Outbound requests
// share one rate limiter so a burst of fleet events cannot trip a chat
// platform's abuse throttling.
type Sender struct {
	client           *http.Client
	allowPrivateHost bool
	limiter          *rate.Limiter
}

// New constructs a Sender. allowPrivateHost disables the SSRF blocklist,
// intended only for local/dev deployments that explicitly opt in
// (config.WebhookConfig.AllowPrivateHost).
func New(timeout time.Duration, allowPrivateHost bool) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		client:           &http.Client{Timeout: timeout},
		allowPrivateHost: allowPrivateHost,
		limiter:          rate.NewLimiter(rate.Limit(5), 10),
	}
}

// Send delivers title/message to target's webhook endpoint in its
// platform-specific shape.
func (s *Sender) Send(ctx context.Context, target Target, title, message string) error {
	if !s.allowPrivateHost {
		if err := ValidateNotSSRF(target.URL); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook: rate limit wait: %w", err)
	}

	body, err := s.buildBody(target, title, message)
	if err != nil {
		return fmt.Errorf("webhook: build body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: target returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *Sender) buildBody(target Target, title, message string) ([]byte, error) {
	switch target.Kind {
	case KindDiscord:
		return json.Marshal(map[string]string{"content": fmt.Sprintf("**%s**\n%s", title, message)})
	case KindSlack:
		return json.Marshal(map[string]string{"text": fmt.Sprintf("*%s*\n%s", title, message)})
	case KindNtfy:
		return json.Marshal(map[string]string{"title": title, "message": message})
	case KindTelegram:
		return json.Marshal(map[string]string{
			"chat_id": target.TelegramChatID,
			"text":    fmt.Sprintf("%s\n%s", title, message),
		})
	case KindPushover:
		return json.Marshal(map[string]string{"user": target.PushoverUser, "title": title, "message": message})
	case KindWhatsApp:
		return json.Marshal(map[string]interface{}{
			"messaging_product": "whatsapp",
			"to":                target.WhatsAppTo,
			"type":              "text",
			"text":              map[string]string{"body": fmt.Sprintf("%s: %s", title, message)},
		})
	default:
		return json.Marshal(map[string]string{"title": title, "message": message})
	}
}

// ValidateNotSSRF rejects webhook targets resolving to loopback, link-local
// or private address ranges.
func ValidateNotSSRF(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host in %q", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("target host %q is blocklisted", host)
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		// An unresolvable host is rejected too: a blocklist that only runs
		// when resolution succeeds can be starved into always-allow.
		return fmt.Errorf("cannot resolve host %q: %w", host, err)
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return fmt.Errorf("target host %q resolves to blocklisted address %s", host, ip)
		}
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified()
}
