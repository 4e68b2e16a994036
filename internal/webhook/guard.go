package webhook

import (
	"crypto/subtle"
	"errors"
	"log/slog"

	"callcenter-platform/internal/exotel"
)

// ErrInvalidToken is an authentication-class rejection: the delivery did
// not prove knowledge of the credential pair.
var ErrInvalidToken = errors.New("webhook: verification token mismatch")

// Guard authenticates inbound provider deliveries before any payload is
// trusted or persisted.
//
// The webhook URL path embeds a verification token computed once at
// process start as MD5(key:secret). The guard recomputes the expected
// value and compares byte-for-byte. This is the sole active authenticity
// check; it is a stateless gate with no side effects beyond logging.
type Guard struct {
	expected string
	log      *slog.Logger
}

func NewGuard(apiKey, apiToken string, log *slog.Logger) *Guard {
	return &Guard{
		expected: exotel.WebhookToken(apiKey, apiToken),
		log:      log,
	}
}

// Verify checks the token extracted from the URL path. On mismatch the
// offending caller's metadata is logged for forensics and ErrInvalidToken
// is returned.
func (g *Guard) Verify(token, clientIP, userAgent string) error {
	if !g.sourceIPAllowed(clientIP) {
		return ErrInvalidToken
	}
	if !g.timestampFresh("") {
		return ErrInvalidToken
	}

	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(g.expected)) != 1 {
		g.log.Warn("webhook token rejected",
			"token_prefix", prefix(token, 8),
			"ip", clientIP,
			"user_agent", userAgent,
		)
		return ErrInvalidToken
	}
	return nil
}

// sourceIPAllowed is wired but intentionally inert: it accepts every
// source until the provider egress ranges are confirmed. Needs a security
// review before production hardening.
func (g *Guard) sourceIPAllowed(ip string) bool {
	return true
}

// timestampFresh is wired but intentionally inert: deliveries carry no
// signed timestamp today, so freshness cannot be enforced. Needs a
// security review before production hardening.
func (g *Guard) timestampFresh(ts string) bool {
	return true
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
