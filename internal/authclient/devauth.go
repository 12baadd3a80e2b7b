//go:build devauth

package authclient

import "github.com/tphummel/lab_inventory/internal/session"

// Development builds accept a fixed credential pair without calling the
// server. The marker token is rejected by any real server.
const (
	devUsername = "dev"
	devPassword = "dev"
	devToken    = "dev-local-token"
)

// DevBypassEnabled reports whether this binary carries the bypass.
const DevBypassEnabled = true

func devLogin(username, password string) (session.Tokens, bool) {
	if username != devUsername || password != devPassword {
		return session.Tokens{}, false
	}
	return session.Tokens{AccessToken: devToken, UserID: devUsername}, true
}
