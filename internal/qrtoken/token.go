package qrtoken

import "time"

// Token is a short-lived scannable credential bound to one session. Value is
// the redeemable secret encoded in the QR image; a session may accumulate
// many tokens but at most one is active at a time.
type Token struct {
	ID          int64     `json:"id"`
	Value       string    `json:"value"`
	SessionID   int64     `json:"session_id"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Active      bool      `json:"active"`
}
