package domain

import "time"

// Token is a hardware or software OTP credential keyed by its serial.
type Token struct {
	ID        string
	Serial    string
	TokenID   string
	Type      string
	TOTPStep  *int // nullable, only set for TOTP tokens
	CreatedAt time.Time
	UpdatedAt time.Time
}
