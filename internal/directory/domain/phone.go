package domain

import "time"

type Phone struct {
	ID               string
	PhoneID          string
	Name             string
	Number           string
	Extension        string
	Type             string // mobile, landline, unknown
	Platform         string // e.g. "Apple iOS", "Google Android"
	PostDelay        *string
	PreDelay         *string
	SMSPasscodesSent *bool
	Activated        *bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
