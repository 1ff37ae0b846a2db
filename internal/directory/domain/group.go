package domain

import "time"

type Group struct {
	ID               string
	GroupID          string
	Name             string
	Description      string
	Status           string
	MobileOTPEnabled bool
	PushEnabled      bool
	SMSEnabled       bool
	VoiceEnabled     bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
