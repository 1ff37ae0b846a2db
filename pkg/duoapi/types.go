package duoapi

import "encoding/json"

// User is a Duo user as returned by GET /admin/v1/users.
type User struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Status    string  `json:"status"`
	RealName  *string `json:"realname"`
	Notes     string  `json:"notes"`
	LastLogin *int64  `json:"last_login"` // Unix epoch seconds, null if never
	Groups    []Group `json:"groups"`
	Phones    []Phone `json:"phones"`
	Tokens    []Token `json:"tokens"`
}

// Group is a Duo group. Users carry a nested copy of each group they are in.
type Group struct {
	GroupID          string `json:"group_id"`
	Name             string `json:"name"`
	Desc             string `json:"desc"`
	Status           string `json:"status"`
	MobileOTPEnabled bool   `json:"mobile_otp_enabled"`
	PushEnabled      bool   `json:"push_enabled"`
	SMSEnabled       bool   `json:"sms_enabled"`
	VoiceEnabled     bool   `json:"voice_enabled"`
}

type Phone struct {
	PhoneID          string   `json:"phone_id"`
	Name             string   `json:"name"`
	Number           string   `json:"number"`
	Extension        string   `json:"extension"`
	Type             string   `json:"type"`
	Platform         string   `json:"platform"`
	PostDelay        *string  `json:"postdelay"`
	PreDelay         *string  `json:"predelay"`
	SMSPasscodesSent *bool    `json:"sms_passcodes_sent"`
	Activated        *bool    `json:"activated"`
	Capabilities     []string `json:"capabilities,omitempty"`
}

type Token struct {
	Serial   string `json:"serial"`
	TokenID  string `json:"token_id"`
	Type     string `json:"type"`
	TOTPStep *int   `json:"totp_step"`
}

// envelope is the common {"stat": ..., "response": ...} wrapper.
type envelope struct {
	Stat          string          `json:"stat"`
	Response      json.RawMessage `json:"response"`
	Metadata      *metadata       `json:"metadata,omitempty"`
	Code          int             `json:"code,omitempty"`
	Message       string          `json:"message,omitempty"`
	MessageDetail string          `json:"message_detail,omitempty"`
}

type metadata struct {
	NextOffset   *int `json:"next_offset,omitempty"`
	TotalObjects int  `json:"total_objects,omitempty"`
}
