package service

import (
	"time"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/internal/directory/store"
	"github.com/aussiebroadwan/duosync/pkg/duoapi"
)

// field copies one mutable attribute from an attribute bag onto a stored
// record. Natural keys and surrogate IDs never appear in a field table.
type field[T any] struct {
	name  string
	apply func(dst *T, src T)
}

// applyFields overwrites every attribute in the table.
func applyFields[T any](dst *T, src T, fields []field[T]) {
	for _, f := range fields {
		f.apply(dst, src)
	}
}

var userFields = []field[domain.User]{
	{"username", func(d *domain.User, s domain.User) { d.Username = s.Username }},
	{"email", func(d *domain.User, s domain.User) { d.Email = s.Email }},
	{"status", func(d *domain.User, s domain.User) { d.Status = s.Status }},
	{"realname", func(d *domain.User, s domain.User) { d.RealName = s.RealName }},
	{"notes", func(d *domain.User, s domain.User) { d.Notes = s.Notes }},
	{"last_login", func(d *domain.User, s domain.User) { d.LastLogin = s.LastLogin }},
}

var groupFields = []field[domain.Group]{
	{"name", func(d *domain.Group, s domain.Group) { d.Name = s.Name }},
	{"desc", func(d *domain.Group, s domain.Group) { d.Description = s.Description }},
	{"status", func(d *domain.Group, s domain.Group) { d.Status = s.Status }},
	{"mobile_otp_enabled", func(d *domain.Group, s domain.Group) { d.MobileOTPEnabled = s.MobileOTPEnabled }},
	{"push_enabled", func(d *domain.Group, s domain.Group) { d.PushEnabled = s.PushEnabled }},
	{"sms_enabled", func(d *domain.Group, s domain.Group) { d.SMSEnabled = s.SMSEnabled }},
	{"voice_enabled", func(d *domain.Group, s domain.Group) { d.VoiceEnabled = s.VoiceEnabled }},
}

var tokenFields = []field[domain.Token]{
	{"token_id", func(d *domain.Token, s domain.Token) { d.TokenID = s.TokenID }},
	{"type", func(d *domain.Token, s domain.Token) { d.Type = s.Type }},
	{"totp_step", func(d *domain.Token, s domain.Token) { d.TOTPStep = s.TOTPStep }},
}

var phoneFields = []field[domain.Phone]{
	{"name", func(d *domain.Phone, s domain.Phone) { d.Name = s.Name }},
	{"number", func(d *domain.Phone, s domain.Phone) { d.Number = s.Number }},
	{"extension", func(d *domain.Phone, s domain.Phone) { d.Extension = s.Extension }},
	{"type", func(d *domain.Phone, s domain.Phone) { d.Type = s.Type }},
	{"platform", func(d *domain.Phone, s domain.Phone) { d.Platform = s.Platform }},
	{"postdelay", func(d *domain.Phone, s domain.Phone) { d.PostDelay = s.PostDelay }},
	{"predelay", func(d *domain.Phone, s domain.Phone) { d.PreDelay = s.PreDelay }},
	{"sms_passcodes_sent", func(d *domain.Phone, s domain.Phone) { d.SMSPasscodesSent = s.SMSPasscodesSent }},
	{"activated", func(d *domain.Phone, s domain.Phone) { d.Activated = s.Activated }},
}

// entityMapping ties a remote record type R to its stored type T.
type entityMapping[R, T any] struct {
	entity domain.Entity
	key    func(R) string
	bag    func(R) T
	fields []field[T]
	repo   func(store.Store) store.Upserter[T]
}

func userMapping(loc *time.Location) entityMapping[duoapi.User, domain.User] {
	return entityMapping[duoapi.User, domain.User]{
		entity: domain.EntityUsers,
		key:    func(u duoapi.User) string { return u.UserID },
		bag: func(u duoapi.User) domain.User {
			return domain.User{
				UserID:    u.UserID,
				Username:  u.Username,
				Email:     u.Email,
				Status:    u.Status,
				RealName:  u.RealName,
				Notes:     u.Notes,
				LastLogin: epochToTime(u.LastLogin, loc),
			}
		},
		fields: userFields,
		repo:   func(s store.Store) store.Upserter[domain.User] { return s.Users() },
	}
}

var groupMapping = entityMapping[duoapi.Group, domain.Group]{
	entity: domain.EntityGroups,
	key:    func(g duoapi.Group) string { return g.GroupID },
	bag: func(g duoapi.Group) domain.Group {
		return domain.Group{
			GroupID:          g.GroupID,
			Name:             g.Name,
			Description:      g.Desc,
			Status:           g.Status,
			MobileOTPEnabled: g.MobileOTPEnabled,
			PushEnabled:      g.PushEnabled,
			SMSEnabled:       g.SMSEnabled,
			VoiceEnabled:     g.VoiceEnabled,
		}
	},
	fields: groupFields,
	repo:   func(s store.Store) store.Upserter[domain.Group] { return s.Groups() },
}

var tokenMapping = entityMapping[duoapi.Token, domain.Token]{
	entity: domain.EntityTokens,
	key:    func(t duoapi.Token) string { return t.Serial },
	bag: func(t duoapi.Token) domain.Token {
		return domain.Token{
			Serial:   t.Serial,
			TokenID:  t.TokenID,
			Type:     t.Type,
			TOTPStep: t.TOTPStep,
		}
	},
	fields: tokenFields,
	repo:   func(s store.Store) store.Upserter[domain.Token] { return s.Tokens() },
}

var phoneMapping = entityMapping[duoapi.Phone, domain.Phone]{
	entity: domain.EntityPhones,
	key:    func(p duoapi.Phone) string { return p.PhoneID },
	bag: func(p duoapi.Phone) domain.Phone {
		return domain.Phone{
			PhoneID:          p.PhoneID,
			Name:             p.Name,
			Number:           p.Number,
			Extension:        p.Extension,
			Type:             p.Type,
			Platform:         p.Platform,
			PostDelay:        p.PostDelay,
			PreDelay:         p.PreDelay,
			SMSPasscodesSent: p.SMSPasscodesSent,
			Activated:        p.Activated,
		}
	},
	fields: phoneFields,
	repo:   func(s store.Store) store.Upserter[domain.Phone] { return s.Phones() },
}

// epochToTime converts Duo epoch seconds into loc, keeping nil as nil.
func epochToTime(epoch *int64, loc *time.Location) *time.Time {
	if epoch == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t := time.Unix(*epoch, 0).In(loc)
	return &t
}
