package phone

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"gift-notify/internal/domain/entity"
)

//go:embed countries.yaml
var countriesYAML []byte

// Reliability grades how likely an SMS to a prefix is to arrive.
type Reliability string

const (
	Reliable            Reliability = "reliable"
	UnreliableButUsable Reliability = "unreliable_but_usable"
	Unavailable         Reliability = "unavailable"
)

// Country holds the per calling-code rules.
type Country struct {
	Prefix          string      `yaml:"prefix"`
	Name            string      `yaml:"name"`
	WhatsAppLengths []int       `yaml:"whatsapp_lengths"`
	SMS             Reliability `yaml:"sms"`
}

// Rules is an immutable country table. It is safe for concurrent use.
type Rules struct {
	smsPreferred map[string]bool
	countries    map[string]Country
	maxPrefix    int
}

type rulesFile struct {
	SMSPreferred []string  `yaml:"sms_preferred"`
	Countries    []Country `yaml:"countries"`
}

var defaultRules = mustLoadRules(countriesYAML)

// Default returns the rules compiled into the binary.
func Default() *Rules {
	return defaultRules
}

// LoadRules parses a country table in the countries.yaml format.
func LoadRules(data []byte) (*Rules, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse country rules: %w", err)
	}

	r := &Rules{
		smsPreferred: make(map[string]bool, len(file.SMSPreferred)),
		countries:    make(map[string]Country, len(file.Countries)),
	}
	for _, p := range file.SMSPreferred {
		r.smsPreferred[p] = true
	}
	for _, c := range file.Countries {
		if c.Prefix == "" || strings.Trim(c.Prefix, "0123456789") != "" {
			return nil, fmt.Errorf("parse country rules: invalid prefix %q", c.Prefix)
		}
		switch c.SMS {
		case Reliable, UnreliableButUsable, Unavailable:
		case "":
			c.SMS = UnreliableButUsable
		default:
			return nil, fmt.Errorf("parse country rules: prefix %s: unknown sms reliability %q", c.Prefix, c.SMS)
		}
		if _, dup := r.countries[c.Prefix]; dup {
			return nil, fmt.Errorf("parse country rules: duplicate prefix %s", c.Prefix)
		}
		r.countries[c.Prefix] = c
		if len(c.Prefix) > r.maxPrefix {
			r.maxPrefix = len(c.Prefix)
		}
	}
	return r, nil
}

func mustLoadRules(data []byte) *Rules {
	r, err := LoadRules(data)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the country whose calling code is the longest prefix of phone.
func (r *Rules) Lookup(phone string) (Country, bool) {
	digits := strings.TrimPrefix(Normalize(phone), "+")
	for n := min(r.maxPrefix, len(digits)); n > 0; n-- {
		if c, ok := r.countries[digits[:n]]; ok {
			return c, true
		}
	}
	return Country{}, false
}

// PreferredChannel returns sms only for the reliable-SMS allow list.
func (r *Rules) PreferredChannel(phone string) entity.Channel {
	if c, ok := r.Lookup(phone); ok && r.smsPreferred[c.Prefix] {
		return entity.ChannelSMS
	}
	return entity.ChannelWhatsApp
}

// SmsReliability grades SMS delivery for the phone's prefix. Unknown prefixes
// are usable but unreliable.
func (r *Rules) SmsReliability(phone string) Reliability {
	if c, ok := r.Lookup(phone); ok {
		return c.SMS
	}
	return UnreliableButUsable
}

// ValidateForWhatsApp checks the number is deliverable by the Cloud API.
// The reason is empty when valid.
func (r *Rules) ValidateForWhatsApp(phone string) (bool, string) {
	normalized := Normalize(phone)
	digits := strings.TrimPrefix(normalized, "+")
	if digits == "" {
		return false, "phone number is empty"
	}
	if strings.Trim(digits, "0123456789") != "" {
		return false, "phone number contains non-digit characters"
	}
	if len(digits) < 10 || len(digits) > 15 {
		return false, fmt.Sprintf("phone number must have between 10 and 15 digits, got %d", len(digits))
	}

	c, ok := r.Lookup(normalized)
	if !ok || len(c.WhatsAppLengths) == 0 {
		return true, ""
	}
	for _, n := range c.WhatsAppLengths {
		if len(digits) == n {
			return true, ""
		}
	}
	return false, fmt.Sprintf("%s numbers must have %s digits including country code, got %d",
		c.Name, joinLengths(c.WhatsAppLengths), len(digits))
}

func joinLengths(lengths []int) string {
	parts := make([]string, len(lengths))
	for i, n := range lengths {
		parts[i] = fmt.Sprint(n)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " or " + parts[len(parts)-1]
}

// PreferredChannel uses the default rules.
func PreferredChannel(phone string) entity.Channel {
	return defaultRules.PreferredChannel(phone)
}

// SmsReliability uses the default rules.
func SmsReliability(phone string) Reliability {
	return defaultRules.SmsReliability(phone)
}

// ValidateForWhatsApp uses the default rules.
func ValidateForWhatsApp(phone string) (bool, string) {
	return defaultRules.ValidateForWhatsApp(phone)
}
