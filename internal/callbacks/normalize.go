package callbacks

import (
	"net/url"
	"time"
)

// The provider delivers webhook fields in PascalCase, but documented
// lowercase snake_case aliases exist per field. Normalization happens once
// here at the boundary; downstream logic never re-checks both casings.

// VoicePayload is the canonical shape of one voice callback delivery.
type VoicePayload struct {
	CallSid        string
	AccountSid     string
	PhoneNumberSid string
	Direction      string
	From           string
	To             string
	Status         string
	StartTime      string
	EndTime        string
	Duration       string
	RecordingURL   string
	AnsweredBy     string
	Price          string
}

// SMSPayload is the canonical shape of one SMS callback delivery.
type SMSPayload struct {
	SmsSid             string
	To                 string
	Status             string
	DetailedStatus     string
	DetailedStatusCode string
	SmsUnits           string
	DateSent           string
}

// pick returns the first non-empty value among the aliases, PascalCase first.
func pick(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := values.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// NormalizeVoice maps a raw form payload to the canonical voice shape.
func NormalizeVoice(values url.Values) VoicePayload {
	return VoicePayload{
		CallSid:        pick(values, "CallSid", "call_sid"),
		AccountSid:     pick(values, "AccountSid", "account_sid"),
		PhoneNumberSid: pick(values, "PhoneNumberSid", "phone_number_sid"),
		Direction:      pick(values, "Direction", "direction"),
		From:           pick(values, "From", "from"),
		To:             pick(values, "To", "to"),
		Status:         pick(values, "Status", "status", "CallStatus", "call_status"),
		StartTime:      pick(values, "StartTime", "start_time"),
		EndTime:        pick(values, "EndTime", "end_time"),
		Duration:       pick(values, "Duration", "duration", "DialCallDuration", "dial_call_duration"),
		RecordingURL:   pick(values, "RecordingUrl", "recording_url"),
		AnsweredBy:     pick(values, "AnsweredBy", "answered_by"),
		Price:          pick(values, "Price", "price"),
	}
}

// NormalizeSMS maps a raw form payload to the canonical SMS shape.
func NormalizeSMS(values url.Values) SMSPayload {
	return SMSPayload{
		SmsSid:             pick(values, "SmsSid", "sms_sid"),
		To:                 pick(values, "To", "to"),
		Status:             pick(values, "Status", "status", "SmsStatus", "sms_status"),
		DetailedStatus:     pick(values, "DetailedStatus", "detailed_status"),
		DetailedStatusCode: pick(values, "DetailedStatusCode", "detailed_status_code"),
		SmsUnits:           pick(values, "SmsUnits", "sms_units"),
		DateSent:           pick(values, "DateSent", "date_sent"),
	}
}

// providerTimeLayout is the provider's timestamp format (IST wall clock).
const providerTimeLayout = "2006-01-02 15:04:05"

// parseProviderTime returns nil for empty or unparseable values; a bad
// timestamp must never fail a reconciliation.
func parseProviderTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(providerTimeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
