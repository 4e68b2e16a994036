package numbers

import "time"

// PhoneNumber is one virtual number in the local directory.
//
// Number is unique. At most one row has IsPrimary set; the primary is the
// default caller id for outbound work.
type PhoneNumber struct {
	ID  string `json:"id" db:"id"`
	Sid string `json:"sid,omitempty" db:"sid"`

	Number       string `json:"number" db:"number"`
	FriendlyName string `json:"friendly_name" db:"friendly_name"`

	// DepartmentName is local dashboard labeling. The provider knows
	// nothing about it, so directory sync never overwrites it.
	DepartmentName string `json:"department_name,omitempty" db:"department_name"`

	IsPrimary bool `json:"is_primary" db:"is_primary"`

	// IsActive tracks inventory membership: sync reactivates numbers it
	// sees and deactivates provider-sourced rows that dropped out. Rows
	// are never hard-deleted by sync, only by explicit admin action.
	IsActive bool `json:"is_active" db:"is_active"`

	VoiceEnabled     bool `json:"voice_enabled" db:"voice_enabled"`
	SMSEnabled       bool `json:"sms_enabled" db:"sms_enabled"`
	RecordingEnabled bool `json:"recording_enabled" db:"recording_enabled"`

	NumberType string `json:"number_type,omitempty" db:"number_type"`
	VoiceURL   string `json:"voice_url,omitempty" db:"voice_url"`
	SMSURL     string `json:"sms_url,omitempty" db:"sms_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Update is a partial admin edit; nil fields are left untouched.
type Update struct {
	FriendlyName   *string
	DepartmentName *string
	IsActive       *bool
}
