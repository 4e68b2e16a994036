package exotel

// Provider wire types.
//
// Field names mirror Exotel's own JSON casing bit-for-bit (PascalCase).
// Do not rename keys here; both the REST responses and the request form
// keys are part of the provider contract.

// CallDetail is one call record as returned by the Calls APIs.
// Duration and RecordingUrl are nullable on in-flight calls.
type CallDetail struct {
	Sid            string  `json:"Sid"`
	ParentCallSid  string  `json:"ParentCallSid,omitempty"`
	AccountSid     string  `json:"AccountSid"`
	From           string  `json:"From"`
	To             string  `json:"To"`
	PhoneNumberSid string  `json:"PhoneNumberSid"`
	Status         string  `json:"Status"`
	StartTime      string  `json:"StartTime"`
	EndTime        string  `json:"EndTime,omitempty"`
	Duration       *string `json:"Duration"`
	Price          string  `json:"Price,omitempty"`
	Direction      string  `json:"Direction"`
	AnsweredBy     string  `json:"AnsweredBy,omitempty"`
	RecordingURL   string  `json:"RecordingUrl,omitempty"`
	DateCreated    string  `json:"DateCreated,omitempty"`
	DateUpdated    string  `json:"DateUpdated,omitempty"`
}

// CallResponse wraps a single-call API response.
type CallResponse struct {
	Call CallDetail `json:"Call"`
}

// CallListResponse wraps the bulk call-detail report.
type CallListResponse struct {
	Calls    []CallDetail `json:"Calls"`
	Metadata ListMetadata `json:"Metadata"`
}

type ListMetadata struct {
	Total    int `json:"Total"`
	PageSize int `json:"PageSize"`
	Page     int `json:"Page"`
}

// SMSDetail is one SMS record as returned by the Sms APIs.
type SMSDetail struct {
	Sid                string `json:"Sid"`
	AccountSid         string `json:"AccountSid"`
	From               string `json:"From,omitempty"`
	To                 string `json:"To"`
	Status             string `json:"Status"`
	DetailedStatus     string `json:"DetailedStatus,omitempty"`
	DetailedStatusCode string `json:"DetailedStatusCode,omitempty"`
	SmsUnits           int    `json:"SmsUnits,omitempty"`
	Price              string `json:"Price,omitempty"`
	DateSent           string `json:"DateSent,omitempty"`
	DateCreated        string `json:"DateCreated,omitempty"`
}

// SMSResponse wraps a send-SMS API response.
type SMSResponse struct {
	SMSMessage SMSDetail `json:"SMSMessage"`
}

// HeartbeatStatus is the provider's service-health report.
// Status is one of OK, WARNING, ERROR as reported; anything else is
// treated as UNKNOWN downstream.
type HeartbeatStatus struct {
	Status           string `json:"Status"`
	IncomingAffected bool   `json:"IncomingAffected"`
	OutgoingAffected bool   `json:"OutgoingAffected"`
}

// ExoPhone is one virtual number from the account inventory.
type ExoPhone struct {
	Sid              string `json:"Sid"`
	PhoneNumber      string `json:"PhoneNumber"`
	FriendlyName     string `json:"FriendlyName"`
	NumberType       string `json:"NumberType,omitempty"`
	VoiceEnabled     bool   `json:"VoiceEnabled"`
	SMSEnabled       bool   `json:"SMSEnabled"`
	RecordingEnabled bool   `json:"RecordingEnabled"`
	VoiceURL         string `json:"VoiceUrl,omitempty"`
	SMSURL           string `json:"SmsUrl,omitempty"`
}

// ExoPhoneListResponse wraps the virtual-number inventory.
type ExoPhoneListResponse struct {
	IncomingPhoneNumbers []ExoPhone `json:"IncomingPhoneNumbers"`
}
