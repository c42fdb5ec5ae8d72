package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// LeadStatus is the delivery state of a lead.
type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadDelivered LeadStatus = "delivered"
	LeadFailed    LeadStatus = "failed"
)

// IsValid reports whether s is a known status.
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadPending, LeadDelivered, LeadFailed:
		return true
	}
	return false
}

// Lead is a contact-form submission. It maps to the "leads" table.
type Lead struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Message     string     `json:"message"`
	PropertyID  *int64     `json:"property_id"` // nil = general enquiry
	Locale      string     `json:"locale"`
	PageURL     string     `json:"page_url"`
	IP          string     `json:"-"`
	Status      LeadStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
}

// LeadList is one page of leads for the admin console.
type LeadList struct {
	Items  []Lead `json:"items"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Field limits for CreateLeadRequest.
const (
	LeadNameMin    = 2
	LeadNameMax    = 100
	LeadPhoneMin   = 7
	LeadPhoneMax   = 15
	LeadMessageMax = 1000
	leadPageURLMax = 2048
)

// CreateLeadRequest is the contact form payload, JSON or form encoded.
type CreateLeadRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
	PropertyID int64  `json:"property_id"`
	Locale     string `json:"locale"`
	PageURL    string `json:"page_url"`
	Website    string `json:"website"` // honeypot, real visitors never see it
}

// FieldError names the first invalid field so forms can highlight it.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// IsSpam reports whether the honeypot field was filled.
func (r *CreateLeadRequest) IsSpam() bool {
	return strings.TrimSpace(r.Website) != ""
}

// Validate trims and normalizes the request in place. The phone keeps only
// digits and an optional leading "+".
func (r *CreateLeadRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Message = strings.TrimSpace(r.Message)
	r.PageURL = strings.TrimSpace(r.PageURL)

	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < LeadNameMin || nameLen > LeadNameMax {
		return &FieldError{Field: "name", Msg: fmt.Sprintf("must be between %d and %d characters", LeadNameMin, LeadNameMax)}
	}

	phone, ok := NormalizePhone(r.Phone)
	if !ok {
		return &FieldError{Field: "phone", Msg: fmt.Sprintf("must contain %d to %d digits", LeadPhoneMin, LeadPhoneMax)}
	}
	r.Phone = phone

	if utf8.RuneCountInString(r.Message) > LeadMessageMax {
		return &FieldError{Field: "message", Msg: fmt.Sprintf("must be at most %d characters", LeadMessageMax)}
	}
	if r.PropertyID < 0 {
		r.PropertyID = 0
	}
	if len(r.PageURL) > leadPageURLMax {
		r.PageURL = strings.ToValidUTF8(r.PageURL[:leadPageURLMax], "")
	}
	return nil
}

// NormalizePhone strips spaces, dashes, dots and parentheses. The result
// is an optional "+" followed by 7 to 15 digits.
func NormalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	digits := 0
	for i, c := range raw {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
			digits++
		case c == '+' && i == 0:
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '(' || c == ')' || c == '.':
		default:
			return "", false
		}
	}
	if digits < LeadPhoneMin || digits > LeadPhoneMax {
		return "", false
	}
	return b.String(), true
}

// LeadAttempt is one relay try recorded for a lead.
type LeadAttempt struct {
	ID        int64     `json:"id"`
	LeadID    string    `json:"lead_id"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
