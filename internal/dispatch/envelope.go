package dispatch

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Interval describes the recurrence of a scheduled notification. The
// slices are always non-nil so they marshal as [] rather than null.
type Interval struct {
	Once   bool  `json:"Once"`
	Days   []int `json:"Days"`
	Weeks  []int `json:"Weeks"`
	Months []int `json:"Months"`
	Years  []int `json:"Years"`
}

// Envelope is the outbound request body for POST /request. Field names
// follow the backend contract. It is built fresh per submission and
// never persisted.
type Envelope struct {
	Application    string   `json:"Application" validate:"required"`
	Recipient      string   `json:"Recipient" validate:"required"`
	Subject        *string  `json:"Subject"`
	Message        string   `json:"Message" validate:"required"`
	OutputType     string   `json:"OutputType" validate:"required"`
	Date           *string  `json:"Date"`
	Time           *string  `json:"Time"`
	Interval       Interval `json:"Interval"`
	PhoneNumber    *string  `json:"PhoneNumber"`
	EmailAddresses []string `json:"EmailAddresses" validate:"dive,email"`
	PushToken      *string  `json:"PushToken"`
}

// Validate checks the envelope against its struct tags.
func (e *Envelope) Validate() error {
	return validate.Struct(e)
}

// ParseForm builds an Envelope from raw form values. Numeric list fields
// accept repeated inputs and/or comma-separated values; the email list is
// comma-split with empty entries dropped.
func ParseForm(form url.Values) (*Envelope, error) {
	env := &Envelope{
		Application: strings.TrimSpace(form.Get("Application")),
		Recipient:   strings.TrimSpace(form.Get("Recipient")),
		Subject:     optional(form.Get("Subject")),
		Message:     form.Get("Message"),
		OutputType:  form.Get("OutputType"),
		Date:        optional(form.Get("Date")),
		Time:        optional(form.Get("Time")),
		PhoneNumber: optional(form.Get("PhoneNumber")),
		PushToken:   optional(form.Get("PushToken")),
		Interval: Interval{
			Once: form.Get("Once") == "on",
		},
		EmailAddresses: splitList(form.Get("EmailAddresses")),
	}

	var err error
	if env.Interval.Days, err = intList(form["Days"]); err != nil {
		return nil, fmt.Errorf("Days: %w", err)
	}
	if env.Interval.Weeks, err = intList(form["Weeks"]); err != nil {
		return nil, fmt.Errorf("Weeks: %w", err)
	}
	if env.Interval.Months, err = intList(form["Months"]); err != nil {
		return nil, fmt.Errorf("Months: %w", err)
	}
	if env.Interval.Years, err = intList(form["Years"]); err != nil {
		return nil, fmt.Errorf("Years: %w", err)
	}

	return env, nil
}

// optional maps an empty form field to null on the wire.
func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// splitList comma-splits a field, trims entries and drops empties.
func splitList(v string) []string {
	out := []string{}
	for part := range strings.SplitSeq(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// intList parses repeated form values, each possibly comma-separated,
// into an integer sequence.
func intList(values []string) ([]int, error) {
	out := []int{}
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			n, err := strconv.Atoi(trimmed)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", trimmed)
			}
			out = append(out, n)
		}
	}
	return out, nil
}
