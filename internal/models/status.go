package models

import (
	"fmt"
	"strings"
)

// Status is the publication state written in a post's metadata.
type Status int

const (
	StatusDraft Status = iota
	StatusPublished
	StatusReview
)

var statusNames = map[Status]string{
	StatusDraft:     "draft",
	StatusPublished: "published",
	StatusReview:    "review",
}

// Statuses lists every status in declaration order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusPublished, StatusReview}
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus converts a metadata value into a Status.
func ParseStatus(v string) (Status, error) {
	name := strings.ToLower(strings.TrimSpace(v))
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return StatusDraft, fmt.Errorf("invalid status %q", v)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
