// Package datatypes defines shared enum types (session statuses, webhook event types).
package datatypes

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSessionStatus is returned when a status string is not recognized.
var ErrInvalidSessionStatus = errors.New("invalid session status")

// SessionStatus represents the lifecycle state of an intake session as an enum.
// Use String() to get the string representation for API/database.
type SessionStatus uint8

// Session status constants; string form is given in sessionStatusMap.
const (
	SessionInProgress SessionStatus = iota
	SessionApproved
	SessionRejected
	SessionAbandoned
)

// sessionStatusMap maps string representations to SessionStatus enums.
// This is the single source of truth for valid status strings.
var sessionStatusMap = map[string]SessionStatus{
	"IN_PROGRESS": SessionInProgress,
	"APPROVED":    SessionApproved,
	"REJECTED":    SessionRejected,
	"ABANDONED":   SessionAbandoned,
}

var reverseSessionStatusMap map[SessionStatus]string

func init() {
	reverseSessionStatusMap = make(map[SessionStatus]string, len(sessionStatusMap))
	for str, status := range sessionStatusMap {
		reverseSessionStatusMap[status] = str
	}
}

// String returns the string representation of a SessionStatus.
// Implements fmt.Stringer. Returns empty string for invalid statuses.
func (s SessionStatus) String() string {
	str, ok := reverseSessionStatusMap[s]
	if !ok {
		return ""
	}

	return str
}

// ParseSessionStatus converts a string to a SessionStatus enum.
func ParseSessionStatus(s string) (SessionStatus, bool) {
	status, ok := sessionStatusMap[s]

	return status, ok
}

// IsTerminal reports whether the session can no longer be updated or submitted.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionApproved, SessionRejected, SessionAbandoned:
		return true
	default:
		return false
	}
}

// Value implements driver.Valuer so the status stores as its text form.
func (s SessionStatus) Value() (driver.Value, error) {
	str := s.String()
	if str == "" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSessionStatus, s)
	}

	return str, nil
}

// Scan implements sql.Scanner for reading the text column back.
func (s *SessionStatus) Scan(src any) error {
	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("%w: unsupported scan type %T", ErrInvalidSessionStatus, src)
	}

	parsed, ok := ParseSessionStatus(str)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSessionStatus, str)
	}

	*s = parsed

	return nil
}

// MarshalJSON encodes the status as its API string.
func (s SessionStatus) MarshalJSON() ([]byte, error) {
	str := s.String()
	if str == "" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSessionStatus, s)
	}

	return json.Marshal(str)
}

// UnmarshalJSON decodes the status from its API string.
func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("decode session status: %w", err)
	}

	parsed, ok := ParseSessionStatus(str)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSessionStatus, str)
	}

	*s = parsed

	return nil
}
