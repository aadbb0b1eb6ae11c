package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Privacy is the visibility applied to newly created destination playlists.
type Privacy string

const (
	PrivacyPrivate  Privacy = "PRIVATE"
	PrivacyPublic   Privacy = "PUBLIC"
	PrivacyUnlisted Privacy = "UNLISTED"
)

// ParsePrivacy parses a privacy value case-insensitively.
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(strings.ToUpper(strings.TrimSpace(s))); p {
	case PrivacyPrivate, PrivacyPublic, PrivacyUnlisted:
		return p, nil
	default:
		return "", fmt.Errorf("unknown privacy status %q", s)
	}
}

// UnmarshalJSON accepts any casing of a known privacy value, or an empty string.
func (p *Privacy) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*p = ""
		return nil
	}
	v, err := ParsePrivacy(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// TransferOptions controls how destination playlists are resolved.
type TransferOptions struct {
	CreateNewPlaylists bool    `json:"create_new_playlists"`
	OverwriteExisting  bool    `json:"overwrite_existing"`
	Privacy            Privacy `json:"privacy_status"`
}

// DefaultTransferOptions creates missing playlists as private and skips existing ones.
func DefaultTransferOptions() TransferOptions {
	return TransferOptions{CreateNewPlaylists: true, OverwriteExisting: false, Privacy: PrivacyPrivate}
}

// Validate fills an empty privacy with [PrivacyPrivate] and rejects unknown values.
func (o *TransferOptions) Validate() error {
	if o.Privacy == "" {
		o.Privacy = PrivacyPrivate
		return nil
	}
	p, err := ParsePrivacy(string(o.Privacy))
	if err != nil {
		return err
	}
	o.Privacy = p
	return nil
}

// Status is the lifecycle state of a transfer run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a stored status string to a [Status].
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
