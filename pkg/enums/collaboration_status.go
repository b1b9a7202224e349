package enums

import "fmt"

// CollaborationStatus tracks the delivery state of an accepted engagement.
type CollaborationStatus string

const (
	CollaborationStatusActive    CollaborationStatus = "active"
	CollaborationStatusCompleted CollaborationStatus = "completed"
	CollaborationStatusCancelled CollaborationStatus = "cancelled"
)

var validCollaborationStatuses = []CollaborationStatus{
	CollaborationStatusActive,
	CollaborationStatusCompleted,
	CollaborationStatusCancelled,
}

// IsValid reports whether the value is known.
func (s CollaborationStatus) IsValid() bool {
	for _, candidate := range validCollaborationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCollaborationStatus converts raw input into a CollaborationStatus.
func ParseCollaborationStatus(value string) (CollaborationStatus, error) {
	for _, candidate := range validCollaborationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collaboration status %q", value)
}
