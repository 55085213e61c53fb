// Package model contains domain models passed between layers.
package model

import "fmt"

// NotificationStatus is the resolution state of a notification sent to a candidate.
type NotificationStatus string

// Notification statuses. Values mirror the upstream impact-data feed.
const (
	NotificationPending  NotificationStatus = "ir_pending"
	NotificationAccepted NotificationStatus = "ir_accepted"
	NotificationRejected NotificationStatus = "ir_rejected"
)

// NotificationStatuses lists every status in draw order.
var NotificationStatuses = []NotificationStatus{
	NotificationPending,
	NotificationAccepted,
	NotificationRejected,
}

// Valid reports whether s is a known notification status.
func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationPending, NotificationAccepted, NotificationRejected:
		return true
	}
	return false
}

// Resolved reports whether the candidate has answered the notification.
func (s NotificationStatus) Resolved() bool {
	return s == NotificationAccepted || s == NotificationRejected
}

// CandidateStatus is the funnel state derived from a notification.
type CandidateStatus string

// Candidate statuses.
const (
	CandidateNotInFunnel   CandidateStatus = "not_in_ft"
	CandidateOfferAccepted CandidateStatus = "offer_accepted"
	CandidateCancelled     CandidateStatus = "cancelled"
)

// Valid reports whether s is a known candidate status.
func (s CandidateStatus) Valid() bool {
	switch s {
	case CandidateNotInFunnel, CandidateOfferAccepted, CandidateCancelled:
		return true
	}
	return false
}

// ImpactEvent is one notification sent to a candidate and its resolution.
// It changes only while NotificationStatus is pending.
type ImpactEvent struct {
	NotificationStatus NotificationStatus `json:"notification_status"`
	CandidateStatus    CandidateStatus    `json:"candidate_status"`
	ResponseMinutes    int                `json:"time_to_respond_ir_minutes"`
}

// Validate checks the event fields.
func (e ImpactEvent) Validate() error {
	if !e.NotificationStatus.Valid() {
		return fmt.Errorf("%w: unknown notification status %q", ErrInvalidEvent, e.NotificationStatus)
	}
	if e.CandidateStatus != "" && !e.CandidateStatus.Valid() {
		return fmt.Errorf("%w: unknown candidate status %q", ErrInvalidEvent, e.CandidateStatus)
	}
	if e.ResponseMinutes < 0 {
		return fmt.Errorf("%w: negative response time %d", ErrInvalidEvent, e.ResponseMinutes)
	}
	return nil
}
