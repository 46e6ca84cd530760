// Package notify is the seam to the external notification channel. Delivery
// transport lives outside this service; every call here is fire-and-forget
// and must never fail the state transition that triggered it.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Dispatcher receives scheduling events worth telling patients or staff about.
type Dispatcher interface {
	AppointmentCreated(ctx context.Context, appointmentID, branchID uuid.UUID, patientName string) error
	AppointmentCompleted(ctx context.Context, appointmentID, branchID uuid.UUID, patientName string) error
	ReferralDecided(ctx context.Context, referralID, fromBranchID uuid.UUID, accepted bool) error
}

// LogDispatcher writes a log line per notification. The production channel is
// swapped in behind the same interface.
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (d *LogDispatcher) AppointmentCreated(_ context.Context, appointmentID, branchID uuid.UUID, patientName string) error {
	log.Printf("notify: appointment created appointment_id=%s branch_id=%s patient=%q", appointmentID, branchID, patientName)
	return nil
}

func (d *LogDispatcher) AppointmentCompleted(_ context.Context, appointmentID, branchID uuid.UUID, patientName string) error {
	log.Printf("notify: appointment completed appointment_id=%s branch_id=%s patient=%q", appointmentID, branchID, patientName)
	return nil
}

func (d *LogDispatcher) ReferralDecided(_ context.Context, referralID, fromBranchID uuid.UUID, accepted bool) error {
	log.Printf("notify: referral decided referral_id=%s from_branch_id=%s accepted=%t", referralID, fromBranchID, accepted)
	return nil
}

// BestEffort invokes fn with a short deadline and logs the error instead of
// returning it.
func BestEffort(ctx context.Context, what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("notify: %s dispatch failed: %v", what, err)
	}
}
