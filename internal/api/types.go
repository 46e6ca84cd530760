package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/referral"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

type ErrorResponse struct {
	Error    string        `json:"error"`
	Details  string        `json:"details,omitempty"`
	Conflict *ConflictInfo `json:"conflict,omitempty"`
}

// ConflictInfo identifies the appointment or block a rejected write ran into.
type ConflictInfo struct {
	Kind     string    `json:"kind"`
	ID       uuid.UUID `json:"id"`
	Label    string    `json:"label"`
	Interval string    `json:"interval"`
}

type WalkInPayload struct {
	Name      string  `json:"name"`
	Phone     string  `json:"phone"`
	Email     *string `json:"email,omitempty"`
	Birthdate *string `json:"birthdate,omitempty"` // 2006-01-02
	Address   *string `json:"address,omitempty"`
}

type CreateAppointmentRequest struct {
	BranchID        string         `json:"branch_id"`
	PatientID       *string        `json:"patient_id,omitempty"`
	WalkIn          *WalkInPayload `json:"walk_in,omitempty"`
	Date            string         `json:"date"` // 2006-01-02
	Time            string         `json:"time"` // 15:04
	TreatmentTypeID *string        `json:"treatment_type_id,omitempty"`
	Notes           string         `json:"notes,omitempty"`
}

type UpdateAppointmentStatusRequest struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	StaffID string `json:"staff_id"`
}

type EditAppointmentRequest struct {
	PatientName     *string `json:"patient_name,omitempty"`
	Date            *string `json:"date,omitempty"`
	Time            *string `json:"time,omitempty"`
	TreatmentTypeID *string `json:"treatment_type_id,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	BranchID        uuid.UUID  `json:"branch_id"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	PatientName     string     `json:"patient_name"`
	WalkIn          bool       `json:"walk_in"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"duration_minutes"`
	TreatmentTypeID *uuid.UUID `json:"treatment_type_id,omitempty"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	ReferralID      *uuid.UUID `json:"referral_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		BranchID:        a.BranchID,
		PatientID:       a.Patient.RegisteredID,
		PatientName:     a.PatientName,
		WalkIn:          a.Patient.IsWalkIn(),
		Date:            a.Date.Format("2006-01-02"),
		Time:            a.Start.String(),
		DurationMinutes: a.DurationMinutes,
		TreatmentTypeID: a.TreatmentTypeID,
		Status:          string(a.Status),
		Notes:           a.Notes,
		ReferralID:      a.ReferralID,
		CreatedAt:       a.CreatedAt,
	}
}

type CreateReferralRequest struct {
	PatientID           string  `json:"patient_id"`
	FromBranchID        string  `json:"from_branch_id"`
	ToBranchID          string  `json:"to_branch_id"`
	TreatmentTypeID     *string `json:"treatment_type_id,omitempty"`
	SourceAppointmentID *string `json:"source_appointment_id,omitempty"`
	Priority            string  `json:"priority"`
	Reason              string  `json:"reason"`
}

type PatientResponseRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes,omitempty"`
}

type AcceptReferralRequest struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Notes   string `json:"notes,omitempty"`
	StaffID string `json:"staff_id"`
}

type RejectReferralRequest struct {
	Reason string `json:"reason"`
}

type ReferralResponse struct {
	ID                     uuid.UUID  `json:"id"`
	PatientID              uuid.UUID  `json:"patient_id"`
	FromBranchID           uuid.UUID  `json:"from_branch_id"`
	ToBranchID             uuid.UUID  `json:"to_branch_id"`
	TreatmentTypeID        *uuid.UUID `json:"treatment_type_id,omitempty"`
	SourceAppointmentID    *uuid.UUID `json:"source_appointment_id,omitempty"`
	Priority               string     `json:"priority"`
	Reason                 string     `json:"reason"`
	Status                 string     `json:"status"`
	PatientApprovedAt      *time.Time `json:"patient_approved_at,omitempty"`
	PatientResponseNotes   *string    `json:"patient_response_notes,omitempty"`
	RejectionReason        *string    `json:"rejection_reason,omitempty"`
	ResultingAppointmentID *uuid.UUID `json:"resulting_appointment_id,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	CompletionNotes        *string    `json:"completion_notes,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

func toReferralResponse(r *referral.Referral) ReferralResponse {
	return ReferralResponse{
		ID:                     r.ID,
		PatientID:              r.PatientID,
		FromBranchID:           r.FromBranchID,
		ToBranchID:             r.ToBranchID,
		TreatmentTypeID:        r.TreatmentTypeID,
		SourceAppointmentID:    r.SourceAppointmentID,
		Priority:               string(r.Priority),
		Reason:                 r.Reason,
		Status:                 string(r.Status),
		PatientApprovedAt:      r.PatientApprovedAt,
		PatientResponseNotes:   r.PatientResponseNotes,
		RejectionReason:        r.RejectionReason,
		ResultingAppointmentID: r.ResultingAppointmentID,
		CompletedAt:            r.CompletedAt,
		CompletionNotes:        r.CompletionNotes,
		CreatedAt:              r.CreatedAt,
	}
}

type SetDailyStatusRequest struct {
	Date   string `json:"date"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type DailyStatusResponse struct {
	BranchID uuid.UUID `json:"branch_id"`
	Date     string    `json:"date"`
	Status   string    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
}

func toDailyStatusResponse(st *clinic.DailyStatus) DailyStatusResponse {
	return DailyStatusResponse{
		BranchID: st.BranchID,
		Date:     st.Date.Format("2006-01-02"),
		Status:   string(st.Status),
		Reason:   st.Reason,
	}
}

type CreateBlockRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
	Kind      string `json:"kind"`
}

type BlockResponse struct {
	ID        uuid.UUID `json:"id"`
	BranchID  uuid.UUID `json:"branch_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
	Kind      string    `json:"kind"`
}

func toBlockResponse(b *clinic.BlockedSlot) BlockResponse {
	return BlockResponse{
		ID:        b.ID,
		BranchID:  b.BranchID,
		Date:      b.Date.Format("2006-01-02"),
		StartTime: b.Start.String(),
		EndTime:   b.Interval().End().String(),
		Reason:    b.Reason,
		Kind:      string(b.Kind),
	}
}

type SlotsResponse struct {
	BranchID uuid.UUID       `json:"branch_id"`
	Date     string          `json:"date"`
	Status   string          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Slots    []schedule.Slot `json:"slots"`
}
