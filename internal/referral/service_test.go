package referral

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

// memStore holds appointments and referrals in memory and implements both the
// Repository and Tx surfaces. WithTx snapshots state and restores it on error.
type memStore struct {
	appts     map[uuid.UUID]*appointment.Appointment
	referrals map[uuid.UUID]*Referral
	blocks    []clinic.BlockedSlot
}

func newMemStore() *memStore {
	return &memStore{
		appts:     make(map[uuid.UUID]*appointment.Appointment),
		referrals: make(map[uuid.UUID]*Referral),
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	apptsBefore := make(map[uuid.UUID]*appointment.Appointment, len(s.appts))
	for id, a := range s.appts {
		c := *a
		apptsBefore[id] = &c
	}
	refsBefore := make(map[uuid.UUID]*Referral, len(s.referrals))
	for id, r := range s.referrals {
		c := *r
		refsBefore[id] = &c
	}
	if err := fn(ctx, &memStoreTx{s: s}); err != nil {
		s.appts = apptsBefore
		s.referrals = refsBefore
		return err
	}
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	r, ok := s.referrals[id]
	if !ok {
		return nil, ErrReferralNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ListActionable(ctx context.Context, toBranchID uuid.UUID) ([]Referral, error) {
	var out []Referral
	for _, r := range s.referrals {
		if r.ToBranchID == toBranchID && r.Status == StatusPatientApproved {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) ListOutgoing(ctx context.Context, fromBranchID uuid.UUID) ([]Referral, error) {
	var out []Referral
	for _, r := range s.referrals {
		if r.FromBranchID == fromBranchID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Referral, error) {
	var out []Referral
	for _, r := range s.referrals {
		if r.PatientID == patientID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type memStoreTx struct {
	s *memStore
}

func (t *memStoreTx) Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := t.s.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *memStoreTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return t.Get(ctx, id)
}

func (t *memStoreTx) Insert(ctx context.Context, a *appointment.Appointment) error {
	cp := *a
	t.s.appts[a.ID] = &cp
	return nil
}

func (t *memStoreTx) Update(ctx context.Context, a *appointment.Appointment) error {
	if _, ok := t.s.appts[a.ID]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	cp := *a
	t.s.appts[a.ID] = &cp
	return nil
}

func (t *memStoreTx) ListOccupyingForUpdate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range t.s.appts {
		if a.BranchID == branchID && a.Date.Equal(date) && a.Status.Occupies() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (t *memStoreTx) ListBlocks(ctx context.Context, branchID uuid.UUID, date time.Time) ([]clinic.BlockedSlot, error) {
	var out []clinic.BlockedSlot
	for _, b := range t.s.blocks {
		if b.BranchID == branchID && b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memStoreTx) GetReferralLink(ctx context.Context, id uuid.UUID) (*appointment.ReferralLink, error) {
	r, ok := t.s.referrals[id]
	if !ok {
		return nil, appointment.ErrReferralNotFound
	}
	return &appointment.ReferralLink{
		ID:                  r.ID,
		Status:              string(r.Status),
		FromBranchID:        r.FromBranchID,
		TreatmentTypeID:     r.TreatmentTypeID,
		SourceAppointmentID: r.SourceAppointmentID,
	}, nil
}

func (t *memStoreTx) UpdateReferralStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	r, ok := t.s.referrals[id]
	if !ok {
		return false, appointment.ErrReferralNotFound
	}
	if string(r.Status) != from {
		return false, nil
	}
	r.Status = Status(to)
	return true, nil
}

func (t *memStoreTx) CompleteReferral(ctx context.Context, id, staffID uuid.UUID, note string, at time.Time) error {
	r, ok := t.s.referrals[id]
	if !ok {
		return appointment.ErrReferralNotFound
	}
	r.Status = StatusCompleted
	r.CompletedAt = &at
	r.CompletedBy = &staffID
	if note != "" {
		r.CompletionNotes = &note
	}
	return nil
}

func (t *memStoreTx) GetReferralForUpdate(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return t.s.GetByID(ctx, id)
}

func (t *memStoreTx) InsertReferral(ctx context.Context, r *Referral) error {
	cp := *r
	t.s.referrals[r.ID] = &cp
	return nil
}

func (t *memStoreTx) UpdateReferral(ctx context.Context, r *Referral) error {
	if _, ok := t.s.referrals[r.ID]; !ok {
		return ErrReferralNotFound
	}
	cp := *r
	t.s.referrals[r.ID] = &cp
	return nil
}

type passLocker struct{}

func (passLocker) WithBranchDayLock(ctx context.Context, branchID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubClinics struct {
	day        schedule.Day
	treatments map[uuid.UUID]*clinic.TreatmentType
}

func (s *stubClinics) ResolveDay(ctx context.Context, branchID uuid.UUID, date time.Time) (schedule.Day, error) {
	return s.day, nil
}

func (s *stubClinics) ActiveTreatment(ctx context.Context, id uuid.UUID) (*clinic.TreatmentType, error) {
	t, ok := s.treatments[id]
	if !ok {
		return nil, clinic.ErrTreatmentNotFound
	}
	return t, nil
}

type noopNotifier struct{}

func (noopNotifier) AppointmentCreated(ctx context.Context, appointmentID, branchID uuid.UUID, patientName string) error {
	return nil
}
func (noopNotifier) AppointmentCompleted(ctx context.Context, appointmentID, branchID uuid.UUID, patientName string) error {
	return nil
}
func (noopNotifier) ReferralDecided(ctx context.Context, referralID, fromBranchID uuid.UUID, accepted bool) error {
	return nil
}

var acceptDay = time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *Service
	store      *memStore
	clinics    *stubClinics
	fromBranch uuid.UUID
	toBranch   uuid.UUID
	patientID  uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		clinics: &stubClinics{
			day: schedule.Day{
				Open:    true,
				Status:  "open",
				OpenAt:  schedule.TimeOfDay(9 * 60),
				CloseAt: schedule.TimeOfDay(17 * 60),
			},
			treatments: make(map[uuid.UUID]*clinic.TreatmentType),
		},
		fromBranch: uuid.New(),
		toBranch:   uuid.New(),
		patientID:  uuid.New(),
	}
	f.svc = NewService(f.store, f.clinics, passLocker{}, nil, noopNotifier{}, nil)
	return f
}

func (f *fixture) newReferral() NewReferral {
	return NewReferral{
		PatientID:    f.patientID,
		FromBranchID: f.fromBranch,
		ToBranchID:   f.toBranch,
		Priority:     PriorityNormal,
		Reason:       "needs a specialist we do not have on site",
	}
}

func (f *fixture) patientApproved(t *testing.T) *Referral {
	t.Helper()
	ref, err := f.svc.Create(context.Background(), f.newReferral())
	require.NoError(t, err)
	ref, err = f.svc.RecordPatientResponse(context.Background(), ref.ID, true, "")
	require.NoError(t, err)
	return ref
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)

	cases := []struct {
		name   string
		mutate func(in *NewReferral)
	}{
		{"short reason", func(in *NewReferral) { in.Reason = "too vague" }},
		{"blank reason", func(in *NewReferral) { in.Reason = "             " }},
		{"bad priority", func(in *NewReferral) { in.Priority = "urgent" }},
		{"same branch", func(in *NewReferral) { in.ToBranchID = in.FromBranchID }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.newReferral()
			tc.mutate(&in)
			_, err := f.svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateTreatmentMustBelongToDestination(t *testing.T) {
	f := setup(t)
	treatmentID := uuid.New()
	f.clinics.treatments[treatmentID] = &clinic.TreatmentType{
		ID: treatmentID, BranchID: f.fromBranch, Name: "Root Canal", DurationMinutes: 90, Active: true,
	}

	in := f.newReferral()
	in.TreatmentTypeID = &treatmentID
	_, err := f.svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)

	f.clinics.treatments[treatmentID].BranchID = f.toBranch
	ref, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, ref.Status)
}

func TestCreateMarksSourceAppointmentReferred(t *testing.T) {
	f := setup(t)
	src := &appointment.Appointment{
		ID:              uuid.New(),
		BranchID:        f.fromBranch,
		Patient:         appointment.Registered(f.patientID),
		Date:            acceptDay,
		Start:           schedule.TimeOfDay(10 * 60),
		DurationMinutes: 60,
		Status:          appointment.StatusPending,
	}
	f.store.appts[src.ID] = src

	in := f.newReferral()
	in.SourceAppointmentID = &src.ID
	ref, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, ref.Status)
	assert.Equal(t, appointment.StatusReferred, f.store.appts[src.ID].Status)
}

func TestCreateSourceAppointmentGuards(t *testing.T) {
	f := setup(t)

	t.Run("wrong branch", func(t *testing.T) {
		src := &appointment.Appointment{
			ID: uuid.New(), BranchID: uuid.New(),
			Patient: appointment.Registered(f.patientID),
			Date:    acceptDay, Start: schedule.TimeOfDay(10 * 60), DurationMinutes: 60,
			Status: appointment.StatusPending,
		}
		f.store.appts[src.ID] = src
		in := f.newReferral()
		in.SourceAppointmentID = &src.ID
		_, err := f.svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("wrong patient", func(t *testing.T) {
		src := &appointment.Appointment{
			ID: uuid.New(), BranchID: f.fromBranch,
			Patient: appointment.Registered(uuid.New()),
			Date:    acceptDay, Start: schedule.TimeOfDay(11 * 60), DurationMinutes: 60,
			Status: appointment.StatusPending,
		}
		f.store.appts[src.ID] = src
		in := f.newReferral()
		in.SourceAppointmentID = &src.ID
		_, err := f.svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("approved appointment cannot be referred", func(t *testing.T) {
		src := &appointment.Appointment{
			ID: uuid.New(), BranchID: f.fromBranch,
			Patient: appointment.Registered(f.patientID),
			Date:    acceptDay, Start: schedule.TimeOfDay(12 * 60), DurationMinutes: 60,
			Status: appointment.StatusApproved,
		}
		f.store.appts[src.ID] = src
		in := f.newReferral()
		in.SourceAppointmentID = &src.ID
		_, err := f.svc.Create(context.Background(), in)
		var bad *appointment.InvalidTransitionError
		require.ErrorAs(t, err, &bad)
		// The guard failed inside the transaction, so no referral was kept.
		assert.Empty(t, f.store.referrals)
	})
}

func TestPatientResponseApprove(t *testing.T) {
	f := setup(t)
	ref, err := f.svc.Create(context.Background(), f.newReferral())
	require.NoError(t, err)

	updated, err := f.svc.RecordPatientResponse(context.Background(), ref.ID, true, "happy to travel")
	require.NoError(t, err)

	assert.Equal(t, StatusPatientApproved, updated.Status)
	require.NotNil(t, updated.PatientApprovedAt)
	require.NotNil(t, updated.PatientResponseNotes)
	assert.Equal(t, "happy to travel", *updated.PatientResponseNotes)

	// Consent is recorded once.
	_, err = f.svc.RecordPatientResponse(context.Background(), ref.ID, true, "")
	var bad *InvalidTransitionError
	assert.ErrorAs(t, err, &bad)
}

func TestPatientResponseDecline(t *testing.T) {
	f := setup(t)
	ref, err := f.svc.Create(context.Background(), f.newReferral())
	require.NoError(t, err)

	updated, err := f.svc.RecordPatientResponse(context.Background(), ref.ID, false, "")
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, updated.Status)
	assert.Nil(t, updated.PatientApprovedAt)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, "declined by patient", *updated.RejectionReason)
}

func TestAcceptRequiresPatientConsent(t *testing.T) {
	f := setup(t)
	ref, err := f.svc.Create(context.Background(), f.newReferral())
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), ref.ID, acceptDay, schedule.TimeOfDay(10*60), "", uuid.New())
	var bad *InvalidTransitionError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, StatusPending, bad.Current)
	assert.Equal(t, StatusAccepted, bad.Requested)
}

func TestAcceptBooksDestinationAppointment(t *testing.T) {
	f := setup(t)
	treatmentID := uuid.New()
	f.clinics.treatments[treatmentID] = &clinic.TreatmentType{
		ID: treatmentID, BranchID: f.toBranch, Name: "Dental Implant", DurationMinutes: 120, Active: true,
	}

	ref, err := f.svc.Create(context.Background(), NewReferral{
		PatientID:       f.patientID,
		FromBranchID:    f.fromBranch,
		ToBranchID:      f.toBranch,
		TreatmentTypeID: &treatmentID,
		Priority:        PriorityHigh,
		Reason:          "implant work is only done at the main clinic",
	})
	require.NoError(t, err)
	_, err = f.svc.RecordPatientResponse(context.Background(), ref.ID, true, "")
	require.NoError(t, err)

	appt, err := f.svc.Accept(context.Background(), ref.ID, acceptDay, schedule.TimeOfDay(10*60), "bring prior x-rays", uuid.New())
	require.NoError(t, err)

	assert.Equal(t, f.toBranch, appt.BranchID)
	assert.Equal(t, appointment.StatusPending, appt.Status)
	assert.Equal(t, 120, appt.DurationMinutes)
	require.NotNil(t, appt.Patient.RegisteredID)
	assert.Equal(t, f.patientID, *appt.Patient.RegisteredID)
	require.NotNil(t, appt.ReferralID)
	assert.Equal(t, ref.ID, *appt.ReferralID)

	stored := f.store.referrals[ref.ID]
	assert.Equal(t, StatusAccepted, stored.Status)
	require.NotNil(t, stored.ResultingAppointmentID)
	assert.Equal(t, appt.ID, *stored.ResultingAppointmentID)
}

func TestAcceptConflictLeavesReferralRetryable(t *testing.T) {
	f := setup(t)
	ref := f.patientApproved(t)

	taken := &appointment.Appointment{
		ID: uuid.New(), BranchID: f.toBranch,
		Patient:     appointment.Registered(uuid.New()),
		PatientName: "Jane Doe",
		Date:        acceptDay, Start: schedule.TimeOfDay(10 * 60), DurationMinutes: 60,
		Status: appointment.StatusApproved,
	}
	f.store.appts[taken.ID] = taken

	_, err := f.svc.Accept(context.Background(), ref.ID, acceptDay, schedule.TimeOfDay(10*60), "", uuid.New())
	var conflict *schedule.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, taken.ID, conflict.With.ID)

	// Rolled back: the referral can be retried at another slot and no
	// appointment leaked.
	assert.Equal(t, StatusPatientApproved, f.store.referrals[ref.ID].Status)
	assert.Len(t, f.store.appts, 1)

	appt, err := f.svc.Accept(context.Background(), ref.ID, acceptDay, schedule.TimeOfDay(11*60), "", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, schedule.TimeOfDay(11*60), appt.Start)
}

func TestAcceptClosedDestination(t *testing.T) {
	f := setup(t)
	ref := f.patientApproved(t)

	f.clinics.day = schedule.Day{Status: "closed", Reason: "staff training"}
	_, err := f.svc.Accept(context.Background(), ref.ID, acceptDay, schedule.TimeOfDay(10*60), "", uuid.New())
	var closed *schedule.ClosedBranchError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, "staff training", closed.Reason)
}

func TestAcceptOutsideHours(t *testing.T) {
	f := setup(t)
	ref := f.patientApproved(t)

	_, err := f.svc.Accept(context.Background(), ref.ID, acceptDay, schedule.TimeOfDay(16*60+30), "", uuid.New())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAcceptTwice(t *testing.T) {
	f := setup(t)
	ref := f.patientApproved(t)

	_, err := f.svc.Accept(context.Background(), ref.ID, acceptDay, schedule.TimeOfDay(10*60), "", uuid.New())
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), ref.ID, acceptDay, schedule.TimeOfDay(11*60), "", uuid.New())
	var bad *InvalidTransitionError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, StatusAccepted, bad.Current)
}

func TestReject(t *testing.T) {
	f := setup(t)
	ref := f.patientApproved(t)

	_, err := f.svc.Reject(context.Background(), ref.ID, "too short")
	assert.ErrorIs(t, err, ErrValidation)

	updated, err := f.svc.Reject(context.Background(), ref.ID, "no capacity for new patients this month")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, updated.Status)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, "no capacity for new patients this month", *updated.RejectionReason)

	_, err = f.svc.Reject(context.Background(), ref.ID, "already rejected once before")
	var bad *InvalidTransitionError
	assert.ErrorAs(t, err, &bad)
}

func TestListActionableShowsOnlyConsented(t *testing.T) {
	f := setup(t)

	pending, err := f.svc.Create(context.Background(), f.newReferral())
	require.NoError(t, err)
	approved := f.patientApproved(t)

	actionable, err := f.svc.ListActionable(context.Background(), f.toBranch)
	require.NoError(t, err)
	require.Len(t, actionable, 1)
	assert.Equal(t, approved.ID, actionable[0].ID)
	assert.NotEqual(t, pending.ID, actionable[0].ID)
}
