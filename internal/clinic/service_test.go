package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mintos48/dental-clinic-scheduling/internal/events"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

// fakeRepo backs the service with in-memory maps.
type fakeRepo struct {
	branches   map[uuid.UUID]*Branch
	hours      map[time.Weekday]*OperatingHours
	statuses   map[string]*DailyStatus
	treatments map[uuid.UUID]*TreatmentType
	blocks     map[uuid.UUID]*BlockedSlot
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		branches:   make(map[uuid.UUID]*Branch),
		hours:      make(map[time.Weekday]*OperatingHours),
		statuses:   make(map[string]*DailyStatus),
		treatments: make(map[uuid.UUID]*TreatmentType),
		blocks:     make(map[uuid.UUID]*BlockedSlot),
	}
}

func statusKey(branchID uuid.UUID, date time.Time) string {
	return branchID.String() + "|" + date.Format("2006-01-02")
}

func (f *fakeRepo) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	b, ok := f.branches[id]
	if !ok {
		return nil, ErrBranchNotFound
	}
	return b, nil
}

func (f *fakeRepo) ListBranches(ctx context.Context) ([]Branch, error) {
	var out []Branch
	for _, b := range f.branches {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeRepo) GetHours(ctx context.Context, branchID uuid.UUID, weekday time.Weekday) (*OperatingHours, error) {
	h, ok := f.hours[weekday]
	if !ok {
		return nil, ErrHoursNotFound
	}
	return h, nil
}

func (f *fakeRepo) GetDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time) (*DailyStatus, error) {
	st, ok := f.statuses[statusKey(branchID, date)]
	if !ok {
		return nil, ErrStatusNotFound
	}
	return st, nil
}

func (f *fakeRepo) UpsertDailyStatus(ctx context.Context, st DailyStatus) (*DailyStatus, error) {
	cp := st
	f.statuses[statusKey(st.BranchID, st.Date)] = &cp
	return &cp, nil
}

func (f *fakeRepo) DeleteDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time) error {
	key := statusKey(branchID, date)
	if _, ok := f.statuses[key]; !ok {
		return ErrStatusNotFound
	}
	delete(f.statuses, key)
	return nil
}

func (f *fakeRepo) ListDailyStatusesFrom(ctx context.Context, branchID uuid.UUID, from time.Time) ([]DailyStatus, error) {
	var out []DailyStatus
	for _, st := range f.statuses {
		if st.BranchID == branchID && !st.Date.Before(from) {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetTreatment(ctx context.Context, id uuid.UUID) (*TreatmentType, error) {
	t, ok := f.treatments[id]
	if !ok {
		return nil, ErrTreatmentNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListTreatments(ctx context.Context, branchID uuid.UUID) ([]TreatmentType, error) {
	var out []TreatmentType
	for _, t := range f.treatments {
		if t.BranchID == branchID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertBlock(ctx context.Context, b BlockedSlot) (*BlockedSlot, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := b
	f.blocks[b.ID] = &cp
	return &cp, nil
}

func (f *fakeRepo) DeleteBlock(ctx context.Context, branchID, id uuid.UUID) error {
	b, ok := f.blocks[id]
	if !ok || b.BranchID != branchID {
		return ErrBlockNotFound
	}
	delete(f.blocks, id)
	return nil
}

func (f *fakeRepo) ListBlocks(ctx context.Context, branchID uuid.UUID, date time.Time) ([]BlockedSlot, error) {
	var out []BlockedSlot
	for _, b := range f.blocks {
		if b.BranchID == branchID && b.Date.Equal(date) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteDailyStatusesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for key, st := range f.statuses {
		if st.Date.Before(cutoff) {
			delete(f.statuses, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) DeleteBlocksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, b := range f.blocks {
		if b.Date.Before(cutoff) {
			delete(f.blocks, id)
			n++
		}
	}
	return n, nil
}

func setupClinic(t *testing.T) (*Service, *fakeRepo, uuid.UUID) {
	t.Helper()
	repo := newFakeRepo()
	branchID := uuid.New()
	repo.branches[branchID] = &Branch{ID: branchID, Name: "Downtown"}
	// Open every weekday 09:00-17:00.
	for wd := time.Monday; wd <= time.Friday; wd++ {
		repo.hours[wd] = &OperatingHours{
			BranchID: branchID,
			Weekday:  wd,
			IsOpen:   true,
			Open:     schedule.TimeOfDay(9 * 60),
			Close:    schedule.TimeOfDay(17 * 60),
		}
	}
	return NewService(repo, nil), repo, branchID
}

// aMonday is a known weekday so hour lookups are deterministic.
var aMonday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
var aSunday = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

func TestResolveDayNormalHours(t *testing.T) {
	svc, _, branchID := setupClinic(t)

	day, err := svc.ResolveDay(context.Background(), branchID, aMonday)
	require.NoError(t, err)
	assert.True(t, day.Open)
	assert.False(t, day.FullyBooked)
	assert.Equal(t, "open", day.Status)
	assert.Equal(t, schedule.TimeOfDay(9*60), day.OpenAt)
	assert.Equal(t, schedule.TimeOfDay(17*60), day.CloseAt)
}

func TestResolveDayNoHoursRow(t *testing.T) {
	svc, _, branchID := setupClinic(t)

	day, err := svc.ResolveDay(context.Background(), branchID, aSunday)
	require.NoError(t, err)
	assert.False(t, day.Open)
	assert.Equal(t, "closed", day.Status)
}

func TestResolveDayClosedOverride(t *testing.T) {
	svc, repo, branchID := setupClinic(t)
	repo.statuses[statusKey(branchID, aMonday)] = &DailyStatus{
		BranchID: branchID, Date: aMonday, Status: DayClosed, Reason: "staff training",
	}

	day, err := svc.ResolveDay(context.Background(), branchID, aMonday)
	require.NoError(t, err)
	assert.False(t, day.Open)
	assert.Equal(t, "closed", day.Status)
	assert.Equal(t, "staff training", day.Reason)
}

func TestResolveDayFullyBookedOverride(t *testing.T) {
	svc, repo, branchID := setupClinic(t)
	repo.statuses[statusKey(branchID, aMonday)] = &DailyStatus{
		BranchID: branchID, Date: aMonday, Status: DayFullyBooked,
	}

	day, err := svc.ResolveDay(context.Background(), branchID, aMonday)
	require.NoError(t, err)
	assert.True(t, day.Open)
	assert.True(t, day.FullyBooked)
	assert.Equal(t, "fully_booked", day.Status)
}

func TestResolveDayBusyIsAdvisory(t *testing.T) {
	svc, repo, branchID := setupClinic(t)
	repo.statuses[statusKey(branchID, aMonday)] = &DailyStatus{
		BranchID: branchID, Date: aMonday, Status: DayBusy, Reason: "short staffed",
	}

	day, err := svc.ResolveDay(context.Background(), branchID, aMonday)
	require.NoError(t, err)
	assert.True(t, day.Open)
	assert.False(t, day.FullyBooked)
	assert.Equal(t, "busy", day.Status)
	assert.Equal(t, "short staffed", day.Reason)
}

func TestResolveDayUnknownBranch(t *testing.T) {
	svc, _, _ := setupClinic(t)

	_, err := svc.ResolveDay(context.Background(), uuid.New(), aMonday)
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestSetDailyStatusValidation(t *testing.T) {
	svc, _, branchID := setupClinic(t)

	_, err := svc.SetDailyStatus(context.Background(), branchID, aMonday, DayStatus("half_open"), "")
	assert.ErrorIs(t, err, ErrValidation)

	st, err := svc.SetDailyStatus(context.Background(), branchID, aMonday, DayBusy, "flu season")
	require.NoError(t, err)
	assert.Equal(t, DayBusy, st.Status)

	// Upsert overwrites the same date.
	st, err = svc.SetDailyStatus(context.Background(), branchID, aMonday, DayClosed, "burst pipe")
	require.NoError(t, err)
	assert.Equal(t, DayClosed, st.Status)
}

type captureRecorder struct {
	events []events.Event
}

func (c *captureRecorder) Append(ctx context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestDailyStatusChangesAreLogged(t *testing.T) {
	_, repo, branchID := setupClinic(t)
	recorder := &captureRecorder{}
	svc := NewService(repo, recorder)

	_, err := svc.SetDailyStatus(context.Background(), branchID, aMonday, DayClosed, "staff training")
	require.NoError(t, err)
	err = svc.RemoveDailyStatus(context.Background(), branchID, aMonday)
	require.NoError(t, err)

	require.Len(t, recorder.events, 2)
	assert.Equal(t, events.DailyStatusSet, recorder.events[0].EventType)
	assert.Equal(t, events.DailyStatusRemoved, recorder.events[1].EventType)
	require.NotNil(t, recorder.events[0].BranchID)
	assert.Equal(t, branchID, *recorder.events[0].BranchID)
	assert.Contains(t, string(recorder.events[0].Payload), "staff training")
}

func TestActiveTreatment(t *testing.T) {
	svc, repo, branchID := setupClinic(t)

	active := &TreatmentType{ID: uuid.New(), BranchID: branchID, Name: "Cleaning", DurationMinutes: 30, Active: true}
	retired := &TreatmentType{ID: uuid.New(), BranchID: branchID, Name: "Old Procedure", DurationMinutes: 60}
	repo.treatments[active.ID] = active
	repo.treatments[retired.ID] = retired

	got, err := svc.ActiveTreatment(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cleaning", got.Name)

	_, err = svc.ActiveTreatment(context.Background(), retired.ID)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ActiveTreatment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTreatmentNotFound)
}

func TestAddBlockValidation(t *testing.T) {
	svc, _, branchID := setupClinic(t)

	_, err := svc.AddBlock(context.Background(), BlockedSlot{
		BranchID: branchID, Date: aMonday, Start: schedule.TimeOfDay(12 * 60), Minutes: 60, Kind: "vacation",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddBlock(context.Background(), BlockedSlot{
		BranchID: branchID, Date: aMonday, Start: schedule.TimeOfDay(12 * 60), Minutes: 0, Kind: BlockOther,
	})
	assert.ErrorIs(t, err, ErrValidation)

	// 23:30 + 60min spills into the next day.
	_, err = svc.AddBlock(context.Background(), BlockedSlot{
		BranchID: branchID, Date: aMonday, Start: schedule.TimeOfDay(23*60 + 30), Minutes: 60, Kind: BlockOther,
	})
	assert.ErrorIs(t, err, ErrValidation)

	b, err := svc.AddBlock(context.Background(), BlockedSlot{
		BranchID: branchID, Date: aMonday, Start: schedule.TimeOfDay(12 * 60), Minutes: 60,
		Reason: "Equipment maintenance", Kind: BlockMaintenance,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, b.ID)
}

func TestOccupanciesFromBlocks(t *testing.T) {
	svc, _, branchID := setupClinic(t)

	_, err := svc.AddBlock(context.Background(), BlockedSlot{
		BranchID: branchID, Date: aMonday, Start: schedule.TimeOfDay(10 * 60), Minutes: 30,
		Reason: "Staff meeting", Kind: BlockPersonal,
	})
	require.NoError(t, err)

	occ, err := svc.Occupancies(context.Background(), branchID, aMonday)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, schedule.OccupancyBlock, occ[0].Kind)
	assert.Equal(t, "Staff meeting", occ[0].Label)
	assert.Equal(t, schedule.TimeOfDay(10*60), occ[0].Interval.Start)
}

func TestSweep(t *testing.T) {
	svc, repo, branchID := setupClinic(t)

	past := aMonday.AddDate(0, 0, -7)
	repo.statuses[statusKey(branchID, past)] = &DailyStatus{BranchID: branchID, Date: past, Status: DayClosed}
	repo.statuses[statusKey(branchID, aMonday)] = &DailyStatus{BranchID: branchID, Date: aMonday, Status: DayBusy}
	repo.blocks[uuid.New()] = &BlockedSlot{ID: uuid.New(), BranchID: branchID, Date: past, Kind: BlockOther}

	statuses, blocks, err := svc.Sweep(context.Background(), aMonday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), statuses)
	assert.Equal(t, int64(1), blocks)

	// Today's row survives.
	_, ok := repo.statuses[statusKey(branchID, aMonday)]
	assert.True(t, ok)
}
