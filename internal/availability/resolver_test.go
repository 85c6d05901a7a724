package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okabe/storefront-booking/internal/model"
)

type fakeCandidates struct {
	candidates []Candidate
	gotStore   uint64
	gotFac     *uint64
	err        error
}

func (f *fakeCandidates) OverlapCandidates(_ context.Context, storeID uint64, facilityID *uint64, _ int64) ([]Candidate, error) {
	f.gotStore = storeID
	f.gotFac = facilityID
	return f.candidates, f.err
}

type fakeStaff struct {
	schedules []model.StaffSchedule
}

func (f *fakeStaff) StaffSchedules(context.Context, uint64) ([]model.StaffSchedule, error) {
	return f.schedules, nil
}

func u64(v uint64) *uint64 { return &v }
func ip(v int) *int        { return &v }

// ms converts a wall-clock string to UTC epoch milliseconds.
func ms(t *testing.T, value string) int64 {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts.UnixMilli()
}

func settings() *Settings {
	return &Settings{DefaultDurationMin: 60}
}

func TestCheckRejectsOverlap(t *testing.T) {
	src := &fakeCandidates{candidates: []Candidate{
		{ID: 11, FacilityID: u64(1), StartMs: ms(t, "2026-08-24 10:00")},
	}}
	r := NewResolver(src, nil)

	err := r.Check(context.Background(), settings(), Request{
		StoreID:    1,
		FacilityID: u64(1),
		StartMs:    ms(t, "2026-08-24 10:30"),
	})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.ReservationID != 11 || ce.Rule != RuleFacility {
		t.Errorf("got rule=%s id=%d", ce.Rule, ce.ReservationID)
	}
}

func TestCheckAcceptsTouchingBoundaries(t *testing.T) {
	// Existing 10:00-11:00 with the default 60-minute duration.
	src := &fakeCandidates{candidates: []Candidate{
		{ID: 11, FacilityID: u64(1), StartMs: ms(t, "2026-08-24 10:00")},
	}}
	r := NewResolver(src, nil)

	for _, start := range []string{"2026-08-24 11:00", "2026-08-24 09:00"} {
		err := r.Check(context.Background(), settings(), Request{
			StoreID:    1,
			FacilityID: u64(1),
			StartMs:    ms(t, start),
		})
		if err != nil {
			t.Errorf("window starting %s merely touches, got %v", start, err)
		}
	}
}

func TestCheckSingleServiceModeIgnoresFacility(t *testing.T) {
	src := &fakeCandidates{candidates: []Candidate{
		{ID: 5, FacilityID: u64(2), StartMs: ms(t, "2026-08-24 10:00")},
	}}
	r := NewResolver(src, nil)

	err := r.Check(context.Background(), &Settings{SingleServiceMode: true, DefaultDurationMin: 60}, Request{
		StoreID:    1,
		FacilityID: u64(1), // different facility still conflicts
		StartMs:    ms(t, "2026-08-24 10:30"),
	})
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Rule != RuleSingleService {
		t.Fatalf("expected single-service conflict, got %v", err)
	}
	if src.gotFac != nil {
		t.Error("single-service mode must drop the facility filter")
	}
}

func TestCheckExcludesEditedReservation(t *testing.T) {
	src := &fakeCandidates{candidates: []Candidate{
		{ID: 11, FacilityID: u64(1), StartMs: ms(t, "2026-08-24 10:00")},
	}}
	r := NewResolver(src, nil)

	err := r.Check(context.Background(), settings(), Request{
		StoreID:    1,
		FacilityID: u64(1),
		StartMs:    ms(t, "2026-08-24 10:30"),
		ExcludeID:  11,
	})
	if err != nil {
		t.Errorf("a reservation must not conflict with itself on edit: %v", err)
	}
}

func TestCheckDurationFallbackChain(t *testing.T) {
	// Candidate at 12:00. Each step of the chain changes whether an
	// 11:00 booking reaches it.
	src := &fakeCandidates{candidates: []Candidate{
		{ID: 3, FacilityID: u64(1), StartMs: ms(t, "2026-08-24 12:00")},
	}}
	r := NewResolver(src, nil)
	base := Request{StoreID: 1, FacilityID: u64(1), StartMs: ms(t, "2026-08-24 11:00")}

	// Explicit 90 min wins over everything and reaches 12:30.
	req := base
	req.DurationMin = 90
	req.FacilityDur = ip(30)
	if err := r.Check(context.Background(), settings(), req); err == nil {
		t.Error("explicit 90-minute window should conflict")
	}
	// Facility 30 min beats the store default and ends at 11:30.
	req = base
	req.FacilityDur = ip(30)
	if err := r.Check(context.Background(), settings(), req); err != nil {
		t.Errorf("facility 30-minute window should fit: %v", err)
	}
	// Store default 120 min.
	if err := r.Check(context.Background(), &Settings{DefaultDurationMin: 120}, base); err == nil {
		t.Error("store default 120-minute window should conflict")
	}
	// Hard default of 60 min when the store configures single-service
	// mode but no duration.
	if err := r.Check(context.Background(), &Settings{SingleServiceMode: true}, base); err != nil {
		t.Errorf("hard default 60-minute window should fit: %v", err)
	}
}

func TestCheckNilSettingsSkipsValidation(t *testing.T) {
	src := &fakeCandidates{candidates: []Candidate{
		{ID: 11, FacilityID: u64(1), StartMs: ms(t, "2026-08-24 10:00")},
	}}
	r := NewResolver(src, nil)

	err := r.Check(context.Background(), nil, Request{
		StoreID:    1,
		FacilityID: u64(1),
		StartMs:    ms(t, "2026-08-24 10:00"),
	})
	if err != nil {
		t.Errorf("nil settings must skip validation entirely: %v", err)
	}
	if src.gotStore != 0 {
		t.Error("candidate source must not be consulted without settings")
	}
}

func TestCheckStaffHours(t *testing.T) {
	staff := &fakeStaff{schedules: []model.StaffSchedule{
		{ID: 1, HoursJSON: `{"monday":[{"from":"09:00","to":"17:00"}]}`},
	}}
	r := NewResolver(&fakeCandidates{}, staff)

	// 2026-08-24 is a Monday. 16:00 + 60 min touches closing exactly.
	err := r.Check(context.Background(), settings(), Request{
		StoreID: 1,
		StaffID: u64(4),
		StartMs: ms(t, "2026-08-24 16:00"),
	})
	if err != nil {
		t.Errorf("window ending at closing time should pass: %v", err)
	}

	// 16:30 + 60 min runs past closing.
	err = r.Check(context.Background(), settings(), Request{
		StoreID: 1,
		StaffID: u64(4),
		StartMs: ms(t, "2026-08-24 16:30"),
	})
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Rule != RuleStaffHours {
		t.Fatalf("expected staff-hours conflict, got %v", err)
	}

	// Tuesday is absent from the schedule entirely.
	err = r.Check(context.Background(), settings(), Request{
		StoreID: 1,
		StaffID: u64(4),
		StartMs: ms(t, "2026-08-25 10:00"),
	})
	if !errors.As(err, &ce) || ce.Rule != RuleStaffHours {
		t.Fatalf("expected staff-hours conflict on closed day, got %v", err)
	}
}

func TestCheckStaffHoursSplitShift(t *testing.T) {
	staff := &fakeStaff{schedules: []model.StaffSchedule{
		{ID: 1, HoursJSON: `{"monday":[{"from":"09:00","to":"12:00"},{"from":"13:00","to":"17:00"}]}`},
	}}
	r := NewResolver(&fakeCandidates{}, staff)

	// 11:00 + 180 min starts in the morning shift and ends in the
	// afternoon one, but bridges the closed 12:00-13:00 break.
	err := r.Check(context.Background(), settings(), Request{
		StoreID:     1,
		StaffID:     u64(4),
		StartMs:     ms(t, "2026-08-24 11:00"),
		DurationMin: 180,
	})
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Rule != RuleStaffHours {
		t.Fatalf("window bridging the shift break must conflict, got %v", err)
	}

	// A window inside a single shift still passes.
	err = r.Check(context.Background(), settings(), Request{
		StoreID:     1,
		StaffID:     u64(4),
		StartMs:     ms(t, "2026-08-24 13:00"),
		DurationMin: 180,
	})
	if err != nil {
		t.Errorf("window inside the afternoon shift should pass: %v", err)
	}
}

func TestCheckStaffWithoutScheduleUnrestricted(t *testing.T) {
	r := NewResolver(&fakeCandidates{}, &fakeStaff{})
	err := r.Check(context.Background(), settings(), Request{
		StoreID: 1,
		StaffID: u64(4),
		StartMs: ms(t, "2026-08-24 03:00"),
	})
	if err != nil {
		t.Errorf("staff with no schedules is unrestricted: %v", err)
	}
}
