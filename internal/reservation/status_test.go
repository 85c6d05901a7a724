package reservation

import (
	"testing"

	"github.com/okabe/storefront-booking/internal/model"
)

var allStatuses = []string{
	model.StatusPending,
	model.StatusReadyToConfirm,
	model.StatusReady,
	model.StatusCheckedIn,
	model.StatusCompleted,
	model.StatusCancelled,
	model.StatusNoShow,
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]string]bool{
		{model.StatusPending, model.StatusReadyToConfirm}:        true,
		{model.StatusPending, model.StatusReady}:                 true,
		{model.StatusPending, model.StatusCancelled}:             true,
		{model.StatusReadyToConfirm, model.StatusReady}:          true,
		{model.StatusReadyToConfirm, model.StatusCheckedIn}:      true,
		{model.StatusReadyToConfirm, model.StatusCancelled}:      true,
		{model.StatusReady, model.StatusCheckedIn}:               true,
		{model.StatusReady, model.StatusNoShow}:                  true,
		{model.StatusReady, model.StatusCancelled}:               true,
		{model.StatusCheckedIn, model.StatusCompleted}:           true,
		{model.StatusCheckedIn, model.StatusCancelled}:           true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]string{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatusesAdmitNothing(t *testing.T) {
	for _, from := range []string{model.StatusCompleted, model.StatusCancelled, model.StatusNoShow} {
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
}

func TestCanEdit(t *testing.T) {
	for _, s := range allStatuses {
		want := s == model.StatusPending
		if got := CanEdit(s); got != want {
			t.Errorf("CanEdit(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestCheckInFrom(t *testing.T) {
	tests := []struct {
		status      string
		ok, already bool
	}{
		{model.StatusReady, true, false},
		{model.StatusReadyToConfirm, true, false},
		{model.StatusCheckedIn, false, true},
		{model.StatusCompleted, false, true},
		{model.StatusPending, false, false},
		{model.StatusCancelled, false, false},
		{model.StatusNoShow, false, false},
	}
	for _, tc := range tests {
		ok, already := CheckInFrom(tc.status)
		if ok != tc.ok || already != tc.already {
			t.Errorf("CheckInFrom(%s) = (%v, %v), want (%v, %v)", tc.status, ok, already, tc.ok, tc.already)
		}
	}
}

func TestCanNoShowOnlyFromReady(t *testing.T) {
	for _, s := range allStatuses {
		want := s == model.StatusReady
		if got := CanNoShow(s); got != want {
			t.Errorf("CanNoShow(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestCanCancel(t *testing.T) {
	terminal := map[string]bool{
		model.StatusCompleted: true,
		model.StatusCancelled: true,
		model.StatusNoShow:    true,
	}
	for _, s := range allStatuses {
		if got := CanCancel(s); got == terminal[s] {
			t.Errorf("CanCancel(%s) = %v", s, got)
		}
	}
}

func TestCanDelete(t *testing.T) {
	for _, s := range allStatuses {
		if CanDelete(s, true) {
			t.Errorf("paid reservation in %s must never be deletable", s)
		}
		want := s == model.StatusPending || s == model.StatusReadyToConfirm
		if got := CanDelete(s, false); got != want {
			t.Errorf("CanDelete(%s, unpaid) = %v, want %v", s, got, want)
		}
	}
}

func TestValidInitialStatus(t *testing.T) {
	valid := map[string]bool{
		model.StatusPending:        true,
		model.StatusReadyToConfirm: true,
		model.StatusReady:          true,
	}
	for _, s := range allStatuses {
		if got := ValidInitialStatus(s); got != valid[s] {
			t.Errorf("ValidInitialStatus(%s) = %v, want %v", s, got, valid[s])
		}
	}
	if ValidInitialStatus("BOGUS") {
		t.Error("unknown status must not be a valid start")
	}
}
