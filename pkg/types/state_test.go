package types_test

import (
	"testing"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

func TestValidStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to types.CurationStatus
		want     bool
	}{
		{types.StatusPending, types.StatusApproved, true},
		{types.StatusPending, types.StatusRejected, true},
		{types.StatusPending, types.StatusPending, false},
		{types.StatusApproved, types.StatusRejected, false},
		{types.StatusApproved, types.StatusPending, false},
		{types.StatusRejected, types.StatusApproved, false},
		{types.StatusRejected, types.StatusPending, false},
		{"unknown", types.StatusApproved, false},
		{types.StatusPending, "archived", false},
	}

	for _, tt := range tests {
		if got := types.IsValidStatusTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("IsValidStatusTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if types.StatusPending.IsTerminal() {
		t.Error("pending should not be terminal")
	}
	if !types.StatusApproved.IsTerminal() || !types.StatusRejected.IsTerminal() {
		t.Error("approved and rejected should be terminal")
	}
}
