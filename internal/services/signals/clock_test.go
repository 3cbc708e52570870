package signals

import (
	"testing"

	"CourtArb/internal/domain/models"
)

func TestEstimateRemaining(t *testing.T) {
	tests := []struct {
		name   string
		state  models.LifecycleState
		label  string
		clock  string
		want   int
		wantOK bool
	}{
		{"scheduled counts a full game", models.StateScheduled, "", "", RegulationSeconds, true},
		{"final state", models.StateFinal, "Q4", "0:00", 0, true},
		{"final label while live", models.StateLive, "Final/OT", "", 0, true},
		{"tip off", models.StateLive, "Q1", "12:00", 2880, true},
		{"third quarter", models.StateLive, "Q3", "6:00", 1080, true},
		{"late fourth", models.StateLive, "Q4", "2:30", 150, true},
		{"sub minute clock", models.StateLive, "Q2", "45.2", 45 + 2*QuarterSeconds, true},
		{"halftime", models.StateLive, "HALF", "", 1440, true},
		{"overtime capped", models.StateLive, "OT1", "7:00", OvertimeCap, true},
		{"overtime", models.StateLive, "ot2", "1:10", 70, true},
		{"clock above quarter length", models.StateLive, "Q4", "15:00", QuarterSeconds, true},
		{"unknown label", models.StateLive, "??", "5:00", 0, false},
		{"bad quarter", models.StateLive, "Q5", "5:00", 0, false},
		{"bad clock", models.StateLive, "Q2", "x:y", 0, false},
		{"missing clock", models.StateLive, "Q2", "", 0, false},
		{"bad seconds", models.StateLive, "Q2", "5:75", 0, false},
		{"nan seconds", models.StateLive, "Q2", "5:NaN", 0, false},
		{"nan clock", models.StateLive, "Q2", "NaN", 0, false},
		{"infinite clock", models.StateLive, "Q4", "+Inf", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EstimateRemaining(tt.state, tt.label, tt.clock)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("EstimateRemaining(%s, %q, %q) = (%d, %v), want (%d, %v)",
					tt.state, tt.label, tt.clock, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPeriodLabel(t *testing.T) {
	cases := map[int]string{0: "", 1: "Q1", 4: "Q4", 5: "OT1", 7: "OT3"}
	for period, want := range cases {
		if got := PeriodLabel(period); got != want {
			t.Errorf("PeriodLabel(%d) = %q, want %q", period, got, want)
		}
	}
}
