package robot

import "testing"

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		to   Status
		ok   bool
	}{
		{StatusIdle, EventTaskStarted, StatusNavigating, true},
		{StatusIdle, EventBatteryLow, StatusCharging, true},
		{StatusNavigating, EventArrived, StatusRetrieving, true},
		{StatusNavigating, EventBatteryLow, StatusCharging, true},
		{StatusNavigating, EventFault, StatusError, true},
		{StatusRetrieving, EventItemSecured, StatusPacking, true},
		{StatusRetrieving, EventFault, StatusError, true},
		{StatusPacking, EventPacked, StatusIdle, true},
		{StatusCharging, EventResumeNavigating, StatusNavigating, true},
		{StatusCharging, EventResumeRetrieving, StatusRetrieving, true},
		{StatusCharging, EventResumePacking, StatusPacking, true},
		{StatusError, EventRecovered, StatusIdle, true},
		// undefined pairs
		{StatusIdle, EventArrived, StatusIdle, false},
		{StatusIdle, EventRecovered, StatusIdle, false},
		{StatusError, EventTaskStarted, StatusError, false},
		{StatusCharging, EventTaskStarted, StatusCharging, false},
		{StatusPacking, EventArrived, StatusPacking, false},
	}
	for _, c := range cases {
		got, err := Next(c.from, c.ev)
		if c.ok {
			if err != nil {
				t.Fatalf("%s on %s: unexpected error %v", c.ev, c.from, err)
			}
			if got != c.to {
				t.Fatalf("%s on %s: expected %s, got %s", c.ev, c.from, c.to, got)
			}
		} else if err == nil {
			t.Fatalf("%s on %s: expected error", c.ev, c.from)
		}
	}
}

func TestFullCycleThroughTable(t *testing.T) {
	s := StatusIdle
	for _, ev := range []Event{EventTaskStarted, EventArrived, EventItemSecured, EventPacked} {
		next, err := Next(s, ev)
		if err != nil {
			t.Fatalf("%s on %s: %v", ev, s, err)
		}
		s = next
	}
	if s != StatusIdle {
		t.Fatalf("expected cycle back to IDLE, got %s", s)
	}
}
