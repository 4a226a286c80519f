package capability_test

import (
	"context"
	"strings"
	"testing"

	"warebot/internal/capability"
	"warebot/internal/domain"
)

func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestNavigatorMovesOnClearPath(t *testing.T) {
	nav := capability.NewNavigator("PACK-1", 5, 0.5, 0.5, capability.Options{Rand: fixedRand(1)})
	res := nav.MoveTo(context.Background(), "A1")
	if !res.Success || res.CostConsumed != 5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if nav.Location() != "A1" {
		t.Fatalf("expected location A1, got %s", nav.Location())
	}
	if len(nav.Events()) != 0 {
		t.Fatalf("clear path must record nothing, got %v", nav.Events())
	}
}

func TestNavigatorReroutesAroundObstacle(t *testing.T) {
	nav := capability.NewNavigator("PACK-1", 5, 1, 0, capability.Options{Rand: fixedRand(0)})
	res := nav.MoveTo(context.Background(), "B2")
	if !res.Success {
		t.Fatalf("reroute should succeed, got %+v", res)
	}
	events := nav.Events()
	if len(events) != 1 || !strings.Contains(events[0], "obstacle") {
		t.Fatalf("expected one obstacle event, got %v", events)
	}
}

func TestNavigatorRerouteFailure(t *testing.T) {
	nav := capability.NewNavigator("PACK-1", 5, 1, 1, capability.Options{Rand: fixedRand(0)})
	res := nav.MoveTo(context.Background(), "B2")
	if res.Success {
		t.Fatal("reroute must fail")
	}
	if !strings.Contains(res.FailureReason, "unreachable") {
		t.Fatalf("unexpected reason %q", res.FailureReason)
	}
	if nav.Location() != "PACK-1" {
		t.Fatalf("failed move must not change location, got %s", nav.Location())
	}
	if len(nav.Events()) != 2 {
		t.Fatalf("expected obstacle and reroute events, got %v", nav.Events())
	}
}

func TestNavigatorSemiAutoDecline(t *testing.T) {
	nav := capability.NewNavigator("PACK-1", 5, 1, 0, capability.Options{
		Mode:    domain.ModeSemiAuto,
		Rand:    fixedRand(0),
		Confirm: func(string) bool { return false },
	})
	res := nav.MoveTo(context.Background(), "B2")
	if res.Success || !strings.Contains(res.FailureReason, "declined") {
		t.Fatalf("declined reroute must fail, got %+v", res)
	}
}

func TestNavigatorCanceledContext(t *testing.T) {
	nav := capability.NewNavigator("PACK-1", 5, 0, 0, capability.Options{Rand: fixedRand(1)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := nav.MoveTo(ctx, "A1"); res.Success {
		t.Fatal("canceled move must fail")
	}
}

func TestSensorDetectsMismatch(t *testing.T) {
	sensor := capability.NewSensor(0, capability.Options{Rand: fixedRand(1)})
	item := domain.Item{ID: "SKU002", Location: "A1"}
	res := sensor.Verify(context.Background(), item, "SKU001")
	if res.Success {
		t.Fatal("mismatch must fail")
	}
	readings := sensor.Readings()
	if len(readings) != 1 || !strings.Contains(readings[0], "mismatch") {
		t.Fatalf("expected mismatch reading, got %v", readings)
	}
}

func TestSensorRetriesTransientFailure(t *testing.T) {
	sensor := capability.NewSensor(1, capability.Options{Rand: fixedRand(0)})
	item := domain.Item{ID: "SKU001", Location: "A1"}
	res := sensor.Verify(context.Background(), item, "SKU001")
	if !res.Success {
		t.Fatalf("retried scan should succeed, got %+v", res)
	}
	readings := sensor.Readings()
	if len(readings) != 2 || !strings.Contains(readings[1], "retry") {
		t.Fatalf("expected fail then retry readings, got %v", readings)
	}
}

func TestSensorSemiAutoDecline(t *testing.T) {
	sensor := capability.NewSensor(1, capability.Options{
		Mode:    domain.ModeSemiAuto,
		Rand:    fixedRand(0),
		Confirm: func(string) bool { return false },
	})
	item := domain.Item{ID: "SKU001", Location: "A1"}
	if res := sensor.Verify(context.Background(), item, "SKU001"); res.Success {
		t.Fatal("declined retry must fail")
	}
}

func TestGripperLIFO(t *testing.T) {
	grip := capability.NewGripper(3, capability.Options{})
	a := domain.Item{ID: "A"}
	b := domain.Item{ID: "B"}
	if res := grip.Pick(context.Background(), a); !res.Success || res.CostConsumed != 3 {
		t.Fatalf("unexpected pick result %+v", res)
	}
	grip.Pick(context.Background(), b)
	dropped, ok := grip.Drop()
	if !ok || dropped.ID != "B" {
		t.Fatalf("expected B dropped first, got %v %v", dropped, ok)
	}
	released := grip.Clear()
	if len(released) != 1 || released[0].ID != "A" {
		t.Fatalf("expected A released, got %v", released)
	}
	if grip.Held() != 0 {
		t.Fatalf("gripper should be empty, holds %d", grip.Held())
	}
	if _, ok := grip.Drop(); ok {
		t.Fatal("drop on empty gripper must report false")
	}
}

func TestStationStaging(t *testing.T) {
	station := capability.NewStation("PACK-1")
	if station.ID() != "PACK-1" {
		t.Fatalf("unexpected id %s", station.ID())
	}
	station.Stage(domain.Item{ID: "A"})
	station.Stage(domain.Item{ID: "B"})
	if station.StagedCount() != 2 {
		t.Fatalf("expected 2 staged, got %d", station.StagedCount())
	}
	items := station.DrainStaged()
	if len(items) != 2 || items[0].ID != "A" || items[1].ID != "B" {
		t.Fatalf("unexpected drain order %v", items)
	}
	if station.StagedCount() != 0 {
		t.Fatal("drain must clear the staging area")
	}
	station.RecordPacked("O1")
	if got := station.PackedOrders(); len(got) != 1 || got[0] != "O1" {
		t.Fatalf("unexpected packed orders %v", got)
	}
}
