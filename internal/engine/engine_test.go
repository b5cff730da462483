package engine

import (
	"testing"
	"time"

	"github.com/talkincode/toughwatch/internal/domain"
)

func testServices() []domain.Service {
	return []domain.Service{{Name: "api", URL: "http://example.com", Type: domain.CheckTypeHTTP}}
}

func newTestEngine(red int) *Engine {
	return New(Thresholds{YellowLatency: 2 * time.Second, RedConsecutiveFailures: red}, testServices(), nil)
}

func success(latency time.Duration) domain.Measurement {
	return domain.Measurement{Service: "api", Timestamp: time.Now(), Success: true, Latency: latency}
}

func failure() domain.Measurement {
	return domain.Measurement{Service: "api", Timestamp: time.Now(), Error: "request timed out"}
}

func TestFastSuccessStaysOperational(t *testing.T) {
	e := newTestEngine(3)
	for i := 0; i < 5; i++ {
		st, tr := e.Apply(success(500 * time.Millisecond))
		if st.Status != domain.StatusOperational {
			t.Fatalf("cycle %d: status = %s, want operational", i, st.Status)
		}
		if st.ConsecutiveFailures != 0 {
			t.Fatalf("cycle %d: consecutive failures = %d, want 0", i, st.ConsecutiveFailures)
		}
		if tr != nil {
			t.Fatalf("cycle %d: unexpected transition %+v", i, tr)
		}
	}
}

func TestSlowSuccessDegrades(t *testing.T) {
	e := newTestEngine(3)
	st, tr := e.Apply(success(3 * time.Second))
	if st.Status != domain.StatusDegraded {
		t.Fatalf("status = %s, want degraded", st.Status)
	}
	if st.ConsecutiveFailures != 0 {
		t.Fatalf("consecutive failures = %d, want 0", st.ConsecutiveFailures)
	}
	if tr == nil || tr.From != domain.StatusOperational || tr.To != domain.StatusDegraded {
		t.Fatalf("transition = %+v, want operational->degraded", tr)
	}
}

func TestLatencyAtThresholdStaysOperational(t *testing.T) {
	e := newTestEngine(3)
	st, _ := e.Apply(success(2 * time.Second))
	if st.Status != domain.StatusOperational {
		t.Fatalf("status = %s, want operational at exactly the threshold", st.Status)
	}
}

func TestDownExactlyAtThreshold(t *testing.T) {
	e := newTestEngine(3)
	for i := 1; i <= 2; i++ {
		st, tr := e.Apply(failure())
		if st.Status != domain.StatusOperational {
			t.Fatalf("failure %d: status = %s, want operational before the threshold", i, st.Status)
		}
		if st.ConsecutiveFailures != i {
			t.Fatalf("failure %d: consecutive failures = %d, want %d", i, st.ConsecutiveFailures, i)
		}
		if tr != nil {
			t.Fatalf("failure %d: unexpected transition %+v", i, tr)
		}
	}

	st, tr := e.Apply(failure())
	if st.Status != domain.StatusDown {
		t.Fatalf("status = %s, want down at the threshold", st.Status)
	}
	if tr == nil || tr.From != domain.StatusOperational || tr.To != domain.StatusDown {
		t.Fatalf("transition = %+v, want operational->down", tr)
	}

	st, tr = e.Apply(failure())
	if st.Status != domain.StatusDown {
		t.Fatalf("status = %s, want down to stick", st.Status)
	}
	if tr != nil {
		t.Fatalf("repeat failure produced a second transition %+v", tr)
	}
	if st.ConsecutiveFailures != 4 {
		t.Fatalf("consecutive failures = %d, want 4", st.ConsecutiveFailures)
	}
}

func TestSuccessResetsCounterAndRestores(t *testing.T) {
	e := newTestEngine(3)
	for i := 0; i < 3; i++ {
		e.Apply(failure())
	}

	st, tr := e.Apply(success(100 * time.Millisecond))
	if st.Status != domain.StatusOperational {
		t.Fatalf("status = %s, want operational", st.Status)
	}
	if st.ConsecutiveFailures != 0 {
		t.Fatalf("consecutive failures = %d, want 0 after success", st.ConsecutiveFailures)
	}
	if tr == nil || tr.From != domain.StatusDown || tr.To != domain.StatusOperational {
		t.Fatalf("transition = %+v, want down->operational", tr)
	}
}

func TestFailureBelowThresholdKeepsPriorStatus(t *testing.T) {
	e := newTestEngine(3)
	e.Apply(success(3 * time.Second))

	st, tr := e.Apply(failure())
	if st.Status != domain.StatusDegraded {
		t.Fatalf("status = %s, want degraded kept through a single failure", st.Status)
	}
	if st.ConsecutiveFailures != 1 {
		t.Fatalf("consecutive failures = %d, want 1", st.ConsecutiveFailures)
	}
	if tr != nil {
		t.Fatalf("unexpected transition %+v", tr)
	}
}

func TestExactlyOneTransitionPerOutage(t *testing.T) {
	e := newTestEngine(3)
	transitions := 0
	for i := 0; i < 3; i++ {
		if _, tr := e.Apply(failure()); tr != nil {
			transitions++
		}
	}
	if transitions != 1 {
		t.Fatalf("transitions = %d, want exactly 1", transitions)
	}
}

func TestSeedRestoresPriorClassification(t *testing.T) {
	seeds := map[string]domain.ServiceState{
		"api": {Service: "api", Status: domain.StatusDown, ConsecutiveFailures: 5},
	}
	e := New(Thresholds{YellowLatency: 2 * time.Second, RedConsecutiveFailures: 3}, testServices(), seeds)

	st, found := e.State("api")
	if !found {
		t.Fatal("seeded state not found")
	}
	if st.Status != domain.StatusDown || st.ConsecutiveFailures != 5 {
		t.Fatalf("seeded state = %+v", st)
	}

	if _, tr := e.Apply(failure()); tr != nil {
		t.Fatalf("restart re-announced a known outage: %+v", tr)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e := newTestEngine(3)
	e.Apply(success(100 * time.Millisecond))

	snap := e.Snapshot()
	st := snap["api"]
	if st.LastMeasurement == nil {
		t.Fatal("snapshot missing last measurement")
	}
	st.LastMeasurement.Error = "mutated"

	fresh, _ := e.State("api")
	if fresh.LastMeasurement.Error == "mutated" {
		t.Fatal("snapshot shares the measurement with the engine")
	}
}
