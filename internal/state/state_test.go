package state

import (
	"testing"
	"time"

	"github.com/kprice-io/dnssync/internal/intent"
	"github.com/kprice-io/dnssync/internal/record"
)

func mustIntent(t *testing.T, name, value, containerID string) intent.Intent {
	t.Helper()
	rec, err := record.NewA(name, value)
	if err != nil {
		t.Fatalf("building record: %v", err)
	}
	return intent.New(rec, "hostA", containerID, "web", time.Time{}, false)
}

func TestUpsertAndDesiredIntents(t *testing.T) {
	tr := New()
	i1 := mustIntent(t, "api.example.com", "10.0.0.1", "c1")
	i2 := mustIntent(t, "db.example.com", "10.0.0.2", "c2")
	now := time.Unix(1000, 0)

	tr.Upsert("c1", "web1", now, []intent.Intent{i1}, StatusRunning, now)
	tr.Upsert("c2", "web2", now, []intent.Intent{i2}, StatusRunning, now)

	got := tr.DesiredIntents()
	if len(got) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(got))
	}
	if tr.Len() != 2 {
		t.Errorf("expected Len 2, got %d", tr.Len())
	}
}

func TestUpsertReplacesPrevious(t *testing.T) {
	tr := New()
	i1 := mustIntent(t, "api.example.com", "10.0.0.1", "c1")
	i2 := mustIntent(t, "api.example.com", "10.0.0.2", "c1")
	now := time.Unix(1000, 0)

	tr.Upsert("c1", "web", now, []intent.Intent{i1}, StatusRunning, now)
	tr.Upsert("c1", "web", now, []intent.Intent{i2}, StatusRunning, now)

	got := tr.DesiredIntents()
	if len(got) != 1 || got[0] != i2 {
		t.Fatalf("expected upsert to replace, got %+v", got)
	}
}

func TestMarkRemovedExcludesFromDesiredImmediately(t *testing.T) {
	tr := New()
	i1 := mustIntent(t, "api.example.com", "10.0.0.1", "c1")
	now := time.Unix(1000, 0)
	tr.Upsert("c1", "web", now, []intent.Intent{i1}, StatusRunning, now)

	tr.MarkRemoved("c1", now.Add(time.Second))

	if len(tr.DesiredIntents()) != 0 {
		t.Fatal("expected removed container excluded from desired set immediately")
	}
	if tr.Len() != 1 {
		t.Fatalf("expected entry still tracked pending stale sweep, got Len %d", tr.Len())
	}
}

func TestRemoveStaleEvictsAfterTTL(t *testing.T) {
	tr := New()
	i1 := mustIntent(t, "api.example.com", "10.0.0.1", "c1")
	removedAt := time.Unix(1000, 0)
	tr.Upsert("c1", "web", removedAt, []intent.Intent{i1}, StatusRunning, removedAt)
	tr.MarkRemoved("c1", removedAt)

	evicted := tr.RemoveStale(removedAt.Add(5*time.Second), 10*time.Second)
	if evicted != 0 {
		t.Fatalf("expected no eviction before ttl elapses, evicted %d", evicted)
	}

	evicted = tr.RemoveStale(removedAt.Add(11*time.Second), 10*time.Second)
	if evicted != 1 {
		t.Fatalf("expected 1 eviction past ttl, got %d", evicted)
	}
	if tr.Len() != 0 {
		t.Fatal("expected entry gone after stale sweep")
	}
}

func TestMarkRemovedUnknownContainerIsNoop(t *testing.T) {
	tr := New()
	tr.MarkRemoved("ghost", time.Now())
	if tr.Len() != 0 {
		t.Errorf("expected no containers tracked, got %d", tr.Len())
	}
}

func TestRemoveStaleLeavesFreshRunningContainers(t *testing.T) {
	tr := New()
	i1 := mustIntent(t, "api.example.com", "10.0.0.1", "c1")
	now := time.Unix(1000, 0)
	tr.Upsert("c1", "web", now, []intent.Intent{i1}, StatusRunning, now)

	evicted := tr.RemoveStale(now.Add(time.Second), 10*time.Second)
	if evicted != 0 {
		t.Fatalf("expected fresh running container untouched, evicted %d", evicted)
	}
	if tr.Len() != 1 {
		t.Errorf("expected container still tracked, got Len %d", tr.Len())
	}
}
