package localfilter

import (
	"testing"
	"time"

	"github.com/kprice-io/dnssync/internal/intent"
	"github.com/kprice-io/dnssync/internal/record"
)

func mkA(t *testing.T, name, value string, created time.Time, force bool, containerID string) intent.Intent {
	t.Helper()
	rec, err := record.NewA(name, value)
	if err != nil {
		t.Fatal(err)
	}
	return intent.New(rec, "hostA", containerID, "c-"+containerID, created, force)
}

func mkCNAME(t *testing.T, name, value string, created time.Time, force bool, containerID string) intent.Intent {
	t.Helper()
	rec, err := record.NewCNAME(name, value)
	if err != nil {
		t.Fatal(err)
	}
	return intent.New(rec, "hostA", containerID, "c-"+containerID, created, force)
}

func contains(intents []intent.Intent, i intent.Intent) bool {
	for _, x := range intents {
		if x == i {
			return true
		}
	}
	return false
}

func TestApplyKeepsDistinctAValues(t *testing.T) {
	t0 := time.Unix(0, 0)
	a1 := mkA(t, "api.example.com", "10.0.0.1", t0, false, "c1")
	a2 := mkA(t, "api.example.com", "10.0.0.2", t0, false, "c2")

	out := Apply([]intent.Intent{a1, a2})
	if len(out) != 2 {
		t.Fatalf("expected 2 intents, got %d: %+v", len(out), out)
	}
}

func TestApplyACollisionOlderWins(t *testing.T) {
	older := mkA(t, "api.example.com", "10.0.0.1", time.Unix(100, 0), false, "c1")
	newer := mkA(t, "api.example.com", "10.0.0.1", time.Unix(200, 0), false, "c2")

	out := Apply([]intent.Intent{newer, older})
	if len(out) != 1 || out[0] != older {
		t.Fatalf("expected older intent to win, got %+v", out)
	}
}

func TestApplyForceBeatsAge(t *testing.T) {
	older := mkA(t, "api.example.com", "10.0.0.1", time.Unix(100, 0), false, "c1")
	newerForced := mkA(t, "api.example.com", "10.0.0.1", time.Unix(200, 0), true, "c2")

	out := Apply([]intent.Intent{older, newerForced})
	if len(out) != 1 || out[0] != newerForced {
		t.Fatalf("expected forced intent to win, got %+v", out)
	}
}

func TestApplyANewReplacesCNAMEWhenWinning(t *testing.T) {
	cname := mkCNAME(t, "api.example.com", "target.example.com", time.Unix(200, 0), false, "c1")
	a := mkA(t, "api.example.com", "10.0.0.1", time.Unix(100, 0), false, "c2")

	out := Apply([]intent.Intent{cname, a})
	if len(out) != 1 || out[0] != a {
		t.Fatalf("expected A to replace losing CNAME, got %+v", out)
	}
}

func TestApplyCNAMELosesToOlderA(t *testing.T) {
	a := mkA(t, "api.example.com", "10.0.0.1", time.Unix(100, 0), false, "c1")
	cname := mkCNAME(t, "api.example.com", "target.example.com", time.Unix(200, 0), false, "c2")

	out := Apply([]intent.Intent{a, cname})
	if len(out) != 1 || out[0] != a {
		t.Fatalf("expected A to survive against losing CNAME, got %+v", out)
	}
}

func TestApplyCNAMEMustBeatAllAsToReplace(t *testing.T) {
	olderA := mkA(t, "api.example.com", "10.0.0.1", time.Unix(50, 0), false, "c1")
	newerA := mkA(t, "api.example.com", "10.0.0.2", time.Unix(60, 0), false, "c2")
	cname := mkCNAME(t, "api.example.com", "target.example.com", time.Unix(55, 0), false, "c3")

	out := Apply([]intent.Intent{olderA, newerA, cname})
	if len(out) != 2 {
		t.Fatalf("expected both A records to survive since CNAME doesn't beat oldest, got %+v", out)
	}
	if !contains(out, olderA) || !contains(out, newerA) {
		t.Fatalf("expected original A intents preserved, got %+v", out)
	}
}

func TestApplyCNAMEReplacesAllAsWhenOlder(t *testing.T) {
	a1 := mkA(t, "api.example.com", "10.0.0.1", time.Unix(100, 0), false, "c1")
	a2 := mkA(t, "api.example.com", "10.0.0.2", time.Unix(110, 0), false, "c2")
	cname := mkCNAME(t, "api.example.com", "target.example.com", time.Unix(50, 0), false, "c3")

	out := Apply([]intent.Intent{a1, a2, cname})
	if len(out) != 1 || out[0] != cname {
		t.Fatalf("expected CNAME to win against both As, got %+v", out)
	}
}

func TestApplyIdempotence(t *testing.T) {
	a1 := mkA(t, "api.example.com", "10.0.0.1", time.Unix(100, 0), false, "c1")
	a2 := mkA(t, "db.example.com", "10.0.0.2", time.Unix(100, 0), false, "c2")
	cname := mkCNAME(t, "alias.example.com", "api.example.com", time.Unix(100, 0), false, "c3")

	once := Apply([]intent.Intent{a1, a2, cname})
	twice := Apply(once)

	if len(once) != len(twice) {
		t.Fatalf("expected idempotent filtering, got %d vs %d", len(once), len(twice))
	}
	for _, i := range once {
		if !contains(twice, i) {
			t.Fatalf("expected %+v preserved on second pass", i)
		}
	}
}

func TestApplyDuplicateCNAMECollisionOlderWins(t *testing.T) {
	older := mkCNAME(t, "api.example.com", "target1.example.com", time.Unix(100, 0), false, "c1")
	newer := mkCNAME(t, "api.example.com", "target2.example.com", time.Unix(200, 0), false, "c2")

	out := Apply([]intent.Intent{newer, older})
	if len(out) != 1 || out[0] != older {
		t.Fatalf("expected older CNAME to win, got %+v", out)
	}
}
