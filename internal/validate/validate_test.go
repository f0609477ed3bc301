package validate

import (
	"testing"
	"time"

	"github.com/kprice-io/dnssync/internal/errs"
	"github.com/kprice-io/dnssync/internal/intent"
	"github.com/kprice-io/dnssync/internal/record"
)

func ii(t *testing.T, rec record.Record) intent.Intent {
	t.Helper()
	return intent.New(rec, "hostA", "c1", "web", time.Time{}, false)
}

func TestValidateRejectsAWhenCNAMEExists(t *testing.T) {
	v := New(nil)
	cname, _ := record.NewCNAME("api.example.com", "target.example.com")
	a, _ := record.NewA("api.example.com", "10.0.0.1")

	err := v.Validate(ii(t, a), []intent.Intent{ii(t, cname)})
	if !errs.IsRecordValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRejectsCNAMEWhenAExists(t *testing.T) {
	v := New(nil)
	a, _ := record.NewA("api.example.com", "10.0.0.1")
	cname, _ := record.NewCNAME("api.example.com", "target.example.com")

	err := v.Validate(ii(t, cname), []intent.Intent{ii(t, a)})
	if !errs.IsRecordValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRejectsDuplicateCNAME(t *testing.T) {
	v := New(nil)
	c1, _ := record.NewCNAME("api.example.com", "target1.example.com")
	c2, _ := record.NewCNAME("api.example.com", "target2.example.com")

	err := v.Validate(ii(t, c2), []intent.Intent{ii(t, c1)})
	if !errs.IsRecordValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRejectsDuplicateAWithSameValue(t *testing.T) {
	v := New(nil)
	a1, _ := record.NewA("api.example.com", "10.0.0.1")
	a2, _ := record.NewA("api.example.com", "10.0.0.1")

	err := v.Validate(ii(t, a2), []intent.Intent{ii(t, a1)})
	if !errs.IsRecordValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateAllowsMultipleAWithDifferentValues(t *testing.T) {
	v := New(nil)
	a1, _ := record.NewA("api.example.com", "10.0.0.1")
	a2, _ := record.NewA("api.example.com", "10.0.0.2")

	if err := v.Validate(ii(t, a2), []intent.Intent{ii(t, a1)}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsCNAMECycle(t *testing.T) {
	v := New(nil)
	c1, _ := record.NewCNAME("a.example.com", "b.example.com")
	c2, _ := record.NewCNAME("b.example.com", "a.example.com")

	err := v.Validate(ii(t, c2), []intent.Intent{ii(t, c1)})
	if !errs.IsRecordValidation(err) {
		t.Fatalf("expected cycle validation error, got %v", err)
	}
}

func TestValidateAllowsCNAMEChainWithoutCycle(t *testing.T) {
	v := New(nil)
	c1, _ := record.NewCNAME("a.example.com", "b.example.com")
	c2, _ := record.NewCNAME("b.example.com", "c.example.com")

	if err := v.Validate(ii(t, c2), []intent.Intent{ii(t, c1)}); err != nil {
		t.Fatalf("expected no error for acyclic chain, got %v", err)
	}
}

func TestValidateAllowsUnrelatedNames(t *testing.T) {
	v := New(nil)
	a, _ := record.NewA("api.example.com", "10.0.0.1")
	other, _ := record.NewA("db.example.com", "10.0.0.2")

	if err := v.Validate(ii(t, other), []intent.Intent{ii(t, a)}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
