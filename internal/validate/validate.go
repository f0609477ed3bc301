// Package validate enforces the DNS invariants a record store must never
// violate, independent of how the conflicting records got there.
package validate

import (
	"fmt"
	"log/slog"

	"github.com/kprice-io/dnssync/internal/errs"
	"github.com/kprice-io/dnssync/internal/intent"
	"github.com/kprice-io/dnssync/internal/record"
)

// Validator checks a candidate intent against a snapshot of existing
// intents. It is stateless; callers construct it once and reuse it.
type Validator struct {
	Logger *slog.Logger
}

// New creates a Validator.
func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{Logger: logger}
}

// Validate checks candidate against existing, enforcing in order:
//  1. A and CNAME records may not coexist for the same name.
//  2. No duplicate CNAMEs for the same name.
//  3. No duplicate A records with the same name and value.
//  4. CNAMEs may not form a resolution cycle.
//
// It returns the first violated rule wrapped in errs.ErrRecordValidation,
// or nil if candidate may be admitted alongside existing.
func (v *Validator) Validate(candidate intent.Intent, existing []intent.Intent) error {
	newRec := candidate.Record

	var sameNameA, sameNameCNAME []record.Record
	for _, e := range existing {
		if e.Record.Name != newRec.Name {
			continue
		}
		switch e.Record.Type {
		case record.TypeA:
			sameNameA = append(sameNameA, e.Record)
		case record.TypeCNAME:
			sameNameCNAME = append(sameNameCNAME, e.Record)
		}
	}

	switch newRec.Type {
	case record.TypeA:
		if len(sameNameCNAME) > 0 {
			return fmt.Errorf("%s -> %s: cannot add an A record when a CNAME record exists with the same name: %w",
				newRec.Name, newRec.Value, errs.ErrRecordValidation)
		}
	case record.TypeCNAME:
		if len(sameNameA) > 0 {
			return fmt.Errorf("%s -> %s: cannot add a CNAME record when an A record exists with the same name: %w",
				newRec.Name, newRec.Value, errs.ErrRecordValidation)
		}
	default:
		return fmt.Errorf("unsupported record type %q: %w", newRec.Type, errs.ErrRecordValidation)
	}

	if newRec.Type == record.TypeCNAME && len(sameNameCNAME) > 0 {
		return fmt.Errorf("%s -> %s: cannot have multiple CNAME records with the same name: %w",
			newRec.Name, newRec.Value, errs.ErrRecordValidation)
	}

	if newRec.Type == record.TypeA {
		for _, a := range sameNameA {
			if a.Value == newRec.Value {
				return fmt.Errorf("%s -> %s: existing A record(s) detected with the same name and value: %w",
					newRec.Name, newRec.Value, errs.ErrRecordValidation)
			}
		}
	}

	if newRec.Type == record.TypeCNAME {
		if err := v.checkCycle(newRec, existing); err != nil {
			return err
		}
	}

	return nil
}

// checkCycle walks the forwarding chain starting at newRec.Name, built
// from the name -> value pairs of every existing record (A records
// included, keeping the first entry per name) plus newRec itself, and
// fails if it revisits a name.
func (v *Validator) checkCycle(newRec record.Record, existing []intent.Intent) error {
	forward := make(map[string]string, len(existing)+1)
	seenDuplicate := make(map[string]bool)
	for _, e := range existing {
		if _, ok := forward[e.Record.Name]; ok {
			if !seenDuplicate[e.Record.Name] {
				v.Logger.Warn("multiple records for name, keeping the first for cycle detection",
					slog.String("name", e.Record.Name))
				seenDuplicate[e.Record.Name] = true
			}
			continue
		}
		forward[e.Record.Name] = e.Record.Value
	}
	forward[newRec.Name] = newRec.Value

	seen := make(map[string]bool)
	node := newRec.Name
	for {
		target, ok := forward[node]
		if !ok {
			return nil
		}
		if seen[node] {
			return fmt.Errorf("CNAME cycle detected starting at %s: %w", newRec.Name, errs.ErrRecordValidation)
		}
		seen[node] = true
		node = target
	}
}
