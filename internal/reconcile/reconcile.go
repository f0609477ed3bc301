// Package reconcile compares a host's desired records against the
// registry's actual records and produces a deterministic, validated
// application plan.
package reconcile

import (
	"log/slog"
	"sort"
	"time"

	"github.com/kprice-io/dnssync/internal/intent"
	"github.com/kprice-io/dnssync/internal/record"
	"github.com/kprice-io/dnssync/internal/validate"
)

// Result is the application plan a reconcile pass produces.
type Result struct {
	ToAdd    []intent.Intent
	ToRemove []intent.Intent
}

// Recorder observes reconcile outcomes for metrics. All methods are
// optional; a nil Recorder disables observation.
type Recorder interface {
	RecordAdded(n int)
	RecordRemoved(n int)
	RecordSkipped(reason string)
}

// Reconciler computes (to_add, to_remove) for a single host's reconcile
// pass against a registry snapshot.
type Reconciler struct {
	Validator *validate.Validator
	Logger    *slog.Logger
	Recorder  Recorder
}

// New creates a Reconciler.
func New(validator *validate.Validator, logger *slog.Logger, recorder Recorder) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{Validator: validator, Logger: logger, Recorder: recorder}
}

// nameIndex is the per-name actual-record index built once at the top of
// a pass: the remaining A intents keyed by value, and any remaining
// CNAME intents (normally at most one, but the registry makes no
// guarantee other hosts kept it that way).
type nameIndex struct {
	a     map[string]intent.Intent
	cname []intent.Intent
}

// Reconcile runs the three-phase algorithm: stale sweep, per-desired
// resolution, then simulate+validate before committing each add.
// thisHost identifies which actual entries this host may stale-sweep.
func (r *Reconciler) Reconcile(desired, actual []intent.Intent, thisHost string) Result {
	// Phase 1: stale sweep.
	desiredSet := make(map[intent.Intent]bool, len(desired))
	for _, d := range desired {
		desiredSet[d] = true
	}

	var toRemove []intent.Intent
	var remainder []intent.Intent
	for _, a := range actual {
		if a.Hostname == thisHost && !desiredSet[a] {
			toRemove = append(toRemove, a)
			continue
		}
		remainder = append(remainder, a)
	}

	index := make(map[string]*nameIndex)
	for _, a := range remainder {
		idx, ok := index[a.Record.Name]
		if !ok {
			idx = &nameIndex{a: make(map[string]intent.Intent)}
			index[a.Record.Name] = idx
		}
		switch a.Record.Type {
		case record.TypeA:
			idx.a[a.Record.Value] = a
		case record.TypeCNAME:
			idx.cname = append(idx.cname, a)
		}
	}

	// Phase 2 + 3: per-desired resolution with simulate+validate.
	sorted := make([]intent.Intent, len(desired))
	copy(sorted, desired)
	sort.Slice(sorted, func(i, j int) bool { return sortKey(sorted[i]) < sortKey(sorted[j]) })

	var toAdd []intent.Intent
	removedSet := make(map[intent.Intent]bool, len(toRemove))
	for _, x := range toRemove {
		removedSet[x] = true
	}

	for _, d := range sorted {
		idx := index[d.Record.Name]
		evictions, skip := r.resolve(d, idx)
		if skip {
			if r.Recorder != nil {
				r.Recorder.RecordSkipped("precedence")
			}
			continue
		}

		simulated := r.simulate(remainder, toAdd, removedSet, evictions)
		if err := r.Validator.Validate(d, simulated); err != nil {
			r.Logger.Warn("discarding desired intent after validation failure",
				slog.String("record", d.Record.Render()),
				slog.String("error", err.Error()),
			)
			if r.Recorder != nil {
				r.Recorder.RecordSkipped("validation")
			}
			continue
		}

		toAdd = append(toAdd, d)
		for _, ev := range evictions {
			if !removedSet[ev] {
				removedSet[ev] = true
				toRemove = append(toRemove, ev)
			}
		}
	}

	if r.Recorder != nil {
		r.Recorder.RecordAdded(len(toAdd))
		r.Recorder.RecordRemoved(len(toRemove))
	}

	return Result{ToAdd: toAdd, ToRemove: toRemove}
}

// resolve decides, per phase 2, whether d may proceed to simulate+validate
// and which actual entries it would evict if admitted. skip is true when
// d is outranked and must be dropped outright.
func (r *Reconciler) resolve(d intent.Intent, idx *nameIndex) (evictions []intent.Intent, skip bool) {
	if idx == nil {
		return nil, false
	}

	switch d.Record.Type {
	case record.TypeA:
		if len(idx.cname) > 0 {
			for _, c := range idx.cname {
				if !(d.Force || d.Created.Before(c.Created)) {
					return nil, true
				}
			}
			return append([]intent.Intent{}, idx.cname...), false
		}
		if existing, ok := idx.a[d.Record.Value]; ok {
			if existing == d {
				return nil, true
			}
			if d.Force || d.Created.Before(existing.Created) {
				return []intent.Intent{existing}, false
			}
			return nil, true
		}
		return nil, false

	case record.TypeCNAME:
		if len(idx.a) > 0 {
			minCreated := earliestCreated(idx.a)
			if d.Force || d.Created.Before(minCreated) {
				var all []intent.Intent
				for _, a := range idx.a {
					all = append(all, a)
				}
				return all, false
			}
			return nil, true
		}
		if len(idx.cname) > 0 {
			var evicted []intent.Intent
			for _, existing := range idx.cname {
				if existing == d {
					return nil, true
				}
				if !(d.Force || d.Created.Before(existing.Created)) {
					return nil, true
				}
				evicted = append(evicted, existing)
			}
			return evicted, false
		}
		return nil, false
	}

	return nil, true
}

// earliestCreated returns the earliest Created timestamp among as.
func earliestCreated(as map[string]intent.Intent) time.Time {
	var earliest time.Time
	first := true
	for _, a := range as {
		if first || a.Created.Before(earliest) {
			earliest = a.Created
			first = false
		}
	}
	return earliest
}

// simulate materializes the post-apply actual set used to validate a
// candidate intent: the post-stale-sweep remainder, plus adds already
// committed this pass, minus removals already committed and this
// candidate's own evictions.
func (r *Reconciler) simulate(remainder, addedSoFar []intent.Intent, removedSoFar map[intent.Intent]bool, candidateEvictions []intent.Intent) []intent.Intent {
	excluded := make(map[intent.Intent]bool, len(removedSoFar)+len(candidateEvictions))
	for k := range removedSoFar {
		excluded[k] = true
	}
	for _, ev := range candidateEvictions {
		excluded[ev] = true
	}

	var out []intent.Intent
	for _, a := range remainder {
		if !excluded[a] {
			out = append(out, a)
		}
	}
	out = append(out, addedSoFar...)
	return out
}

// sortKey mirrors localfilter's ordering so the same desired set always
// produces identical plans regardless of input iteration order.
func sortKey(i intent.Intent) string {
	return i.Record.Name + "\x00" + string(i.Record.Type) + "\x00" + i.Record.Value +
		"\x00" + i.Hostname + "\x00" + i.ContainerName + "\x00" + i.ContainerID
}
