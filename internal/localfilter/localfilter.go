// Package localfilter resolves conflicts among the desired intents of a
// single host before they are handed to the cross-host reconciler.
package localfilter

import (
	"sort"

	"github.com/kprice-io/dnssync/internal/intent"
	"github.com/kprice-io/dnssync/internal/record"
)

// Precedes reports whether candidate outranks other under the Precedence
// Rule: force beats non-force; among equal force, the earlier Created
// timestamp wins. Ties favor other (the incumbent).
func Precedes(candidate, other intent.Intent) bool {
	if candidate.Force && !other.Force {
		return true
	}
	if !candidate.Force && other.Force {
		return false
	}
	return candidate.Created.Before(other.Created)
}

// nameSlot is the per-name working state while filtering: at most one
// CNAME, plus a set of A intents keyed by value.
type nameSlot struct {
	cname *intent.Intent
	aByValue map[string]intent.Intent
}

// Apply resolves intra-host conflicts across desired, returning a list
// where each name carries either zero or more A intents of distinct
// values, xor exactly one CNAME intent. Apply is idempotent: filtering an
// already-filtered list returns an equal list.
func Apply(desired []intent.Intent) []intent.Intent {
	slots := make(map[string]*nameSlot)

	for _, d := range desired {
		name := d.Record.Name
		slot, ok := slots[name]
		if !ok {
			slot = &nameSlot{aByValue: make(map[string]intent.Intent)}
			slots[name] = slot
		}

		switch d.Record.Type {
		case record.TypeA:
			applyA(slot, d)
		case record.TypeCNAME:
			applyCNAME(slot, d)
		}
	}

	var out []intent.Intent
	for _, slot := range slots {
		if slot.cname != nil {
			out = append(out, *slot.cname)
			continue
		}
		for _, a := range slot.aByValue {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool { return sortKey(out[i]) < sortKey(out[j]) })
	return out
}

func applyA(slot *nameSlot, d intent.Intent) {
	if slot.cname != nil {
		if Precedes(d, *slot.cname) {
			slot.cname = nil
			slot.aByValue[d.Record.Value] = d
		}
		return
	}
	if existing, ok := slot.aByValue[d.Record.Value]; ok {
		if Precedes(d, existing) {
			slot.aByValue[d.Record.Value] = d
		}
		return
	}
	slot.aByValue[d.Record.Value] = d
}

func applyCNAME(slot *nameSlot, d intent.Intent) {
	if len(slot.aByValue) > 0 {
		beatsAll := true
		for _, a := range slot.aByValue {
			if !Precedes(d, a) {
				beatsAll = false
				break
			}
		}
		if beatsAll {
			slot.aByValue = make(map[string]intent.Intent)
			slot.cname = &d
		}
		return
	}
	if slot.cname != nil {
		if Precedes(d, *slot.cname) {
			slot.cname = &d
		}
		return
	}
	slot.cname = &d
}

// sortKey produces the deterministic ordering key shared with the
// reconciler: (name, record_type, value, hostname, container_name,
// container_id).
func sortKey(i intent.Intent) string {
	return i.Record.Name + "\x00" + string(i.Record.Type) + "\x00" + i.Record.Value +
		"\x00" + i.Hostname + "\x00" + i.ContainerName + "\x00" + i.ContainerID
}
