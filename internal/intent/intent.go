// Package intent defines RecordIntent, a DNS record tagged with the
// provenance (host, container, creation time, force flag) that the
// reconciler needs to resolve conflicts deterministically.
package intent

import (
	"time"

	"github.com/kprice-io/dnssync/internal/record"
)

// Intent is a desired or actual DNS record together with the provenance
// that identifies who wants it and with what priority. Two Intents are
// equal (via ==) iff ContainerID, ContainerName, Hostname, Force, and
// Record all match — provenance is part of identity, so the same logical
// record declared by two containers is two distinct Intents.
type Intent struct {
	Record        record.Record
	Hostname      string
	ContainerID   string
	ContainerName string
	Created       time.Time
	Force         bool
}

// Key is the identity of the logical slot an Intent occupies in the record
// store: (name, record_type, value). Two Intents sharing a Key compete for
// the same slot even if their provenance differs.
type Key struct {
	Name  string
	Type  record.Type
	Value string
}

// SlotKey returns the slot identity this intent competes for.
func (i Intent) SlotKey() Key {
	return Key{Name: i.Record.Name, Type: i.Record.Type, Value: i.Record.Value}
}

// New builds an Intent, defaulting Created to now if the zero value is
// passed.
func New(rec record.Record, hostname, containerID, containerName string, created time.Time, force bool) Intent {
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Intent{
		Record:        rec,
		Hostname:      hostname,
		ContainerID:   containerID,
		ContainerName: containerName,
		Created:       created.UTC(),
		Force:         force,
	}
}
