// Package record defines the typed DNS record variants the daemon manages.
package record

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Type is the discriminant for a Record. It is always derived from which
// constructor built the Record, never set independently.
type Type string

const (
	// TypeA identifies an address record.
	TypeA Type = "A"
	// TypeCNAME identifies a canonical-name record.
	TypeCNAME Type = "CNAME"
)

// hostnameLabelRegex matches a single RFC 1123 label: alphanumerics and
// hyphens, 1-63 chars, not leading or trailing with a hyphen.
var hostnameLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// IsValidHostname reports whether h satisfies the RFC 1123 hostname grammar
// this daemon requires for record names and CNAME targets.
func IsValidHostname(h string) bool {
	if h == "" || len(h) > 255 {
		return false
	}
	h = strings.TrimSuffix(h, ".")
	if h == "" {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if !hostnameLabelRegex.MatchString(label) {
			return false
		}
	}
	return true
}

// Record is an immutable DNS record. Two Records are equal (via ==) iff
// their Name, Type, and Value all match.
type Record struct {
	Name  string
	Type  Type
	Value string
}

// NewA constructs an A record, validating that name is a hostname and value
// parses as an IPv4 or IPv6 literal.
func NewA(name, value string) (Record, error) {
	if !IsValidHostname(name) {
		return Record{}, fmt.Errorf("invalid hostname for A record: %q", name)
	}
	if net.ParseIP(value) == nil {
		return Record{}, fmt.Errorf("invalid IP address for A record %s: %q", name, value)
	}
	return Record{Name: name, Type: TypeA, Value: value}, nil
}

// NewCNAME constructs a CNAME record, validating that both name and value
// are hostnames.
func NewCNAME(name, value string) (Record, error) {
	if !IsValidHostname(name) {
		return Record{}, fmt.Errorf("invalid hostname for CNAME record: %q", name)
	}
	if !IsValidHostname(value) {
		return Record{}, fmt.Errorf("invalid hostname for CNAME target %s: %q", name, value)
	}
	return Record{Name: name, Type: TypeCNAME, Value: value}, nil
}

// Render returns a human-readable form of the record, used in log lines.
func (r Record) Render() string {
	return fmt.Sprintf("%s(%s -> %s)", r.Type, r.Name, r.Value)
}
