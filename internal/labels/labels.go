// Package labels maps Docker container labels onto typed DNS record
// intents, per the "{prefix}.{type}[.{alias}].{field}" label grammar.
package labels

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kprice-io/dnssync/internal/intent"
	"github.com/kprice-io/dnssync/internal/record"
)

// labelRegex matches "{prefix}.{type}.{field}" (base form, group 3 empty)
// and "{prefix}.{type}.{alias}.{field}" (aliased form). Field is one of
// name, value, force.
var labelRegex = regexp.MustCompile(`^([A-Za-z0-9_]+)\.([A-Za-z0-9]+)(?:\.([^.]+))?\.(name|value|force)$`)

// Defaults carries the per-deployment label defaults consulted when a
// container's labels do not specify an override. Seeded from an optional
// TOML defaults file (see labels.LoadDefaultsFile).
type Defaults struct {
	Force bool
}

// Builder maps a container's labels into a list of RecordIntents.
type Builder struct {
	Prefix             string
	HostIP             string
	Hostname           string
	AllowedTypes       map[record.Type]bool
	Defaults           Defaults
	Logger             *slog.Logger
	warnedUnknownTypes map[string]bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.Logger = logger }
}

// WithDefaults sets the per-deployment label defaults.
func WithDefaults(d Defaults) Option {
	return func(b *Builder) { b.Defaults = d }
}

// New creates a Builder. prefix is the label namespace (e.g. "coredns");
// hostIP is the fallback A-record value; hostname is this daemon's
// identity, stamped onto every emitted intent.
func New(prefix, hostIP, hostname string, allowedTypes []record.Type, opts ...Option) *Builder {
	allowed := make(map[record.Type]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = true
	}
	b := &Builder{
		Prefix:             prefix,
		HostIP:             hostIP,
		Hostname:           hostname,
		AllowedTypes:       allowed,
		Logger:             slog.Default(),
		warnedUnknownTypes: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// fieldSet collects the name/value/force fields discovered for a single
// (type, alias) declaration.
type fieldSet struct {
	name  string
	value string
	force string
	has   map[string]bool
}

func newFieldSet() *fieldSet {
	return &fieldSet{has: make(map[string]bool)}
}

func (f *fieldSet) set(field, value string) {
	switch field {
	case "name":
		f.name = value
	case "value":
		f.value = value
	case "force":
		f.force = value
	}
	f.has[field] = true
}

// Build extracts the list of RecordIntents a container's labels declare.
// containerID, containerName, and created are stamped onto every emitted
// intent. Build never returns an error — malformed declarations are
// discarded with a warning and the build continues.
func (b *Builder) Build(labelMap map[string]string, containerID, containerName string, created time.Time) []intent.Intent {
	enabledKey := b.Prefix + ".enabled"
	enabled := false
	for k, v := range labelMap {
		if strings.EqualFold(k, enabledKey) {
			enabled = strings.EqualFold(strings.TrimSpace(v), "true")
			break
		}
	}
	if !enabled {
		return nil
	}

	globalForceLabel, globalForceDeclared := labelMap[b.Prefix+".force"]
	globalForce := b.resolveBool(globalForceLabel)

	// declarations is keyed by (type, alias); alias "" means the base form.
	type declKey struct {
		recordType string
		alias      string
	}
	declarations := make(map[declKey]*fieldSet)
	order := make([]declKey, 0)

	for k, v := range labelMap {
		m := labelRegex.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		prefix, recordType, alias, field := m[1], m[2], m[3], m[4]
		if prefix != b.Prefix {
			continue
		}
		if alias == "name" || alias == "value" || alias == "force" {
			// The alias group accepts any dot-free token, so keys such as
			// "{prefix}.A.name.value" match the regex; field names are not
			// valid aliases and such keys are ignored here.
			continue
		}
		dk := declKey{recordType: recordType, alias: alias}
		fs, ok := declarations[dk]
		if !ok {
			fs = newFieldSet()
			declarations[dk] = fs
			order = append(order, dk)
		}
		fs.set(field, strings.TrimSpace(v))
	}

	var intents []intent.Intent
	for _, dk := range order {
		fs := declarations[dk]
		rt := record.Type(strings.ToUpper(dk.recordType))

		if !b.AllowedTypes[rt] {
			if !b.warnedUnknownTypes[dk.recordType] {
				b.Logger.Warn("unsupported record type in container labels",
					slog.String("type", dk.recordType),
					slog.String("container", containerName),
				)
				b.warnedUnknownTypes[dk.recordType] = true
			}
			continue
		}

		name := fs.name
		if name == "" {
			b.Logger.Error("record declaration missing name",
				slog.String("type", dk.recordType),
				slog.String("alias", dk.alias),
				slog.String("container", containerName),
			)
			continue
		}

		value := fs.value
		switch rt {
		case record.TypeA:
			if value == "" {
				value = b.HostIP
				b.Logger.Warn("A record missing value, using configured host IP",
					slog.String("name", name),
					slog.String("host_ip", b.HostIP),
					slog.String("container", containerName),
				)
			}
		case record.TypeCNAME:
			if value == "" {
				b.Logger.Error("CNAME record declaration missing value",
					slog.String("name", name),
					slog.String("container", containerName),
				)
				continue
			}
		}

		var rec record.Record
		var err error
		switch rt {
		case record.TypeA:
			rec, err = record.NewA(name, value)
		case record.TypeCNAME:
			rec, err = record.NewCNAME(name, value)
		default:
			err = fmt.Errorf("unsupported record type %q", dk.recordType)
		}
		if err != nil {
			b.Logger.Warn("discarding invalid record declaration",
				slog.String("name", name),
				slog.String("error", err.Error()),
				slog.String("container", containerName),
			)
			continue
		}

		force := globalForce
		if fs.has["force"] {
			force = b.resolveBool(fs.force)
		} else if !globalForceDeclared {
			force = b.orDefault(force)
		}

		intents = append(intents, intent.New(rec, b.Hostname, containerID, containerName, created, force))
	}

	return intents
}

func (b *Builder) resolveBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// orDefault falls back to the configured deployment-wide default when
// neither the record nor the container declared an explicit force value.
func (b *Builder) orDefault(resolved bool) bool {
	if resolved {
		return true
	}
	return b.Defaults.Force
}
