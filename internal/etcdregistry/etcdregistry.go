// Package etcdregistry implements registry.Registry against an etcd
// cluster, using the hierarchical key layout
// "{path_prefix}/{reversed-dotted-labels}/x{N}" so that a DNS server
// consuming the same etcd tree (e.g. CoreDNS's etcd plugin, or SkyDNS)
// can resolve records by walking the tree in label order.
package etcdregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kprice-io/dnssync/internal/errs"
	"github.com/kprice-io/dnssync/internal/intent"
	"github.com/kprice-io/dnssync/internal/record"
)

// value is the wire representation of a RecordIntent's non-key fields,
// stored as JSON at each etcd key. Force is persisted even though the
// daemon this was distilled from dropped it on the floor: without it, a
// registry restart would silently lose every force flag, and the
// Precedence Rule over that record would degrade to pure age comparison.
type value struct {
	Host          string `json:"host"`
	RecordType    string `json:"record_type"`
	OwnerHostname string `json:"owner_hostname"`
	OwnerName     string `json:"owner_container_name"`
	Created       string `json:"created"`
	Force         bool   `json:"force"`
}

// Config configures a Registry.
type Config struct {
	Endpoints        []string
	PathPrefix       string
	LockTTL          time.Duration
	LockTimeout      time.Duration
	LockRetryInterval time.Duration
	DialTimeout      time.Duration
}

// Registry is an etcd-backed registry.Registry implementation.
type Registry struct {
	client *clientv3.Client
	cfg    Config
	logger *slog.Logger
}

// New dials etcd and returns a Registry. The caller must call Close when
// done.
func New(cfg Config, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to etcd: %w: %v", errs.ErrRegistryConnection, err)
	}
	return &Registry{client: client, cfg: cfg, logger: logger}, nil
}

// Close releases the underlying etcd client connection.
func (r *Registry) Close() error {
	return r.client.Close()
}

// keyPathFor returns the base key for fqdn, with its dotted labels
// reversed: "name.example.com" -> "{prefix}/com/example/name".
func (r *Registry) keyPathFor(fqdn string) string {
	labels := strings.Split(strings.Trim(fqdn, "."), ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return r.cfg.PathPrefix + "/" + strings.Join(labels, "/")
}

// nextIndexedKey finds the lowest unused "xN" suffix under basePath.
func (r *Registry) nextIndexedKey(ctx context.Context, basePath string) (string, error) {
	resp, err := r.client.Get(ctx, basePath, clientv3.WithPrefix())
	if err != nil {
		return "", fmt.Errorf("listing existing keys under %s: %w: %v", basePath, errs.ErrRegistryConnection, err)
	}

	used := make(map[int]bool)
	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		suffix := key[strings.LastIndex(key, "/")+1:]
		if !strings.HasPrefix(suffix, "x") {
			continue
		}
		if n, convErr := strconv.Atoi(suffix[1:]); convErr == nil {
			used[n] = true
		}
	}

	n := 1
	for used[n] {
		n++
	}
	return fmt.Sprintf("%s/x%d", basePath, n), nil
}

// Register persists i under the next free indexed key for its record
// name.
func (r *Registry) Register(ctx context.Context, i intent.Intent) error {
	base := r.keyPathFor(i.Record.Name)
	key, err := r.nextIndexedKey(ctx, base)
	if err != nil {
		return err
	}
	v := value{
		Host:          i.Record.Value,
		RecordType:    string(i.Record.Type),
		OwnerHostname: i.Hostname,
		OwnerName:     i.ContainerName,
		Created:       i.Created.Format(time.RFC3339Nano),
		Force:         i.Force,
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling registry value: %w", err)
	}
	if _, err := r.client.Put(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("putting key %s: %w: %v", key, errs.ErrRegistryConnection, err)
	}
	return nil
}

// Remove deletes the entry matching i's value, record type, owning
// hostname, and owning container name. It is a no-op if no such entry is
// found.
func (r *Registry) Remove(ctx context.Context, i intent.Intent) error {
	base := r.keyPathFor(i.Record.Name)
	resp, err := r.client.Get(ctx, base, clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("listing keys under %s: %w: %v", base, errs.ErrRegistryConnection, err)
	}

	for _, kv := range resp.Kvs {
		var v value
		if err := json.Unmarshal(kv.Value, &v); err != nil {
			r.logger.Warn("could not parse candidate key during remove",
				slog.String("key", string(kv.Key)), slog.String("error", err.Error()))
			continue
		}
		if v.Host == i.Record.Value &&
			v.RecordType == string(i.Record.Type) &&
			v.OwnerHostname == i.Hostname &&
			v.OwnerName == i.ContainerName {
			if _, err := r.client.Delete(ctx, string(kv.Key)); err != nil {
				return fmt.Errorf("deleting key %s: %w: %v", kv.Key, errs.ErrRegistryConnection, err)
			}
			r.logger.Info("deleted registry entry", slog.String("key", string(kv.Key)))
			return nil
		}
	}
	return nil
}

// List returns every intent currently persisted across the whole prefix.
func (r *Registry) List(ctx context.Context) ([]intent.Intent, error) {
	resp, err := r.client.Get(ctx, r.cfg.PathPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("listing registry: %w: %v", errs.ErrRegistryConnection, err)
	}

	var out []intent.Intent
	for _, kv := range resp.Kvs {
		i, err := r.parse(string(kv.Key), kv.Value)
		if err != nil {
			r.logger.Error("failed to parse registry entry",
				slog.String("key", string(kv.Key)), slog.String("error", err.Error()))
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

// parse decodes a single etcd key/value pair back into an Intent. The
// name is recovered by stripping the path prefix and the trailing "xN"
// index segment, then reversing the remaining label path.
func (r *Registry) parse(key string, raw []byte) (intent.Intent, error) {
	path := strings.TrimPrefix(key, r.cfg.PathPrefix)
	path = strings.Trim(path, "/")
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return intent.Intent{}, fmt.Errorf("malformed key %q: %w", key, errs.ErrRegistryParse)
	}
	labels := segments[:len(segments)-1]
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	name := strings.Join(labels, ".")

	var v value
	if err := json.Unmarshal(raw, &v); err != nil {
		return intent.Intent{}, fmt.Errorf("unmarshaling value at %s: %w: %v", key, errs.ErrRegistryParse, err)
	}
	if v.RecordType == "" || v.Host == "" {
		return intent.Intent{}, fmt.Errorf("missing required fields at %s: %w", key, errs.ErrRegistryParse)
	}

	created, err := time.Parse(time.RFC3339Nano, v.Created)
	if err != nil {
		created, err = time.Parse(time.RFC3339, v.Created)
		if err != nil {
			return intent.Intent{}, fmt.Errorf("parsing created timestamp at %s: %w: %v", key, errs.ErrRegistryParse, err)
		}
	}

	var rec record.Record
	switch strings.ToUpper(v.RecordType) {
	case string(record.TypeA):
		rec, err = record.NewA(name, v.Host)
	case string(record.TypeCNAME):
		rec, err = record.NewCNAME(name, v.Host)
	default:
		return intent.Intent{}, fmt.Errorf("unsupported record type %q at %s: %w", v.RecordType, key, errs.ErrUnsupportedRecordType)
	}
	if err != nil {
		return intent.Intent{}, fmt.Errorf("reconstructing record at %s: %w: %v", key, errs.ErrRegistryParse, err)
	}

	return intent.Intent{
		Record:        rec,
		Hostname:      v.OwnerHostname,
		ContainerID:   "<from-etcd>",
		ContainerName: v.OwnerName,
		Created:       created,
		Force:         v.Force,
	}, nil
}

// LockTransaction acquires exclusive locks on the given keys (sorted to
// avoid cyclic wait across hosts racing for overlapping lock sets),
// invokes fn, and always releases whatever locks it acquired. Each lock
// is a lease-bound key acquired via CAS, polled at LockRetryInterval
// until LockTimeout elapses — this, rather than clientv3/concurrency's
// wait-queue-based Mutex, is what gives etcd_lock_retry_interval (spec.md's
// "poll interval during acquisition") an actual effect on the daemon's
// lock-acquisition behavior.
func (r *Registry) LockTransaction(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	unique := make(map[string]bool, len(keys))
	for _, k := range keys {
		unique[k] = true
	}
	sorted := make([]string, 0, len(unique))
	for k := range unique {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	type held struct {
		lockKey string
		leaseID clientv3.LeaseID
	}
	var leases []held

	release := func() {
		for i := len(leases) - 1; i >= 0; i-- {
			h := leases[i]
			if _, err := r.client.Delete(context.Background(), h.lockKey); err != nil {
				r.logger.Warn("failed to delete lock key on release",
					slog.String("key", h.lockKey), slog.String("error", err.Error()))
			}
			if _, err := r.client.Revoke(context.Background(), h.leaseID); err != nil {
				r.logger.Warn("failed to revoke lock lease on release",
					slog.String("key", h.lockKey), slog.String("error", err.Error()))
			}
		}
	}
	defer release()

	for _, key := range sorted {
		lockKey := "/locks/" + key
		lease, err := r.client.Grant(ctx, int64(r.cfg.LockTTL.Seconds()))
		if err != nil {
			return fmt.Errorf("granting lease for %s: %w: %v", lockKey, errs.ErrLockAcquisition, err)
		}

		deadline := time.Now().Add(r.cfg.LockTimeout)
		acquired := false
		for time.Now().Before(deadline) {
			txn := r.client.Txn(ctx).
				If(clientv3.Compare(clientv3.CreateRevision(lockKey), "=", 0)).
				Then(clientv3.OpPut(lockKey, "locked", clientv3.WithLease(lease.ID)))
			resp, err := txn.Commit()
			if err != nil {
				return fmt.Errorf("acquiring lock %s: %w: %v", lockKey, errs.ErrLockAcquisition, err)
			}
			if resp.Succeeded {
				acquired = true
				leases = append(leases, held{lockKey: lockKey, leaseID: lease.ID})
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.LockRetryInterval):
			}
		}
		if !acquired {
			return fmt.Errorf("timed out acquiring lock %s: %w", lockKey, errs.ErrLockAcquisition)
		}
	}

	return fn(ctx)
}
