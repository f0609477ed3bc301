// Package dockerevents watches the Docker daemon's event stream and turns
// container lifecycle transitions into the ContainerEvents the sync loop
// consumes, reconnecting transparently across daemon restarts.
package dockerevents

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/kprice-io/dnssync/internal/metrics"
)

// ContainerEvent is a single container lifecycle transition, carrying
// enough information for the sync loop to build or retire the
// container's record intents without a further round-trip to Docker.
type ContainerEvent struct {
	ID      string
	Name    string
	Created time.Time
	Status  string
	Labels  map[string]string
	Attrs   map[string]string
}

// Recognized statuses. Any other status observed on the wire is ignored.
const (
	StatusStart   = "start"
	StatusDie     = "die"
	StatusStop    = "stop"
	StatusDestroy = "destroy"
)

var recognizedStatuses = map[string]bool{
	StatusStart:   true,
	StatusDie:     true,
	StatusStop:    true,
	StatusDestroy: true,
}

// EventSource produces a stream of ContainerEvents until ctx is
// cancelled. The returned error channel carries terminal stream errors;
// a source that reconnects internally only ever sends on it when it has
// given up.
type EventSource interface {
	Events(ctx context.Context) (<-chan ContainerEvent, <-chan error)
}

// Config configures a Source.
type Config struct {
	// ReconnectInterval is how long to wait before resubscribing after
	// the event stream breaks. Default 5s.
	ReconnectInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ReconnectInterval: 5 * time.Second}
}

// Source is a Docker-daemon-backed EventSource.
type Source struct {
	docker *client.Client
	cfg    Config
	logger *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for reconnect diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConfig overrides the default Config.
func WithConfig(cfg Config) Option {
	return func(s *Source) { s.cfg = cfg }
}

// New wraps an already-constructed Docker client.
func New(docker *client.Client, opts ...Option) *Source {
	s := &Source{docker: docker, cfg: DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events starts watching container events in a background goroutine and
// returns channels delivering them. The goroutine exits, closing both
// channels, when ctx is cancelled.
func (s *Source) Events(ctx context.Context) (<-chan ContainerEvent, <-chan error) {
	out := make(chan ContainerEvent, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := s.watch(ctx, out); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("docker event stream error, reconnecting",
					slog.String("error", err.Error()),
					slog.Duration("retry_in", s.cfg.ReconnectInterval),
				)
				metrics.EventStreamReconnectsTotal.Inc()
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.cfg.ReconnectInterval):
				}
			}
		}
	}()

	return out, errc
}

func (s *Source) watch(ctx context.Context, out chan<- ContainerEvent) error {
	filterArgs := filters.NewArgs()
	filterArgs.Add("type", string(events.ContainerEventType))
	for status := range recognizedStatuses {
		filterArgs.Add("event", status)
	}

	msgs, errs := s.docker.Events(ctx, events.ListOptions{Filters: filterArgs})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case msg := <-msgs:
			s.handle(ctx, msg, out)
		}
	}
}

func (s *Source) handle(ctx context.Context, msg events.Message, out chan<- ContainerEvent) {
	status := string(msg.Action)
	if !recognizedStatuses[status] {
		return
	}
	metrics.ContainerEventsTotal.WithLabelValues(status).Inc()

	name := strings.TrimPrefix(msg.Actor.Attributes["name"], "/")
	ev := ContainerEvent{
		ID:     msg.Actor.ID,
		Name:   name,
		Status: status,
		Labels: msg.Actor.Attributes,
		Attrs:  msg.Actor.Attributes,
		Created: time.Unix(0, msg.TimeNano),
	}

	if status == StatusStart {
		inspect, err := s.docker.ContainerInspect(ctx, msg.Actor.ID)
		if err != nil {
			s.logger.Warn("failed to inspect started container, using event attributes",
				slog.String("container_id", msg.Actor.ID),
				slog.String("error", err.Error()),
			)
		} else {
			ev.Labels = inspect.Config.Labels
			if created, err := time.Parse(time.RFC3339Nano, inspect.Created); err == nil {
				ev.Created = created
			}
			if inspect.Name != "" {
				ev.Name = strings.TrimPrefix(inspect.Name, "/")
			}
		}
	}

	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
