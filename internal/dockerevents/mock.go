package dockerevents

import "context"

// MockSource is a hand-rolled EventSource test double: the test pushes
// events onto Pending before calling Events. The returned channel is
// receive-only, so events cannot be added after Events is called.
type MockSource struct {
	Pending []ContainerEvent
}

// NewMockSource creates a MockSource pre-loaded with events.
func NewMockSource(events ...ContainerEvent) *MockSource {
	return &MockSource{Pending: events}
}

// Events replays every pending event onto the returned channel, then
// blocks (without closing) until ctx is cancelled, mirroring a live
// source that keeps its channel open between events.
func (m *MockSource) Events(ctx context.Context) (<-chan ContainerEvent, <-chan error) {
	out := make(chan ContainerEvent, len(m.Pending)+1)
	errc := make(chan error, 1)
	for _, e := range m.Pending {
		out <- e
	}
	go func() {
		<-ctx.Done()
		close(out)
		close(errc)
	}()
	return out, errc
}
