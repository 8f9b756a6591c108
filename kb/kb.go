package kb

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/latency-sim/model"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventScenarioAdded EventType = iota
	EventScenarioUpdated
)

// Event is emitted to subscribers when a scenario changes.
type Event struct {
	Type EventType
	Name string
	Path *model.Path
}

// ScenarioStore is an in-memory, thread-safe registry of named
// scenarios. The HTTP surface writes to it; simulation hosts subscribe
// so they can rebuild their trackers when the active scenario changes.
type ScenarioStore struct {
	mu sync.RWMutex

	scenarios map[string]*model.Path

	subs []func(Event)
}

// NewScenarioStore constructs an empty store.
func NewScenarioStore() *ScenarioStore {
	return &ScenarioStore{
		scenarios: make(map[string]*model.Path),
	}
}

// Add registers a new scenario. It returns an error if the name is
// taken or the path is structurally invalid.
func (s *ScenarioStore) Add(name string, path *model.Path) error {
	if err := path.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.scenarios[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("scenario %q already exists", name)
	}
	s.scenarios[name] = path
	subs := s.subs
	s.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Type: EventScenarioAdded, Name: name, Path: path})
	}
	return nil
}

// Put adds or replaces a scenario and notifies subscribers.
func (s *ScenarioStore) Put(name string, path *model.Path) error {
	if err := path.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	_, existed := s.scenarios[name]
	s.scenarios[name] = path
	subs := s.subs
	s.mu.Unlock()

	evType := EventScenarioAdded
	if existed {
		evType = EventScenarioUpdated
	}
	for _, fn := range subs {
		fn(Event{Type: evType, Name: name, Path: path})
	}
	return nil
}

// Get returns the scenario with the given name, or nil if not found.
func (s *ScenarioStore) Get(name string) *model.Path {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenarios[name]
}

// Names returns a snapshot of all scenario names.
func (s *ScenarioStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.scenarios))
	for name := range s.scenarios {
		names = append(names, name)
	}
	return names
}

// Subscribe registers a callback invoked after every scenario change.
// Subscriptions cannot be removed; subscribe once per consumer.
func (s *ScenarioStore) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}
