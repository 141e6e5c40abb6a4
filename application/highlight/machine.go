// Package highlight holds the timer-driven highlight state of a session view.
package highlight

import (
	"time"

	"go.uber.org/zap"

	"treeview-ai/application/ports"
	"treeview-ai/domain/config"
	"treeview-ai/domain/core/valueobjects"
)

// State is the machine state.
type State int

const (
	StateClear State = iota
	StateHighlighted
	StateAnimating
)

func (s State) String() string {
	switch s {
	case StateHighlighted:
		return "highlighted"
	case StateAnimating:
		return "animating"
	default:
		return "clear"
	}
}

// Machine moves between Clear, Highlighted(set, expiry) and
// Animating(steps). Every transition bumps a generation; a timer only acts
// if its generation is still current, so a new request supersedes any
// pending expiry of the previous one.
//
// Machine is not safe for concurrent use. Timer callbacks are handed to
// dispatch, which must run them on the owner's goroutine.
type Machine struct {
	clock    ports.Clock
	dispatch func(func())
	onChange func([]valueobjects.NodeID)
	logger   *zap.Logger
	cfg      config.HighlightConfig

	state   State
	active  []valueobjects.NodeID
	steps   []valueobjects.NodeID
	step    int
	gen     uint64
	timer   ports.Timer
	stopped bool
}

// NewMachine creates a machine in the Clear state. onChange receives the
// active set after every transition.
func NewMachine(clock ports.Clock, dispatch func(func()), onChange func([]valueobjects.NodeID), cfg config.HighlightConfig, logger *zap.Logger) *Machine {
	if onChange == nil {
		onChange = func([]valueobjects.NodeID) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		clock:    clock,
		dispatch: dispatch,
		onChange: onChange,
		logger:   logger,
		cfg:      cfg,
	}
}

// SetConfig changes durations for transitions started afterwards.
func (m *Machine) SetConfig(cfg config.HighlightConfig) {
	m.cfg = cfg
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Generation() uint64 { return m.gen }

// Active returns a copy of the highlighted ids.
func (m *Machine) Active() []valueobjects.NodeID {
	return append([]valueobjects.NodeID(nil), m.active...)
}

// IsHighlighted reports whether id is in the active set.
func (m *Machine) IsHighlighted(id valueobjects.NodeID) bool {
	for _, a := range m.active {
		if a == id {
			return true
		}
	}
	return false
}

// Set replaces the active set and restarts the expiry timer. An empty set
// clears.
func (m *Machine) Set(ids []valueobjects.NodeID) {
	if m.stopped {
		return
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		m.Clear()
		return
	}
	m.supersede()
	m.state = StateHighlighted
	m.active = ids
	m.schedule(m.cfg.AssistantDuration)
	m.onChange(m.Active())
}

// Animate highlights steps one at a time, one step duration each, and
// clears one step after the last.
func (m *Machine) Animate(steps []valueobjects.NodeID) {
	if m.stopped {
		return
	}
	if len(steps) == 0 {
		m.Clear()
		return
	}
	m.supersede()
	m.state = StateAnimating
	m.steps = append([]valueobjects.NodeID(nil), steps...)
	m.step = 0
	m.active = []valueobjects.NodeID{m.steps[0]}
	m.schedule(m.cfg.TraversalStep)
	m.onChange(m.Active())
}

// Clear drops the active set and cancels any pending timer.
func (m *Machine) Clear() {
	wasActive := m.state != StateClear
	m.supersede()
	m.state = StateClear
	m.active = nil
	m.steps = nil
	if wasActive && !m.stopped {
		m.onChange(nil)
	}
}

// Stop cancels timers for good. Later calls are no-ops.
func (m *Machine) Stop() {
	m.stopped = true
	m.supersede()
	m.state = StateClear
	m.active = nil
	m.steps = nil
}

func (m *Machine) supersede() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) schedule(d time.Duration) {
	gen := m.gen
	m.timer = m.clock.AfterFunc(d, func() {
		m.dispatch(func() { m.expire(gen) })
	})
}

// expire runs on the owner's goroutine when a timer fires.
func (m *Machine) expire(gen uint64) {
	if m.stopped || gen != m.gen {
		m.logger.Debug("ignoring stale highlight timer", zap.Uint64("generation", gen))
		return
	}
	m.timer = nil

	if m.state == StateAnimating && m.step+1 < len(m.steps) {
		m.step++
		m.gen++
		m.active = []valueobjects.NodeID{m.steps[m.step]}
		m.schedule(m.cfg.TraversalStep)
		m.onChange(m.Active())
		return
	}
	m.Clear()
}

func dedupe(ids []valueobjects.NodeID) []valueobjects.NodeID {
	seen := make(map[valueobjects.NodeID]bool, len(ids))
	out := make([]valueobjects.NodeID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
