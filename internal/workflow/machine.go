// Package workflow implements the status state machine shared by every
// business document. Each document type declares its transition table once;
// the machine validates edges, evaluates named guards and checks actor
// permissions before any status change is applied.
package workflow

import (
	"context"
	"errors"
	"fmt"
)

// Status is a document lifecycle state.
type Status string

// Actor is the authenticated principal attempting a transition.
type Actor interface {
	HasPermission(code string) bool
	IsSuperuser() bool
}

// Errors returned by Transition.
var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrPermissionDenied  = errors.New("permission denied")
)

// GuardError reports a named guard rejecting a transition.
type GuardError struct {
	Guard  string
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard %s failed: %s", e.Guard, e.Reason)
}

// NewGuardError builds a GuardError for the named guard.
func NewGuardError(guard, format string, args ...any) *GuardError {
	return &GuardError{Guard: guard, Reason: fmt.Sprintf(format, args...)}
}

// GuardFunc evaluates a precondition against the document. A nil return
// allows the transition.
type GuardFunc[T any] func(ctx context.Context, doc T) error

type edge struct {
	from Status
	to   Status
}

type edgeRule[T any] struct {
	permission string
	systemOnly bool
	guards     []namedGuard[T]
}

type namedGuard[T any] struct {
	name  string
	check GuardFunc[T]
}

// Machine is a transition table for one document type. T is the document
// model; statusOf and setStatus bridge the machine to the model's status
// field so a failed transition can never leave a partial write behind.
type Machine[T any] struct {
	name      string
	initial   Status
	table     map[Status][]Status
	rules     map[edge]*edgeRule[T]
	statusOf  func(T) Status
	setStatus func(T, Status)
}

// New constructs a machine for a document type.
func New[T any](name string, initial Status, statusOf func(T) Status, setStatus func(T, Status)) *Machine[T] {
	return &Machine[T]{
		name:      name,
		initial:   initial,
		table:     make(map[Status][]Status),
		rules:     make(map[edge]*edgeRule[T]),
		statusOf:  statusOf,
		setStatus: setStatus,
	}
}

// Permit registers an allowed edge.
func (m *Machine[T]) Permit(from Status, to ...Status) *Machine[T] {
	for _, t := range to {
		m.table[from] = append(m.table[from], t)
		m.rule(from, t)
	}
	return m
}

// Require attaches a permission code to an edge. Superusers bypass it.
func (m *Machine[T]) Require(from, to Status, permission string) *Machine[T] {
	m.rule(from, to).permission = permission
	return m
}

// Guard attaches a named guard to an edge. Guards run for actor and system
// transitions alike.
func (m *Machine[T]) Guard(from, to Status, name string, check GuardFunc[T]) *Machine[T] {
	r := m.rule(from, to)
	r.guards = append(r.guards, namedGuard[T]{name: name, check: check})
	return m
}

// SystemOnly marks an edge as driven by the system (scheduled sweeps,
// payment recompute); actor-initiated transitions refuse it.
func (m *Machine[T]) SystemOnly(from, to Status) *Machine[T] {
	m.rule(from, to).systemOnly = true
	return m
}

func (m *Machine[T]) rule(from, to Status) *edgeRule[T] {
	key := edge{from: from, to: to}
	r, ok := m.rules[key]
	if !ok {
		r = &edgeRule[T]{}
		m.rules[key] = r
	}
	return r
}

// Initial returns the state every new document starts in.
func (m *Machine[T]) Initial() Status {
	return m.initial
}

// Terminal reports whether s has no outgoing edges.
func (m *Machine[T]) Terminal(s Status) bool {
	return len(m.table[s]) == 0
}

// AllowedFrom returns the targets reachable from s.
func (m *Machine[T]) AllowedFrom(s Status) []Status {
	out := make([]Status, len(m.table[s]))
	copy(out, m.table[s])
	return out
}

// CanTransition reports whether actor may move doc to target. It evaluates
// edges, guards and permissions without mutating the document.
func (m *Machine[T]) CanTransition(ctx context.Context, doc T, target Status, actor Actor) bool {
	return m.check(ctx, doc, target, actor, false) == nil
}

// Transition moves doc to target on behalf of actor, applying the status
// only after every check passes.
func (m *Machine[T]) Transition(ctx context.Context, doc T, target Status, actor Actor) error {
	if err := m.check(ctx, doc, target, actor, false); err != nil {
		return err
	}
	m.setStatus(doc, target)
	return nil
}

// SystemTransition moves doc to target without an actor. Guards still run;
// permission checks and the system-only restriction do not apply.
func (m *Machine[T]) SystemTransition(ctx context.Context, doc T, target Status) error {
	if err := m.check(ctx, doc, target, nil, true); err != nil {
		return err
	}
	m.setStatus(doc, target)
	return nil
}

func (m *Machine[T]) check(ctx context.Context, doc T, target Status, actor Actor, system bool) error {
	current := m.statusOf(doc)

	allowed := false
	for _, t := range m.table[current] {
		if t == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s %s -> %s, allowed %v",
			ErrIllegalTransition, m.name, current, target, m.AllowedFrom(current))
	}

	rule := m.rules[edge{from: current, to: target}]
	if rule == nil {
		return nil
	}
	if rule.systemOnly && !system {
		return fmt.Errorf("%w: %s %s -> %s is system driven", ErrIllegalTransition, m.name, current, target)
	}
	if !system && rule.permission != "" {
		if actor == nil || (!actor.IsSuperuser() && !actor.HasPermission(rule.permission)) {
			return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, m.name, rule.permission)
		}
	}
	for _, g := range rule.guards {
		if err := g.check(ctx, doc); err != nil {
			var ge *GuardError
			if errors.As(err, &ge) {
				return err
			}
			return &GuardError{Guard: g.name, Reason: err.Error()}
		}
	}
	return nil
}
