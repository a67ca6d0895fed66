package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	stDraft     Status = "DRAFT"
	stConfirmed Status = "CONFIRMED"
	stDone      Status = "COMPLETED"
	stCancelled Status = "CANCELLED"
)

type testDoc struct {
	status Status
	locked bool
}

type testActor struct {
	perms map[string]bool
	super bool
}

func (a *testActor) HasPermission(code string) bool { return a.perms[code] }
func (a *testActor) IsSuperuser() bool              { return a.super }

func newTestMachine() *Machine[*testDoc] {
	m := New[*testDoc]("order", stDraft,
		func(d *testDoc) Status { return d.status },
		func(d *testDoc, s Status) { d.status = s },
	)
	m.Permit(stDraft, stConfirmed, stCancelled)
	m.Permit(stConfirmed, stDone, stCancelled)
	m.Require(stDraft, stConfirmed, "order.confirm")
	m.Guard(stConfirmed, stDone, "not_locked", func(ctx context.Context, d *testDoc) error {
		if d.locked {
			return NewGuardError("not_locked", "document is locked")
		}
		return nil
	})
	return m
}

func TestTransitionHappyPath(t *testing.T) {
	m := newTestMachine()
	doc := &testDoc{status: stDraft}
	actor := &testActor{perms: map[string]bool{"order.confirm": true}}

	require.NoError(t, m.Transition(context.Background(), doc, stConfirmed, actor))
	require.Equal(t, stConfirmed, doc.status)
}

func TestIllegalTransitionDoesNotMutate(t *testing.T) {
	m := newTestMachine()
	doc := &testDoc{status: stDraft}
	actor := &testActor{super: true}

	err := m.Transition(context.Background(), doc, stDone, actor)
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.Equal(t, stDraft, doc.status)
	require.False(t, m.CanTransition(context.Background(), doc, stDone, actor))
}

func TestIllegalTransitionNamesAllowedTargets(t *testing.T) {
	m := newTestMachine()
	doc := &testDoc{status: stDraft}

	err := m.Transition(context.Background(), doc, stDone, &testActor{super: true})
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.Contains(t, err.Error(), string(stConfirmed))
	require.Contains(t, err.Error(), string(stCancelled))
}

func TestAllowedFromReturnsCopy(t *testing.T) {
	m := newTestMachine()

	targets := m.AllowedFrom(stDraft)
	require.ElementsMatch(t, []Status{stConfirmed, stCancelled}, targets)

	targets[0] = stDone
	require.ElementsMatch(t, []Status{stConfirmed, stCancelled}, m.AllowedFrom(stDraft))
}

func TestPermissionDenied(t *testing.T) {
	m := newTestMachine()
	doc := &testDoc{status: stDraft}
	actor := &testActor{}

	err := m.Transition(context.Background(), doc, stConfirmed, actor)
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Equal(t, stDraft, doc.status)
}

func TestSuperuserBypassesPermission(t *testing.T) {
	m := newTestMachine()
	doc := &testDoc{status: stDraft}

	require.NoError(t, m.Transition(context.Background(), doc, stConfirmed, &testActor{super: true}))
	require.Equal(t, stConfirmed, doc.status)
}

func TestGuardFailureNamesGuard(t *testing.T) {
	m := newTestMachine()
	doc := &testDoc{status: stConfirmed, locked: true}

	err := m.Transition(context.Background(), doc, stDone, &testActor{super: true})
	var ge *GuardError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, "not_locked", ge.Guard)
	require.Equal(t, stConfirmed, doc.status)
}

func TestSystemOnlyEdgeRefusesActor(t *testing.T) {
	m := newTestMachine()
	m.Permit(stConfirmed, "EXPIRED")
	m.SystemOnly(stConfirmed, "EXPIRED")
	doc := &testDoc{status: stConfirmed}

	err := m.Transition(context.Background(), doc, "EXPIRED", &testActor{super: true})
	require.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, m.SystemTransition(context.Background(), doc, "EXPIRED"))
	require.Equal(t, Status("EXPIRED"), doc.status)
}

func TestSystemTransitionStillRunsGuards(t *testing.T) {
	m := newTestMachine()
	doc := &testDoc{status: stConfirmed, locked: true}

	err := m.SystemTransition(context.Background(), doc, stDone)
	var ge *GuardError
	require.True(t, errors.As(err, &ge))
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	m := newTestMachine()
	require.True(t, m.Terminal(stDone))
	require.True(t, m.Terminal(stCancelled))
	require.False(t, m.Terminal(stDraft))
}
