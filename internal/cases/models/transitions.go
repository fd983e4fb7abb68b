package models

import (
	"fmt"

	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Party is who may drive an edge.
type Party int

const (
	PartyOwner Party = iota + 1
	PartyStaff
)

type edge struct {
	from, to Status
}

// transitions is the complete edge set. Staff edges into approved are also
// taken by automation on behalf of the staff member who started the run.
var transitions = map[edge]Party{
	{StatusDraft, StatusSubmitted}:           PartyOwner,
	{StatusDraft, StatusCancelled}:           PartyOwner,
	{StatusSubmitted, StatusCancelled}:       PartyOwner,
	{StatusInfoRequested, StatusSubmitted}:   PartyOwner,
	{StatusSubmitted, StatusUnderReview}:     PartyStaff,
	{StatusSubmitted, StatusInfoRequested}:   PartyStaff,
	{StatusSubmitted, StatusApproved}:        PartyStaff,
	{StatusSubmitted, StatusRejected}:        PartyStaff,
	{StatusUnderReview, StatusApproved}:      PartyStaff,
	{StatusUnderReview, StatusRejected}:      PartyStaff,
	{StatusUnderReview, StatusInfoRequested}: PartyStaff,
	{StatusApproved, StatusCompleted}:        PartyStaff,
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// ValidateTransition returns CodeInvalidTransition for any illegal edge.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot transition case from %s to %s", from, to)
	}
	return nil
}

// Targets lists the states reachable from s in one step.
func Targets(from Status) []Status {
	var out []Status
	for _, to := range allStatuses {
		if CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}

// AuthorizeTransition checks that actor is the party allowed to drive the
// edge. Illegal edges are reported as invalid transitions, not as forbidden.
func AuthorizeTransition(c *Case, actor domain.Actor, to Status) error {
	party, ok := transitions[edge{c.Status, to}]
	if !ok {
		return ValidateTransition(c.Status, to)
	}
	switch party {
	case PartyOwner:
		return RequireOwner(c, actor)
	case PartyStaff:
		return RequireStaff(actor)
	}
	return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unknown party for %s -> %s", c.Status, to))
}

// RequireOwner rejects actors other than the case owner.
func RequireOwner(c *Case, actor domain.Actor) error {
	if c.TenantID != actor.TenantID || c.OwnerID != actor.ID {
		return dErrors.New(dErrors.CodeForbidden, "only the case owner may perform this action")
	}
	return nil
}

// RequireStaff rejects actors without a staff or admin role.
func RequireStaff(actor domain.Actor) error {
	if !actor.IsStaff() {
		return dErrors.New(dErrors.CodeForbidden, "staff role required")
	}
	return nil
}

// CanView reports whether actor may read the case: its owner or any staff
// member of the same tenant.
func CanView(c *Case, actor domain.Actor) bool {
	if c.TenantID != actor.TenantID {
		return false
	}
	return c.OwnerID == actor.ID || actor.IsStaff()
}
