package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

func TestTransitionTable(t *testing.T) {
	legal := map[Status][]Status{
		StatusDraft:         {StatusSubmitted, StatusCancelled},
		StatusSubmitted:     {StatusUnderReview, StatusInfoRequested, StatusApproved, StatusRejected, StatusCancelled},
		StatusInfoRequested: {StatusSubmitted},
		StatusUnderReview:   {StatusInfoRequested, StatusApproved, StatusRejected},
		StatusApproved:      {StatusCompleted},
	}

	for _, from := range AllStatuses() {
		allowed := make(map[Status]bool)
		for _, to := range legal[from] {
			allowed[to] = true
		}
		for _, to := range AllStatuses() {
			err := ValidateTransition(from, to)
			if allowed[to] {
				assert.NoError(t, err, "%s -> %s should be legal", from, to)
				continue
			}
			require.Error(t, err, "%s -> %s should be illegal", from, to)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		}
	}
}

func TestTerminalStatesHaveNoTargets(t *testing.T) {
	for _, s := range AllStatuses() {
		if s.IsTerminal() {
			assert.Empty(t, Targets(s), "terminal %s", s)
		} else {
			assert.NotEmpty(t, Targets(s), "non-terminal %s", s)
		}
	}
}

func TestAuthorizeTransition(t *testing.T) {
	owner := domain.Actor{ID: 1, TenantID: 9, Role: domain.RoleMember}
	stranger := domain.Actor{ID: 2, TenantID: 9, Role: domain.RoleMember}
	staff := domain.Actor{ID: 3, TenantID: 9, Role: domain.RoleStaff}
	c := &Case{TenantID: 9, OwnerID: 1, Status: StatusDraft}

	assert.NoError(t, AuthorizeTransition(c, owner, StatusSubmitted))
	assert.True(t, dErrors.HasCode(AuthorizeTransition(c, stranger, StatusSubmitted), dErrors.CodeForbidden))
	assert.True(t, dErrors.HasCode(AuthorizeTransition(c, staff, StatusSubmitted), dErrors.CodeForbidden))
	assert.True(t, dErrors.HasCode(AuthorizeTransition(c, staff, StatusApproved), dErrors.CodeInvalidTransition))

	c.Status = StatusSubmitted
	assert.NoError(t, AuthorizeTransition(c, staff, StatusApproved))
	assert.True(t, dErrors.HasCode(AuthorizeTransition(c, owner, StatusApproved), dErrors.CodeForbidden))
	assert.NoError(t, AuthorizeTransition(c, owner, StatusCancelled))
}

func TestCanView(t *testing.T) {
	c := &Case{TenantID: 9, OwnerID: 1}
	assert.True(t, CanView(c, domain.Actor{ID: 1, TenantID: 9, Role: domain.RoleMember}))
	assert.True(t, CanView(c, domain.Actor{ID: 5, TenantID: 9, Role: domain.RoleAdmin}))
	assert.False(t, CanView(c, domain.Actor{ID: 5, TenantID: 9, Role: domain.RoleMember}))
	assert.False(t, CanView(c, domain.Actor{ID: 5, TenantID: 8, Role: domain.RoleStaff}))
}

func TestMissingDocumentsCountsOnlyAccepted(t *testing.T) {
	c := &Case{Documents: []Document{
		{Type: DocumentInsurance, Status: DocumentAccepted},
		{Type: DocumentTitle, Status: DocumentRejected},
		{Type: DocumentTitle, Status: DocumentUploaded},
		{Type: DocumentTribalID, Status: DocumentExpired},
	}}
	assert.Equal(t, []DocumentType{DocumentTitle, DocumentTribalID}, c.MissingDocuments(RequiredSubmitDocuments))

	c.Documents = append(c.Documents,
		Document{Type: DocumentTitle, Status: DocumentAccepted},
		Document{Type: DocumentTribalID, Status: DocumentAccepted},
	)
	assert.Empty(t, c.MissingDocuments(RequiredSubmitDocuments))
}

func TestAddWeekdays(t *testing.T) {
	thursday := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), AddWeekdays(thursday, ProcessingWeekdays))

	monday := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), AddWeekdays(monday, ProcessingWeekdays))
}

func TestVehicleAgeNeverNegative(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, Vehicle{Year: 2023}.AgeYears(now))
	assert.Equal(t, 0, Vehicle{Year: 2027}.AgeYears(now))
}

func TestCloneIsDeep(t *testing.T) {
	at := time.Now()
	c := &Case{SubmittedAt: &at, VehicleData: map[string]any{"vin": "X"}, Documents: []Document{{Type: DocumentTitle}}}
	cp := c.Clone()
	cp.VehicleData["vin"] = "Y"
	cp.Documents[0].Type = DocumentOther
	*cp.SubmittedAt = at.Add(time.Hour)

	assert.Equal(t, "X", c.VehicleData["vin"])
	assert.Equal(t, DocumentTitle, c.Documents[0].Type)
	assert.Equal(t, at, *c.SubmittedAt)
}
