package domain

import (
	"strconv"
	"strings"

	dErrors "caseflow/pkg/domain-errors"
)

// Typed identifiers keep tenant, case, and user keys from being swapped at
// compile time. All persisted identifiers are positive bigint sequences.
type (
	TenantID   int64
	UserID     int64
	CaseID     int64
	DocumentID int64
	PaymentID  int64
	VehicleID  int64
	RuleID     int64
	EntryID    int64
)

type numericID interface {
	~int64
}

func parseID[T numericID](kind, s string) (T, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, kind+" must be positive")
	}
	return T(n), nil
}

func ParseTenantID(s string) (TenantID, error) { return parseID[TenantID]("tenant id", s) }
func ParseUserID(s string) (UserID, error) { return parseID[UserID]("user id", s) }
func ParseCaseID(s string) (CaseID, error) { return parseID[CaseID]("case id", s) }
func ParseRuleID(s string) (RuleID, error) { return parseID[RuleID]("rule id", s) }

func (id TenantID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id CaseID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id RuleID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id TenantID) IsNil() bool { return id <= 0 }
func (id UserID) IsNil() bool { return id <= 0 }
func (id CaseID) IsNil() bool { return id <= 0 }
