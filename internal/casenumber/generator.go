// Package casenumber issues human-readable case identifiers of the form
// APP-<year>-<seq>, where seq is zero-padded to at least three digits and
// restarts at 1 every year for every tenant. Past 999 the sequence widens, so
// case numbers order by Compare, not by string comparison.
package casenumber

import (
	"cmp"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

const prefix = "APP"

// Store hands out the next sequence for a tenant and year. Implementations
// must be atomic and must join the transaction carried by ctx so the counter
// only advances when the case insert commits.
type Store interface {
	NextSequence(ctx context.Context, tenantID domain.TenantID, year int) (int64, error)
}

type Generator struct {
	store Store
}

func New(store Store) *Generator {
	return &Generator{store: store}
}

// Next returns a fresh identifier for a case created at now.
func (g *Generator) Next(ctx context.Context, tenantID domain.TenantID, now time.Time) (string, error) {
	year := now.Year()
	seq, err := g.store.NextSequence(ctx, tenantID, year)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate case number")
	}
	return Format(year, seq), nil
}

// Format renders a case number. Sequences wider than three digits are kept whole.
func Format(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

// Parse splits a case number into its year and sequence.
func Parse(number string) (year int, seq int64, err error) {
	rest, ok := strings.CutPrefix(number, prefix+"-")
	if !ok {
		return 0, 0, dErrors.Newf(dErrors.CodeValidation, "case number %q has no %s prefix", number, prefix)
	}
	yearPart, seqPart, ok := strings.Cut(rest, "-")
	if !ok || len(seqPart) < 3 {
		return 0, 0, dErrors.Newf(dErrors.CodeValidation, "malformed case number %q", number)
	}
	year, err = strconv.Atoi(yearPart)
	if err != nil {
		return 0, 0, dErrors.Newf(dErrors.CodeValidation, "malformed case number year %q", yearPart)
	}
	seq, err = strconv.ParseInt(seqPart, 10, 64)
	if err != nil || seq < 1 {
		return 0, 0, dErrors.Newf(dErrors.CodeValidation, "malformed case number sequence %q", seqPart)
	}
	return year, seq, nil
}

// Compare orders two case numbers by year then sequence. It returns an error
// when either does not parse.
func Compare(a, b string) (int, error) {
	ay, as, err := Parse(a)
	if err != nil {
		return 0, err
	}
	by, bs, err := Parse(b)
	if err != nil {
		return 0, err
	}
	if c := cmp.Compare(ay, by); c != 0 {
		return c, nil
	}
	return cmp.Compare(as, bs), nil
}
