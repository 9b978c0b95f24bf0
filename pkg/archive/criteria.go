package archive

import (
	"strings"
	"time"
)

// dateLayouts are the accepted formats for criteria date bounds.
// Date-only values are interpreted as midnight UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
}

// Criteria is the selector shared by legal holds and retention policy
// conditions. All specified fields are AND-ed; an unspecified (empty)
// field imposes no constraint.
//
// Criteria is a pure value type: normalize and validate it once at
// construction, then Matches never fails.
type Criteria struct {
	OwnerEmail      string `json:"ownerEmail,omitempty"`
	SourceID        string `json:"sourceId,omitempty"`
	SenderEmail     string `json:"senderEmail,omitempty"`
	SubjectContains string `json:"subjectContains,omitempty"`
	StartDate       string `json:"startDate,omitempty"` // inclusive lower bound on SentAt
	EndDate         string `json:"endDate,omitempty"`   // inclusive upper bound on SentAt
}

// Normalize trims every field and lower-cases the email fields. It returns
// nil when nothing remains after normalization, which callers treat as
// "no criteria".
func (c *Criteria) Normalize() *Criteria {
	if c == nil {
		return nil
	}
	n := &Criteria{
		OwnerEmail:      strings.ToLower(strings.TrimSpace(c.OwnerEmail)),
		SourceID:        strings.TrimSpace(c.SourceID),
		SenderEmail:     strings.ToLower(strings.TrimSpace(c.SenderEmail)),
		SubjectContains: strings.TrimSpace(c.SubjectContains),
		StartDate:       strings.TrimSpace(c.StartDate),
		EndDate:         strings.TrimSpace(c.EndDate),
	}
	if *n == (Criteria{}) {
		return nil
	}
	return n
}

// Validate checks the date bounds. Invalid dates are rejected here, at
// construction time, so that Matches never has to deal with them.
func (c *Criteria) Validate() error {
	if c == nil {
		return nil
	}
	var start, end time.Time
	if c.StartDate != "" {
		t, ok := parseDate(c.StartDate)
		if !ok {
			return NewValidationError("invalid startDate format")
		}
		start = t
	}
	if c.EndDate != "" {
		t, ok := parseDate(c.EndDate)
		if !ok {
			return NewValidationError("invalid endDate format")
		}
		end = t
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return NewValidationError("startDate cannot be later than endDate")
	}
	return nil
}

// Matches reports whether the record satisfies every specified field.
// A nil criteria matches any record. Email equality and the subject
// substring test are case-insensitive; date bounds are inclusive on
// SentAt. Unparseable dates impose no constraint (Validate rejects them
// before a criteria is ever stored).
func (c *Criteria) Matches(rec *ArchivedRecord) bool {
	if c == nil {
		return true
	}
	if c.OwnerEmail != "" && !strings.EqualFold(rec.OwnerEmail, c.OwnerEmail) {
		return false
	}
	if c.SourceID != "" && rec.SourceID != c.SourceID {
		return false
	}
	if c.SenderEmail != "" && !strings.EqualFold(rec.SenderEmail, c.SenderEmail) {
		return false
	}
	if c.SubjectContains != "" &&
		!strings.Contains(strings.ToLower(rec.Subject), strings.ToLower(c.SubjectContains)) {
		return false
	}
	if c.StartDate != "" {
		if start, ok := parseDate(c.StartDate); ok && rec.SentAt.Before(start) {
			return false
		}
	}
	if c.EndDate != "" {
		if end, ok := parseDate(c.EndDate); ok && rec.SentAt.After(end) {
			return false
		}
	}
	return true
}

// HoldMatches evaluates a hold against a record. A custodian-bound hold
// requires the record's owner to be the custodian's email, AND-ed with any
// criteria the hold carries. custodianEmail is empty for criteria-only
// holds.
func HoldMatches(hold *LegalHold, custodianEmail string, rec *ArchivedRecord) bool {
	if custodianEmail != "" && !strings.EqualFold(rec.OwnerEmail, custodianEmail) {
		return false
	}
	return hold.Criteria.Matches(rec)
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
