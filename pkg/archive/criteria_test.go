package archive

import (
	"testing"
	"time"
)

func sampleRecord() *ArchivedRecord {
	return &ArchivedRecord{
		ID:          "rec-1",
		SourceID:    "src-imap",
		OwnerEmail:  "alice@example.com",
		SenderEmail: "bob@example.com",
		Subject:     "Q3 Budget Review",
		SentAt:      time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC),
		ArchivedAt:  time.Date(2025, 7, 15, 12, 5, 0, 0, time.UTC),
	}
}

func TestCriteria_Normalize(t *testing.T) {
	c := &Criteria{
		OwnerEmail:      "  Alice@Example.COM ",
		SenderEmail:     "BOB@example.com",
		SubjectContains: "  budget  ",
	}
	n := c.Normalize()
	if n == nil {
		t.Fatal("expected non-nil criteria")
	}
	if n.OwnerEmail != "alice@example.com" {
		t.Errorf("owner email not normalized: %q", n.OwnerEmail)
	}
	if n.SenderEmail != "bob@example.com" {
		t.Errorf("sender email not normalized: %q", n.SenderEmail)
	}
	if n.SubjectContains != "budget" {
		t.Errorf("subject not trimmed: %q", n.SubjectContains)
	}
}

func TestCriteria_Normalize_PreservesSubjectCase(t *testing.T) {
	n := (&Criteria{SubjectContains: "Budget"}).Normalize()
	if n.SubjectContains != "Budget" {
		t.Errorf("subject case should be preserved: %q", n.SubjectContains)
	}
}

func TestCriteria_Normalize_EmptyBecomesNil(t *testing.T) {
	if n := (&Criteria{OwnerEmail: "   ", SubjectContains: "\t"}).Normalize(); n != nil {
		t.Errorf("expected nil for whitespace-only criteria, got %+v", n)
	}
	var c *Criteria
	if c.Normalize() != nil {
		t.Error("expected nil for nil criteria")
	}
}

func TestCriteria_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       *Criteria
		wantErr bool
	}{
		{"nil", nil, false},
		{"empty", &Criteria{}, false},
		{"date-only bounds", &Criteria{StartDate: "2025-01-01", EndDate: "2025-12-31"}, false},
		{"rfc3339 bounds", &Criteria{StartDate: "2025-01-01T00:00:00Z"}, false},
		{"bad start", &Criteria{StartDate: "January 1st"}, true},
		{"bad end", &Criteria{EndDate: "2025-13-40"}, true},
		{"inverted range", &Criteria{StartDate: "2025-12-31", EndDate: "2025-01-01"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if _, ok := err.(*ValidationError); !ok {
					t.Errorf("expected ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestCriteria_Matches(t *testing.T) {
	rec := sampleRecord()

	tests := []struct {
		name string
		c    *Criteria
		want bool
	}{
		{"nil matches everything", nil, true},
		{"empty matches everything", &Criteria{}, true},
		{"owner exact", &Criteria{OwnerEmail: "alice@example.com"}, true},
		{"owner case-insensitive", &Criteria{OwnerEmail: "ALICE@example.com"}, true},
		{"owner mismatch", &Criteria{OwnerEmail: "carol@example.com"}, false},
		{"source match", &Criteria{SourceID: "src-imap"}, true},
		{"source mismatch", &Criteria{SourceID: "src-pst"}, false},
		{"sender case-insensitive", &Criteria{SenderEmail: "Bob@Example.com"}, true},
		{"subject substring case-insensitive", &Criteria{SubjectContains: "budget"}, true},
		{"subject mismatch", &Criteria{SubjectContains: "invoice"}, false},
		{"sent within range", &Criteria{StartDate: "2025-07-01", EndDate: "2025-07-31"}, true},
		{"sent before range", &Criteria{StartDate: "2025-08-01"}, false},
		{"sent after range", &Criteria{EndDate: "2025-06-30"}, false},
		{"inclusive start boundary", &Criteria{StartDate: "2025-07-15T12:00:00Z"}, true},
		{"inclusive end boundary", &Criteria{EndDate: "2025-07-15T12:00:00Z"}, true},
		{
			"all fields AND-ed",
			&Criteria{OwnerEmail: "alice@example.com", SubjectContains: "budget", SourceID: "src-pst"},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Matches(rec); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHoldMatches(t *testing.T) {
	rec := sampleRecord()

	custodianOnly := &LegalHold{ID: "h1"}
	if !HoldMatches(custodianOnly, "alice@example.com", rec) {
		t.Error("custodian-bound hold should match the custodian's record")
	}
	if HoldMatches(custodianOnly, "carol@example.com", rec) {
		t.Error("custodian-bound hold should not match other owners")
	}

	criteriaOnly := &LegalHold{ID: "h2", Criteria: &Criteria{SubjectContains: "budget"}}
	if !HoldMatches(criteriaOnly, "", rec) {
		t.Error("criteria-only hold should match on criteria alone")
	}

	both := &LegalHold{ID: "h3", Criteria: &Criteria{SubjectContains: "invoice"}}
	if HoldMatches(both, "alice@example.com", rec) {
		t.Error("custodian match must still satisfy the criteria")
	}
}
