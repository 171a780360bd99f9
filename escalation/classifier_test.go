package escalation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func snapshotWith(current, d31, d61, d91, over string) AgingSnapshot {
	return AgingSnapshot{
		InvoiceNumber: "INV-1",
		InvoiceDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SnapshotDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DaysCurrent:   dec(current),
		Days31To60:    dec(d31),
		Days61To90:    dec(d61),
		Days91To120:   dec(d91),
		DaysOver120:   dec(over),
	}
}

func TestDegreeForSnapshotSingleBucket(t *testing.T) {
	cases := []struct {
		name     string
		snapshot AgingSnapshot
		want     int
	}{
		{"current only", snapshotWith("100", "0", "0", "0", "0"), 0},
		{"31-60 only", snapshotWith("0", "250", "0", "0", "0"), 1},
		{"61-90 only", snapshotWith("0", "0", "75", "0", "0"), 2},
		{"91-120 only", snapshotWith("0", "0", "0", "10", "0"), 3},
		{"over 120 only", snapshotWith("0", "0", "0", "0", "9999"), 3},
		{"all zero", snapshotWith("0", "0", "0", "0", "0"), 0},
	}

	for _, tc := range cases {
		if got := DegreeForSnapshot(tc.snapshot); got != tc.want {
			t.Errorf("%s: got degree %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestDegreeForSnapshotHighestTierWins(t *testing.T) {
	// large amount in a low bucket never outranks a small amount higher up
	s := snapshotWith("100000", "50000", "0", "0.01", "0")
	if got := DegreeForSnapshot(s); got != 3 {
		t.Fatalf("got degree %d, want 3 (tier rank dominates magnitude)", got)
	}

	s = snapshotWith("0", "9000", "1", "0", "0")
	if got := DegreeForSnapshot(s); got != 2 {
		t.Fatalf("got degree %d, want 2", got)
	}
}

func TestDegreeForSnapshotNegativeAmounts(t *testing.T) {
	// credits act as absent, not as positive amounts
	s := snapshotWith("500", "-200", "0", "0", "0")
	if got := DegreeForSnapshot(s); got != 0 {
		t.Fatalf("got degree %d, want 0 (negative bucket treated as absent)", got)
	}

	s = snapshotWith("0", "-50", "0", "-10", "300")
	if got := DegreeForSnapshot(s); got != 3 {
		t.Fatalf("got degree %d, want 3", got)
	}
}

func TestDegreeForAccountMaxOverSnapshots(t *testing.T) {
	snapshots := []AgingSnapshot{
		snapshotWith("100", "0", "0", "0", "0"),
		snapshotWith("0", "250", "0", "0", "0"),
		snapshotWith("0", "0", "0", "0", "800"),
	}
	if got := DegreeForAccount(snapshots); got != 3 {
		t.Fatalf("got degree %d, want 3 (max over snapshot degrees)", got)
	}

	if got := DegreeForAccount(nil); got != 0 {
		t.Fatalf("got degree %d for zero snapshots, want 0", got)
	}
}

func TestDaysOverdue(t *testing.T) {
	invoice := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshot := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	if got := DaysOverdue(invoice, snapshot); got != 45 {
		t.Fatalf("got %d days, want 45", got)
	}
	// mis-ordered pair clamps at zero
	if got := DaysOverdue(snapshot, invoice); got != 0 {
		t.Fatalf("got %d days for mis-ordered dates, want 0", got)
	}
	if got := DaysOverdue(invoice, invoice); got != 0 {
		t.Fatalf("got %d days for same day, want 0", got)
	}
}

func TestBucketLabel(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{0, "0-30"}, {30, "0-30"},
		{31, "31-60"}, {60, "31-60"},
		{61, "61-90"}, {90, "61-90"},
		{91, "91-120"}, {120, "91-120"},
		{121, "120+"}, {500, "120+"},
	}
	for _, tc := range cases {
		if got := BucketLabel(tc.days); got != tc.want {
			t.Errorf("BucketLabel(%d) = %q, want %q", tc.days, got, tc.want)
		}
	}
}

func TestReasonForDegree(t *testing.T) {
	if got := ReasonForDegree(0); got != "No escalation needed (all invoices 0-30 days)" {
		t.Fatalf("unexpected degree 0 reason: %q", got)
	}
	if got := ReasonForDegree(1); got != "Invoices in 31-60 days aging bucket" {
		t.Fatalf("unexpected degree 1 reason: %q", got)
	}
	if got := ReasonForDegree(2); got != "Invoices in 61-90 days aging bucket" {
		t.Fatalf("unexpected degree 2 reason: %q", got)
	}
	if got := ReasonForDegree(3); got != "Invoices in 91-120+ days aging buckets" {
		t.Fatalf("unexpected degree 3 reason: %q", got)
	}
}

func TestTemplateIdentifier(t *testing.T) {
	if got := TemplateIdentifier(2); got != "ESCALATION_LEVEL_2" {
		t.Fatalf("got %q, want ESCALATION_LEVEL_2", got)
	}
}
