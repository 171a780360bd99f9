package escalation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Degree tiers: 0 current, 1 reminder (31-60), 2 follow-up (61-90),
// 3 final notice (91-120 and over 120).

const (
	DegreeNone        = 0
	DegreeReminder    = 1
	DegreeFollowUp    = 2
	DegreeFinalNotice = 3
)

// DegreeForSnapshot maps one snapshot's bucket amounts to a degree. The
// highest bucket holding a positive amount wins regardless of magnitude.
// Zero and negative amounts count as absent.
func DegreeForSnapshot(s AgingSnapshot) int {
	if s.Days91To120.IsPositive() || s.DaysOver120.IsPositive() {
		return DegreeFinalNotice
	}
	if s.Days61To90.IsPositive() {
		return DegreeFollowUp
	}
	if s.Days31To60.IsPositive() {
		return DegreeReminder
	}
	return DegreeNone
}

// DegreeForAccount resolves an account's degree as the max over its
// snapshots. Zero snapshots resolves to degree 0.
func DegreeForAccount(snapshots []AgingSnapshot) int {
	degree := DegreeNone
	for _, s := range snapshots {
		if d := DegreeForSnapshot(s); d > degree {
			degree = d
		}
	}
	return degree
}

// DaysOverdue returns whole days between invoice and snapshot date, clamped
// at zero when the pair is mis-ordered.
func DaysOverdue(invoiceDate, snapshotDate time.Time) int {
	days := int(snapshotDate.Sub(invoiceDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BucketLabel names the aging bucket for a day count. Labels are display
// only; degree classification reads bucket amounts, not day counts.
func BucketLabel(daysOverdue int) string {
	switch {
	case daysOverdue <= 30:
		return "0-30"
	case daysOverdue <= 60:
		return "31-60"
	case daysOverdue <= 90:
		return "61-90"
	case daysOverdue <= 120:
		return "91-120"
	default:
		return "120+"
	}
}

// SnapshotTotal sums the five bucket amounts of one snapshot.
func SnapshotTotal(s AgingSnapshot) decimal.Decimal {
	return s.DaysCurrent.
		Add(s.Days31To60).
		Add(s.Days61To90).
		Add(s.Days91To120).
		Add(s.DaysOver120)
}

// ReasonForDegree describes why an account landed on a degree.
func ReasonForDegree(degree int) string {
	switch degree {
	case DegreeReminder:
		return "Invoices in 31-60 days aging bucket"
	case DegreeFollowUp:
		return "Invoices in 61-90 days aging bucket"
	case DegreeFinalNotice:
		return "Invoices in 91-120+ days aging buckets"
	default:
		return "No escalation needed (all invoices 0-30 days)"
	}
}

// TemplateIdentifier returns the template identifier serving a degree.
func TemplateIdentifier(degree int) string {
	return fmt.Sprintf("ESCALATION_LEVEL_%d", degree)
}

// DegreesInfo describes every degree tier for API consumers.
func DegreesInfo() []DegreeInfo {
	return []DegreeInfo{
		{Degree: 0, Bucket: "0-30", Action: "none", Description: "Current, no action required"},
		{Degree: 1, Bucket: "31-60", Action: "reminder", Description: "Gentle payment reminder"},
		{Degree: 2, Bucket: "61-90", Action: "follow_up", Description: "Firm follow-up notice"},
		{Degree: 3, Bucket: "91-120+", Action: "final_notice", Description: "Final notice before collections"},
	}
}
