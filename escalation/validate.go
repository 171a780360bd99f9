package escalation

import (
	"strings"
)

// validEmailShape checks the minimal structural contract: an "@" with a "."
// somewhere after it. Full address validation belongs to the mail provider.
func validEmailShape(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 {
		return false
	}
	return strings.Contains(email[at:], ".")
}

// ValidateContacts reports structural problems in a batch without running any
// classification. A contact with a blank email is structurally fine (it will
// be skipped as dnc later), but a present email must be well formed.
func ValidateContacts(contacts []ContactReadyClient) ValidationResponse {
	response := ValidationResponse{
		ValidationErrors: []ValidationError{},
	}

	for _, c := range contacts {
		errorsBefore := len(response.ValidationErrors)

		if strings.TrimSpace(c.AccountName) == "" {
			response.ValidationErrors = append(response.ValidationErrors, ValidationError{
				AccountName:  c.AccountName,
				Field:        "account_name",
				ErrorMessage: "account_name is required",
			})
		}
		if c.EmailAddress != "" && !validEmailShape(c.EmailAddress) {
			response.ValidationErrors = append(response.ValidationErrors, ValidationError{
				AccountName:  c.AccountName,
				Field:        "email_address",
				ErrorMessage: "email_address is malformed",
			})
		}
		if len(c.Snapshots) == 0 {
			response.ValidationErrors = append(response.ValidationErrors, ValidationError{
				AccountName:  c.AccountName,
				Field:        "aging_snapshots",
				ErrorMessage: "at least one aging snapshot is required",
			})
		}
		for _, s := range c.Snapshots {
			if strings.TrimSpace(s.InvoiceNumber) == "" {
				response.ValidationErrors = append(response.ValidationErrors, ValidationError{
					AccountName:  c.AccountName,
					Field:        "invoice_number",
					ErrorMessage: "invoice_number is required on every snapshot",
				})
			}
		}

		if len(response.ValidationErrors) == errorsBefore {
			response.ValidAccounts++
		} else {
			response.InvalidAccounts++
		}
	}

	response.IsValid = len(response.ValidationErrors) == 0
	return response
}

// AnalyzeContacts computes escalation statistics for a batch without drafting
// any emails. Do-not-contact accounts are counted and set aside before degree
// tallying.
func AnalyzeContacts(contacts []ContactReadyClient) EscalationStats {
	stats := EscalationStats{
		TotalAccounts: len(contacts),
	}

	for _, c := range contacts {
		stats.TotalOutstanding = stats.TotalOutstanding.Add(c.TotalOutstanding)

		if c.DncStatus {
			stats.DncCount++
			if c.EmailAddress == "" {
				stats.NoEmailCount++
			}
			continue
		}

		switch DegreeForAccount(c.Snapshots) {
		case DegreeReminder:
			stats.Degree1Count++
			stats.ProcessableCount++
		case DegreeFollowUp:
			stats.Degree2Count++
			stats.ProcessableCount++
		case DegreeFinalNotice:
			stats.Degree3Count++
			stats.ProcessableCount++
		default:
			stats.Degree0Count++
		}
	}

	return stats
}
