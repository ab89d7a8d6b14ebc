package realtime

import "strings"

// MaskLastName truncates a last name to its first initial.
func MaskLastName(lastName string) string {
	trimmed := strings.TrimSpace(lastName)
	for _, r := range trimmed {
		return string(r) + "."
	}
	return ""
}

// MaskEmail hides the local part past its first two characters.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return local[:1] + "***" + domain
	}
	return local[:2] + "***" + domain
}
