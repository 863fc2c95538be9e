package workflow

import (
	"strings"

	"keywarden/i18n"
	"keywarden/store"
)

// StampFormat renders timestamps the way the ledger always has:
// HH:MM (DD.MM.YYYY). Stored data and users expect exactly this shape.
const StampFormat = "15:04 (02.01.2006)"

// FormatStatus renders the custody report for one ledger entry. The comment
// line is omitted when the entry has no comment.
func FormatStatus(e store.CustodyEntry) string {
	var text string
	if e.Open() {
		text = i18n.T("StatusTaken", map[string]any{
			"Key":      e.Key,
			"Name":     e.HolderName(),
			"Received": e.ReceivedAt.Format(StampFormat),
			"Phone":    e.Phone,
		})
	} else {
		text = i18n.T("StatusReturned", map[string]any{
			"Key":      e.Key,
			"Name":     e.HolderName(),
			"Received": e.ReceivedAt.Format(StampFormat),
			"Returned": e.ReturnedAt.Format(StampFormat),
			"Phone":    e.Phone,
		})
	}
	if e.Comment != "" {
		text += "\n" + i18n.T("StatusComment", map[string]any{"Comment": e.Comment})
	}
	return text
}

// NormalizePhone brings a phone number to +7 form:
// 89293232859 and 9293232859 and 79293232859 all become +79293232859.
func NormalizePhone(phone string) string {
	p := strings.TrimSpace(phone)
	switch {
	case strings.HasPrefix(p, "8") && len(p) == 11:
		return "+7" + p[1:]
	case strings.HasPrefix(p, "+"):
		return p
	case strings.HasPrefix(p, "7"):
		return "+" + p
	default:
		return "+7" + p
	}
}

// ValidPhone accepts the digits-only form users type by hand, e.g.
// 79008006050.
func ValidPhone(phone string) bool {
	if len(phone) < 10 || !strings.HasPrefix(phone, "7") {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
