package messaging

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// whatsappSuffixes are appended to numbers in WhatsApp JIDs.
var whatsappSuffixes = []string{"@s.whatsapp.net", "@c.us"}

// NormalizePhone reduces a sender identifier ("+55 (11) 99999-9999",
// "5511999999999@s.whatsapp.net") to its digits.
func NormalizePhone(value string) string {
	value = strings.TrimSpace(value)
	for _, suffix := range whatsappSuffixes {
		value = strings.TrimSuffix(value, suffix)
	}
	if value == "" {
		return ""
	}
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	digits := NormalizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}
