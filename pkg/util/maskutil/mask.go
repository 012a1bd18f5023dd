package maskutil

import "regexp"

var (
	mobilePattern = regexp.MustCompile(`(\d{3})\d{4}(\d{4})`)
	emailPattern  = regexp.MustCompile(`^(.).+(@.+)$`)
)

// Mobile hides the middle four digits: 13812345678 -> 138****5678.
func Mobile(mobile string) string {
	if mobile == "" {
		return ""
	}
	return mobilePattern.ReplaceAllString(mobile, "$1****$2")
}

// Email keeps the first character of the local part: test@example.com -> t***@example.com.
func Email(email string) string {
	if email == "" {
		return ""
	}
	return emailPattern.ReplaceAllString(email, "$1***$2")
}
