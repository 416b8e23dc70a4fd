package respond

import (
	"regexp"

	"gift-notify/internal/observability/logging"
)

var (
	// applied in order; bearer first so tokens inside it are not matched twice
	bearerPattern     = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	jwtPattern        = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	metaTokenPattern  = regexp.MustCompile(`EAA[A-Za-z0-9]{20,}`)
	accountSIDPattern = regexp.MustCompile(`\bAC[0-9a-fA-F]{32}\b`)
	dbPasswordPattern = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)
	phonePattern      = regexp.MustCompile(`\+?\d{10,15}`)
)

// SanitizeError masks credentials and phone numbers in err's message.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	msg = jwtPattern.ReplaceAllString(msg, "****")
	msg = metaTokenPattern.ReplaceAllString(msg, "EAA****")
	msg = accountSIDPattern.ReplaceAllString(msg, "AC****")
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	msg = phonePattern.ReplaceAllStringFunc(msg, logging.MaskPhone)
	return msg
}
