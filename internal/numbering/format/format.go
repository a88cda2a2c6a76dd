package format

import (
	"fmt"
	"strings"
	"time"
)

// RenderPrefix replaces the date tokens {YYYY}, {YY}, {MM} and {DD} with
// parts of issuedAt. Any other brace is rejected.
func RenderPrefix(prefix string, issuedAt time.Time) (string, error) {
	issuedAt = issuedAt.UTC()

	out := prefix
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in number prefix: %s", prefix)
	}
	return out, nil
}

// Number formats prefix + zero_pad(value, width).
func Number(prefix string, issuedAt time.Time, value int64, width int) (string, error) {
	if value <= 0 {
		return "", fmt.Errorf("invalid sequence value: %d", value)
	}
	rendered, err := RenderPrefix(prefix, issuedAt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%0*d", rendered, width, value), nil
}
