package executor

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-().]{5,}$`)
)

// checkInput validates free-form external input against a declared kind.
// The regex kind compiles the node's pattern field.
func checkInput(kind string, raw any, pattern string) error {
	text := strings.TrimSpace(fmt.Sprintf("%v", raw))

	switch kind {
	case "email":
		if !emailPattern.MatchString(text) {
			return fmt.Errorf("%q is not a valid email address", text)
		}
	case "phone":
		if !phonePattern.MatchString(text) {
			return fmt.Errorf("%q is not a valid phone number", text)
		}
	case "url":
		u, err := url.Parse(text)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%q is not a valid URL", text)
		}
	case "number":
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return fmt.Errorf("%q is not a number", text)
		}
	case "date":
		if _, err := time.Parse("2006-01-02", text); err != nil {
			return fmt.Errorf("%q is not a valid date (expected YYYY-MM-DD)", text)
		}
	case "time":
		if _, err := time.Parse("15:04", text); err != nil {
			return fmt.Errorf("%q is not a valid time (expected HH:MM)", text)
		}
	case "regex":
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid validation pattern %q", pattern)
		}
		if !re.MatchString(text) {
			return fmt.Errorf("%q does not match the expected format", text)
		}
	default:
		return fmt.Errorf("unknown validation kind %q", kind)
	}
	return nil
}
