package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"

	"biolink/models"
)

var (
	hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)
)

var rangeMessages = map[string]string{
	"profileOpacity": "Opacity must be between 0 and 100",
	"profileBlur":    "Blur must be between 0 and 50",
	"volumeLevel":    "Volume must be between 0 and 100",
	"sessionTimeout": "Session timeout must be between 5 and 1440 minutes",
}

const (
	colorMessage    = "Must be a valid hex color (e.g. #58A4B0)"
	urlMessage      = "Must be a valid URL"
	emailMessage    = "Must be a valid email address"
	usernameMessage = "Username must be 3-32 letters, digits, '_' or '-'"
)

// Validate checks every known field of values and returns one message per
// offending key. An empty result means the object may be saved.
func Validate(values models.Values) models.ValidationErrors {
	errs := models.ValidationErrors{}
	for _, f := range models.Fields {
		raw, ok := values[f.Key]
		if !ok {
			continue
		}
		if msg := validateField(f, raw); msg != "" {
			errs[f.Key] = msg
		}
	}
	return errs
}

// ValidateField checks a single key. Unknown keys are reported as such.
func ValidateField(key string, value any) string {
	f, ok := models.LookupField(key)
	if !ok {
		return "Unknown setting"
	}
	return validateField(f, value)
}

func validateField(f models.FieldSpec, raw any) string {
	val, err := models.NormalizeValue(f, raw)
	if err != nil {
		return fmt.Sprintf("Invalid value for %s", f.Key)
	}

	switch f.Kind {
	case models.KindColor:
		s := val.(string)
		if s != "" && !hexColorPattern.MatchString(s) {
			return colorMessage
		}
	case models.KindInt:
		n := val.(int)
		if n < f.Min || n > f.Max {
			if msg, ok := rangeMessages[f.Key]; ok {
				return msg
			}
			return fmt.Sprintf("Must be between %d and %d", f.Min, f.Max)
		}
	case models.KindURL:
		s := val.(string)
		if s != "" && !IsAbsoluteURL(s) {
			return urlMessage
		}
	case models.KindText:
		s := val.(string)
		switch f.Key {
		case "email":
			if s != "" {
				if _, err := mail.ParseAddress(s); err != nil {
					return emailMessage
				}
			}
		case "username":
			if s != "" && !usernamePattern.MatchString(s) {
				return usernameMessage
			}
		}
	}
	return ""
}

// IsAbsoluteURL reports whether s parses as a URL with a scheme and host.
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}
