package form

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Rule checks a single field value. Returns nil if valid, or an error whose
// message is shown to the user.
type Rule interface {
	Check(value any) error
}

// RuleFunc is a function that implements Rule.
type RuleFunc func(value any) error

func (f RuleFunc) Check(value any) error {
	return f(value)
}

// RuleError is the failure returned by the built-in rules.
type RuleError struct {
	Message string
}

func (e RuleError) Error() string {
	return e.Message
}

// crossFieldRule is implemented by rules that compare against a sibling
// field and need the full value snapshot.
type crossFieldRule interface {
	checkIn(values map[string]any, value any) error
}

// RuleSet maps field names to ordered rule lists and implements Validator.
// Every field is evaluated in one pass — an invalid field never hides
// errors on other fields — and the first failing rule for a field supplies
// that field's message. Fields are evaluated in name order so the resulting
// FieldErrors are deterministic.
type RuleSet map[string][]Rule

func (rs RuleSet) Validate(ctx context.Context, values map[string]any) error {
	fields := make([]string, 0, len(rs))
	for field := range rs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var errs FieldErrors
	for _, field := range fields {
		value := values[field]
		for _, rule := range rs[field] {
			var err error
			if cross, ok := rule.(crossFieldRule); ok {
				err = cross.checkIn(values, value)
			} else {
				err = rule.Check(value)
			}
			if err != nil {
				errs = append(errs, FieldError{Path: field, Message: err.Error()})
				break
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ----------------------------------------------------------------------------
// String rules
// ----------------------------------------------------------------------------

// Required fails on empty values. All other rules pass empty values through
// so that optional fields only fail when they hold something invalid.
func Required(msg string) Rule {
	if msg == "" {
		msg = "This field is required"
	}
	return RuleFunc(func(value any) error {
		if isEmpty(value) {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// MinLength requires at least n characters.
func MinLength(n int, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Must be at least %d characters", n)
	}
	return RuleFunc(func(value any) error {
		s := toString(value)
		if s == "" {
			return nil
		}
		if len([]rune(s)) < n {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// MaxLength allows at most n characters.
func MaxLength(n int, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Must be at most %d characters", n)
	}
	return RuleFunc(func(value any) error {
		if len([]rune(toString(value))) > n {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// Pattern requires the value to match the given regular expression.
func Pattern(pattern string, msg string) Rule {
	re := regexp.MustCompile(pattern)
	if msg == "" {
		msg = "Invalid format"
	}
	return RuleFunc(func(value any) error {
		s := toString(value)
		if s == "" {
			return nil
		}
		if !re.MatchString(s) {
			return RuleError{Message: msg}
		}
		return nil
	})
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Email requires a plausible email address.
func Email(msg string) Rule {
	if msg == "" {
		msg = "Invalid email address"
	}
	return RuleFunc(func(value any) error {
		s := toString(value)
		if s == "" {
			return nil
		}
		if !emailPattern.MatchString(s) {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// URL requires an absolute URL with scheme and host.
func URL(msg string) Rule {
	if msg == "" {
		msg = "Invalid URL"
	}
	return RuleFunc(func(value any) error {
		s := toString(value)
		if s == "" {
			return nil
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// Alpha requires only letters.
func Alpha(msg string) Rule {
	if msg == "" {
		msg = "Must contain only letters"
	}
	return RuleFunc(func(value any) error {
		s := toString(value)
		if s == "" {
			return nil
		}
		for _, r := range s {
			if !unicode.IsLetter(r) {
				return RuleError{Message: msg}
			}
		}
		return nil
	})
}

// ----------------------------------------------------------------------------
// Numeric rules
// ----------------------------------------------------------------------------

// Min requires a numeric value >= n.
func Min(n float64, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Must be at least %v", n)
	}
	return RuleFunc(func(value any) error {
		if isEmpty(value) {
			return nil
		}
		if toFloat64(value) < n {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// Max requires a numeric value <= n.
func Max(n float64, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Must be at most %v", n)
	}
	return RuleFunc(func(value any) error {
		if isEmpty(value) {
			return nil
		}
		if toFloat64(value) > n {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// ----------------------------------------------------------------------------
// Cross-field rules
// ----------------------------------------------------------------------------

// matchFieldRule compares against a sibling field's value.
type matchFieldRule struct {
	field   string
	message string
}

// MatchField requires the value to equal another field's value, e.g. a
// password confirmation.
func MatchField(field string, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Must match %s", field)
	}
	return &matchFieldRule{field: field, message: msg}
}

// Check without a snapshot cannot compare; it passes. RuleSet routes
// through checkIn instead.
func (r *matchFieldRule) Check(value any) error {
	return nil
}

func (r *matchFieldRule) checkIn(values map[string]any, value any) error {
	if !valueEqual(value, values[r.field]) {
		return RuleError{Message: r.message}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Conversion helpers
// ----------------------------------------------------------------------------

// isEmpty reports whether a value counts as unset. Zero numbers and false
// are not empty; blank and whitespace-only strings are.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []byte:
		return len(v) == 0
	default:
		return false
	}
}

// toString converts a value to a string for the string rules.
func toString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toFloat64 converts a value to float64 for the numeric rules.
func toFloat64(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}
