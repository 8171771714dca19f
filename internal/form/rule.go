package form

import (
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all rules; validator.Validate is safe for
// concurrent use.
var validate = validator.New()

// Rule checks a single field value.
type Rule interface {
	// Check returns a message and false when value fails the rule.
	Check(value string) (string, bool)
}

// tagRule evaluates a validator tag against the value.
type tagRule struct {
	tag     string
	message string
}

func (r tagRule) Check(value string) (string, bool) {
	if err := validate.Var(value, r.tag); err != nil {
		return r.message, false
	}
	return "", true
}

// Required fails on an empty value.
func Required(message string) Rule {
	return tagRule{tag: "required", message: message}
}

// MinLength fails when value has fewer than n characters. An empty value
// passes; combine with Required to reject it.
func MinLength(n int, message string) Rule {
	return tagRule{tag: "omitempty,min=" + strconv.Itoa(n), message: message}
}

// Email fails when a non-empty value is not an email address.
func Email(message string) Rule {
	return tagRule{tag: "omitempty,email", message: message}
}

type patternRule struct {
	re      *regexp.Regexp
	message string
}

func (r patternRule) Check(value string) (string, bool) {
	if value == "" || r.re.MatchString(value) {
		return "", true
	}
	return r.message, false
}

// Pattern fails when a non-empty value does not match re.
func Pattern(re *regexp.Regexp, message string) Rule {
	return patternRule{re: re, message: message}
}

// OneOf fails when a non-empty value is not one of options.
func OneOf(message string, options ...string) Rule {
	return oneOfRule{options: options, message: message}
}

type oneOfRule struct {
	options []string
	message string
}

func (r oneOfRule) Check(value string) (string, bool) {
	if value == "" {
		return "", true
	}
	for _, o := range r.options {
		if o == value {
			return "", true
		}
	}
	return r.message, false
}

// Func adapts a plain function to a Rule.
type Func func(value string) (string, bool)

func (f Func) Check(value string) (string, bool) { return f(value) }
