package sync

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
)

var ErrInvalidTemplate = errors.New("invalid ticket template")

// applyTransform runs one "name:arg" transform of a template placeholder, e.g. ${Priority|upper}
// or ${Due Date|date:02 Jan 2006}.
func applyTransform(value, transform string) (string, error) {
	function, arg, _ := strings.Cut(strings.TrimSpace(transform), ":")

	switch function {
	case "upper":
		return strings.ToUpper(value), nil
	case "lower":
		return strings.ToLower(value), nil
	case "trim":
		return strings.TrimSpace(value), nil
	case "camel":
		return strcase.ToCamel(value), nil
	case "snake":
		return strcase.ToSnake(value), nil
	case "kebab":
		return strcase.ToKebab(value), nil

	case "default":
		if value == "" {
			return arg, nil
		}
		return value, nil

	case "truncate":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return value, fmt.Errorf("invalid argument %s for transform %s", arg, transform)
		}
		if utf8.RuneCountInString(value) <= n {
			return value, nil
		}
		return string([]rune(value)[:n]), nil

	case "date":
		if arg == "" {
			return value, fmt.Errorf("transform %s needs a layout", transform)
		}
		t, err := time.Parse(DateLayout, value)
		if err != nil {
			// not a date cell, leave it alone
			return value, nil
		}
		return t.Format(arg), nil

	case "replace":
		old, replacement, ok := strings.Cut(arg, ",")
		if !ok {
			return value, fmt.Errorf("invalid argument %s for transform %s expected two params", arg, transform)
		}
		return strings.ReplaceAll(value, old, replacement), nil

	default:
		return value, fmt.Errorf("unsupported transform: %s", transform)
	}
}

// parsePlaceholder splits "Name|t1|t2:arg" into the variable name and its transforms.
func parsePlaceholder(body string) (string, []string) {
	parts := strings.Split(body, "|")
	return strings.TrimSpace(parts[0]), parts[1:]
}

// ValidateTemplate checks that every placeholder transform of the template is supported.
func ValidateTemplate(t TicketTemplate) error {
	var errs []error
	for _, s := range []string{t.Summary, t.Description, t.IssueType.Name} {
		for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			name, transforms := parsePlaceholder(m[1])
			if name == "" {
				errs = append(errs, fmt.Errorf("%w: empty placeholder %s", ErrInvalidTemplate, m[0]))
			}
			for _, transform := range transforms {
				if _, err := applyTransform("", transform); err != nil {
					errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, m[0], err))
				}
			}
		}
	}
	return errors.Join(errs...)
}
