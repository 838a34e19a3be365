package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors is the validation message bag.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs := e.Bag[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Fields returns the failing fields in sorted order.
func (e *Errors) Fields() []string {
	out := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Error implements error with the first message of every failing field.
func (e *Errors) Error() string {
	msgs := make([]string, 0, len(e.Bag))
	for _, f := range e.Fields() {
		msgs = append(msgs, e.First(f))
	}
	return "validation failed: " + strings.Join(msgs, " ")
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"email": "required|email", "age": "required|numeric|gte:18"}
type Rules map[string]string

// Validator validates a flat map of input values. Non-string values are
// formatted with fmt before rules apply.
type Validator struct {
	data      map[string]string
	rules     Rules
	errors    *Errors
	validated bool
}

// Make creates a new Validator.
func Make(data map[string]any, rules Rules) *Validator {
	flat := make(map[string]string, len(data))
	for k, v := range data {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			flat[k] = s
			continue
		}
		flat[k] = fmt.Sprint(v)
	}
	return &Validator{data: flat, rules: rules, errors: &Errors{}}
}

// MakeStrings is Make for string input, e.g. form values.
func MakeStrings(data map[string]string, rules Rules) *Validator {
	in := make(map[string]any, len(data))
	for k, v := range data {
		in[k] = v
	}
	return Make(in, rules)
}

// Fails runs validation (once) and returns true if any rule fails.
func (v *Validator) Fails() bool {
	v.validate()
	return v.errors.Has()
}

// Passes returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors {
	v.validate()
	return v.errors
}

// ── Core validation loop ─────────────────────────────────────────────────────

// outcome of one rule on one field
type outcome int

const (
	pass outcome = iota
	fail
	stop // skip remaining rules without an error
)

type check func(v *Validator, field, value, param string) outcome

type rule struct {
	check   check
	message string // fmt pattern; %[1]s field, %[2]s param
}

var (
	alphaRe     = regexp.MustCompile(`^[a-zA-Z]+$`)
	alphaNumRe  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	alphaDashRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	urlRe       = regexp.MustCompile(`^https?://`)
)

var ruleset = map[string]rule{
	"required": {isTrue(func(value, _ string) bool { return strings.TrimSpace(value) != "" }),
		"The %[1]s field is required."},
	"string": {func(*Validator, string, string, string) outcome { return pass }, ""},
	"numeric": {isTrue(func(value, _ string) bool { _, err := strconv.ParseFloat(value, 64); return err == nil }),
		"The %[1]s must be a number."},
	"integer": {isTrue(func(value, _ string) bool { _, err := strconv.Atoi(value); return err == nil }),
		"The %[1]s must be an integer."},
	"boolean": {isTrue(func(value, _ string) bool {
		switch strings.ToLower(value) {
		case "true", "false", "1", "0", "yes", "no":
			return true
		}
		return false
	}), "The %[1]s field must be true or false."},
	"email": {isTrue(func(value, _ string) bool { _, err := mail.ParseAddress(value); return err == nil }),
		"The %[1]s must be a valid email address."},
	"url":        {isTrue(func(value, _ string) bool { return urlRe.MatchString(value) }), "The %[1]s must be a valid URL."},
	"alpha":      {isTrue(func(value, _ string) bool { return alphaRe.MatchString(value) }), "The %[1]s may only contain letters."},
	"alpha_num":  {isTrue(func(value, _ string) bool { return alphaNumRe.MatchString(value) }), "The %[1]s may only contain letters and numbers."},
	"alpha_dash": {isTrue(func(value, _ string) bool { return alphaDashRe.MatchString(value) }), "The %[1]s may only contain letters, numbers, dashes and underscores."},
	"regex": {isTrue(func(value, param string) bool {
		re, err := regexp.Compile(param)
		return err == nil && re.MatchString(value)
	}), "The %[1]s format is invalid."},
	"min":  {length(func(n, p int) bool { return n >= p }), "The %[1]s must be at least %[2]s characters."},
	"max":  {length(func(n, p int) bool { return n <= p }), "The %[1]s may not be greater than %[2]s characters."},
	"size": {length(func(n, p int) bool { return n == p }), "The %[1]s must be %[2]s characters."},
	"between": {isTrue(func(value, param string) bool {
		lo, hi, ok := strings.Cut(param, ",")
		if !ok {
			return true
		}
		min, _ := strconv.Atoi(strings.TrimSpace(lo))
		max, _ := strconv.Atoi(strings.TrimSpace(hi))
		n := utf8.RuneCountInString(value)
		return n >= min && n <= max
	}), "The %[1]s must be between %[2]s characters."},
	"in":     {isTrue(func(value, param string) bool { return inList(value, param) }), "The selected %[1]s is invalid."},
	"not_in": {isTrue(func(value, param string) bool { return !inList(value, param) }), "The selected %[1]s is invalid."},
	"gt":     {compare(func(f, t float64) bool { return f > t }), "The %[1]s must be greater than %[2]s."},
	"gte":    {compare(func(f, t float64) bool { return f >= t }), "The %[1]s must be greater than or equal to %[2]s."},
	"lt":     {compare(func(f, t float64) bool { return f < t }), "The %[1]s must be less than %[2]s."},
	"lte":    {compare(func(f, t float64) bool { return f <= t }), "The %[1]s must be less than or equal to %[2]s."},
	"confirmed": {func(v *Validator, field, value, _ string) outcome {
		return verdict(v.data[field+"_confirmation"] == value)
	}, "The %[1]s confirmation does not match."},
	"same": {func(v *Validator, _, value, param string) outcome {
		return verdict(v.data[param] == value)
	}, "The %[1]s and %[2]s must match."},
	"different": {func(v *Validator, _, value, param string) outcome {
		return verdict(v.data[param] != value)
	}, "The %[1]s and %[2]s must be different."},
	// nullable and sometimes let an empty field skip its remaining rules
	"nullable":  {skipEmpty, ""},
	"sometimes": {skipEmpty, ""},
}

func (v *Validator) validate() {
	if v.validated {
		return
	}
	v.validated = true

	fields := make([]string, 0, len(v.rules))
	for field := range v.rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := v.data[field]
		for _, spec := range strings.Split(v.rules[field], "|") {
			spec = strings.TrimSpace(spec)
			if spec == "" {
				continue
			}
			name, param, _ := strings.Cut(spec, ":")
			r, known := ruleset[name]
			if !known {
				continue
			}
			result := r.check(v, field, value, param)
			if result == fail {
				shown := param
				if name == "between" {
					shown = strings.Replace(param, ",", " and ", 1)
				}
				v.errors.add(field, fmt.Sprintf(r.message, field, shown))
			}
			if result != pass {
				break // bail on the first failing rule
			}
		}
	}
}

// ── rule helpers ─────────────────────────────────────────────────────────────

func verdict(ok bool) outcome {
	if ok {
		return pass
	}
	return fail
}

func isTrue(fn func(value, param string) bool) check {
	return func(_ *Validator, _, value, param string) outcome { return verdict(fn(value, param)) }
}

func length(fn func(n, param int) bool) check {
	return isTrue(func(value, param string) bool {
		p, _ := strconv.Atoi(param)
		return fn(utf8.RuneCountInString(value), p)
	})
}

func compare(fn func(value, threshold float64) bool) check {
	return isTrue(func(value, param string) bool {
		f, _ := strconv.ParseFloat(value, 64)
		t, _ := strconv.ParseFloat(param, 64)
		return fn(f, t)
	})
}

func inList(value, param string) bool {
	for _, item := range strings.Split(param, ",") {
		if strings.TrimSpace(item) == value {
			return true
		}
	}
	return false
}

func skipEmpty(_ *Validator, _, value, _ string) outcome {
	if value == "" {
		return stop
	}
	return pass
}
