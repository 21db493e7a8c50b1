// Package jsonextract recovers structured JSON payloads from free-form LLM responses.
//
// Models regularly wrap their JSON in prose, markdown fences or comments, and sometimes
// emit several JSON-looking fragments. Extract tries, in order: a direct parse of the
// whole text, a balanced-bracket scan that collects every complete object/array, a
// cleanup pass that strips fences and leading comments, and finally a greedy regex match.
package jsonextract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MethodDirect and MethodRegex tag results produced by the direct parse and the regex fallback.
const (
	MethodDirect = "direct"
	MethodRegex  = "regex-first"
)

var (
	fenceOpenPattern       = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClosePattern      = regexp.MustCompile("(?i)\\s*```$")
	leadingCommentsPattern = regexp.MustCompile(`^(//.*\r?\n)+`)
	greedyBlockPattern     = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

// Result is a successfully extracted JSON value.
type Result struct {
	// Value is the decoded JSON (map[string]any, []any, string, float64, bool or nil).
	Value any
	// Method describes which stage produced the value, e.g. "direct" or "scanned (pos 12-345)".
	Method string
	// Raw is the exact substring that was parsed.
	Raw string
}

// ExtractionError is returned when no parseable JSON can be located in the text.
type ExtractionError struct {
	Reason string
	// Err carries per-candidate diagnostics when candidates were found but none parsed.
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("json extraction failed: %s: %v", e.Reason, e.Err)
	}
	return "json extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// candidate is a balanced span found by the bracket scanner. Offsets are byte offsets
// into the trimmed text, end inclusive.
type candidate struct {
	start int
	end   int
	raw   string
}

// Extract returns the most plausible JSON value embedded in text.
func Extract(text string) (*Result, error) {
	return extract(text, true)
}

func extract(text string, allowCleanup bool) (*Result, error) {
	t := strings.TrimSpace(text)
	t = strings.TrimSpace(strings.TrimPrefix(t, "\ufeff"))
	if t == "" {
		return nil, &ExtractionError{Reason: "empty"}
	}

	if v, err := parse(t); err == nil {
		return &Result{Value: v, Method: MethodDirect, Raw: t}, nil
	}

	if candidates := scan(t); len(candidates) > 0 {
		return parseCandidates(candidates)
	}

	cleaned := clean(t)
	var cleanedErr error
	if allowCleanup && cleaned != t {
		res, err := extract(cleaned, false)
		if err == nil {
			return res, nil
		}
		cleanedErr = err
	}

	if m := greedyBlockPattern.FindString(cleaned); m != "" {
		raw := strings.TrimSpace(m)
		v, err := parse(raw)
		if err == nil {
			return &Result{Value: v, Method: MethodRegex, Raw: raw}, nil
		}
		if cleanedErr != nil {
			return nil, cleanedErr
		}
		return nil, &ExtractionError{Reason: "regex fallback found a candidate but it failed to parse", Err: err}
	}

	return nil, &ExtractionError{Reason: "no JSON found"}
}

func parse(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// scan walks every '{' or '[' and records the spans that close cleanly. Openers that sit
// inside a string literal of an already found span that is valid JSON are never used as
// start positions. Spans that do not parse mask nothing, so an apostrophe in surrounding
// prose cannot hide the payload.
func scan(t string) []candidate {
	var candidates []candidate
	inLiteral := make([]bool, len(t))

	for pos := 0; pos < len(t); pos++ {
		if !isOpener(t[pos]) || inLiteral[pos] {
			continue
		}
		end, literals, ok := balancedEnd(t, pos)
		if !ok {
			continue
		}
		raw := t[pos : end+1]
		if json.Valid([]byte(raw)) {
			for _, span := range literals {
				for i := span[0]; i <= span[1]; i++ {
					inLiteral[i] = true
				}
			}
		}
		candidates = append(candidates, candidate{start: pos, end: end, raw: raw})
	}
	return candidates
}

// balancedEnd returns the offset of the closer that balances the opener at start, together
// with the spans of every string literal seen on the way. Both '"' and '\'' delimit strings.
func balancedEnd(t string, start int) (int, [][2]int, bool) {
	var (
		stack     []byte
		literals  [][2]int
		quote     byte
		quoteFrom int
		escaped   bool
	)

	for i := start; i < len(t); i++ {
		c := t[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				literals = append(literals, [2]int{quoteFrom, i})
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'':
			quote = c
			quoteFrom = i
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, nil, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, literals, true
			}
		}
	}
	return 0, nil, false
}

func isOpener(c byte) bool {
	return c == '{' || c == '['
}

// parseCandidates tries the largest candidates first and returns the first that parses.
func parseCandidates(candidates []candidate) (*Result, error) {
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return len(b.raw) - len(a.raw)
	})

	var errs *multierror.Error
	for _, c := range candidates {
		v, err := parse(c.raw)
		if err == nil {
			return &Result{
				Value:  v,
				Method: fmt.Sprintf("scanned (pos %d-%d)", c.start, c.end),
				Raw:    c.raw,
			}, nil
		}
		errs = multierror.Append(errs, fmt.Errorf("pos %d-%d: %w", c.start, c.end, err))
	}

	errs.ErrorFormat = func(es []error) string {
		msgs := make([]string, len(es))
		for i, err := range es {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, " | ")
	}
	return nil, &ExtractionError{
		Reason: "found candidate JSON blocks but all failed to parse",
		Err:    errs,
	}
}

// clean strips a markdown fence opener/closer and leading line comments.
func clean(t string) string {
	cleaned := fenceOpenPattern.ReplaceAllString(t, "")
	cleaned = fenceClosePattern.ReplaceAllString(cleaned, "")
	cleaned = leadingCommentsPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
