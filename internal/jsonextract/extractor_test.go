package jsonextract

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustDecode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("test fixture is not valid JSON: %v", err)
	}
	return v
}

func TestExtract(t *testing.T) {
	payload := `{"meals": [{"recipeName": "Omelette", "dayOfWeek": 0}], "totalEstimatedCost": 12.5}`

	tests := []struct {
		name       string
		input      string
		want       string
		methodPref string
	}{
		{
			name:       "DirectObject",
			input:      payload,
			want:       payload,
			methodPref: MethodDirect,
		},
		{
			name:       "DirectArray",
			input:      `[1, 2, {"a": null}]`,
			want:       `[1, 2, {"a": null}]`,
			methodPref: MethodDirect,
		},
		{
			name:       "DirectWithWhitespaceAndBOM",
			input:      "\ufeff  \n" + payload + "\n\t",
			want:       payload,
			methodPref: MethodDirect,
		},
		{
			name:       "ProseAround",
			input:      "Sure! Here is your plan:\n" + payload + "\nLet me know if you need changes.",
			want:       payload,
			methodPref: "scanned",
		},
		{
			name:       "FencedJSON",
			input:      "```json\n" + payload + "\n```",
			want:       payload,
			methodPref: "scanned",
		},
		{
			name:       "FencedWithoutTag",
			input:      "```\n" + payload + "\n```",
			want:       payload,
			methodPref: "scanned",
		},
		{
			name:       "LargestCandidateWins",
			input:      `Example: {"a": 1}. Real answer: ` + payload,
			want:       payload,
			methodPref: "scanned",
		},
		{
			name:       "EscapedQuoteInsideString",
			input:      `note -> {"text": "she said \"}\" loudly", "n": 2} <- end`,
			want:       `{"text": "she said \"}\" loudly", "n": 2}`,
			methodPref: "scanned",
		},
		{
			name:       "UnbalancedPrefixIsSkipped",
			input:      `oops } ] then {"ok": true}`,
			want:       `{"ok": true}`,
			methodPref: "scanned",
		},
		{
			name:       "ApostrophesInBracketedProse",
			input:      "[Chef's note] " + payload + " [Don't forget]",
			want:       payload,
			methodPref: "scanned",
		},
		{
			name:       "DanglingSingleQuoteBeforePayload",
			input:      `it's { here's the thing: {"ok": [1, 2]}`,
			want:       `{"ok": [1, 2]}`,
			methodPref: "scanned",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Extract(tc.input)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			want := mustDecode(t, tc.want)
			if !reflect.DeepEqual(res.Value, want) {
				t.Errorf("Expected value %v, got %v", want, res.Value)
			}
			if !strings.HasPrefix(res.Method, tc.methodPref) {
				t.Errorf("Expected method with prefix '%s', got '%s'", tc.methodPref, res.Method)
			}
		})
	}
}

func TestExtract_ScannedMethodReportsOffsets(t *testing.T) {
	res, err := Extract(`abc {"x": 1} def`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Method != "scanned (pos 4-11)" {
		t.Errorf("Expected method 'scanned (pos 4-11)', got '%s'", res.Method)
	}
	if res.Raw != `{"x": 1}` {
		t.Errorf("Expected raw '{\"x\": 1}', got '%s'", res.Raw)
	}
}

func TestExtract_RawIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"a": [1, 2, 3]}`,
		"```json\n{\"a\": {\"b\": \"c\"}}\n```",
		`prefix [{"n": 1}, {"n": 2}] suffix`,
	}
	for _, in := range inputs {
		res, err := Extract(in)
		if err != nil {
			t.Fatalf("Extract(%q) failed: %v", in, err)
		}
		again, err := Extract(res.Raw)
		if err != nil {
			t.Fatalf("Re-extracting raw %q failed: %v", res.Raw, err)
		}
		if !reflect.DeepEqual(res.Value, again.Value) {
			t.Errorf("Expected re-parse of %q to yield %v, got %v", res.Raw, res.Value, again.Value)
		}
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantReason string
	}{
		{name: "Empty", input: "   \n ", wantReason: "empty"},
		{name: "OnlyBOM", input: "\ufeff", wantReason: "empty"},
		{name: "NoBrackets", input: "I'm sorry, I cannot create a meal plan right now.", wantReason: "no JSON found"},
		{name: "FenceWithoutJSON", input: "```json\nnothing here\n```", wantReason: "no JSON found"},
		{name: "MismatchedBrackets", input: `{"a": [1, 2}`, wantReason: "regex fallback found a candidate but it failed to parse"},
		{name: "FencedMismatchedBrackets", input: "```json\n{\"a\": [1, 2}\n```", wantReason: "regex fallback found a candidate but it failed to parse"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Extract(tc.input)
			if err == nil {
				t.Fatal("Expected an error, got nil")
			}
			var extractionErr *ExtractionError
			if !errors.As(err, &extractionErr) {
				t.Fatalf("Expected *ExtractionError, got %T", err)
			}
			if extractionErr.Reason != tc.wantReason {
				t.Errorf("Expected reason '%s', got '%s'", tc.wantReason, extractionErr.Reason)
			}
		})
	}
}

func TestExtract_AllCandidatesFailListsPositions(t *testing.T) {
	_, err := Extract(`first {'single': 'quotes'} then {bare: word}`)
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("Expected *ExtractionError, got %T", err)
	}
	msg := err.Error()
	for _, want := range []string{"pos 6-25", "pos 32-43", " | "} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected error message to contain '%s', got '%s'", want, msg)
		}
	}
}

func TestScan(t *testing.T) {
	t.Run("StringContentsAreNotCandidates", func(t *testing.T) {
		candidates := scan(`{"note": "{not real}"}`)
		if len(candidates) != 1 {
			t.Fatalf("Expected 1 candidate, got %d: %v", len(candidates), candidates)
		}
		if candidates[0].raw != `{"note": "{not real}"}` {
			t.Errorf("Unexpected candidate '%s'", candidates[0].raw)
		}
	})

	t.Run("NestedStructuresAreCandidates", func(t *testing.T) {
		candidates := scan(`{"a": {"b": [1]}}`)
		got := make([]string, len(candidates))
		for i, c := range candidates {
			got[i] = c.raw
		}
		want := []string{`{"a": {"b": [1]}}`, `{"b": [1]}`, `[1]`}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expected candidates %v, got %v", want, got)
		}
	})

	t.Run("UnparsedSpanMasksNothing", func(t *testing.T) {
		candidates := scan(`[Chef's note] {"a": 1} [Don't forget]`)
		var found bool
		for _, c := range candidates {
			if c.raw == `{"a": 1}` {
				found = true
				if c.start != 14 || c.end != 21 {
					t.Errorf("Expected payload at 14-21, got %d-%d", c.start, c.end)
				}
			}
		}
		if !found {
			t.Errorf("Expected the payload among the candidates, got %v", candidates)
		}
	})

	t.Run("UnterminatedStringAbandonsStart", func(t *testing.T) {
		candidates := scan(`{"a": "never closed }`)
		if len(candidates) != 0 {
			t.Errorf("Expected no candidates, got %v", candidates)
		}
	})

	t.Run("OffsetsAreInclusive", func(t *testing.T) {
		candidates := scan(`xx[1]`)
		if len(candidates) != 1 || candidates[0].start != 2 || candidates[0].end != 4 {
			t.Errorf("Expected one candidate at 2-4, got %v", candidates)
		}
	})
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"```json\n{}\n```":         "{}",
		"```JSON {}```":            "{}",
		"// comment\n// more\n[]": "[]",
		"plain":                    "plain",
	}
	for in, want := range tests {
		if got := clean(in); got != want {
			t.Errorf("clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtract_FencedFailureReportsCleanedText(t *testing.T) {
	// The scan finds nothing, cleanup strips the fence, and the retry on the cleaned text
	// fails the same way; that retry's error is the one returned.
	_, err := Extract("```json\n{\"a\": [1, 2}\n```")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("Expected *ExtractionError, got %T (%v)", err, err)
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(extractionErr.Err, &syntaxErr) {
		t.Errorf("Expected the JSON syntax error as cause, got %T", extractionErr.Err)
	}
	if strings.Contains(err.Error(), "```") {
		t.Errorf("Expected no fence in the error, got '%v'", err)
	}
}
