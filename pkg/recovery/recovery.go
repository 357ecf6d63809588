// Package recovery turns free-text generation-service replies into typed
// records. The upstream channel is untrusted: replies may be clean JSON,
// fenced JSON, JSON buried in prose, or heading-structured free text.
// Recovery runs an ordered chain of total, side-effect-free strategies
// and takes the first one that yields records. It never fails: on
// irrecoverable input it returns zero records plus a note for the caller.
package recovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/mosaic/pkg/common"

	"github.com/kaptinlin/jsonrepair"
)

// Result holds the recovered records plus data-quality notes. Notes are
// informational, never errors.
type Result struct {
	Records []common.Record
	Notes   []string
}

// Recover parses a reply expected to describe records of a single node
// type. Records missing a nodeType field are stamped with defaultType.
func Recover(reply string, defaultType common.NodeType) Result {
	return RecoverTypes(reply, []common.NodeType{defaultType})
}

// RecoverTypes parses a reply that may describe records of several node
// types (one extraction call covers a group of types). Records are kept
// when their nodeType is one of the expected types; records without a type
// are stamped with the first expected type. Strategies run in priority
// order and the first success wins:
//
//  1. the whole reply as one JSON value, after repair
//  2. fenced code blocks, each parsed independently
//  3. balanced-bracket scan from the first { or [
//  4. heading/bullet free-text fallback
func RecoverTypes(reply string, types []common.NodeType) Result {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Result{Notes: []string{"empty reply"}}
	}

	strategies := []struct {
		name string
		fn   func(string) ([]any, bool)
	}{
		{"whole", parseWhole},
		{"fenced", parseFenced},
		{"balanced", parseBalanced},
	}

	for _, s := range strategies {
		values, ok := s.fn(reply)
		if !ok {
			continue
		}
		records, notes := collectRecords(values, types)
		if len(records) > 0 {
			return Result{Records: records, Notes: notes}
		}
	}

	res := parseHeadings(reply, types)
	if len(res.Records) == 0 {
		res.Notes = append(res.Notes, "no records recoverable from reply")
	}
	return res
}

// parseWhole treats the entire reply as one JSON value, applying light
// normalization (quote styles, trailing commas, Python literals) first.
func parseWhole(reply string) ([]any, bool) {
	v, ok := parseLenient(reply)
	if !ok {
		return nil, false
	}
	return []any{v}, true
}

// parseLenient tries strict JSON, then a repaired variant.
func parseLenient(input string) (any, bool) {
	input = strings.TrimSpace(input)
	var v any
	if err := json.Unmarshal([]byte(input), &v); err == nil {
		return v, usableValue(v)
	}
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, false
	}
	return v, usableValue(v)
}

// usableValue filters out parses that succeed syntactically but carry no
// structure (bare strings, numbers) — those should fall through to the
// next strategy.
func usableValue(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// parseFenced extracts triple-backtick code blocks (optionally tagged
// "json") and parses each; arrays are concatenated, single objects kept.
func parseFenced(reply string) ([]any, bool) {
	var values []any
	rest := reply
	for {
		open := strings.Index(rest, "```")
		if open == -1 {
			break
		}
		rest = rest[open+3:]
		// Skip the language tag up to the first newline.
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			tag := strings.TrimSpace(rest[:nl])
			if tag == "" || strings.EqualFold(tag, "json") || !strings.ContainsAny(tag, "{[") {
				rest = rest[nl+1:]
			}
		}
		closing := strings.Index(rest, "```")
		if closing == -1 {
			break
		}
		block := rest[:closing]
		rest = rest[closing+3:]

		if v, ok := parseLenient(block); ok {
			values = append(values, v)
		}
	}
	return values, len(values) > 0
}

// parseBalanced locates the first { or [ and walks the text counting
// bracket depth (string-aware) to find the matching close. No regex
// backtracking: one forward pass.
func parseBalanced(reply string) ([]any, bool) {
	start := strings.IndexAny(reply, "{[")
	if start == -1 {
		return nil, false
	}
	sub, ok := balancedSlice(reply[start:])
	if !ok {
		return nil, false
	}
	v, ok := parseLenient(sub)
	if !ok {
		return nil, false
	}
	return []any{v}, true
}

func balancedSlice(s string) (string, bool) {
	if len(s) == 0 {
		return "", false
	}
	open := s[0]
	var closing byte
	switch open {
	case '{':
		closing = '}'
	case '[':
		closing = ']'
	default:
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// collectRecords flattens parsed JSON values into records of the expected
// types. Arrays contribute each element; objects either are a record
// themselves or wrap per-type arrays under plural keys ("entities": [...]).
func collectRecords(values []any, types []common.NodeType) ([]common.Record, []string) {
	var records []common.Record
	var notes []string

	var visit func(v any, implied common.NodeType)
	visit = func(v any, implied common.NodeType) {
		switch val := v.(type) {
		case []any:
			for _, item := range val {
				visit(item, implied)
			}
		case map[string]any:
			if looksLikeRecord(val) {
				if rec, ok := adoptRecord(val, implied, types); ok {
					records = append(records, rec)
				} else {
					notes = append(notes, fmt.Sprintf("dropped record with unexpected type: %v", val["nodeType"]))
				}
				return
			}
			// Wrapper object: per-type arrays under plural keys.
			for key, item := range val {
				keyType, ok := sectionType(key)
				if !ok {
					keyType = implied
				}
				visit(item, keyType)
			}
		}
	}

	defaultType := common.NodeType("")
	if len(types) > 0 {
		defaultType = types[0]
	}
	for _, v := range values {
		visit(v, defaultType)
	}
	return records, notes
}

// looksLikeRecord reports whether a JSON object is a record rather than a
// wrapper: it names itself and does not consist solely of array values.
func looksLikeRecord(m map[string]any) bool {
	if _, ok := m[common.FieldName].(string); ok {
		return true
	}
	if _, ok := m[common.FieldNodeType].(string); ok {
		return true
	}
	return false
}

// adoptRecord validates the record's type against the expected set,
// stamping the implied type when missing, and requires a non-empty name.
func adoptRecord(m map[string]any, implied common.NodeType, expected []common.NodeType) (common.Record, bool) {
	rec := common.Record(m)
	t, ok := rec.Type()
	if !ok {
		if implied == "" {
			return nil, false
		}
		t = implied
	}
	allowed := len(expected) == 0
	for _, e := range expected {
		if e == t {
			allowed = true
			break
		}
	}
	if !allowed || rec.Name() == "" {
		return nil, false
	}
	rec.SetType(t)
	return rec, true
}

// FillDefaults applies the per-type neutral defaults to every record.
// Callers opt in explicitly ("validate" mode); plain recovery leaves
// records exactly as parsed.
func FillDefaults(records []common.Record) {
	for _, rec := range records {
		common.FillDefaults(rec)
	}
}
