package recovery

import (
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/mosaic/pkg/common"
)

// sectionKeywords maps heading keywords (lower case) to node types. Both
// singular and plural forms appear because model replies use either.
var sectionKeywords = map[string]common.NodeType{
	"entity":              common.NodeEntity,
	"entities":            common.NodeEntity,
	"event":               common.NodeEvent,
	"events":              common.NodeEvent,
	"concept":             common.NodeConcept,
	"concepts":            common.NodeConcept,
	"attribute":           common.NodeAttribute,
	"attributes":          common.NodeAttribute,
	"proposition":         common.NodeProposition,
	"propositions":        common.NodeProposition,
	"emotion":             common.NodeEmotion,
	"emotions":            common.NodeEmotion,
	"agent":               common.NodeAgent,
	"agents":              common.NodeAgent,
	"thought":             common.NodeThought,
	"thoughts":            common.NodeThought,
	"scientific insight":  common.NodeScientificInsight,
	"scientific insights": common.NodeScientificInsight,
	"scientificinsights":  common.NodeScientificInsight,
	"law":                 common.NodeLaw,
	"laws":                common.NodeLaw,
	"reasoning chain":     common.NodeReasoningChain,
	"reasoning chains":    common.NodeReasoningChain,
	"reasoning step":      common.NodeReasoningStep,
	"reasoning steps":     common.NodeReasoningStep,
	"location":            common.NodeLocation,
	"locations":           common.NodeLocation,
}

// sectionType resolves a wrapper key or heading text to a node type.
func sectionType(raw string) (common.NodeType, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, ":#*- \t")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	if t, ok := sectionKeywords[cleaned]; ok {
		return t, ok
	}
	// Wrapper keys sometimes compress the words ("reasoningSteps").
	return common.ParseNodeType(strings.TrimSuffix(cleaned, "s"))
}

var (
	// "## Entities", "**Events**", "Concepts:" and similar.
	headingRe = regexp.MustCompile(`^\s*(?:#{1,6}\s*)?(?:\*\*)?\s*([A-Za-z][A-Za-z _]*?)\s*(?:\*\*)?\s*:?\s*$`)
	// "- Name (Type) - Description" and "- Name (Type): Description".
	bulletRe = regexp.MustCompile(`^\s*[-*•]\s*(.+?)\s*\(([^)]+)\)\s*[-:–]\s*(.*)$`)
)

// preferType moves t to the front of the expected set so it acts as the
// implied type for untyped records.
func preferType(types []common.NodeType, t common.NodeType) []common.NodeType {
	if t == "" {
		return types
	}
	out := []common.NodeType{t}
	for _, other := range types {
		if other != t {
			out = append(out, other)
		}
	}
	return out
}

// parseHeadings is the last-resort strategy for replies with no usable
// JSON: section headers per node type with bullet lines or embedded JSON
// blocks beneath them.
func parseHeadings(reply string, types []common.NodeType) Result {
	var res Result

	expected := make(map[common.NodeType]bool, len(types))
	for _, t := range types {
		expected[t] = true
	}

	current := common.NodeType("")
	if len(types) == 1 {
		current = types[0]
	}

	lines := strings.Split(reply, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			if t, ok := sectionType(m[1]); ok {
				current = t
				continue
			}
		}

		if m := bulletRe.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[1])
			declared, ok := common.ParseNodeType(m[2])
			if !ok {
				declared = current
			}
			if declared == "" || (len(expected) > 0 && !expected[declared]) {
				res.Notes = append(res.Notes, "dropped bullet outside expected types: "+name)
				continue
			}
			rec := common.Record{
				common.FieldName: name,
				"description":    strings.TrimSpace(m[3]),
			}
			rec.SetType(declared)
			res.Records = append(res.Records, rec)
			continue
		}

		// Embedded JSON block beneath a header.
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			joined := strings.Join(lines[i:], "\n")
			sub, ok := balancedSlice(joined[strings.IndexAny(joined, "{["):])
			if !ok {
				continue
			}
			if v, ok := parseLenient(sub); ok {
				// Untyped records in the block belong to the current section.
				records, notes := collectRecords([]any{v}, preferType(types, current))
				res.Records = append(res.Records, records...)
				res.Notes = append(res.Notes, notes...)
				i += strings.Count(sub, "\n")
			}
		}
	}

	return res
}
