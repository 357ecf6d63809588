package common

import "fmt"

// FieldKind tags how a schema field merges: lists union, maps merge
// recursively, scalars keep the first non-empty value, numbers are scalars
// whose empty value is zero.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindNumber
	KindList
	KindMap
)

// FieldSpec declares one known field of a node type.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// typeSchemas lists the known optional fields per node type. FillDefaults
// uses it so downstream consumers never have to check for field absence;
// fields outside the schema still merge by their JSON shape.
var typeSchemas = map[NodeType][]FieldSpec{
	NodeEntity: {
		{Name: "description", Kind: KindScalar},
		{Name: "subType", Kind: KindScalar},
		{Name: "observations", Kind: KindList},
		{Name: "keyContributions", Kind: KindList},
		{Name: "emotionalValence", Kind: KindNumber},
		{Name: "emotionalArousal", Kind: KindNumber},
		{Name: "confidence", Kind: KindNumber},
		{Name: "source", Kind: KindScalar},
	},
	NodeEvent: {
		{Name: "description", Kind: KindScalar},
		{Name: "startDate", Kind: KindScalar},
		{Name: "endDate", Kind: KindScalar},
		{Name: "location", Kind: KindScalar},
		{Name: "participants", Kind: KindList},
		{Name: "outcome", Kind: KindScalar},
		{Name: "significance", Kind: KindScalar},
		{Name: "causalPredecessors", Kind: KindList},
		{Name: "causalSuccessors", Kind: KindList},
	},
	NodeConcept: {
		{Name: "definition", Kind: KindScalar},
		{Name: "description", Kind: KindScalar},
		{Name: "domain", Kind: KindScalar},
		{Name: "examples", Kind: KindList},
		{Name: "relatedConcepts", Kind: KindList},
		{Name: "significance", Kind: KindScalar},
		{Name: "perspectives", Kind: KindList},
		{Name: "historicalDevelopment", Kind: KindList},
		{Name: "abstractionLevel", Kind: KindNumber},
		{Name: "metaphoricalMappings", Kind: KindList},
	},
	NodeAttribute: {
		{Name: "description", Kind: KindScalar},
		{Name: "value", Kind: KindScalar},
		{Name: "unit", Kind: KindScalar},
		{Name: "valueType", Kind: KindScalar},
		{Name: "possibleValues", Kind: KindList},
	},
	NodeProposition: {
		{Name: "statement", Kind: KindScalar},
		{Name: "status", Kind: KindScalar},
		{Name: "confidence", Kind: KindNumber},
		{Name: "truthValue", Kind: KindScalar},
		{Name: "domain", Kind: KindScalar},
		{Name: "sources", Kind: KindList},
		{Name: "evidenceStrength", Kind: KindNumber},
		{Name: "counterEvidence", Kind: KindList},
	},
	NodeEmotion: {
		{Name: "description", Kind: KindScalar},
		{Name: "intensity", Kind: KindNumber},
		{Name: "valence", Kind: KindNumber},
		{Name: "category", Kind: KindScalar},
		{Name: "subcategory", Kind: KindScalar},
	},
	NodeAgent: {
		{Name: "description", Kind: KindScalar},
		{Name: "agentType", Kind: KindScalar},
		{Name: "capabilities", Kind: KindList},
		{Name: "beliefs", Kind: KindList},
		{Name: "knowledge", Kind: KindList},
		{Name: "preferences", Kind: KindList},
		{Name: "emotionalState", Kind: KindScalar},
	},
	NodeThought: {
		{Name: "thoughtContent", Kind: KindScalar},
		{Name: "references", Kind: KindList},
		{Name: "confidence", Kind: KindNumber},
		{Name: "source", Kind: KindScalar},
		{Name: "createdBy", Kind: KindScalar},
		{Name: "tags", Kind: KindList},
		{Name: "impact", Kind: KindScalar},
		{Name: "evidentialBasis", Kind: KindList},
		{Name: "thoughtCounterarguments", Kind: KindList},
		{Name: "implications", Kind: KindList},
	},
	NodeScientificInsight: {
		{Name: "hypothesis", Kind: KindScalar},
		{Name: "evidence", Kind: KindList},
		{Name: "methodology", Kind: KindScalar},
		{Name: "confidence", Kind: KindNumber},
		{Name: "field", Kind: KindScalar},
		{Name: "publications", Kind: KindList},
		{Name: "evidenceStrength", Kind: KindNumber},
		{Name: "scientificCounterarguments", Kind: KindList},
		{Name: "applicationDomains", Kind: KindList},
		{Name: "replicationStatus", Kind: KindScalar},
		{Name: "surpriseValue", Kind: KindNumber},
	},
	NodeLaw: {
		{Name: "statement", Kind: KindScalar},
		{Name: "conditions", Kind: KindList},
		{Name: "exceptions", Kind: KindList},
		{Name: "domainConstraints", Kind: KindList},
		{Name: "proofs", Kind: KindList},
		{Name: "counterexamples", Kind: KindList},
	},
	NodeReasoningChain: {
		{Name: "description", Kind: KindScalar},
		{Name: "conclusion", Kind: KindScalar},
		{Name: "confidenceScore", Kind: KindNumber},
		{Name: "creator", Kind: KindScalar},
		{Name: "methodology", Kind: KindScalar},
		{Name: "steps", Kind: KindList},
		{Name: "stepDetails", Kind: KindList},
		{Name: "numberOfSteps", Kind: KindNumber},
		{Name: "alternativeConclusionsConsidered", Kind: KindList},
		{Name: "sourceThought", Kind: KindScalar},
	},
	NodeReasoningStep: {
		{Name: "content", Kind: KindScalar},
		{Name: "stepType", Kind: KindScalar},
		{Name: "evidenceType", Kind: KindScalar},
		{Name: "supportingReferences", Kind: KindList},
		{Name: "confidence", Kind: KindNumber},
		{Name: "alternatives", Kind: KindList},
		{Name: "counterarguments", Kind: KindList},
		{Name: "assumptions", Kind: KindList},
		{Name: "formalNotation", Kind: KindScalar},
		{Name: "chainName", Kind: KindScalar},
		{Name: "order", Kind: KindNumber},
	},
	NodeLocation: {
		{Name: "description", Kind: KindScalar},
		{Name: "locationType", Kind: KindScalar},
		{Name: "coordinates", Kind: KindMap},
		{Name: "locationSignificance", Kind: KindScalar},
		{Name: "containedWithin", Kind: KindScalar},
	},
}

// personProfileSchema extends Person entities with the synthesized
// psychological profile fields.
var personProfileSchema = []FieldSpec{
	{Name: "personalityTraits", Kind: KindList},
	{Name: "cognitiveStyle", Kind: KindMap},
	{Name: "emotionalProfile", Kind: KindMap},
	{Name: "relationalDynamics", Kind: KindMap},
	{Name: "valueSystem", Kind: KindMap},
	{Name: "psychologicalDevelopment", Kind: KindList},
	{Name: "interpersonalStyle", Kind: KindScalar},
}

// SchemaFor returns the known field specs for a node type. Person entities
// additionally get the profile fields.
func SchemaFor(t NodeType, subType string) []FieldSpec {
	specs := typeSchemas[t]
	if t == NodeEntity && subType == SubTypePerson {
		specs = append(append([]FieldSpec{}, specs...), personProfileSchema...)
	}
	return specs
}

// neutralDefault returns the fill value for a missing field: empty string,
// empty list, empty map, or 0.5 for confidence-like numbers and 0 otherwise.
func neutralDefault(spec FieldSpec) any {
	switch spec.Kind {
	case KindList:
		return []any{}
	case KindMap:
		return map[string]any{}
	case KindNumber:
		switch spec.Name {
		case "confidence", "confidenceScore", "evidenceStrength":
			return 0.5
		}
		return float64(0)
	default:
		return ""
	}
}

// FillDefaults adds every schema field missing from the record with its
// neutral default, so consumers never need to defensively check for the
// absence of a known field. Only called in validate mode, once, at
// aggregation finalization.
func FillDefaults(r Record) {
	t, ok := r.Type()
	if !ok {
		return
	}
	for _, spec := range SchemaFor(t, r.SubType()) {
		if _, present := r[spec.Name]; !present {
			r[spec.Name] = neutralDefault(spec)
		}
	}
	if _, present := r[FieldMentions]; !present {
		r[FieldMentions] = 0
	}
}

// MergeInto folds an incoming record into an established one. List fields
// union without string-equal duplicates, map fields merge recursively by
// the same rule, and scalar fields keep the existing non-empty value; new
// data never silently overwrites established scalars. The mentions counter
// is owned by the aggregator and is not touched here.
func MergeInto(existing, incoming Record) {
	for key, newVal := range incoming {
		if key == FieldMentions {
			continue
		}
		oldVal, present := existing[key]
		if !present {
			existing[key] = cloneValue(newVal)
			continue
		}
		existing[key] = mergeValue(oldVal, newVal)
	}
}

func mergeValue(oldVal, newVal any) any {
	switch old := oldVal.(type) {
	case []any:
		return unionLists(old, toList(newVal))
	case map[string]any:
		if newMap, ok := asMap(newVal); ok {
			for k, v := range newMap {
				if existing, present := old[k]; present {
					old[k] = mergeValue(existing, v)
				} else {
					old[k] = cloneValue(v)
				}
			}
			return old
		}
		return old
	default:
		if isEmptyScalar(oldVal) && !isEmptyScalar(newVal) {
			return cloneValue(newVal)
		}
		return oldVal
	}
}

func toList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case nil:
		return nil
	default:
		return []any{val}
	}
}

func asMap(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case Record:
		return map[string]any(val), true
	}
	return nil, false
}

func unionLists(existing, incoming []any) []any {
	seen := make(map[string]bool, len(existing))
	for _, item := range existing {
		seen[fmt.Sprintf("%v", item)] = true
	}
	for _, item := range incoming {
		repr := fmt.Sprintf("%v", item)
		if seen[repr] {
			continue
		}
		seen[repr] = true
		existing = append(existing, cloneValue(item))
	}
	return existing
}

func isEmptyScalar(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case float64:
		return val == 0
	case int:
		return val == 0
	case bool:
		return false
	}
	return false
}
