package common

import "strings"

// NodeType identifies the kind of knowledge element a record represents.
// The set is closed: records with unknown types are rejected during recovery.
type NodeType string

const (
	NodeEntity            NodeType = "Entity"
	NodeEvent             NodeType = "Event"
	NodeConcept           NodeType = "Concept"
	NodeAttribute         NodeType = "Attribute"
	NodeProposition       NodeType = "Proposition"
	NodeEmotion           NodeType = "Emotion"
	NodeAgent             NodeType = "Agent"
	NodeThought           NodeType = "Thought"
	NodeScientificInsight NodeType = "ScientificInsight"
	NodeLaw               NodeType = "Law"
	NodeReasoningChain    NodeType = "ReasoningChain"
	NodeReasoningStep     NodeType = "ReasoningStep"
	NodeLocation          NodeType = "Location"
)

// AllNodeTypes lists every supported node type in stable output order.
var AllNodeTypes = []NodeType{
	NodeEntity,
	NodeEvent,
	NodeConcept,
	NodeAttribute,
	NodeProposition,
	NodeEmotion,
	NodeAgent,
	NodeThought,
	NodeScientificInsight,
	NodeLaw,
	NodeReasoningChain,
	NodeReasoningStep,
	NodeLocation,
}

// ParseNodeType resolves a raw type string case-insensitively.
// It tolerates snake_case and spaced variants ("scientific_insight",
// "reasoning chain") since model replies are not consistent about casing.
func ParseNodeType(raw string) (NodeType, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, "_", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	for _, t := range AllNodeTypes {
		if strings.ToLower(string(t)) == cleaned {
			return t, true
		}
	}
	return "", false
}

// Entity subtypes participate in node identity alongside the canonical name.
const (
	SubTypePerson       = "Person"
	SubTypeOrganization = "Organization"
	SubTypeLocation     = "Location"
	SubTypeArtifact     = "Artifact"
	SubTypeAnimal       = "Animal"
	SubTypeConcept      = "Concept"
)

var entitySubTypes = []string{
	SubTypePerson,
	SubTypeOrganization,
	SubTypeLocation,
	SubTypeArtifact,
	SubTypeAnimal,
	SubTypeConcept,
}

// ParseEntitySubType resolves a raw subtype string case-insensitively.
func ParseEntitySubType(raw string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range entitySubTypes {
		if strings.ToLower(s) == cleaned {
			return s, true
		}
	}
	return "", false
}

// IsEntitySubType reports whether the raw string names an entity subtype.
// Relationship endpoints declared with a subtype require a subtype-aware
// node lookup instead of a plain name match.
func IsEntitySubType(raw string) bool {
	_, ok := ParseEntitySubType(raw)
	return ok
}

// Record is one typed knowledge element in JSON shape. Records come out of
// the recovery layer and stay map-shaped through aggregation because the
// upstream reply format is not trustworthy enough to bind to structs early.
// The per-type schemas in schema.go provide the known field shapes.
type Record map[string]any

// Field names shared across all node types.
const (
	FieldNodeType = "nodeType"
	FieldName     = "name"
	FieldSubType  = "subType"
	FieldMentions = "mentions"
)

// Type returns the record's node type, or false when it is missing/unknown.
func (r Record) Type() (NodeType, bool) {
	raw, _ := r[FieldNodeType].(string)
	return ParseNodeType(raw)
}

// SetType stamps the record's node type.
func (r Record) SetType(t NodeType) {
	r[FieldNodeType] = string(t)
}

// Name returns the record's raw name field, trimmed.
func (r Record) Name() string {
	raw, _ := r[FieldName].(string)
	return strings.TrimSpace(raw)
}

// SubType returns the normalized entity subtype, if any.
func (r Record) SubType() string {
	raw, _ := r[FieldSubType].(string)
	sub, _ := ParseEntitySubType(raw)
	return sub
}

// Mentions returns the accumulated mention count. Recovery output carries
// no mentions; the aggregator owns the field.
func (r Record) Mentions() int {
	switch v := r[FieldMentions].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// SetMentions overwrites the mention count.
func (r Record) SetMentions(n int) {
	r[FieldMentions] = n
}

// Key returns the record's identity key within an aggregate: the canonical
// name, extended with the subtype for entities. Two records with equal keys
// are the same node.
func (r Record) Key() string {
	key := CanonicalName(r.Name())
	if t, ok := r.Type(); ok && t == NodeEntity {
		if sub := r.SubType(); sub != "" {
			key += "|" + sub
		}
	}
	return key
}

// Clone returns a deep copy of the record. Aggregation mutates records in
// place, so chunk results must not share backing maps with the aggregate.
func (r Record) Clone() Record {
	return Record(cloneValue(map[string]any(r)).(map[string]any))
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Record:
		return cloneValue(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
