package common

import (
	"fmt"
	"sort"
	"strings"
)

// RelationCategory is the semantic class a relationship type belongs to.
type RelationCategory string

const (
	CategoryHierarchical  RelationCategory = "hierarchical"
	CategoryCompositional RelationCategory = "compositional"
	CategoryTemporal      RelationCategory = "temporal"
	CategoryCausal        RelationCategory = "causal"
	CategoryAttributive   RelationCategory = "attributive"
	CategoryLateral       RelationCategory = "lateral"
)

// RelatedTo is the fallback relationship type for anything outside the
// controlled vocabulary.
const RelatedTo = "RELATED_TO"

// relationCategories is the controlled relationship vocabulary. Every type
// maps to exactly one category; unrecognized types normalize to RELATED_TO.
var relationCategories = map[string]RelationCategory{
	"IS_A":        CategoryHierarchical,
	"INSTANCE_OF": CategoryHierarchical,
	"SUBCLASS_OF": CategoryHierarchical,
	"CATEGORY_OF": CategoryHierarchical,
	"GENERALIZES": CategoryHierarchical,
	"SPECIALIZES": CategoryHierarchical,

	"PART_OF":     CategoryCompositional,
	"HAS_PART":    CategoryCompositional,
	"CONTAINS":    CategoryCompositional,
	"COMPOSED_OF": CategoryCompositional,
	"MEMBER_OF":   CategoryCompositional,
	"LOCATED_IN":  CategoryCompositional,

	"BEFORE":          CategoryTemporal,
	"AFTER":           CategoryTemporal,
	"DURING":          CategoryTemporal,
	"PRECEDES":        CategoryTemporal,
	"FOLLOWS":         CategoryTemporal,
	"CONCURRENT_WITH": CategoryTemporal,

	"CAUSES":         CategoryCausal,
	"CAUSED_BY":      CategoryCausal,
	"INFLUENCES":     CategoryCausal,
	"ENABLES":        CategoryCausal,
	"PREVENTS":       CategoryCausal,
	"CONTRIBUTES_TO": CategoryCausal,
	"DEPENDS_ON":     CategoryCausal,

	"HAS_PROPERTY":  CategoryAttributive,
	"PROPERTY_OF":   CategoryAttributive,
	"HAS_ATTRIBUTE": CategoryAttributive,
	"EXPRESSES":     CategoryAttributive,
	"EXPERIENCES":   CategoryAttributive,
	"BELIEVES":      CategoryAttributive,
	"VALUES":        CategoryAttributive,

	RelatedTo:         CategoryLateral,
	"ASSOCIATED_WITH": CategoryLateral,
	"PARTICIPANT_IN":  CategoryLateral,
	"INTERACTS_WITH":  CategoryLateral,
	"SUPPORTS":        CategoryLateral,
	"OPPOSES":         CategoryLateral,
	"CONTRADICTS":     CategoryLateral,
	"WORKS_FOR":       CategoryLateral,
	"KNOWS":           CategoryLateral,
	"CREATED":         CategoryLateral,
	"MENTIONS":        CategoryLateral,
}

// RelationTypes returns the controlled vocabulary in sorted order, for
// enumeration in extraction prompts.
func RelationTypes() []string {
	types := make([]string, 0, len(relationCategories))
	for t := range relationCategories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NormalizeRelationType upper-cases and underscores a raw relationship type
// and resolves it against the vocabulary. Unknown types come back as
// RELATED_TO in the lateral category.
func NormalizeRelationType(raw string) (string, RelationCategory) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.Join(strings.Fields(cleaned), "_")
	if cat, ok := relationCategories[cleaned]; ok {
		return cleaned, cat
	}
	return RelatedTo, CategoryLateral
}

// RelationCategoryOf returns the category of a normalized relationship type.
func RelationCategoryOf(relType string) RelationCategory {
	if cat, ok := relationCategories[relType]; ok {
		return cat
	}
	return CategoryLateral
}

// NodeRef names one relationship endpoint symbolically: a node name plus
// the type the extraction step declared for it. The type may be a node type
// or an entity subtype; the resolver decides which lookup applies.
type NodeRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Relationship is a symbolic edge between two node references. Endpoints
// are resolved against existing graph nodes only at write time; carrying
// names here means a relationship can survive aggregation even when its
// endpoints arrive in other chunks.
type Relationship struct {
	Source     NodeRef          `json:"source"`
	Target     NodeRef          `json:"target"`
	Type       string           `json:"type"`
	Category   RelationCategory `json:"category,omitempty"`
	Properties map[string]any   `json:"properties,omitempty"`
}

// Key returns a case-insensitive identity for deduplicating relationships
// within an aggregate.
func (r Relationship) Key() string {
	return fmt.Sprintf("%s|%s|%s",
		strings.ToLower(CanonicalName(r.Source.Name)),
		strings.ToUpper(r.Type),
		strings.ToLower(CanonicalName(r.Target.Name)),
	)
}

// ConfidenceScore reads the confidence property, defaulting to 0.5.
func (r Relationship) ConfidenceScore() float64 {
	if r.Properties == nil {
		return 0.5
	}
	switch v := r.Properties["confidenceScore"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0.5
}

// Observation is a single person-level observation accumulated across
// chunks; three or more make a person eligible for profile synthesis.
type Observation struct {
	Observation string  `json:"observation"`
	Dimension   string  `json:"dimension,omitempty"`
	Evidence    string  `json:"evidence,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}
