package recovery

import (
	"strings"

	"github.com/OFFIS-RIT/mosaic/pkg/common"
)

// RecoverRelationships parses a relationship-extraction reply into symbolic
// relationship records. The same strategy chain as RecoverTypes applies,
// but the target shape is {source, target, type, properties} objects,
// possibly flattened ("source": "Alice", "sourceType": "Person"). The
// relationship type is normalized against the controlled vocabulary.
func RecoverRelationships(reply string) ([]common.Relationship, []string) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, []string{"empty reply"}
	}

	strategies := []func(string) ([]any, bool){parseWhole, parseFenced, parseBalanced}
	for _, fn := range strategies {
		values, ok := fn(reply)
		if !ok {
			continue
		}
		rels, notes := collectRelationships(values)
		if len(rels) > 0 {
			return rels, notes
		}
	}
	return nil, []string{"no relationships recoverable from reply"}
}

func collectRelationships(values []any) ([]common.Relationship, []string) {
	var rels []common.Relationship
	var notes []string

	var visit func(v any)
	visit = func(v any) {
		switch val := v.(type) {
		case []any:
			for _, item := range val {
				visit(item)
			}
		case map[string]any:
			if rel, ok := adoptRelationship(val); ok {
				rels = append(rels, rel)
				return
			}
			// Wrapper: {"relationships": [...]}.
			for key, item := range val {
				if strings.Contains(strings.ToLower(key), "relation") {
					visit(item)
				}
			}
		}
	}

	for _, v := range values {
		visit(v)
	}
	return rels, notes
}

func adoptRelationship(m map[string]any) (common.Relationship, bool) {
	source := endpointRef(m, "source", "from")
	target := endpointRef(m, "target", "to")
	if source.Name == "" || target.Name == "" {
		return common.Relationship{}, false
	}

	rawType, _ := m["type"].(string)
	if rawType == "" {
		rawType, _ = m["relationshipType"].(string)
	}
	relType, category := common.NormalizeRelationType(rawType)

	props, _ := m["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	if _, ok := props["confidenceScore"]; !ok {
		if c, ok := m["confidenceScore"].(float64); ok {
			props["confidenceScore"] = c
		} else if c, ok := m["confidence"].(float64); ok {
			props["confidenceScore"] = c
		}
	}

	return common.Relationship{
		Source:     source,
		Target:     target,
		Type:       relType,
		Category:   category,
		Properties: props,
	}, true
}

// endpointRef reads an endpoint that may be an object ({name, type}) or a
// flat string with a sibling "<key>Type" field.
func endpointRef(m map[string]any, keys ...string) common.NodeRef {
	for _, key := range keys {
		switch v := m[key].(type) {
		case map[string]any:
			name, _ := v["name"].(string)
			typ, _ := v["type"].(string)
			if typ == "" {
				typ, _ = v["nodeType"].(string)
			}
			if strings.TrimSpace(name) != "" {
				return common.NodeRef{Name: strings.TrimSpace(name), Type: strings.TrimSpace(typ)}
			}
		case string:
			if strings.TrimSpace(v) != "" {
				typ, _ := m[key+"Type"].(string)
				return common.NodeRef{Name: strings.TrimSpace(v), Type: strings.TrimSpace(typ)}
			}
		}
	}
	return common.NodeRef{}
}
