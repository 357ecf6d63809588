package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/OFFIS-RIT/mosaic/pkg/common"
)

// FoundNode identifies a stored node by its exact name and label.
type FoundNode struct {
	Name  string
	Label string
}

// Ops is the graph operation surface the writer runs against.
type Ops interface {
	// UpsertNodes merges records by label and name and returns the
	// number of nodes written.
	UpsertNodes(ctx context.Context, nodes []common.Record) (int, error)
	// FindNode resolves a name to a stored node. The declared type may
	// be a node type or an entity subtype; a subtype-aware match runs
	// first, a label match second, an any-label match last. Lookup is
	// case-insensitive; a nil result means not found.
	FindNode(ctx context.Context, name, declaredType string) (*FoundNode, error)
	// RelationshipExists reports whether an edge of the given type
	// already connects the two nodes.
	RelationshipExists(ctx context.Context, source, target FoundNode, relType string) (bool, error)
	// CreateRelationship merges an edge between two existing nodes.
	CreateRelationship(ctx context.Context, source, target FoundNode, relType string, props map[string]any) error
}

var (
	relTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	labelPattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
)

// Relationship types and labels are spliced into Cypher text, so both
// must stay within a strict character set.
func validateRelType(relType string) error {
	if !relTypePattern.MatchString(relType) {
		return fmt.Errorf("graphstore: invalid relationship type %q", relType)
	}
	return nil
}

func validateLabel(label string) error {
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("graphstore: invalid label %q", label)
	}
	return nil
}

// upsertQuery returns the batch MERGE statement for one label. Entities
// merge on name plus subType since one name can hold several subtyped
// nodes; every other label merges on name alone.
func upsertQuery(label string) string {
	if label == string(common.NodeEntity) {
		return `
UNWIND $nodes AS e
MERGE (n:Entity {name: e.name, subType: e.subType})
SET n += e.props
`
	}
	return fmt.Sprintf(`
UNWIND $nodes AS e
MERGE (n:%s {name: e.name})
SET n += e.props
`, label)
}

func (c *Client) UpsertNodes(ctx context.Context, nodes []common.Record) (int, error) {
	byLabel := make(map[string][]map[string]any)
	for _, rec := range nodes {
		t, ok := rec.Type()
		if !ok || rec.Name() == "" {
			continue
		}
		label := string(t)
		byLabel[label] = append(byLabel[label], map[string]any{
			"name":    rec.Name(),
			"subType": rec.SubType(),
			"props":   flattenProps(rec),
		})
	}

	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	// the count is computed inside the transaction function, which the
	// driver may re-run on transient failures
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		written := 0
		for label, batch := range byLabel {
			if err := validateLabel(label); err != nil {
				return nil, err
			}
			res, err := tx.Run(ctx, upsertQuery(label), map[string]any{"nodes": batch})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
			written += len(batch)
		}
		return written, nil
	})
	if err != nil {
		return 0, fmt.Errorf("graphstore: upsert nodes: %w", err)
	}
	written, _ := result.(int)
	return written, nil
}

func (c *Client) FindNode(ctx context.Context, name, declaredType string) (*FoundNode, error) {
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if subType, ok := common.ParseEntitySubType(declaredType); ok {
			found, err := runFind(ctx, tx, fmt.Sprintf(`
MATCH (n:%s)
WHERE toLower(n.name) = toLower($name) AND n.subType = $subType
RETURN n.name AS name, $label AS label
ORDER BY n.name
LIMIT 1
`, common.NodeEntity), map[string]any{
				"name":    name,
				"subType": subType,
				"label":   string(common.NodeEntity),
			})
			if err != nil || found != nil {
				return found, err
			}
		} else if nodeType, ok := common.ParseNodeType(declaredType); ok {
			found, err := runFind(ctx, tx, fmt.Sprintf(`
MATCH (n:%s)
WHERE toLower(n.name) = toLower($name)
RETURN n.name AS name, $label AS label
ORDER BY n.name
LIMIT 1
`, nodeType), map[string]any{
				"name":  name,
				"label": string(nodeType),
			})
			if err != nil || found != nil {
				return found, err
			}
		}
		// fallback across all labels, ordered for a deterministic pick
		return runFind(ctx, tx, `
MATCH (n)
WHERE n.name IS NOT NULL AND toLower(n.name) = toLower($name)
RETURN n.name AS name, labels(n)[0] AS label
ORDER BY label, name
LIMIT 1
`, map[string]any{"name": name})
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: find node %q: %w", name, err)
	}
	if result == nil {
		return nil, nil
	}
	return result.(*FoundNode), nil
}

func runFind(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (*FoundNode, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if res.Next(ctx) {
		record := res.Record()
		name, _ := record.Get("name")
		label, _ := record.Get("label")
		return &FoundNode{
			Name:  fmt.Sprintf("%v", name),
			Label: fmt.Sprintf("%v", label),
		}, nil
	}
	return nil, res.Err()
}

func (c *Client) RelationshipExists(ctx context.Context, source, target FoundNode, relType string) (bool, error) {
	if err := validateRelType(relType); err != nil {
		return false, err
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
MATCH (a:%s {name: $source})-[r:%s]->(b:%s {name: $target})
RETURN count(r) > 0 AS exists
`, source.Label, relType, target.Label)
		res, err := tx.Run(ctx, query, map[string]any{
			"source": source.Name,
			"target": target.Name,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		exists, _ := record.Get("exists")
		return exists, nil
	})
	if err != nil {
		return false, fmt.Errorf("graphstore: relationship exists: %w", err)
	}
	exists, _ := result.(bool)
	return exists, nil
}

func (c *Client) CreateRelationship(ctx context.Context, source, target FoundNode, relType string, props map[string]any) error {
	if err := validateRelType(relType); err != nil {
		return err
	}
	if err := validateLabel(source.Label); err != nil {
		return err
	}
	if err := validateLabel(target.Label); err != nil {
		return err
	}
	if props == nil {
		props = map[string]any{}
	}

	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
MATCH (a:%s {name: $source}), (b:%s {name: $target})
MERGE (a)-[r:%s]->(b)
SET r += $props
`, source.Label, target.Label, relType)
		res, err := tx.Run(ctx, query, map[string]any{
			"source": source.Name,
			"target": target.Name,
			"props":  flattenValueMap(props),
		})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graphstore: create relationship %s: %w", relType, err)
	}
	return nil
}

// flattenProps converts a record into Neo4j-storable properties. Maps
// and lists of non-scalar values are JSON-encoded under a _json suffix
// since property values must be primitives or homogeneous primitive
// arrays.
func flattenProps(rec common.Record) map[string]any {
	props := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == common.FieldNodeType {
			continue
		}
		flat, ok := flattenValue(v)
		if ok {
			props[k] = flat
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		props[k+"_json"] = string(data)
	}
	return props
}

func flattenValueMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		flat, ok := flattenValue(v)
		if ok {
			out[k] = flat
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k+"_json"] = string(data)
	}
	return out
}

// flattenValue reports whether the value can be stored as-is.
func flattenValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64:
		return val, true
	case []any:
		for _, item := range val {
			switch item.(type) {
			case string, bool, int, int64, float64:
			default:
				return nil, false
			}
		}
		return val, true
	default:
		return nil, false
	}
}

var _ Ops = (*Client)(nil)
