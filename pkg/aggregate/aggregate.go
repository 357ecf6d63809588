// Package aggregate folds per-chunk extraction results into one canonical,
// deduplicated node set. Accumulation is a single-writer sequential fold;
// throughput comes from parallelizing extraction upstream, not the merge.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/mosaic/pkg/common"
	"github.com/OFFIS-RIT/mosaic/pkg/extract"
)

// Aggregate is the in-memory accumulation of all canonical nodes,
// relationships, and person observations across processed chunks.
type Aggregate struct {
	nodes map[string]common.Record
	order []string // insertion order of node keys, for stable output

	relationships []common.Relationship
	relKeys       map[string]bool

	observations map[string][]common.Observation
	obsSeen      map[string]map[string]bool
}

// New returns an empty aggregate.
func New() *Aggregate {
	return &Aggregate{
		nodes:        make(map[string]common.Record),
		relKeys:      make(map[string]bool),
		observations: make(map[string][]common.Observation),
		obsSeen:      make(map[string]map[string]bool),
	}
}

// Accumulate folds one chunk result into the aggregate. Calls are
// associative and commutative with respect to the final canonical node
// set; only conflicting scalar values depend on arrival order (first
// non-empty wins). Each node key is credited at most one mention per
// chunk regardless of how often it appears in the chunk.
func (a *Aggregate) Accumulate(res *extract.ChunkResult) {
	if res == nil {
		return
	}

	renames := personRenames(res)
	credited := make(map[string]bool)

	for _, t := range common.AllNodeTypes {
		for _, rec := range res.Nodes[t] {
			r := rec.Clone()

			if t == common.NodeEntity && r.SubType() == common.SubTypePerson {
				short := r.Name()
				if full, ok := renames[strings.ToLower(short)]; ok && full != short {
					r[common.FieldName] = full
					a.addObservation(common.CanonicalName(full), common.Observation{
						Observation: fmt.Sprintf("Referred to as %q in the source text", short),
						Dimension:   "identity",
						Confidence:  1.0,
					})
				}
			}

			a.fold(r, credited)

			if t == common.NodeReasoningStep {
				a.ensureChainStub(r)
			}
		}
	}

	for _, rel := range res.Relationships {
		relType, category := common.NormalizeRelationType(rel.Type)
		rel.Type = relType
		rel.Category = category
		if full, ok := renames[strings.ToLower(rel.Source.Name)]; ok {
			rel.Source.Name = full
		}
		if full, ok := renames[strings.ToLower(rel.Target.Name)]; ok {
			rel.Target.Name = full
		}

		key := rel.Key()
		if a.relKeys[key] {
			continue
		}
		a.relKeys[key] = true
		a.relationships = append(a.relationships, rel)
	}

	for person, list := range res.PersonObservations {
		name := common.CanonicalName(person)
		if full, ok := renames[strings.ToLower(person)]; ok {
			name = common.CanonicalName(full)
		}
		for _, obs := range list {
			a.addObservation(name, obs)
		}
	}

	for _, detail := range res.LocationDetails {
		d := detail.Clone()
		key := d.Key()
		if existing, ok := a.nodes[key]; ok {
			common.MergeInto(existing, d)
		} else {
			// detail for a location whose node landed in another chunk;
			// keep it, the mention credit comes from the node record
			a.insert(key, d)
		}
	}
}

// fold merges the record into the aggregate under its identity key and
// credits one mention per chunk.
func (a *Aggregate) fold(r common.Record, credited map[string]bool) {
	key := r.Key()
	existing, ok := a.nodes[key]
	if !ok {
		a.insert(key, r)
		existing = r
	} else {
		common.MergeInto(existing, r)
	}
	if !credited[key] {
		credited[key] = true
		existing.SetMentions(existing.Mentions() + 1)
	}
}

func (a *Aggregate) insert(key string, r common.Record) {
	a.nodes[key] = r
	a.order = append(a.order, key)
}

// ensureChainStub creates a minimal ReasoningChain record when a step
// references a chain not yet seen, so the reference is valid regardless
// of arrival order. The full chain record later overlays the stub
// through the merge rule.
func (a *Aggregate) ensureChainStub(step common.Record) {
	chainName, _ := step["chainName"].(string)
	chainName = strings.TrimSpace(chainName)
	if chainName == "" {
		return
	}
	key := common.CanonicalName(chainName)
	if _, ok := a.nodes[key]; ok {
		return
	}
	stub := common.Record{
		common.FieldNodeType: string(common.NodeReasoningChain),
		common.FieldName:     chainName,
		common.FieldMentions: 0,
	}
	a.insert(key, stub)
}

func (a *Aggregate) addObservation(person string, obs common.Observation) {
	text := strings.TrimSpace(obs.Observation)
	if text == "" {
		return
	}
	seen := a.obsSeen[person]
	if seen == nil {
		seen = make(map[string]bool)
		a.obsSeen[person] = seen
	}
	if seen[text] {
		return
	}
	seen[text] = true
	a.observations[person] = append(a.observations[person], obs)
}

// Observations returns the accumulated observations for a canonical
// person name.
func (a *Aggregate) Observations(person string) []common.Observation {
	return a.observations[common.CanonicalName(person)]
}

// SynthesisEligible reports whether a person has accumulated enough
// signal for profile synthesis: more than one mention and at least
// three observations.
func (a *Aggregate) SynthesisEligible(person string) bool {
	name := common.CanonicalName(person)
	rec, ok := a.nodes[name+"|"+common.SubTypePerson]
	if !ok {
		return false
	}
	return rec.Mentions() > 1 && len(a.observations[name]) >= 3
}

// Node returns the record stored under the given identity key.
func (a *Aggregate) Node(key string) (common.Record, bool) {
	rec, ok := a.nodes[key]
	return rec, ok
}

// NodeCount returns the number of canonical nodes in the aggregate.
func (a *Aggregate) NodeCount() int {
	return len(a.nodes)
}

// Relationships returns the deduplicated relationship list.
func (a *Aggregate) Relationships() []common.Relationship {
	return a.relationships
}

// personRenames maps every single-token Person name in the chunk to the
// longest full name sharing that last token within the same chunk's
// entity list.
func personRenames(res *extract.ChunkResult) map[string]string {
	lastToken := make(map[string]string)
	for _, rec := range res.Nodes[common.NodeEntity] {
		if rec.SubType() != common.SubTypePerson {
			continue
		}
		name := rec.Name()
		tokens := strings.Fields(name)
		if len(tokens) < 2 {
			continue
		}
		token := strings.ToLower(tokens[len(tokens)-1])
		if existing, ok := lastToken[token]; !ok || len(name) > len(existing) {
			lastToken[token] = name
		}
	}

	renames := make(map[string]string)
	for _, rec := range res.Nodes[common.NodeEntity] {
		if rec.SubType() != common.SubTypePerson {
			continue
		}
		name := rec.Name()
		if len(strings.Fields(name)) != 1 {
			continue
		}
		if full, ok := lastToken[strings.ToLower(name)]; ok {
			renames[strings.ToLower(name)] = full
		}
	}
	return renames
}
