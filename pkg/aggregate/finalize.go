package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/mosaic/pkg/ai"
	"github.com/OFFIS-RIT/mosaic/pkg/common"
	"github.com/OFFIS-RIT/mosaic/pkg/logger"
)

// Snapshot is the finalized, write-ready view of an aggregate.
type Snapshot struct {
	Nodes         []common.Record       `json:"nodes"`
	Structural    []common.Relationship `json:"structural"`
	Relationships []common.Relationship `json:"relationships"`
	Synthesized   []string              `json:"synthesized"`
}

type personalityTrait struct {
	Trait      string  `json:"trait" jsonschema_description:"A single personality trait, one or two words."`
	Evidence   string  `json:"evidence" jsonschema_description:"The observation or behavior supporting this trait."`
	Confidence float64 `json:"confidence" jsonschema_description:"Confidence in this trait between 0 and 1."`
}

type profileDimension struct {
	Summary  string   `json:"summary" jsonschema_description:"One or two sentences summarizing this dimension of the person."`
	Evidence []string `json:"evidence" jsonschema_description:"Observations supporting the summary."`
}

type personProfile struct {
	PersonalityTraits        []personalityTrait `json:"personalityTraits" jsonschema_description:"Distinct personality traits derived from the observations."`
	CognitiveStyle           profileDimension   `json:"cognitiveStyle" jsonschema_description:"How the person processes information and approaches problems."`
	EmotionalProfile         profileDimension   `json:"emotionalProfile" jsonschema_description:"The person's emotional disposition and regulation."`
	RelationalDynamics       profileDimension   `json:"relationalDynamics" jsonschema_description:"How the person relates to and interacts with others."`
	ValueSystem              profileDimension   `json:"valueSystem" jsonschema_description:"The principles and priorities guiding the person's decisions."`
	PsychologicalDevelopment []string           `json:"psychologicalDevelopment" jsonschema_description:"Notable changes or developments in the person over the covered timespan."`
	InterpersonalStyle       string             `json:"interpersonalStyle" jsonschema_description:"One sentence characterizing the person's interpersonal style."`
}

// Finalize resolves reasoning chains, synthesizes psychological profiles
// for eligible persons, fills schema defaults, and derives structural
// edges. A nil client skips synthesis; synthesis failures degrade to the
// pre-synthesis record.
func (a *Aggregate) Finalize(ctx context.Context, client ai.Client) *Snapshot {
	a.resolveChains()

	var synthesized []string
	if client != nil {
		synthesized = a.synthesizeProfiles(ctx, client)
	}

	a.attachObservations()

	snap := &Snapshot{Synthesized: synthesized}
	for _, key := range a.order {
		rec := a.nodes[key]
		common.FillDefaults(rec)
		snap.Nodes = append(snap.Nodes, rec)
	}
	snap.Structural = a.structuralEdges()
	snap.Relationships = a.relationships
	return snap
}

type chainStep struct {
	order float64
	name  string
	rec   common.Record
}

// resolveChains orders every step under its chain and materializes the
// chain's steps, stepDetails, and numberOfSteps fields.
func (a *Aggregate) resolveChains() {
	byChain := make(map[string][]chainStep)
	for _, key := range a.order {
		rec := a.nodes[key]
		if t, ok := rec.Type(); !ok || t != common.NodeReasoningStep {
			continue
		}
		chainName, _ := rec["chainName"].(string)
		chainName = strings.TrimSpace(chainName)
		if chainName == "" {
			continue
		}
		order := 0.0
		if n, ok := rec["order"].(float64); ok {
			order = n
		}
		byChain[common.CanonicalName(chainName)] = append(byChain[common.CanonicalName(chainName)], chainStep{
			order: order,
			name:  rec.Name(),
			rec:   rec,
		})
	}

	for chainKey, steps := range byChain {
		chain, ok := a.nodes[chainKey]
		if !ok {
			continue
		}
		if t, typed := chain.Type(); !typed || t != common.NodeReasoningChain {
			continue
		}
		sort.SliceStable(steps, func(i, j int) bool {
			if steps[i].order != steps[j].order {
				return steps[i].order < steps[j].order
			}
			return steps[i].name < steps[j].name
		})

		names := make([]any, 0, len(steps))
		details := make([]any, 0, len(steps))
		for _, s := range steps {
			names = append(names, s.name)
			details = append(details, map[string]any(s.rec.Clone()))
		}
		chain["steps"] = names
		chain["stepDetails"] = details
		chain["numberOfSteps"] = float64(len(steps))
	}
}

// synthesizeProfiles runs profile synthesis for every eligible person
// and merges the result into the person's record. Existing field values
// always win over synthesized ones.
func (a *Aggregate) synthesizeProfiles(ctx context.Context, client ai.Client) []string {
	var synthesized []string
	for _, key := range a.order {
		rec := a.nodes[key]
		if t, ok := rec.Type(); !ok || t != common.NodeEntity || rec.SubType() != common.SubTypePerson {
			continue
		}
		name := rec.Name()
		if !a.SynthesisEligible(name) {
			continue
		}

		prompt := fmt.Sprintf(ai.SynthesizeProfilePrompt, name, a.observationsText(name), name)
		var profile personProfile
		err := client.GenerateCompletionWithFormat(ctx, "person_profile",
			"A psychological profile synthesized from accumulated observations about one person.",
			prompt, &profile, ai.WithAdvanced())
		if err != nil {
			logger.Warn("profile synthesis failed, keeping accumulated record", "person", name, "error", err)
			continue
		}

		merged, err := profileToRecord(profile)
		if err != nil {
			logger.Warn("profile synthesis produced an unusable result", "person", name, "error", err)
			continue
		}
		common.MergeInto(rec, merged)
		synthesized = append(synthesized, name)
	}
	return synthesized
}

func (a *Aggregate) observationsText(person string) string {
	var b strings.Builder
	for _, obs := range a.observations[common.CanonicalName(person)] {
		b.WriteString("- ")
		b.WriteString(obs.Observation)
		if obs.Dimension != "" {
			b.WriteString(" [")
			b.WriteString(obs.Dimension)
			b.WriteString("]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// profileToRecord converts a synthesized profile into the map shape the
// merge rule operates on.
func profileToRecord(profile personProfile) (common.Record, error) {
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}
	var rec common.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// attachObservations folds observation texts into each person's
// observations list so they survive into the graph.
func (a *Aggregate) attachObservations() {
	for person, list := range a.observations {
		rec, ok := a.nodes[person+"|"+common.SubTypePerson]
		if !ok {
			continue
		}
		texts := make([]any, 0, len(list))
		for _, obs := range list {
			texts = append(texts, obs.Observation)
		}
		common.MergeInto(rec, common.Record{"observations": texts})
	}
}

// structuralEdges derives PART_OF edges from every step to its chain.
// These come from the data model rather than the text, so they carry
// full confidence.
func (a *Aggregate) structuralEdges() []common.Relationship {
	var edges []common.Relationship
	for _, key := range a.order {
		rec := a.nodes[key]
		if t, ok := rec.Type(); !ok || t != common.NodeReasoningStep {
			continue
		}
		chainName, _ := rec["chainName"].(string)
		chainName = strings.TrimSpace(chainName)
		if chainName == "" {
			continue
		}
		chain, ok := a.nodes[common.CanonicalName(chainName)]
		if !ok {
			continue
		}
		if t, typed := chain.Type(); !typed || t != common.NodeReasoningChain {
			continue
		}
		edges = append(edges, common.Relationship{
			Source:   common.NodeRef{Name: rec.Name(), Type: string(common.NodeReasoningStep)},
			Target:   common.NodeRef{Name: chain.Name(), Type: string(common.NodeReasoningChain)},
			Type:     "PART_OF",
			Category: common.CategoryCompositional,
			Properties: map[string]any{
				"confidenceScore": 1.0,
			},
		})
	}
	return edges
}
