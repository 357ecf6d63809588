package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/OFFIS-RIT/mosaic/pkg/ai"
	"github.com/OFFIS-RIT/mosaic/pkg/common"
	"github.com/OFFIS-RIT/mosaic/pkg/extract"
)

type fakeProfileClient struct {
	profile string
	fail    bool
	calls   int
}

func (f *fakeProfileClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeProfileClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.calls++
	if f.fail {
		return errors.New("model unavailable")
	}
	return json.Unmarshal([]byte(f.profile), out)
}

func (f *fakeProfileClient) ResetMetrics() {}

func (f *fakeProfileClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func entityRecord(name, subType string, fields map[string]any) common.Record {
	rec := common.Record{
		common.FieldNodeType: string(common.NodeEntity),
		common.FieldName:     name,
		common.FieldSubType:  subType,
	}
	for k, v := range fields {
		rec[k] = v
	}
	return rec
}

func chunkWith(id string, nodes map[common.NodeType][]common.Record) *extract.ChunkResult {
	res := extract.EmptyChunkResult(id)
	for t, recs := range nodes {
		res.Nodes[t] = recs
	}
	return res
}

func TestAccumulateMergesAndCountsMentionsOncePerChunk(t *testing.T) {
	agg := New()

	agg.Accumulate(chunkWith("doc:0000", map[common.NodeType][]common.Record{
		common.NodeEntity: {
			entityRecord("Marie Curie", common.SubTypePerson, map[string]any{
				"description": "Physicist and chemist",
			}),
			entityRecord("Marie Curie", common.SubTypePerson, map[string]any{
				"biography": "Born in Warsaw",
			}),
		},
	}))
	agg.Accumulate(chunkWith("doc:0001", map[common.NodeType][]common.Record{
		common.NodeEntity: {
			entityRecord("Marie Curie", common.SubTypePerson, map[string]any{
				"keyContributions": []any{"Discovery of radium"},
			}),
		},
	}))

	rec, ok := agg.Node("Marie Curie|" + common.SubTypePerson)
	if !ok {
		t.Fatal("expected a canonical node for Marie Curie")
	}
	if got := rec.Mentions(); got != 2 {
		t.Errorf("mentions = %d, want 2 (one per chunk)", got)
	}
	if rec["description"] != "Physicist and chemist" {
		t.Errorf("description lost in merge: %v", rec["description"])
	}
	if rec["biography"] != "Born in Warsaw" {
		t.Errorf("biography lost in merge: %v", rec["biography"])
	}
	contributions, _ := rec["keyContributions"].([]any)
	if len(contributions) != 1 || contributions[0] != "Discovery of radium" {
		t.Errorf("keyContributions lost in merge: %v", rec["keyContributions"])
	}
	if agg.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1", agg.NodeCount())
	}
}

func TestAccumulateNormalizesShortPersonNames(t *testing.T) {
	agg := New()
	agg.Accumulate(chunkWith("doc:0000", map[common.NodeType][]common.Record{
		common.NodeEntity: {
			entityRecord("Marie Curie", common.SubTypePerson, nil),
			entityRecord("Curie", common.SubTypePerson, map[string]any{
				"description": "Nobel laureate",
			}),
		},
	}))

	if agg.NodeCount() != 1 {
		t.Fatalf("NodeCount = %d, want 1 (short name folded into full name)", agg.NodeCount())
	}
	rec, ok := agg.Node("Marie Curie|" + common.SubTypePerson)
	if !ok {
		t.Fatal("expected the full-name node to survive")
	}
	if rec["description"] != "Nobel laureate" {
		t.Errorf("short-name fields not carried over: %v", rec["description"])
	}

	obs := agg.Observations("Marie Curie")
	if len(obs) != 1 {
		t.Fatalf("expected one identity observation for the rewrite, got %d", len(obs))
	}
	if obs[0].Dimension != "identity" {
		t.Errorf("observation dimension = %q, want identity", obs[0].Dimension)
	}
}

func TestAccumulateDeduplicatesRelationships(t *testing.T) {
	agg := New()
	rel := common.Relationship{
		Source: common.NodeRef{Name: "Marie Curie", Type: "Entity"},
		Target: common.NodeRef{Name: "Sorbonne", Type: "Entity"},
		Type:   "works for",
	}
	res := extract.EmptyChunkResult("doc:0000")
	res.Relationships = []common.Relationship{rel, rel}
	agg.Accumulate(res)

	res2 := extract.EmptyChunkResult("doc:0001")
	res2.Relationships = []common.Relationship{rel}
	agg.Accumulate(res2)

	rels := agg.Relationships()
	if len(rels) != 1 {
		t.Fatalf("relationships = %d, want 1", len(rels))
	}
	if rels[0].Type != "WORKS_FOR" {
		t.Errorf("type = %q, want normalized WORKS_FOR", rels[0].Type)
	}
	if rels[0].Category == "" {
		t.Error("expected a category on the normalized relationship")
	}
}

func TestFinalizeResolvesChainFromStepArrivingFirst(t *testing.T) {
	agg := New()
	agg.Accumulate(chunkWith("doc:0000", map[common.NodeType][]common.Record{
		common.NodeReasoningStep: {
			{
				common.FieldNodeType: string(common.NodeReasoningStep),
				common.FieldName:     "Observe decay rates",
				"chainName":          "Chain A",
				"content":            "Measured decay rates exceed chemical explanations.",
				"order":              1.0,
			},
		},
	}))

	snap := agg.Finalize(context.Background(), nil)

	var chains []common.Record
	for _, rec := range snap.Nodes {
		if nt, ok := rec.Type(); ok && nt == common.NodeReasoningChain {
			chains = append(chains, rec)
		}
	}
	if len(chains) != 1 {
		t.Fatalf("expected exactly one chain node, got %d", len(chains))
	}
	chain := chains[0]
	if chain.Name() != "Chain A" {
		t.Errorf("chain name = %q, want Chain A", chain.Name())
	}
	steps, _ := chain["steps"].([]any)
	if len(steps) != 1 || steps[0] != "Observe decay rates" {
		t.Errorf("steps = %v, want the single step name", chain["steps"])
	}
	details, _ := chain["stepDetails"].([]any)
	if len(details) != 1 {
		t.Fatalf("stepDetails = %v, want one entry", chain["stepDetails"])
	}
	if n, _ := chain["numberOfSteps"].(float64); n != 1 {
		t.Errorf("numberOfSteps = %v, want 1", chain["numberOfSteps"])
	}

	if len(snap.Structural) != 1 {
		t.Fatalf("structural edges = %d, want 1", len(snap.Structural))
	}
	edge := snap.Structural[0]
	if edge.Type != "PART_OF" || edge.Source.Name != "Observe decay rates" || edge.Target.Name != "Chain A" {
		t.Errorf("unexpected structural edge: %+v", edge)
	}
}

func TestFinalizeOrdersChainSteps(t *testing.T) {
	agg := New()
	agg.Accumulate(chunkWith("doc:0000", map[common.NodeType][]common.Record{
		common.NodeReasoningChain: {
			{
				common.FieldNodeType: string(common.NodeReasoningChain),
				common.FieldName:     "Radiation argument",
			},
		},
		common.NodeReasoningStep: {
			{
				common.FieldNodeType: string(common.NodeReasoningStep),
				common.FieldName:     "Conclude atomic origin",
				"chainName":          "Radiation argument",
				"order":              2.0,
			},
			{
				common.FieldNodeType: string(common.NodeReasoningStep),
				common.FieldName:     "Observe decay rates",
				"chainName":          "Radiation argument",
				"order":              1.0,
			},
		},
	}))

	snap := agg.Finalize(context.Background(), nil)

	var chain common.Record
	for _, rec := range snap.Nodes {
		if nt, ok := rec.Type(); ok && nt == common.NodeReasoningChain {
			chain = rec
		}
	}
	if chain == nil {
		t.Fatal("chain node missing")
	}
	steps, _ := chain["steps"].([]any)
	want := []any{"Observe decay rates", "Conclude atomic origin"}
	if len(steps) != 2 || steps[0] != want[0] || steps[1] != want[1] {
		t.Errorf("steps = %v, want %v", steps, want)
	}
	if n, _ := chain["numberOfSteps"].(float64); n != 2 {
		t.Errorf("numberOfSteps = %v, want 2", chain["numberOfSteps"])
	}
}

func observationChunk(id, person string, texts ...string) *extract.ChunkResult {
	res := chunkWith(id, map[common.NodeType][]common.Record{
		common.NodeEntity: {entityRecord(person, common.SubTypePerson, nil)},
	})
	var obs []common.Observation
	for _, text := range texts {
		obs = append(obs, common.Observation{Observation: text, Dimension: "behavior"})
	}
	res.PersonObservations = map[string][]common.Observation{person: obs}
	return res
}

func TestSynthesisEligibleRequiresMentionsAndObservations(t *testing.T) {
	agg := New()
	agg.Accumulate(observationChunk("doc:0000", "Marie Curie",
		"Persisted through years of tedious refinement work",
		"Declined to patent the radium isolation process"))
	agg.Accumulate(observationChunk("doc:0001", "Marie Curie",
		"Continued research after public hostility"))

	if !agg.SynthesisEligible("Marie Curie") {
		t.Error("two mentions and three observations should be eligible")
	}
	if agg.SynthesisEligible("Pierre Curie") {
		t.Error("unknown person must not be eligible")
	}

	below := New()
	below.Accumulate(observationChunk("doc:0000", "Marie Curie",
		"Persisted through years of tedious refinement work",
		"Declined to patent the radium isolation process"))
	below.Accumulate(observationChunk("doc:0001", "Marie Curie"))
	if below.SynthesisEligible("Marie Curie") {
		t.Error("two observations must stay below the synthesis threshold")
	}

	single := New()
	single.Accumulate(observationChunk("doc:0000", "Marie Curie",
		"Persisted through years of tedious refinement work",
		"Declined to patent the radium isolation process",
		"Continued research after public hostility"))
	if single.SynthesisEligible("Marie Curie") {
		t.Error("a single mention must stay below the synthesis threshold")
	}
}

func TestFinalizeSynthesizesEligibleProfiles(t *testing.T) {
	client := &fakeProfileClient{profile: `{
		"personalityTraits": [{"trait": "perseverant", "evidence": "years of refinement work", "confidence": 0.9}],
		"cognitiveStyle": {"summary": "Methodical and evidence driven.", "evidence": ["refinement work"]},
		"emotionalProfile": {"summary": "Reserved under pressure.", "evidence": []},
		"relationalDynamics": {"summary": "Collaborative with close peers.", "evidence": []},
		"valueSystem": {"summary": "Science over personal gain.", "evidence": ["declined the patent"]},
		"psychologicalDevelopment": ["Grew more guarded after public hostility"],
		"interpersonalStyle": "Quietly direct."
	}`}

	agg := New()
	agg.Accumulate(observationChunk("doc:0000", "Marie Curie",
		"Persisted through years of tedious refinement work",
		"Declined to patent the radium isolation process"))
	agg.Accumulate(observationChunk("doc:0001", "Marie Curie",
		"Continued research after public hostility"))

	snap := agg.Finalize(context.Background(), client)

	if client.calls != 1 {
		t.Fatalf("synthesis calls = %d, want 1", client.calls)
	}
	if len(snap.Synthesized) != 1 || snap.Synthesized[0] != "Marie Curie" {
		t.Fatalf("Synthesized = %v, want [Marie Curie]", snap.Synthesized)
	}

	rec, _ := agg.Node("Marie Curie|" + common.SubTypePerson)
	if rec["interpersonalStyle"] != "Quietly direct." {
		t.Errorf("interpersonalStyle = %v", rec["interpersonalStyle"])
	}
	style, _ := rec["cognitiveStyle"].(map[string]any)
	if style == nil || style["summary"] != "Methodical and evidence driven." {
		t.Errorf("cognitiveStyle = %v", rec["cognitiveStyle"])
	}
	texts, _ := rec["observations"].([]any)
	if len(texts) != 3 {
		t.Errorf("observations attached = %d, want 3", len(texts))
	}
}

func TestFinalizeSynthesisFailureKeepsRecord(t *testing.T) {
	client := &fakeProfileClient{fail: true}

	agg := New()
	agg.Accumulate(observationChunk("doc:0000", "Marie Curie",
		"Persisted through years of tedious refinement work",
		"Declined to patent the radium isolation process"))
	agg.Accumulate(observationChunk("doc:0001", "Marie Curie",
		"Continued research after public hostility"))

	snap := agg.Finalize(context.Background(), client)

	if len(snap.Synthesized) != 0 {
		t.Errorf("Synthesized = %v, want none on failure", snap.Synthesized)
	}
	rec, ok := agg.Node("Marie Curie|" + common.SubTypePerson)
	if !ok {
		t.Fatal("record must survive a synthesis failure")
	}
	if got := rec.Mentions(); got != 2 {
		t.Errorf("mentions = %d, want 2", got)
	}
}

func TestAccumulateMergesLocationDetails(t *testing.T) {
	agg := New()
	res := chunkWith("doc:0000", map[common.NodeType][]common.Record{
		common.NodeLocation: {
			{
				common.FieldNodeType: string(common.NodeLocation),
				common.FieldName:     "Paris",
			},
		},
	})
	res.LocationDetails = map[string]common.Record{
		"paris": {
			common.FieldNodeType: string(common.NodeLocation),
			common.FieldName:     "Paris",
			"locationType":       "City",
			"description":        "Capital of France",
		},
	}
	agg.Accumulate(res)

	rec, ok := agg.Node("Paris")
	if !ok {
		t.Fatal("expected a Paris node")
	}
	if rec["locationType"] != "City" || rec["description"] != "Capital of France" {
		t.Errorf("location detail not merged: %v", rec)
	}
	if got := rec.Mentions(); got != 1 {
		t.Errorf("mentions = %d, want 1 (detail carries no mention credit)", got)
	}
}

func TestAccumulateOrderIndependentCanonicalSet(t *testing.T) {
	chunkA := func() *extract.ChunkResult {
		return chunkWith("doc:0000", map[common.NodeType][]common.Record{
			common.NodeEntity: {
				entityRecord("Marie Curie", common.SubTypePerson, map[string]any{
					"keyContributions": []any{"Discovery of radium"},
				}),
			},
			common.NodeConcept: {
				{
					common.FieldNodeType: string(common.NodeConcept),
					common.FieldName:     "Radioactivity",
				},
			},
		})
	}
	chunkB := func() *extract.ChunkResult {
		return chunkWith("doc:0001", map[common.NodeType][]common.Record{
			common.NodeEntity: {
				entityRecord("Marie Curie", common.SubTypePerson, map[string]any{
					"keyContributions": []any{"Two Nobel Prizes"},
				}),
			},
			common.NodeEvent: {
				{
					common.FieldNodeType: string(common.NodeEvent),
					common.FieldName:     "Nobel Prize 1903",
				},
			},
		})
	}

	forward := New()
	forward.Accumulate(chunkA())
	forward.Accumulate(chunkB())

	backward := New()
	backward.Accumulate(chunkB())
	backward.Accumulate(chunkA())

	keysOf := func(a *Aggregate) []string {
		snap := a.Finalize(context.Background(), nil)
		var keys []string
		for _, rec := range snap.Nodes {
			keys = append(keys, rec.Key())
		}
		sort.Strings(keys)
		return keys
	}

	fk, bk := keysOf(forward), keysOf(backward)
	if len(fk) != len(bk) {
		t.Fatalf("node sets differ: %v vs %v", fk, bk)
	}
	for i := range fk {
		if fk[i] != bk[i] {
			t.Fatalf("node sets differ: %v vs %v", fk, bk)
		}
	}

	fRec, _ := forward.Node("Marie Curie|" + common.SubTypePerson)
	bRec, _ := backward.Node("Marie Curie|" + common.SubTypePerson)
	fList, _ := fRec["keyContributions"].([]any)
	bList, _ := bRec["keyContributions"].([]any)
	if len(fList) != 2 || len(bList) != 2 {
		t.Errorf("keyContributions union lost entries: %v vs %v", fList, bList)
	}
}
