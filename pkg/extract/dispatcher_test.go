package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/mosaic/pkg/ai"
	"github.com/OFFIS-RIT/mosaic/pkg/chunker"
	"github.com/OFFIS-RIT/mosaic/pkg/common"
)

// fakeClient routes prompts to canned replies by keyword match on the
// prompt text.
type fakeClient struct {
	completions map[string]string // substring of prompt -> reply
	formatted   map[string]string // substring of prompt -> JSON for out
	failAll     bool
	calls       int
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.failAll {
		return "", errors.New("upstream unavailable")
	}
	for key, reply := range f.completions {
		if strings.Contains(prompt, key) {
			return reply, nil
		}
	}
	return "no relevant information found", nil
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failAll {
		return errors.New("upstream unavailable")
	}
	for key, reply := range f.formatted {
		if strings.Contains(prompt, key) {
			return json.Unmarshal([]byte(reply), out)
		}
	}
	return errors.New("no canned formatted reply")
}

func (f *fakeClient) ResetMetrics()               {}
func (f *fakeClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func newTestDispatcher(client ai.Client) *Dispatcher {
	return NewDispatcher(NewDispatcherParams{Client: client, MaxRetries: 1})
}

func TestProcessChunkCollectsGroupsAndRelationships(t *testing.T) {
	client := &fakeClient{
		completions: map[string]string{
			// first group carries Entity in its type list
			"Entity, Event": `[
				{"nodeType": "Entity", "name": "Marie Curie", "subType": "Person"},
				{"nodeType": "Entity", "name": "Sorbonne", "subType": "Organization"},
				{"nodeType": "Concept", "name": "Radioactivity"}
			]`,
			"Proposition, Emotion": `[]`,
			"Known_elements": `[
				{"source": {"name": "Marie Curie", "type": "Person"}, "target": {"name": "Sorbonne", "type": "Organization"}, "type": "WORKS_FOR", "properties": {"confidenceScore": 0.9}},
				{"source": {"name": "Marie Curie", "type": "Person"}, "target": {"name": "Ghostco", "type": "Organization"}, "type": "WORKS_FOR"}
			]`,
		},
		formatted: map[string]string{
			"Marie Curie": `{"observations": [
				{"observation": "Works with persistence", "dimension": "personality", "evidence": "she persisted", "confidence": 0.8}
			]}`,
		},
	}

	d := newTestDispatcher(client)
	res := d.ProcessChunk(context.Background(), chunker.Chunk{ID: "doc:0000", Text: "some text"})

	if got := len(res.Nodes[common.NodeEntity]); got != 2 {
		t.Errorf("entities = %d, want 2", got)
	}
	if got := len(res.Nodes[common.NodeConcept]); got != 1 {
		t.Errorf("concepts = %d, want 1", got)
	}

	// the Ghostco relationship references a name outside the closed context
	if got := len(res.Relationships); got != 1 {
		t.Fatalf("relationships = %d, want 1 (notes: %v)", got, res.Notes)
	}
	if res.Relationships[0].Type != "WORKS_FOR" {
		t.Errorf("relationship type = %q, want WORKS_FOR", res.Relationships[0].Type)
	}

	obs := res.PersonObservations["Marie Curie"]
	if len(obs) != 1 || obs[0].Dimension != "personality" {
		t.Errorf("person observations = %+v, want one personality observation", obs)
	}
}

func TestProcessChunkFailedGroupYieldsEmptyShape(t *testing.T) {
	client := &fakeClient{failAll: true}

	d := newTestDispatcher(client)
	res := d.ProcessChunk(context.Background(), chunker.Chunk{ID: "doc:0000", Text: "some text"})

	if res.ChunkID != "doc:0000" {
		t.Errorf("chunk ID = %q, want doc:0000", res.ChunkID)
	}
	if res.NodeCount() != 0 {
		t.Errorf("node count = %d, want 0", res.NodeCount())
	}
	if len(res.Relationships) != 0 {
		t.Errorf("relationships = %d, want 0", len(res.Relationships))
	}
	if len(res.Notes) == 0 {
		t.Error("expected data-quality notes for the failed groups")
	}
}

func TestProcessChunkPersonDetailFailureKeepsNodes(t *testing.T) {
	client := &fakeClient{
		completions: map[string]string{
			"Entity, Event": `[{"nodeType": "Entity", "name": "Marie Curie", "subType": "Person"},
				{"nodeType": "Entity", "name": "Pierre Curie", "subType": "Person"}]`,
			"Proposition, Emotion": `[]`,
			"Known_elements":       `[]`,
		},
		// no formatted replies: every detail call errors
	}

	d := newTestDispatcher(client)
	res := d.ProcessChunk(context.Background(), chunker.Chunk{ID: "doc:0000", Text: "some text"})

	if got := len(res.Nodes[common.NodeEntity]); got != 2 {
		t.Errorf("entities = %d, want 2", got)
	}
	if len(res.PersonObservations) != 0 {
		t.Errorf("observations = %+v, want none", res.PersonObservations)
	}
	if len(res.Notes) == 0 {
		t.Error("expected notes about the failed detail calls")
	}
}

func TestFieldTemplatesEnumerateOnlyInScopeTypes(t *testing.T) {
	tmpl := fieldTemplates([]common.NodeType{common.NodeConcept, common.NodeEmotion})

	if !strings.Contains(tmpl, "- Concept:") || !strings.Contains(tmpl, "- Emotion:") {
		t.Errorf("templates missing in-scope types:\n%s", tmpl)
	}
	if strings.Contains(tmpl, "- Entity:") {
		t.Errorf("templates leak out-of-scope types:\n%s", tmpl)
	}
	if !strings.Contains(tmpl, `"intensity": <number>`) {
		t.Errorf("templates missing schema fields:\n%s", tmpl)
	}
}
