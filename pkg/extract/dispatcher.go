package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/mosaic/internal/util"
	"github.com/OFFIS-RIT/mosaic/pkg/ai"
	"github.com/OFFIS-RIT/mosaic/pkg/chunker"
	"github.com/OFFIS-RIT/mosaic/pkg/common"
	"github.com/OFFIS-RIT/mosaic/pkg/logger"
	"github.com/OFFIS-RIT/mosaic/pkg/recovery"

	"golang.org/x/sync/errgroup"
)

// typeGroups splits the node types into two concurrent extraction
// requests per chunk. Grouping keeps the round-trip count low while each
// prompt stays focused on a handful of related types.
var typeGroups = [][]common.NodeType{
	{
		common.NodeEntity,
		common.NodeEvent,
		common.NodeConcept,
		common.NodeAttribute,
		common.NodeLocation,
	},
	{
		common.NodeProposition,
		common.NodeEmotion,
		common.NodeAgent,
		common.NodeThought,
		common.NodeScientificInsight,
		common.NodeLaw,
		common.NodeReasoningChain,
		common.NodeReasoningStep,
	},
}

type personObservation struct {
	Observation string  `json:"observation" jsonschema_description:"One concrete statement about the person supported by the text"`
	Dimension   string  `json:"dimension" jsonschema_description:"One of: personality, cognition, emotion, relationships, values, development, interpersonal"`
	Evidence    string  `json:"evidence" jsonschema_description:"Quote or close paraphrase of the supporting passage"`
	Confidence  float64 `json:"confidence" jsonschema_description:"How directly the text supports the observation, 0.0-1.0"`
}

type personObservationSet struct {
	Observations []personObservation `json:"observations" jsonschema_description:"Behavioral and psychological observations about the person"`
}

type locationDetail struct {
	LocationType string  `json:"locationType" jsonschema_description:"Kind of place: city, country, region, building, landmark, natural feature"`
	Description  string  `json:"description" jsonschema_description:"Description of the location from the text"`
	Significance string  `json:"significance" jsonschema_description:"Why the location matters in this text"`
	Latitude     float64 `json:"latitude" jsonschema_description:"Latitude if the text states coordinates, else 0"`
	Longitude    float64 `json:"longitude" jsonschema_description:"Longitude if the text states coordinates, else 0"`
}

// Dispatcher issues the per-chunk extraction calls. Every call carries a
// bounded timeout; failures degrade to empty shapes and a data-quality
// note instead of failing the chunk.
type Dispatcher struct {
	client     ai.Client
	timeout    time.Duration
	maxRetries int
}

// NewDispatcherParams configures a Dispatcher.
type NewDispatcherParams struct {
	Client     ai.Client
	Timeout    time.Duration
	MaxRetries int
}

// NewDispatcher creates a Dispatcher. Timeout defaults to 120s.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Dispatcher{
		client:     params.Client,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// ProcessChunk produces the chunk's full result: the two type groups run
// concurrently, then the dependent relationship and detail calls run with
// the extracted node names as closed context. It never returns an error;
// whatever could not be extracted is simply absent.
func (d *Dispatcher) ProcessChunk(ctx context.Context, chunk chunker.Chunk) *ChunkResult {
	res := EmptyChunkResult(chunk.ID)

	mergeMu := sync.Mutex{}
	g, gCtx := errgroup.WithContext(ctx)
	for _, group := range typeGroups {
		group := group
		g.Go(func() error {
			records, notes := d.extractGroup(gCtx, group, chunk.Text)

			mergeMu.Lock()
			defer mergeMu.Unlock()
			for _, rec := range records {
				t, ok := rec.Type()
				if !ok {
					continue
				}
				res.Nodes[t] = append(res.Nodes[t], rec)
			}
			res.Notes = append(res.Notes, notes...)
			return nil
		})
	}
	// group goroutines never return errors
	_ = g.Wait()

	if res.NodeCount() == 0 {
		return res
	}

	d.extractRelationships(ctx, chunk, res)
	d.extractPersonDetails(ctx, chunk, res)
	d.extractLocationDetails(ctx, chunk, res)

	return res
}

func (d *Dispatcher) extractGroup(
	ctx context.Context,
	types []common.NodeType,
	text string,
) ([]common.Record, []string) {
	prompt := fmt.Sprintf(
		ai.ExtractNodesPrompt,
		joinTypes(types),
		fieldTemplates(types),
		text,
	)

	reply, err := d.generate(ctx, prompt)
	if err != nil {
		logger.Warn("group extraction failed", "types", joinTypes(types), "err", err)
		return nil, []string{fmt.Sprintf("group [%s] extraction failed: %v", joinTypes(types), err)}
	}

	result := recovery.RecoverTypes(reply, types)
	return result.Records, result.Notes
}

func (d *Dispatcher) extractRelationships(
	ctx context.Context,
	chunk chunker.Chunk,
	res *ChunkResult,
) {
	known := knownElements(res)
	if len(known) < 2 {
		return
	}

	prompt := fmt.Sprintf(
		ai.ExtractRelationshipsPrompt,
		strings.Join(known, ", "),
		strings.Join(common.RelationTypes(), ", "),
		chunk.Text,
	)

	reply, err := d.generate(ctx, prompt)
	if err != nil {
		logger.Warn("relationship extraction failed", "chunk", chunk.ID, "err", err)
		res.Notes = append(res.Notes, fmt.Sprintf("relationship extraction failed: %v", err))
		return
	}

	rels, notes := recovery.RecoverRelationships(reply)
	res.Notes = append(res.Notes, notes...)

	// Relationships may only reference names from the closed context.
	names := knownNameSet(res)
	dropped := 0
	for _, rel := range rels {
		if !names[strings.ToLower(common.CanonicalName(rel.Source.Name))] ||
			!names[strings.ToLower(common.CanonicalName(rel.Target.Name))] {
			dropped++
			continue
		}
		res.Relationships = append(res.Relationships, rel)
	}
	if dropped > 0 {
		res.Notes = append(res.Notes, fmt.Sprintf("dropped %d relationships referencing unknown elements", dropped))
	}
}

func (d *Dispatcher) extractPersonDetails(
	ctx context.Context,
	chunk chunker.Chunk,
	res *ChunkResult,
) {
	for _, rec := range res.Nodes[common.NodeEntity] {
		if rec.SubType() != common.SubTypePerson {
			continue
		}
		name := rec.Name()

		tCtx, cancel := context.WithTimeout(ctx, d.timeout)
		var out personObservationSet
		err := d.client.GenerateCompletionWithFormat(
			tCtx,
			"person_observations",
			"Behavioral and psychological observations about a person, grounded in the text.",
			fmt.Sprintf(ai.PersonDetailPrompt, name, name, chunk.Text),
			&out,
			ai.WithAdvanced(),
		)
		cancel()
		if err != nil {
			logger.Debug("person detail call failed", "person", name, "err", err)
			res.Notes = append(res.Notes, fmt.Sprintf("person detail failed for %q: %v", name, err))
			continue
		}

		key := common.CanonicalName(name)
		for _, obs := range out.Observations {
			if strings.TrimSpace(obs.Observation) == "" {
				continue
			}
			res.PersonObservations[key] = append(res.PersonObservations[key], common.Observation{
				Observation: obs.Observation,
				Dimension:   obs.Dimension,
				Evidence:    obs.Evidence,
				Confidence:  obs.Confidence,
			})
		}
	}
}

func (d *Dispatcher) extractLocationDetails(
	ctx context.Context,
	chunk chunker.Chunk,
	res *ChunkResult,
) {
	for _, rec := range res.Nodes[common.NodeLocation] {
		name := rec.Name()

		tCtx, cancel := context.WithTimeout(ctx, d.timeout)
		var out locationDetail
		err := d.client.GenerateCompletionWithFormat(
			tCtx,
			"location_detail",
			"Details about a location, grounded in the text.",
			fmt.Sprintf(ai.LocationDetailPrompt, name, name, chunk.Text),
			&out,
			ai.WithAdvanced(),
		)
		cancel()
		if err != nil {
			logger.Debug("location detail call failed", "location", name, "err", err)
			res.Notes = append(res.Notes, fmt.Sprintf("location detail failed for %q: %v", name, err))
			continue
		}

		detail := common.Record{
			common.FieldNodeType: string(common.NodeLocation),
			common.FieldName:     name,
		}
		if out.LocationType != "" {
			detail["locationType"] = out.LocationType
		}
		if out.Description != "" {
			detail["description"] = out.Description
		}
		if out.Significance != "" {
			detail["significance"] = out.Significance
		}
		if out.Latitude != 0 || out.Longitude != 0 {
			detail["coordinates"] = map[string]any{
				"latitude":  out.Latitude,
				"longitude": out.Longitude,
			}
		}
		res.LocationDetails[common.CanonicalName(name)] = detail
	}
}

// generate runs one completion call under the per-call timeout and the
// configured retry policy.
func (d *Dispatcher) generate(ctx context.Context, prompt string) (string, error) {
	tCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return util.RetryWithContext(tCtx, d.maxRetries, func(ctx context.Context) (string, error) {
		return d.client.GenerateCompletion(ctx, prompt)
	})
}

func joinTypes(types []common.NodeType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// fieldTemplates renders one template line per type from the schema
// registry, so each prompt enumerates exactly the in-scope field shapes.
func fieldTemplates(types []common.NodeType) string {
	var b strings.Builder
	for _, t := range types {
		b.WriteString("- ")
		b.WriteString(string(t))
		b.WriteString(": ")

		fields := []string{`"nodeType": "` + string(t) + `"`, `"name": <string>`}
		if t == common.NodeEntity {
			fields = append(fields, `"subType": <Person|Organization|Location|Artifact|Animal|Concept>`)
		}
		for _, spec := range common.SchemaFor(t, "") {
			switch spec.Kind {
			case common.KindList:
				fields = append(fields, `"`+spec.Name+`": <list>`)
			case common.KindMap:
				fields = append(fields, `"`+spec.Name+`": <object>`)
			case common.KindNumber:
				fields = append(fields, `"`+spec.Name+`": <number>`)
			default:
				fields = append(fields, `"`+spec.Name+`": <string>`)
			}
		}
		b.WriteString("{" + strings.Join(fields, ", ") + "}")
		b.WriteString("\n")
	}
	return b.String()
}

// knownElements renders the closed name context for the relationship
// call: "Name (Type)", entities shown with their subtype.
func knownElements(res *ChunkResult) []string {
	var out []string
	for _, t := range common.AllNodeTypes {
		for _, rec := range res.Nodes[t] {
			typeName := string(t)
			if t == common.NodeEntity {
				if sub := rec.SubType(); sub != "" {
					typeName = sub
				}
			}
			out = append(out, fmt.Sprintf("%s (%s)", rec.Name(), typeName))
		}
	}
	return out
}

func knownNameSet(res *ChunkResult) map[string]bool {
	names := make(map[string]bool)
	for _, records := range res.Nodes {
		for _, rec := range records {
			names[strings.ToLower(common.CanonicalName(rec.Name()))] = true
		}
	}
	return names
}
