package graphstore

import (
	"context"
	"strings"

	"github.com/agext/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/OFFIS-RIT/mosaic/pkg/aggregate"
	"github.com/OFFIS-RIT/mosaic/pkg/common"
	"github.com/OFFIS-RIT/mosaic/pkg/logger"
)

// WriteResult classifies the outcome of a single relationship write.
type WriteResult int

const (
	Created WriteResult = iota
	AlreadyExists
	SkippedMissingSource
	SkippedMissingTarget
	Failed
)

func (r WriteResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	case SkippedMissingSource:
		return "skipped_missing_source"
	case SkippedMissingTarget:
		return "skipped_missing_target"
	default:
		return "failed"
	}
}

// Stats summarizes one write pass.
type Stats struct {
	NodesUpserted int `json:"nodesUpserted"`
	Created       int `json:"created"`
	AlreadyExists int `json:"alreadyExists"`
	SkippedSource int `json:"skippedSource"`
	SkippedTarget int `json:"skippedTarget"`
	Failed        int `json:"failed"`
}

func (s *Stats) count(r WriteResult) {
	switch r {
	case Created:
		s.Created++
	case AlreadyExists:
		s.AlreadyExists++
	case SkippedMissingSource:
		s.SkippedSource++
	case SkippedMissingTarget:
		s.SkippedTarget++
	default:
		s.Failed++
	}
}

const lookupCacheSize = 1024

// Writer persists snapshots through an Ops implementation, caching
// endpoint lookups across relationship writes.
type Writer struct {
	ops        Ops
	lookups    *lru.Cache[string, *FoundNode]
	knownNames []string
}

// NewWriter returns a writer over the given operation surface.
func NewWriter(ops Ops) *Writer {
	cache, _ := lru.New[string, *FoundNode](lookupCacheSize)
	return &Writer{ops: ops, lookups: cache}
}

// WriteAll upserts all snapshot nodes, then writes structural edges
// followed by extracted relationships. Individual relationship failures
// are counted, not fatal; the returned error covers node upserts and
// context cancellation only.
func (w *Writer) WriteAll(ctx context.Context, snap *aggregate.Snapshot) (*Stats, error) {
	stats := &Stats{}

	written, err := w.ops.UpsertNodes(ctx, snap.Nodes)
	if err != nil {
		return stats, err
	}
	stats.NodesUpserted = written
	for _, rec := range snap.Nodes {
		w.knownNames = append(w.knownNames, rec.Name())
	}
	logger.Info("nodes upserted", "count", written)

	for _, rel := range snap.Structural {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.count(w.writeRelationship(ctx, rel))
	}
	for _, rel := range snap.Relationships {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.count(w.writeRelationship(ctx, rel))
	}

	logger.Info("relationships written",
		"created", stats.Created,
		"existing", stats.AlreadyExists,
		"skipped", stats.SkippedSource+stats.SkippedTarget,
		"failed", stats.Failed)
	return stats, nil
}

// writeRelationship resolves both endpoints and merges the edge.
// Endpoints that resolve to no stored node skip the edge; placeholders
// are never created.
func (w *Writer) writeRelationship(ctx context.Context, rel common.Relationship) WriteResult {
	source, err := w.resolveEndpoint(ctx, rel.Source)
	if err != nil {
		logger.Warn("endpoint lookup failed", "name", rel.Source.Name, "error", err)
		return Failed
	}
	if source == nil {
		w.logMissing(rel.Source.Name, rel)
		return SkippedMissingSource
	}

	target, err := w.resolveEndpoint(ctx, rel.Target)
	if err != nil {
		logger.Warn("endpoint lookup failed", "name", rel.Target.Name, "error", err)
		return Failed
	}
	if target == nil {
		w.logMissing(rel.Target.Name, rel)
		return SkippedMissingTarget
	}

	exists, err := w.ops.RelationshipExists(ctx, *source, *target, rel.Type)
	if err != nil {
		logger.Warn("relationship check failed", "type", rel.Type, "error", err)
		return Failed
	}
	if exists {
		return AlreadyExists
	}

	props := make(map[string]any, len(rel.Properties)+1)
	for k, v := range rel.Properties {
		props[k] = v
	}
	if rel.Category != "" {
		props["category"] = string(rel.Category)
	}
	if err := w.ops.CreateRelationship(ctx, *source, *target, rel.Type, props); err != nil {
		logger.Warn("relationship create failed",
			"type", rel.Type, "source", source.Name, "target", target.Name, "error", err)
		return Failed
	}
	return Created
}

// resolveEndpoint caches both hits and misses under name and type.
func (w *Writer) resolveEndpoint(ctx context.Context, ref common.NodeRef) (*FoundNode, error) {
	key := strings.ToLower(ref.Name) + "|" + ref.Type
	if found, ok := w.lookups.Get(key); ok {
		return found, nil
	}
	found, err := w.ops.FindNode(ctx, ref.Name, ref.Type)
	if err != nil {
		return nil, err
	}
	w.lookups.Add(key, found)
	return found, nil
}

func (w *Writer) logMissing(name string, rel common.Relationship) {
	hint := w.nearestName(name)
	if hint != "" {
		logger.Debug("relationship endpoint not found",
			"name", name, "type", rel.Type, "closest", hint)
		return
	}
	logger.Debug("relationship endpoint not found", "name", name, "type", rel.Type)
}

// nearestName returns the closest known node name within a small edit
// distance, as a hint for diagnosing near-miss extractions.
func (w *Writer) nearestName(name string) string {
	const maxDistance = 3
	best := ""
	bestDist := maxDistance + 1
	lower := strings.ToLower(name)
	for _, candidate := range w.knownNames {
		dist := levenshtein.Distance(lower, strings.ToLower(candidate), nil)
		if dist < bestDist {
			bestDist = dist
			best = candidate
		}
	}
	if bestDist > maxDistance {
		return ""
	}
	return best
}
