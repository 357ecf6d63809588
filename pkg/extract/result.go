// Package extract turns chunks of text into per-chunk extraction results
// by dispatching grouped generation requests, recovering records from the
// replies, and running dependent relationship and detail calls.
package extract

import (
	"github.com/OFFIS-RIT/mosaic/pkg/common"
)

// ChunkResult is the uniform per-chunk output shape. Failed or timed-out
// calls leave their portion empty; downstream aggregation never needs to
// special-case missing chunks.
type ChunkResult struct {
	ChunkID            string                              `json:"chunkId"`
	Nodes              map[common.NodeType][]common.Record `json:"nodes"`
	Relationships      []common.Relationship               `json:"relationships"`
	PersonObservations map[string][]common.Observation     `json:"personObservations"`
	LocationDetails    map[string]common.Record            `json:"locationDetails"`
	Notes              []string                            `json:"notes,omitempty"`
}

// EmptyChunkResult returns the all-empty shape for a chunk. Used both as
// the starting point for extraction and as the substitute for a chunk
// whose processing failed entirely.
func EmptyChunkResult(chunkID string) *ChunkResult {
	return &ChunkResult{
		ChunkID:            chunkID,
		Nodes:              make(map[common.NodeType][]common.Record),
		Relationships:      []common.Relationship{},
		PersonObservations: make(map[string][]common.Observation),
		LocationDetails:    make(map[string]common.Record),
	}
}

// NodeCount returns the total number of records across all types.
func (r *ChunkResult) NodeCount() int {
	n := 0
	for _, records := range r.Nodes {
		n += len(records)
	}
	return n
}
