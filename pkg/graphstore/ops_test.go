package graphstore

import (
	"strings"
	"testing"

	"github.com/OFFIS-RIT/mosaic/pkg/common"
)

func TestUpsertQueryKeysEntitiesOnNameAndSubType(t *testing.T) {
	q := upsertQuery(string(common.NodeEntity))
	if !strings.Contains(q, "MERGE (n:Entity {name: e.name, subType: e.subType})") {
		t.Errorf("entity upsert must merge on name and subType, got:\n%s", q)
	}

	q = upsertQuery(string(common.NodeConcept))
	if !strings.Contains(q, "MERGE (n:Concept {name: e.name})") {
		t.Errorf("non-entity upsert must merge on name alone, got:\n%s", q)
	}
	if strings.Contains(q, "subType") {
		t.Errorf("non-entity upsert must not involve subType, got:\n%s", q)
	}
}

func TestValidateRelTypeAndLabel(t *testing.T) {
	for _, relType := range []string{"WORKS_FOR", "PART_OF", "R2"} {
		if err := validateRelType(relType); err != nil {
			t.Errorf("validateRelType(%q) = %v, want nil", relType, err)
		}
	}
	for _, relType := range []string{"", "works_for", "DROP]->(m) DETACH DELETE m//"} {
		if err := validateRelType(relType); err == nil {
			t.Errorf("validateRelType(%q) = nil, want error", relType)
		}
	}

	if err := validateLabel("Entity"); err != nil {
		t.Errorf("validateLabel(Entity) = %v, want nil", err)
	}
	for _, label := range []string{"", "Entity) DETACH DELETE n//", "1Label"} {
		if err := validateLabel(label); err == nil {
			t.Errorf("validateLabel(%q) = nil, want error", label)
		}
	}
}
