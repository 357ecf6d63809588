package checkpoint

import (
	"path/filepath"
	"reflect"
	"testing"
)

type fakeResult struct {
	ChunkID string `json:"chunkId"`
	Count   int    `json:"count"`
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, err := NewStore[fakeResult](t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	want := []fakeResult{
		{ChunkID: "doc:0000", Count: 3},
		{ChunkID: "doc:0001", Count: 0},
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadMissingCheckpoint(t *testing.T) {
	store, err := NewStore[fakeResult](filepath.Join(t.TempDir(), "fresh"), 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("Load() on empty store = %+v, want nil", got)
	}
}

func TestSaveOverwritesLatest(t *testing.T) {
	store, err := NewStore[fakeResult](t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Save([]fakeResult{{ChunkID: "doc:0000"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	want := []fakeResult{{ChunkID: "doc:0000"}, {ChunkID: "doc:0001"}}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestNumberedSnapshots(t *testing.T) {
	store, err := NewStore[fakeResult](t.TempDir(), 2)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := store.Save([]fakeResult{{ChunkID: "doc", Count: i}}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	snaps, err := store.Snapshots()
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	want := []string{"checkpoint-0002.json", "checkpoint-0004.json"}
	if !reflect.DeepEqual(snaps, want) {
		t.Errorf("Snapshots() = %v, want %v", snaps, want)
	}
}
