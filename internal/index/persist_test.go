package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	idx, err := buildTestIndex([]string{"red cotton t-shirt", "black wool coat", "blue denim jeans"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "index")
	if err := Save(idx, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != idx.Len() || loaded.Dim() != idx.Dim() || loaded.Metric() != idx.Metric() {
		t.Fatalf("shape changed: %d/%d/%s vs %d/%d/%s",
			loaded.Len(), loaded.Dim(), loaded.Metric(), idx.Len(), idx.Dim(), idx.Metric())
	}
	if loaded.Meta().BuildID != "test" || loaded.Meta().Model != "concept" {
		t.Errorf("meta not preserved: %+v", loaded.Meta())
	}

	q := conceptVector("warm winter outerwear")
	want, _ := idx.SearchVector(q, 3)
	got, err := loaded.SearchVector(q, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Content != want[i].Content || got[i].Score != want[i].Score {
			t.Errorf("result %d differs: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestSave_OverwritesExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	first, _ := buildTestIndex([]string{"coat"})
	second, _ := buildTestIndex([]string{"coat", "jeans"})
	if err := Save(first, dir); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := Save(second, dir); err != nil {
		t.Fatalf("save second: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Errorf("expected the second index, got %d items", loaded.Len())
	}

	entries, err := os.ReadDir(filepath.Dir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the index dir to remain, got %d entries", len(entries))
	}
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func TestLoad_CorruptVectors(t *testing.T) {
	idx, _ := buildTestIndex([]string{"coat", "jeans"})
	dir := filepath.Join(t.TempDir(), "index")
	if err := Save(idx, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	path := filepath.Join(dir, VectorsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func TestLoad_MissingItemsFile(t *testing.T) {
	idx, _ := buildTestIndex([]string{"coat"})
	dir := filepath.Join(t.TempDir(), "index")
	if err := Save(idx, dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, ItemsFile)); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func TestLoad_BadManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}
