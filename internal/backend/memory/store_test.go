package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cosyq/internal/backend"
	"cosyq/internal/query"
)

func fixture() *Store {
	s := NewStore()
	s.Append("GET", []Document{
		{"_id": "1", "username": "alice", "corpus": "news", "query": "[word=\"a\"]"},
		{"_id": "2", "username": "alice", "corpus": "news", "query": "[word=\"b\"]"},
		{"_id": "3", "username": "bob", "corpus": "web"},
	})
	s.Append("BASE", []Document{
		{"_id": "1", "username": "carol", "corpus": "news"},
	})
	return s
}

func specOf(pairs ...[2]string) query.QuerySpec {
	f := query.NewFilterStore()
	for _, p := range pairs {
		f.Add(p[0], p[1])
	}
	return query.Translate(f)
}

func TestStore_CountRules(t *testing.T) {
	s := fixture()
	ctx := context.Background()

	tests := []struct {
		name string
		q    query.QuerySpec
		want int64
	}{
		{"no filter", specOf(), 3},
		{"literal", specOf([2]string{"username", "alice"}), 2},
		{"regex", specOf([2]string{"corpus", "/^ne/"}), 2},
		{"one of", specOf([2]string{"username", "alice"}, [2]string{"username", "bob"}), 3},
		{"missing field never matches", specOf([2]string{"query", "/.*/"}), 2},
		{"combined", specOf([2]string{"username", "alice"}, [2]string{"corpus", "web"}), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Count(ctx, "GET", tt.q)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestStore_CountUnknownProjectIsZero(t *testing.T) {
	got, err := fixture().Count(context.Background(), "NOPE", nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestStore_InvalidRegex(t *testing.T) {
	_, err := fixture().Count(context.Background(), "GET", specOf([2]string{"corpus", "/(/"}))
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestStore_GroupCount(t *testing.T) {
	s := NewStore()
	s.Append("P", []Document{
		{"user": "a", "corpus": "x"},
		{"user": "a", "corpus": "x"},
		{"user": "b", "corpus": "y"},
	})

	rows, err := s.GroupCount(context.Background(), "P", nil, []string{"user", "corpus"})
	if err != nil {
		t.Fatalf("GroupCount failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}

	got := map[[2]string]int64{}
	for _, r := range rows {
		got[[2]string{r.Values[0], r.Values[1]}] = r.Count
	}
	if got[[2]string{"a", "x"}] != 2 || got[[2]string{"b", "y"}] != 1 {
		t.Errorf("unexpected groups: %+v", got)
	}
}

func TestStore_ProjectNamesSorted(t *testing.T) {
	names, err := fixture().ProjectNames(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "BASE" || names[1] != "GET" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store1 := fixture()
	if err := store1.Save(tmpDir, "GET"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "GET.jsonl")); err != nil {
		t.Fatalf("dump file missing: %v", err)
	}

	store2 := NewStore()
	if err := store2.LoadDir(tmpDir); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	n, err := store2.Count(context.Background(), "GET", specOf([2]string{"username", "alice"}))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 after reload, got %d", n)
	}

	// Re-appending the same ids must not duplicate documents.
	if err := store2.Load(tmpDir, "GET"); err != nil {
		t.Fatal(err)
	}
	total, _ := store2.Count(context.Background(), "GET", nil)
	if total != 3 {
		t.Errorf("expected 3 after re-load (deduplication), got %d", total)
	}
}

func TestStore_SaveUnknownProject(t *testing.T) {
	err := NewStore().Save(t.TempDir(), "NOPE")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, backend.ErrUnknownProject) {
		t.Errorf("expected ErrUnknownProject, got %v", err)
	}
}

func TestStore_NestedFields(t *testing.T) {
	s := NewStore()
	s.Append("GET", []Document{
		{"_id": "1", "ann": map[string]any{"key": "pos", "value": "N"}},
		{"_id": "2", "ann": map[string]any{"key": "pos", "value": "V"}},
		{"_id": "3", "ann": map[string]any{"key": "lemma", "value": "run"}},
		{"_id": "4", "ann": "flat"},
	})
	ctx := context.Background()

	n, err := s.Count(ctx, "GET", specOf([2]string{"ann.key", "pos"}))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 documents with ann.key=pos, got %d", n)
	}

	rows, err := s.GroupCount(ctx, "GET", specOf([2]string{"ann.value", "/^[NV]$/"}), []string{"ann.key"})
	if err != nil {
		t.Fatalf("GroupCount failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Values[0] != "pos" || rows[0].Count != 2 {
		t.Errorf("unexpected groups: %+v", rows)
	}
}

func TestDocument_Field(t *testing.T) {
	d := Document{
		"user": "a",
		"ann":  map[string]any{"key": "pos", "meta": Document{"src": "manual"}},
	}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"user", "a", true},
		{"ann.key", "pos", true},
		{"ann.meta.src", "manual", true},
		{"ann.missing", nil, false},
		{"user.key", nil, false},
		{"nope", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := d.Field(tt.path)
			if found != tt.found || got != tt.want {
				t.Errorf("Field(%q) = %v, %v; want %v, %v", tt.path, got, found, tt.want, tt.found)
			}
		})
	}
}
