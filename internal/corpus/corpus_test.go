package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_Set_UniqueTitlesEnforced(t *testing.T) {
	t.Parallel()

	_, err := NewSet([]Document{
		{Title: "A", Content: "alpha"},
		{Title: "A", Content: "alpha again"},
	})
	if err == nil {
		t.Fatal("expected duplicate-title error, got nil")
	}
}

func Test_Set_EmptyTitleRejected(t *testing.T) {
	t.Parallel()

	_, err := NewSet([]Document{{Title: "", Content: "x"}})
	if err == nil {
		t.Fatal("expected empty-title error, got nil")
	}
}

func Test_Set_ByTitle(t *testing.T) {
	t.Parallel()

	set, err := NewSet([]Document{
		{Title: "A", Content: "alpha"},
		{Title: "B", Content: "beta"},
	})
	if err != nil {
		t.Fatalf("new set: %v", err)
	}

	doc, ok := set.ByTitle("B")
	if !ok || doc.Content != "beta" {
		t.Errorf("ByTitle(B): want beta, got %q (ok=%v)", doc.Content, ok)
	}
	if _, ok := set.ByTitle("C"); ok {
		t.Error("ByTitle(C): want miss, got hit")
	}
}

func Test_SaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "docs.json")
	docs := []Document{
		{Title: "A", Content: "alpha beta"},
		{Title: "B", Content: "gamma delta"},
	}
	if err := Save(path, docs); err != nil {
		t.Fatalf("save: %v", err)
	}

	set, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("want 2 documents, got %d", set.Len())
	}
	if got := set.Titles(); got[0] != "A" || got[1] != "B" {
		t.Errorf("titles out of order: %v", got)
	}
}

func Test_Load_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("want ErrSnapshotNotFound, got %v", err)
	}
}

func Test_Load_RejectsMissingEnvelope(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bare.json")
	// A bare document array without the snapshot envelope must be rejected.
	if err := os.WriteFile(path, []byte(`[{"title":"A","content":"x"}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected envelope error, got nil")
	}
}
