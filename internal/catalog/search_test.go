package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"libconv/internal/formats"
)

func TestSearchLibraryMatchesIDConventions(t *testing.T) {
	root := t.TempDir()
	calibreDir := writeFile(t, filepath.Join(root, "Author", "Title (12)", "Title.azw3"))
	stemMatch := writeFile(t, filepath.Join(root, "loose", "notes_77.TXT"))
	writeFile(t, filepath.Join(root, "Author", "Title (112)", "Title.azw3"))

	tests := []struct {
		id     string
		format formats.Format
		want   string
	}{
		{"12", formats.AZW3, calibreDir},
		{"77", formats.TXT, stemMatch},
	}
	for _, tt := range tests {
		got, err := searchLibrary(context.Background(), root, tt.id, tt.format)
		if err != nil {
			t.Fatalf("searchLibrary(%s, %s): %v", tt.id, tt.format, err)
		}
		if got != tt.want {
			t.Fatalf("searchLibrary(%s, %s) = %q, want %q", tt.id, tt.format, got, tt.want)
		}
	}
}

func TestSearchLibraryNoMatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Author", "Title (12)", "Title.epub"))
	writeFile(t, filepath.Join(root, ".hidden", "Title (12)", "Title.mobi"))

	if _, err := searchLibrary(context.Background(), root, "12", formats.MOBI); err == nil {
		t.Fatal("expected no match")
	}
}

func TestSearchLibraryMissingRoot(t *testing.T) {
	if _, err := searchLibrary(context.Background(), filepath.Join(t.TempDir(), "absent"), "1", formats.MOBI); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestSearchLibraryHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Title (1)", "Title.mobi"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := searchLibrary(ctx, root, "1", formats.MOBI); err == nil {
		t.Fatal("expected cancellation error")
	}
}
