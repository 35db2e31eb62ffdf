package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

// The test library holds untagged files; metadata falls back to filenames
// and folder structure.
func writeTestLibrary(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := []string{
		"albumA/01 alpha.mp3",
		"albumA/02 beta.mp3",
		"albumB/gamma.flac",
		"podcasts/showX/episode1.mp3",
		"notes.txt",
	}
	for _, rel := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("not real audio"), 0o644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}
	return root
}

func TestRepository_ScanIndexesAudioFiles(t *testing.T) {
	root := writeTestLibrary(t)
	repo := NewRepository(root, zap.NewNop())

	if err := repo.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// Four audio files; notes.txt is skipped
	if got := repo.Size(); got != 4 {
		t.Errorf("Expected 4 indexed tracks, got %d", got)
	}

	all, err := repo.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	for _, track := range all {
		if track.ID <= 0 {
			t.Errorf("Track %q should have a positive id, got %d", track.Path, track.ID)
		}
		if track.Title == "" {
			t.Errorf("Track %q should fall back to a filename title", track.Path)
		}
	}
}

func TestRepository_StableIDsAcrossRescans(t *testing.T) {
	root := writeTestLibrary(t)
	repo := NewRepository(root, zap.NewNop())
	ctx := context.Background()

	if err := repo.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	first, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if err := repo.Scan(ctx); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}

	for _, track := range first {
		if _, ok := repo.GetByID(ctx, track.ID); !ok {
			t.Errorf("Track %q lost its id %d across rescans", track.Path, track.ID)
		}
	}
}

func TestRepository_PodcastClassificationByFolder(t *testing.T) {
	root := writeTestLibrary(t)
	repo := NewRepository(root, zap.NewNop())
	ctx := context.Background()

	if err := repo.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	podcasts := 0
	for _, track := range all {
		if track.IsPodcast {
			podcasts++
			if filepath.Base(filepath.Dir(filepath.Dir(track.Path))) != "podcasts" {
				t.Errorf("Track %q wrongly classified as podcast", track.Path)
			}
		}
	}
	if podcasts != 1 {
		t.Errorf("Expected 1 podcast, got %d", podcasts)
	}
}

func TestRepository_GetByParamFilters(t *testing.T) {
	root := writeTestLibrary(t)
	repo := NewRepository(root, zap.NewNop())
	ctx := context.Background()

	if err := repo.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// Untagged files resolve by folder
	folderID := core.CategoryID(core.CategoryFolders, filepath.Join(root, "albumA"))
	tracks, err := repo.GetByParam(ctx, folderID, core.SortByTitle)
	if err != nil {
		t.Fatalf("GetByParam failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks in albumA folder, got %d", len(tracks))
	}
	// Title order
	if tracks[0].Title > tracks[1].Title {
		t.Errorf("Tracks not sorted by title: %q, %q", tracks[0].Title, tracks[1].Title)
	}

	// Song queries exclude podcasts; podcast queries exclude songs
	songs, err := repo.GetByParam(ctx, core.CategoryID(core.CategorySongs, ""), core.SortByTitle)
	if err != nil {
		t.Fatalf("GetByParam failed: %v", err)
	}
	if len(songs) != 3 {
		t.Errorf("Expected 3 songs, got %d", len(songs))
	}
	for _, track := range songs {
		if track.IsPodcast {
			t.Errorf("Song query returned podcast %q", track.Path)
		}
	}

	episodes, err := repo.GetByParam(ctx, core.CategoryID(core.CategoryPodcasts, ""), core.SortByTitle)
	if err != nil {
		t.Fatalf("GetByParam failed: %v", err)
	}
	if len(episodes) != 1 {
		t.Errorf("Expected 1 podcast episode, got %d", len(episodes))
	}
}

func TestTrackID_StableAndPositive(t *testing.T) {
	a := trackID("/music/a.mp3")
	b := trackID("/music/a.mp3")
	c := trackID("/music/b.mp3")

	if a != b {
		t.Error("Same path must hash to the same id")
	}
	if a == c {
		t.Error("Different paths should hash to different ids")
	}
	if a < 0 || c < 0 {
		t.Error("Track ids must be positive")
	}
}
