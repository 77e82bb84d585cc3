package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"igreels/pkg/models"
)

func TestCheckpointManager(t *testing.T) {
	tempDir := t.TempDir()
	accounts := []string{"nasa", "esa", "jaxa"}

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(tempDir, accounts, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create("run-1")
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.RunID != "run-1" {
			t.Errorf("Expected run ID run-1, got %s", cp.RunID)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if got := loaded.Remaining(); len(got) != 3 || got[0] != "nasa" {
			t.Errorf("Expected all accounts remaining, got %v", got)
		}
	})

	t.Run("RecordAccount", func(t *testing.T) {
		mgr, err := NewManager(tempDir, accounts, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		cp, err := mgr.Create("run-2")
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		details := []models.PostDetail{{Shortcode: "C1", URL: "u", Caption: models.StringPtr("hi")}}
		if err := mgr.RecordAccount(cp, "nasa", details); err != nil {
			t.Fatalf("Failed to record account: %v", err)
		}
		if err := mgr.RecordAccount(cp, "esa", nil); err != nil {
			t.Fatalf("Failed to record account: %v", err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if !loaded.IsCompleted("nasa") || !loaded.IsCompleted("esa") {
			t.Errorf("Expected nasa and esa completed, got %v", loaded.Completed)
		}
		if got := loaded.Remaining(); len(got) != 1 || got[0] != "jaxa" {
			t.Errorf("Expected [jaxa] remaining, got %v", got)
		}
		posts, ok := loaded.Result.Posts("nasa")
		if !ok || len(posts) != 1 || posts[0].CaptionText() != "hi" {
			t.Errorf("Expected stored nasa post, got %v", posts)
		}
		if got := loaded.Result.Accounts(); len(got) != 2 || got[1] != "esa" {
			t.Errorf("Expected accounts [nasa esa], got %v", got)
		}
	})

	t.Run("DifferentAccountListIsSeparate", func(t *testing.T) {
		mgr, err := NewManager(tempDir, []string{"esa", "nasa"}, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected no checkpoint for reordered account list")
		}
		loaded, err := mgr.Load()
		if err != nil || loaded != nil {
			t.Errorf("Expected nil checkpoint, got %v, %v", loaded, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManager(tempDir, accounts, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if !mgr.Exists() {
			t.Fatal("Expected checkpoint to exist")
		}
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to be deleted")
		}
		if err := mgr.Delete(); err != nil {
			t.Errorf("Deleting a missing checkpoint should not fail: %v", err)
		}
	})
}

func TestLoadRejectsForeignFile(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir, []string{"nasa"}, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := os.WriteFile(mgr.Path(), []byte(`{"version":1,"accounts":["esa"],"result":{}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Load(); err == nil {
		t.Error("Expected error for mismatched account list")
	}

	if err := os.WriteFile(mgr.Path(), []byte(`{"version":9,"accounts":["nasa"]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Load(); err == nil {
		t.Error("Expected error for unknown version")
	}

	if err := os.WriteFile(mgr.Path(), []byte(`{`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Load(); err == nil {
		t.Error("Expected error for corrupt file")
	}
}

func TestNewManagerRequiresAccounts(t *testing.T) {
	if _, err := NewManager(t.TempDir(), nil, nil); err == nil {
		t.Error("Expected error for empty account list")
	}
}

func TestKeyIsStable(t *testing.T) {
	a := Key([]string{"nasa", "esa"})
	if a != Key([]string{"nasa", "esa"}) {
		t.Error("Expected stable key")
	}
	if a == Key([]string{"esa", "nasa"}) {
		t.Error("Expected order-sensitive key")
	}
	if filepath.Base(a) != a {
		t.Errorf("Key must be a plain file name, got %q", a)
	}
}
