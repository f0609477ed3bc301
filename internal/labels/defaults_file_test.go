package labels

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsFileMissingIsZeroValue(t *testing.T) {
	d, err := LoadDefaultsFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if d.Force {
		t.Error("expected zero-value defaults")
	}
}

func TestLoadDefaultsFileEmptyPathIsZeroValue(t *testing.T) {
	d, err := LoadDefaultsFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Force {
		t.Error("expected zero-value defaults")
	}
}

func TestLoadDefaultsFileParsesForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".dnssync.toml")
	if err := os.WriteFile(path, []byte("force = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadDefaultsFile(path)
	if err != nil {
		t.Fatalf("LoadDefaultsFile: %v", err)
	}
	if !d.Force {
		t.Error("expected force true")
	}
}
