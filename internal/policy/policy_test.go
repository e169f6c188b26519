package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func writePolicy(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "gcal.yaml", "name: gcal\nattendee_merge: explicit\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Name != "gcal" {
		t.Errorf("Name = %q, want gcal", p.Name)
	}
	if p.UnionAttendees() {
		t.Error("UnionAttendees() = true for an explicit policy")
	}
}

func TestLoadNameDefaultsToFilename(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "caldav.yml", "attendee_merge: union\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Name != "caldav" {
		t.Errorf("Name = %q, want the filename without extension", p.Name)
	}
}

func TestLoadRejectsUnknownMergeMode(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "bad.yaml", "attendee_merge: ask_the_user\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() accepted an unknown attendee_merge mode")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "broken.yaml", "name: [unterminated\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed YAML")
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := Default()
	if !p.UnionAttendees() {
		t.Error("the default policy should union attendees")
	}

	// An empty merge mode also means union.
	empty := &MergePolicy{Name: "x"}
	if !empty.UnionAttendees() {
		t.Error("UnionAttendees() = false for an unset mode, want the union default")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "gcal.yaml", "attendee_merge: explicit\n")
	writePolicy(t, dir, "caldav.yml", "attendee_merge: union\n")
	writePolicy(t, dir, "notes.txt", "not a policy\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	policies, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("LoadDir() = %d policies, want yaml files only", len(policies))
	}
	if policies["gcal"] == nil || policies["caldav"] == nil {
		t.Errorf("LoadDir() keys = %v, want gcal and caldav", policies)
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	policies, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("LoadDir() error = %v, want a missing directory tolerated", err)
	}
	if len(policies) != 0 {
		t.Errorf("LoadDir() = %v, want empty", policies)
	}
}
