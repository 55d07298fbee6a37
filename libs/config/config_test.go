package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("POLL_EVERY", "15")
	d, err := Duration("POLL_EVERY", time.Second)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 15*time.Second {
		t.Fatalf("expected 15s, got %s", d)
	}

	t.Setenv("POLL_EVERY", "250ms")
	d, err = Duration("POLL_EVERY", time.Second)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", d)
	}

	t.Setenv("POLL_EVERY", "soon")
	if _, err := Duration("POLL_EVERY", time.Second); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLocation(t *testing.T) {
	t.Setenv("CLINIC_TIMEZONE", "America/Argentina/Salta")
	loc, err := Location("CLINIC_TIMEZONE", "Local")
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "America/Argentina/Salta" {
		t.Fatalf("unexpected location %s", loc)
	}

	t.Setenv("CLINIC_TIMEZONE", "")
	loc, err = Location("CLINIC_TIMEZONE", "Local")
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc != time.Local {
		t.Fatalf("expected time.Local, got %s", loc)
	}

	t.Setenv("CLINIC_TIMEZONE", "Mars/Olympus")
	if _, err := Location("CLINIC_TIMEZONE", "Local"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestListAndBool(t *testing.T) {
	t.Setenv("ORIGINS", " https://a.example, ,https://b.example ")
	got := List("ORIGINS", "")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected list %q", got)
	}

	t.Setenv("FLAG", "YES")
	if !Bool("FLAG", false) {
		t.Fatal("expected YES to be true")
	}
	t.Setenv("FLAG", "nope")
	if Bool("FLAG", true) {
		t.Fatal("expected unknown value to be false")
	}
}

func TestLoadDotenvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CLINICDESK_A=from-file\nCLINICDESK_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CLINICDESK_A", "from-env")
	t.Setenv("CLINICDESK_B", "")
	os.Unsetenv("CLINICDESK_B")
	t.Cleanup(func() { os.Unsetenv("CLINICDESK_B") })

	if err := LoadDotenv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv("CLINICDESK_A"); got != "from-env" {
		t.Fatalf("expected env value to win, got %q", got)
	}
	if got := os.Getenv("CLINICDESK_B"); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}
