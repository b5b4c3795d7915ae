package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/store/memory"
)

const seedYAML = `applications:
  - name: marketing
mappings:
  - qrId: PROMO-SPRING24
    targetUrl: https://example.com/spring
    application: marketing
  - qrId: ABCD1234
    targetUrl: https://example.com/a
`

func TestSeederApplyIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx := context.Background()
	st := memory.New()
	s := NewSeeder(path, st, logger.NewNop())

	first, err := s.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if first.Created != 2 || first.Skipped != 0 || first.Applications != 1 {
		t.Fatalf("first run = %+v", first)
	}

	m, err := st.FindActiveByQrID(ctx, "PROMO-SPRING24")
	if err != nil {
		t.Fatalf("seeded mapping not found: %v", err)
	}
	if m.ApplicationID == nil {
		t.Fatal("seeded mapping lost its application")
	}
	app, err := st.FindApplicationByID(ctx, *m.ApplicationID)
	if err != nil || app.Name != "marketing" {
		t.Fatalf("application = %+v, err = %v", app, err)
	}

	second, err := s.Apply(ctx)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if second.Created != 0 || second.Skipped != 2 {
		t.Errorf("second run = %+v", second)
	}
}

func TestSeederDoesNotOverwriteExistingTarget(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	s := NewSeeder("", st, logger.NewNop())

	file, err := Parse([]byte(seedYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := s.ApplyFile(ctx, file); err != nil {
		t.Fatalf("ApplyFile() error = %v", err)
	}

	file.Mappings[1].TargetURL = "https://example.com/changed"
	if _, err := s.ApplyFile(ctx, file); err != nil {
		t.Fatalf("ApplyFile() error = %v", err)
	}

	m, _ := st.FindActiveByQrID(ctx, "ABCD1234")
	if m.TargetURL != "https://example.com/a" {
		t.Errorf("target = %q, seed must not overwrite", m.TargetURL)
	}
}
