package bootstrap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/texlify/texlify/bootstrap"
)

const testConfig = `
server:
  host: 127.0.0.1
  port: 18080
database:
  driver: memory
gemini:
  api_key: test-key
billing:
  mode: dummy
logging:
  level: error
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNew_AssemblesApplication(t *testing.T) {
	a, err := bootstrap.New(writeConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Shutdown()

	if a.HTTPServer == nil || a.HTTPServer.Addr != "127.0.0.1:18080" {
		t.Fatalf("unexpected server addr: %+v", a.HTTPServer)
	}
	if a.Admission == nil || a.Engine == nil || a.Tiers == nil {
		t.Fatal("expected services to be wired")
	}
}

func TestNew_SQLiteDriver(t *testing.T) {
	dir := t.TempDir()
	cfg := `
server:
  port: 18081
database:
  driver: sqlite
  path: ` + filepath.Join(dir, "texlify.db") + `
gemini:
  api_key: test-key
logging:
  level: error
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	a, err := bootstrap.New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNew_MissingConfig(t *testing.T) {
	if _, err := bootstrap.New(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
