package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFileKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport CARDCTL_TEST_NEW=\"from # file\"\nCARDCTL_TEST_SET=from-file\nCARDCTL_TEST_TRAIL=value # note\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("CARDCTL_TEST_SET", "from-env")
	t.Setenv("CARDCTL_TEST_NEW", "")
	t.Setenv("CARDCTL_TEST_TRAIL", "")
	_ = os.Unsetenv("CARDCTL_TEST_NEW")
	_ = os.Unsetenv("CARDCTL_TEST_TRAIL")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("CARDCTL_TEST_NEW"); got != "from # file" {
		t.Fatalf("expected quoted value kept whole, got %q", got)
	}
	if got := os.Getenv("CARDCTL_TEST_TRAIL"); got != "value" {
		t.Fatalf("expected trailing comment stripped, got %q", got)
	}
	if got := os.Getenv("CARDCTL_TEST_SET"); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}
}

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing file ignored, got %v", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Fatalf("expected empty path ignored, got %v", err)
	}
}

func TestRunActionCIModeAppliesTimeout(t *testing.T) {
	res := RunAction("cardctl", "test", true, 20*time.Millisecond, func(ctx context.Context) ([]string, error) {
		<-ctx.Done()
		return []string{"stopped"}, ctx.Err()
	})
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.Err)
	}
	if res.OK() || len(res.Details) != 1 || res.Duration <= 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPrintCIResult(t *testing.T) {
	var buf bytes.Buffer
	err := PrintCIResult(&buf, CommandResult{
		Tool:     "migrate",
		Command:  "up",
		Details:  []string{"schema migration applied"},
		Err:      errors.New("db ping: refused"),
		Duration: 1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("PrintCIResult: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["ok"] != false || out["tool"] != "migrate" || out["command"] != "up" || out["duration_ms"] != float64(1500) {
		t.Fatalf("unexpected payload %v", out)
	}
	if out["error"] != "db ping: refused" {
		t.Fatalf("expected error text, got %v", out["error"])
	}
}
