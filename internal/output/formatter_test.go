package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func init() {
	// Disable color for tests
	color.NoColor = true
}

// captureStdout captures stdout during function execution
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Also set color output to the same writer
	color.Output = w

	f()

	w.Close()
	os.Stdout = old
	color.Output = os.Stdout

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestJSON(t *testing.T) {
	t.Run("expiry report", func(t *testing.T) {
		type report struct {
			RemainingDays int    `json:"remaining_days"`
			Due           bool   `json:"due"`
			Source        string `json:"source"`
		}
		data := report{RemainingDays: 5, Due: true, Source: "/opt/zimbra/ssl/zimbra/commercial/commercial.crt"}

		output := captureStdout(func() {
			_ = JSON(data)
		})

		var result report
		if err := json.Unmarshal([]byte(output), &result); err != nil {
			t.Fatalf("JSON output is invalid: %v", err)
		}
		if result.RemainingDays != 5 || !result.Due {
			t.Errorf("roundtrip mismatch: %+v", result)
		}
	})

	t.Run("simple map", func(t *testing.T) {
		data := map[string]interface{}{
			"name":   "zimbra",
			"status": "deployed",
		}

		output := captureStdout(func() {
			_ = JSON(data)
		})

		var result map[string]interface{}
		if err := json.Unmarshal([]byte(output), &result); err != nil {
			t.Fatalf("JSON output is invalid: %v", err)
		}
		if result["name"] != "zimbra" {
			t.Errorf("expected name zimbra, got %v", result["name"])
		}
	})

	t.Run("empty object", func(t *testing.T) {
		output := captureStdout(func() {
			_ = JSON(map[string]interface{}{})
		})
		if !strings.Contains(output, "{}") {
			t.Errorf("expected empty object, got %s", output)
		}
	})
}

func TestSuccess(t *testing.T) {
	output := captureStdout(func() {
		Success("certificate deployed")
	})

	if !strings.Contains(output, "certificate deployed") {
		t.Error("output should contain success message")
	}
	if !strings.Contains(output, "✓") {
		t.Error("output should contain success symbol")
	}
}

func TestError(t *testing.T) {
	output := captureStdout(func() {
		Error("verification failed")
	})

	if !strings.Contains(output, "verification failed") {
		t.Error("output should contain error message")
	}
	if !strings.Contains(output, "✗") {
		t.Error("output should contain error symbol")
	}
}

func TestWarn(t *testing.T) {
	output := captureStdout(func() {
		Warn("certificate drift detected")
	})

	if !strings.Contains(output, "certificate drift detected") {
		t.Error("output should contain warning message")
	}
	if !strings.Contains(output, "!") {
		t.Error("output should contain warning symbol")
	}
}

func TestInfo(t *testing.T) {
	output := captureStdout(func() {
		Info("renewal not due")
	})

	if !strings.Contains(output, "renewal not due") {
		t.Error("output should contain info message")
	}
	if !strings.Contains(output, "→") {
		t.Error("output should contain info symbol")
	}
}

func TestPrint(t *testing.T) {
	output := captureStdout(func() {
		Print("plain message")
	})

	if !strings.Contains(output, "plain message") {
		t.Error("output should contain plain message")
	}
}

func TestFormattedOutput(t *testing.T) {
	t.Run("success with format args", func(t *testing.T) {
		output := captureStdout(func() {
			Success("certificate acquired for %s", "zimbra")
		})
		if !strings.Contains(output, "certificate acquired for zimbra") {
			t.Errorf("expected formatted message, got %s", output)
		}
	})

	t.Run("info with format args", func(t *testing.T) {
		output := captureStdout(func() {
			Info("certificate expires in %d days", 40)
		})
		if !strings.Contains(output, "certificate expires in 40 days") {
			t.Errorf("expected formatted message, got %s", output)
		}
	})

	t.Run("error with format args", func(t *testing.T) {
		output := captureStdout(func() {
			Error("failed: %s", "exit status 1")
		})
		if !strings.Contains(output, "failed: exit status 1") {
			t.Errorf("expected formatted message, got %s", output)
		}
	})
}
