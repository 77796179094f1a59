package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"voiceloop/client/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// CheckAll runs all health checks and returns combined status
func CheckAll(ctx context.Context, cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkBackend(ctx, cfg),
		checkCommand("capture", cfg.Audio.CaptureCmd),
		checkCommand("player", cfg.Audio.PlayerCmd),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkBackend(ctx context.Context, cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "backend"}

	if cfg.Agent.BaseURL == "" {
		result.Error = "AGENT_BASE_URL not set"
		result.Latency = time.Since(start)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, "GET", cfg.Agent.BaseURL+"/health", nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return result
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		result.Error = fmt.Sprintf("malformed health response: %v", err)
		return result
	}
	if payload.Status != "healthy" {
		result.Error = fmt.Sprintf("backend reports %q", payload.Status)
		return result
	}

	result.OK = true
	return result
}

// checkCommand verifies the configured audio command resolves on PATH.
func checkCommand(name, cmdLine string) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}

	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		result.Error = "command not configured"
		result.Latency = time.Since(start)
		return result
	}
	if _, err := exec.LookPath(parts[0]); err != nil {
		result.Error = fmt.Sprintf("%s not found on PATH", parts[0])
		result.Latency = time.Since(start)
		return result
	}

	result.OK = true
	result.Latency = time.Since(start)
	return result
}
