package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/titanops/titan/log"
)

const jsdSolveTimeout = 60 * time.Second

// JSDSolver drives the external JavaScript-challenge solver binary. The
// exchange is one JSON object written to its stdin and one read back from
// its stdout; anything on stderr is solver diagnostics and only logged.
type JSDSolver struct {
	binaryPath string
}

type jsdRequest struct {
	Mode    string            `json:"mode"`
	URL     string            `json:"url"`
	R       string            `json:"r"`
	T       string            `json:"t"`
	Cookies map[string]string `json:"cookies"`
}

// JSDResult is the solver's verdict.
type JSDResult struct {
	Success     bool   `json:"success"`
	CfClearance string `json:"cf_clearance"`
	StatusCode  int    `json:"status_code"`
	Error       string `json:"error,omitempty"`
}

// NewJSDSolver locates the solver binary: an explicit configured path wins,
// then the TITAN_JSD_SOLVER environment variable, then a solver/ directory
// next to the executable. A solver that cannot be found is not an error -
// the escalation ladder simply skips this stage.
func NewJSDSolver(configured_path string) *JSDSolver {
	s := &JSDSolver{binaryPath: findJSDBinary(configured_path)}
	if s.binaryPath == "" {
		log.Debug("[jsd] solver binary not found, stage will be skipped")
	} else {
		log.Debug("[jsd] using solver binary: %s", s.binaryPath)
	}
	return s
}

func findJSDBinary(configured_path string) string {
	candidates := []string{}
	if configured_path != "" {
		candidates = append(candidates, configured_path)
	}
	if env := os.Getenv("TITAN_JSD_SOLVER"); env != "" {
		candidates = append(candidates, env)
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "solver", "jsd_solver"),
			filepath.Join(dir, "solver", "jsd_solver.exe"))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// IsAvailable reports whether the solver binary is present.
func (s *JSDSolver) IsAvailable() bool {
	return s.binaryPath != ""
}

// Solve runs one challenge exchange. With replay parameters r and t present
// the solver skips its initial fetch (manual mode), otherwise it fetches
// the page itself (auto mode).
func (s *JSDSolver) Solve(ctx context.Context, target_url string, r string, t string, cookies map[string]string) (*JSDResult, error) {
	if !s.IsAvailable() {
		return nil, ErrSolverMissing
	}

	mode := "auto"
	if r != "" && t != "" {
		mode = "manual"
	}
	if cookies == nil {
		cookies = map[string]string{}
	}
	payload, err := json.Marshal(jsdRequest{Mode: mode, URL: target_url, R: r, T: t, Cookies: cookies})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, jsdSolveTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binaryPath)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("[jsd] solving challenge for %s (mode: %s)", target_url, mode)
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			log.Debug("[jsd] solver stderr: %s", strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("jsd solver process failed: %w", err)
	}
	if stderr.Len() > 0 {
		log.Debug("[jsd] solver stderr: %s", strings.TrimSpace(stderr.String()))
	}

	var result JSDResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		return nil, fmt.Errorf("jsd solver returned malformed output: %w", err)
	}
	if result.Success {
		log.Success("[jsd] challenge solved (status: %d)", result.StatusCode)
	} else {
		log.Warning("[jsd] solver failed: %s", result.Error)
	}
	return &result, nil
}
