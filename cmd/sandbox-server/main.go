// Command sandbox-server runs an HTTP server, typically inside
// agent-sandbox pods, that executes Python snippets in isolated
// per-request worker processes.
//
// Configuration:
//
//	SANDBOX_PORT            - Listen port (default: 8000)
//	SANDBOX_PYTHON_BIN      - Python interpreter (default: python3)
//	SANDBOX_MAX_CONCURRENT  - Max concurrent executions (default: 3)
//	SANDBOX_MAX_TIMEOUT     - Per-request timeout cap in seconds (default: 60)
//	SANDBOX_ALLOWED_MODULES - Comma-separated allow-list override
//	SANDBOX_BLOCKED_MODULES - Comma-separated block-list override
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/tools/builtins/pyexec"
)

func main() {
	port := envOr("SANDBOX_PORT", "8000")
	pythonBin := envOr("SANDBOX_PYTHON_BIN", "python3")
	maxConcurrent := envOrInt("SANDBOX_MAX_CONCURRENT", 3)
	maxTimeout := envOrInt("SANDBOX_MAX_TIMEOUT", 60)
	allowed := envList("SANDBOX_ALLOWED_MODULES")
	blocked := envList("SANDBOX_BLOCKED_MODULES")

	if _, err := exec.LookPath(pythonBin); err != nil {
		slog.Error("python interpreter not found in PATH", "bin", pythonBin)
		os.Exit(1)
	}

	srv := &sandboxServer{
		runner:        pyexec.NewLocalRunner(pythonBin, allowed, blocked),
		pythonVersion: pythonVersion(pythonBin),
		maxConcurrent: int32(maxConcurrent),
		maxTimeout:    maxTimeout,
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", srv.handleExecute)
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	httpSrv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Long timeout for code execution.
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("sandbox server starting",
			"port", port,
			"python", srv.pythonVersion,
			"max_concurrent", maxConcurrent,
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
}

type sandboxServer struct {
	runner        *pyexec.LocalRunner
	pythonVersion string
	maxConcurrent int32
	maxTimeout    int
	currentLoad   atomic.Int32
	startTime     time.Time
}

type executeRequest struct {
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (s *sandboxServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	current := s.currentLoad.Add(1)
	defer s.currentLoad.Add(-1)

	if current > s.maxConcurrent {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": fmt.Sprintf("at capacity (%d/%d concurrent executions)", current, s.maxConcurrent),
		})
		return
	}

	var req executeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10*1024*1024)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	if timeout > s.maxTimeout {
		timeout = s.maxTimeout
	}

	codePreview := req.Code
	if len(codePreview) > 120 {
		codePreview = codePreview[:120] + "..."
	}
	slog.Info("execute request", "code", codePreview, "timeout", timeout)

	result, err := s.runner.Run(r.Context(), req.Code, time.Duration(timeout)*time.Second)
	if err != nil {
		slog.Error("worker failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	slog.Info("execute complete",
		"duration_s", result.ExecutionTime,
		"stdout_len", len(result.Stdout),
		"error", result.Error,
	)
	writeJSON(w, http.StatusOK, result)
}

type healthResponse struct {
	Status        string `json:"status"`
	PythonVersion string `json:"python_version"`
	Capacity      int    `json:"capacity"`
	CurrentLoad   int    `json:"current_load"`
	UptimeSecs    int64  `json:"uptime_seconds"`
}

func (s *sandboxServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "healthy",
		PythonVersion: s.pythonVersion,
		Capacity:      int(s.maxConcurrent),
		CurrentLoad:   int(s.currentLoad.Load()),
		UptimeSecs:    int64(time.Since(s.startTime).Seconds()),
	})
}

// pythonVersion returns the interpreter's version line.
func pythonVersion(bin string) string {
	output, err := exec.Command(bin, "--version").Output()
	if err != nil {
		return "unknown"
	}
	version := strings.TrimSpace(string(output))
	if idx := strings.Index(version, "\n"); idx > 0 {
		version = version[:idx]
	}
	return version
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return defaultVal
	}
	return n
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
