package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"siksha/internal/config"
	"siksha/internal/deps"
	"siksha/internal/services"
	"siksha/internal/services/llm"
)

// CheckLLM verifies that the chat completion endpoint answers. It uses a
// 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg *config.Config) Result {
	if strings.TrimSpace(cfg.LLM.BaseURL) == "" {
		return Result{Name: name, Detail: "base URL missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Referer: cfg.LLM.Referer,
		Title:   cfg.LLM.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", cfg.LLM.Model)}
}

// CheckEndpoint verifies that an HTTP generator answers with a non-5xx status.
func CheckEndpoint(ctx context.Context, name, url string) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v); later providers will be used", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("unhealthy (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeMiB reports the space available to unprivileged users on the
// filesystem holding path.
func FreeMiB(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize) / (1 << 20), nil
}

// CheckFreeSpace passes when at least minMiB is available under path.
func CheckFreeSpace(name, path string, minMiB uint64) Result {
	free, err := FreeMiB(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	detail := fmt.Sprintf("%d MiB free (minimum %d MiB)", free, minMiB)
	return Result{Name: name, Passed: free >= minMiB, Detail: detail}
}

// EnsureFreeSpace fails with ErrResourceExhausted when less than minMiB is
// available under path. A zero minimum disables the check.
func EnsureFreeSpace(path string, minMiB uint64) error {
	if minMiB == 0 {
		return nil
	}
	free, err := FreeMiB(path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "preflight", "free space", path, err)
	}
	if free < minMiB {
		return services.Wrap(services.ErrResourceExhausted, "preflight", "free space",
			fmt.Sprintf("%d MiB free under %s, need %d MiB", free, path, minMiB), nil)
	}
	return nil
}

// CheckSystemDeps evaluates the external programs the configured pipeline
// runs. Both the daemon and the CLI status command use it.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.Check(ctx, deps.Requirements(cfg))
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
