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

	"acrscan/internal/config"
	"acrscan/internal/deps"
)

// CheckACRCloud verifies that the identify host answers HTTP requests. Any
// response counts as reachable; credentials are only exercised by a scan.
func CheckACRCloud(ctx context.Context, baseURL string) Result {
	const name = "ACRCloud"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing host"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s answered %d", base, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", base)}
}

// CheckCredentials reports whether both ACRCloud credentials are configured.
func CheckCredentials(cfg *config.Config) Result {
	const name = "ACRCloud credentials"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if err := cfg.RequireCredentials(); err != nil {
		return Result{Name: name, Detail: "access key or secret missing"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
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

// CheckMediaTools reports ffmpeg and ffprobe availability as results.
func CheckMediaTools(cfg *config.Config) []Result {
	statuses := CheckSystemDeps(cfg)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		if status.Available {
			results = append(results, Result{Name: status.Name, Passed: true, Detail: status.Command})
			continue
		}
		results = append(results, Result{Name: status.Name, Detail: status.Detail})
	}
	return results
}

// CheckSystemDeps evaluates the external binaries a scan shells out to.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.MediaRequirements(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "reachability check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "reachability check timed out (host unreachable)"
	}
	return err.Error()
}
