package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"boldrank/internal/config"
	"boldrank/internal/images"
	"boldrank/internal/store"
)

// probeProcessID is looked up by CheckImageAPI; an empty answer still proves
// the endpoint is serving.
const probeProcessID = "BOLDRANK-PROBE"

// CheckImageAPI issues one lookup against the configured endpoint with a
// short timeout and a single attempt (no retries).
func CheckImageAPI(ctx context.Context, cfg config.Images) Result {
	const name = "Image API"

	timeout := cfg.RequestTimeout()
	if timeout <= 0 || timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := images.NewClient(images.ClientConfig{
		LookupURL:  cfg.LookupURL,
		UserAgent:  cfg.UserAgent,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if _, err := client.Lookup(checkCtx, []string{probeProcessID}); err != nil {
		return Result{Name: name, Detail: summarizeLookupError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDatabase opens an existing database and counts its records. A missing
// file passes; load creates it.
func CheckDatabase(ctx context.Context, path string) Result {
	const name = "Database"

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	st, err := store.Open(path)
	if err != nil {
		if errors.Is(err, store.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema out of date, reload with --overwrite)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer st.Close()

	count, err := st.RecordCount(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d records)", path, count)}
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

func summarizeLookupError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "lookup timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "lookup timed out (endpoint unreachable)"
	}
	var statusErr *images.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("lookup rejected (%d)", statusErr.Code)
	}
	return err.Error()
}
