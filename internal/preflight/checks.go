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

	"github.com/go-resty/resty/v2"
	"golang.org/x/sys/unix"

	"chatbridge/internal/config"
	"chatbridge/internal/logging"
	"chatbridge/internal/transport"
)

// CheckBackend verifies that the processing backend answers HTTP and accepts
// the configured token. Any status other than 401/403 counts as reachable.
func CheckBackend(ctx context.Context, baseURL, token string) Result {
	const name = "Processing backend"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req := resty.New().SetTimeout(5 * time.Second).R().SetContext(checkCtx)
	if token != "" {
		req.SetAuthToken(token)
	}
	resp, err := req.Get(base + "/")
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid token)"}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d)", resp.StatusCode())}
	}
}

// CheckTransport verifies the chat platform accepts the app credentials.
func CheckTransport(ctx context.Context, cfg config.Transport) Result {
	const name = "Chat platform"

	client, err := transport.NewHTTPClient(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.CheckCredentials(checkCtx); err != nil {
		var platformErr *transport.Error
		if errors.As(err, &platformErr) && platformErr.Code != 0 {
			return Result{Name: name, Detail: fmt.Sprintf("credentials rejected (%d: %s)", platformErr.Code, platformErr.Msg)}
		}
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "credentials accepted"}
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

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
