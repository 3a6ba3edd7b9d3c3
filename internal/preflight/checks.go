package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
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

// CheckDatabase pings the SQLite store.
func CheckDatabase(ctx context.Context, st Store) Result {
	const name = "Database"
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", st.Path(), err)}
	}
	return Result{Name: name, Passed: true, Detail: st.Path()}
}

// CheckWatchedFolders reports one result per active watched folder. Watched
// folders only need read access; files are moved out, not written in.
func CheckWatchedFolders(ctx context.Context, st Store) []Result {
	folders, err := st.ListWatchedFolders(ctx, true)
	if err != nil {
		return []Result{{Name: "Watched folders", Detail: fmt.Sprintf("error: %v", err)}}
	}
	if len(folders) == 0 {
		return []Result{{Name: "Watched folders", Passed: true, Detail: "none active"}}
	}
	results := make([]Result, 0, len(folders))
	for _, folder := range folders {
		name := fmt.Sprintf("Watch %d", folder.ID)
		info, err := os.Stat(folder.Path)
		switch {
		case err != nil:
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", folder.Path, err)})
		case !info.IsDir():
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", folder.Path)})
		case unix.Access(folder.Path, unix.R_OK|unix.X_OK) != nil:
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable)", folder.Path)})
		default:
			results = append(results, Result{Name: name, Passed: true, Detail: folder.Path})
		}
	}
	return results
}

// CheckNtfy verifies that the ntfy server behind topic answers HTTP. Any
// response below 500 counts as reachable; authentication is not checked.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "ntfy"
	parsed, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic URL %q", topic)}
	}
	base := parsed.Scheme + "://" + parsed.Host

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s answered %d", base, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: base + " reachable"}
}
