package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResolveMiddlePath probes baseURL + candidate + home page for each candidate
// in order and returns the first one answering with a 2xx status. Transport
// errors count as a failed probe.
func ResolveMiddlePath(ctx context.Context, client Doer, baseURL string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no middle path candidates", ErrConfiguration)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	var failures []string
	for _, candidate := range candidates {
		status, err := probe(ctx, client, baseURL, baseURL+candidate+PageHome.Path())
		if err != nil {
			// A canceled context is not a configuration problem.
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			failures = append(failures, fmt.Sprintf("%s (%v)", candidate, err))
			continue
		}
		if status >= 200 && status < 300 {
			return candidate, nil
		}
		failures = append(failures, fmt.Sprintf("%s (status %d)", candidate, status))
	}
	return "", fmt.Errorf("%w: no candidate middle path answered at %s: %s",
		ErrConfiguration, baseURL, strings.Join(failures, ", "))
}

func probe(ctx context.Context, client Doer, referer, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Referer", referer)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused for the next request.
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
