package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// openSource reads a local path or an http(s) URL. Agents that consume
// exported datasets accept either so backfills can run straight off a file.
func openSource(ctx context.Context, client *http.Client, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error while doing request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
		}
		return resp.Body, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", source, err)
	}
	return f, nil
}
