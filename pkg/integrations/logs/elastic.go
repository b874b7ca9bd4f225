package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"bagua-net/internal/logger"
)

// NewElasticHook indexes each entry as a document by POSTing it to url,
// typically <es>/<index>/_doc. It returns nil for an empty url.
func NewElasticHook(ctx context.Context, url string) logger.Hook {
	if url == "" {
		return nil
	}
	return newShipper(ctx, func(entry map[string]any) (*http.Request, error) {
		body, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}).hook()
}
