package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"bagua-net/internal/logger"
)

// NewLokiHook pushes entries to a Loki push endpoint
// (/loki/api/v1/push) under the stream label app=bagua-net. It returns nil
// for an empty url.
func NewLokiHook(ctx context.Context, url string) logger.Hook {
	if url == "" {
		return nil
	}
	return newShipper(ctx, func(entry map[string]any) (*http.Request, error) {
		level, _ := entry["level"].(string)
		payload := map[string]any{
			"streams": []any{
				map[string]any{
					"stream": map[string]string{"app": "bagua-net", "level": level},
					"values": [][]string{
						{strconv.FormatInt(time.Now().UnixNano(), 10), toJSON(entry)},
					},
				},
			},
		}
		body, err := json.Marshal(payload)
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

func toJSON(entry map[string]any) string {
	b, err := json.Marshal(entry)
	if err != nil {
		return "{}"
	}
	return string(b)
}
