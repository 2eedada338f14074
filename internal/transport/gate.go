package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JakeFAU/tagfeed-harvester/internal/crawler"
)

// Check classifies a raw response. It returns nil for a usable response and a
// *crawler.TransportError otherwise: KindStatus for anything outside 2xx and
// KindEnvelope for a JSON body whose top-level object, or the first element
// of a top-level array, carries a non-empty "errors" member.
func Check(resp crawler.FetchResponse) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &crawler.TransportError{
			Kind:       crawler.KindStatus,
			URL:        resp.URL,
			StatusCode: resp.StatusCode,
		}
	}
	if msg, ok := envelopeErrors(resp.Body); ok {
		return &crawler.TransportError{
			Kind:       crawler.KindEnvelope,
			URL:        resp.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("errors: %s", msg),
		}
	}
	return nil
}

func envelopeErrors(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", false
	}
	var obj map[string]json.RawMessage
	switch trimmed[0] {
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil || len(batch) == 0 {
			return "", false
		}
		if err := json.Unmarshal(batch[0], &obj); err != nil {
			return "", false
		}
	case '{':
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return "", false
		}
	default:
		return "", false
	}
	raw, ok := obj["errors"]
	if !ok {
		return "", false
	}
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "[]", "{}", "false", `""`:
		return "", false
	}
	return truncate(string(raw), 512), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
