package transport

import "net/http"

// DefaultUserAgent mimics a desktop browser; the upstream site serves a
// reduced page to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// DefaultHeaders returns browser-like request headers carrying the session
// cookie. Accept-Encoding is left to the HTTP client so bodies arrive
// decompressed.
func DefaultHeaders(cookie string) http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en")
	h.Set("Cache-Control", "max-age=0")
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"macOS"`)
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Upgrade-Insecure-Requests", "1")
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	return h
}
