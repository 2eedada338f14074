// Package assets pulls embedded media out of a content fragment before it is
// converted to markdown. Every extracted media element is replaced by an
// inert placeholder token that survives markdown conversion verbatim, so the
// fetched asset can be linked in afterwards.
package assets

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Ref pairs a placeholder token with the media URL it stands for.
type Ref struct {
	Placeholder string
	SourceURL   string
}

// NonceSource yields per-document random strings of [0-9a-f].
type NonceSource interface {
	Nonce() (string, error)
}

// Extractor replaces responsive media figures with placeholders.
type Extractor struct {
	nonces NonceSource
}

// NewExtractor returns an Extractor drawing placeholder nonces from nonces.
func NewExtractor(nonces NonceSource) *Extractor {
	return &Extractor{nonces: nonces}
}

// Extract rewrites region in place. Each figure with a usable srcset is
// replaced by a paragraph holding a unique placeholder (plus its caption, if
// any). Figures without a srcset are left alone. Refs come back in document
// order.
func (e *Extractor) Extract(region *goquery.Selection) ([]Ref, error) {
	nonce, err := e.nonces.Nonce()
	if err != nil {
		return nil, fmt.Errorf("placeholder nonce: %w", err)
	}

	var refs []Ref
	region.Find("figure").Each(func(_ int, fig *goquery.Selection) {
		// Nested figures are handled by their outermost ancestor.
		if fig.ParentsFiltered("figure").Length() > 0 {
			return
		}
		src, ok := highestResolution(fig)
		if !ok {
			return
		}
		token := Placeholder(nonce, len(refs))
		replacement := "<p>" + token + "</p>"
		if caption := strings.TrimSpace(fig.Find("figcaption").First().Text()); caption != "" {
			replacement += "<p><em>" + html.EscapeString(caption) + "</em></p>"
		}
		fig.ReplaceWithHtml(replacement)
		refs = append(refs, Ref{Placeholder: token, SourceURL: src})
	})
	return refs, nil
}

// Placeholder builds the token for the n-th asset of a document. Tokens are
// alphanumeric, so markdown escaping leaves them untouched, and the trailing
// "x" keeps token n from being a prefix of token 10n.
func Placeholder(nonce string, n int) string {
	return fmt.Sprintf("asset%sn%dx", nonce, n)
}

func highestResolution(fig *goquery.Selection) (string, bool) {
	for _, selector := range []string{"picture source[srcset]", "img[srcset]"} {
		var found string
		fig.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			srcset, _ := s.Attr("srcset")
			if u, ok := LastSrcsetURL(srcset); ok {
				found = u
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// LastSrcsetURL returns the URL of the last candidate in a srcset attribute.
// Candidates are listed in ascending resolution by the upstream markup, so the
// last one is the highest fidelity.
func LastSrcsetURL(srcset string) (string, bool) {
	candidates := strings.Split(srcset, ",")
	for i := len(candidates) - 1; i >= 0; i-- {
		fields := strings.Fields(candidates[i])
		if len(fields) > 0 {
			return fields[0], true
		}
	}
	return "", false
}
