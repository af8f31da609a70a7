package podcast

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	"golang.org/x/net/html/charset"
)

const (
	googlePlayNamespace = "http://www.google.com/schemas/play-podcasts/1.0"
	mediaRSSNamespace   = "http://search.yahoo.com/mrss/"
)

// extractor pulls one candidate value out of a feed item.
type extractor func(item *gofeed.Item) string

// imageExtractors returns the item image sources in precedence order; the
// first non-empty result wins. The channel image is the last resort and is
// applied by the normalizer.
func imageExtractors(ns namespaces) []extractor {
	return []extractor{
		itunesImage,
		extensionAttr(ns.prefixes(googlePlayNamespace, "googleplay"), "image", "href"),
		extensionAttr(ns.prefixes(mediaRSSNamespace, "media"), "thumbnail", "url"),
		itemImageURL,
	}
}

// namespaces maps namespace URIs to the prefixes a document binds them to.
// gofeed keys extensions by prefix and only renames the namespaces it
// knows, so extension lookups go through the declared prefixes.
type namespaces map[string][]string

// scanNamespaces collects every xmlns:prefix declaration in raw. A document
// that cannot be tokenized yields whatever was read before the error.
func scanNamespaces(raw []byte) namespaces {
	ns := namespaces{}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.RawToken()
		if err != nil {
			return ns
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Space != "xmlns" {
				continue
			}
			uri := strings.TrimSpace(attr.Value)
			if !lo.Contains(ns[uri], attr.Name.Local) {
				ns[uri] = append(ns[uri], attr.Name.Local)
			}
		}
	}
}

// prefixes returns the extension keys to try for uri: the name gofeed uses
// for namespaces it recognizes, then every declared prefix.
func (ns namespaces) prefixes(uri, canonical string) []string {
	return lo.Uniq(append([]string{canonical}, ns[uri]...))
}

var imageURLPattern = regexp.MustCompile(`(?s)<url>\s*(.*?)\s*</url>`)

// firstNonEmpty runs extractors in order and returns the first non-blank
// value, or "".
func firstNonEmpty(item *gofeed.Item, extractors ...extractor) string {
	values := lo.Map(extractors, func(fn extractor, _ int) string {
		return strings.TrimSpace(fn(item))
	})
	v, _ := lo.Coalesce(values...)
	return v
}

func itunesImage(item *gofeed.Item) string {
	if item.ITunesExt == nil {
		return ""
	}
	return item.ITunesExt.Image
}

// itemImageURL reads a plain <image><url>..</url></image> inside the item.
// The RSS parser keeps unknown item elements as raw inner XML.
func itemImageURL(item *gofeed.Item) string {
	raw, ok := item.Custom["image"]
	if !ok {
		return ""
	}
	if m := imageURLPattern.FindStringSubmatch(raw); len(m) == 2 {
		return m[1]
	}
	return ""
}

// extensionAttr reads attr from the first name element found under any of
// prefixes.
func extensionAttr(prefixes []string, name, attr string) extractor {
	return func(item *gofeed.Item) string {
		for _, prefix := range prefixes {
			elems := item.Extensions[prefix][name]
			if len(elems) == 0 {
				continue
			}
			if v := strings.TrimSpace(elems[0].Attrs[attr]); v != "" {
				return v
			}
		}
		return ""
	}
}

func itunesDuration(item *gofeed.Item) string {
	if item.ITunesExt == nil {
		return ""
	}
	return item.ITunesExt.Duration
}

func itunesEpisode(item *gofeed.Item) string {
	if item.ITunesExt == nil {
		return ""
	}
	return strings.TrimSpace(item.ITunesExt.Episode)
}

func itunesExplicit(item *gofeed.Item) bool {
	if item.ITunesExt == nil {
		return false
	}
	v := item.ITunesExt.Explicit
	return v == "yes" || v == "true"
}

func enclosureURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}
