package trendwire

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/zombar/trendwire/models"
)

var imgSrcPattern = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)

// FeedParser normalizes RSS and Atom documents into a single item
// shape. Parsing is a pure transformation of the input bytes, so
// re-parsing the same document always yields the same items.
type FeedParser struct {
	config Config
	inner  *gofeed.Parser
}

func NewFeedParser(config Config) *FeedParser {
	return &FeedParser{
		config: config,
		inner:  gofeed.NewParser(),
	}
}

// Parse decodes a feed document and normalizes every entry. Malformed
// documents return a ParseError; entries missing both a link and a
// title are skipped with a processed-item counter bump.
func (p *FeedParser) Parse(r io.Reader, source models.Source) ([]models.NormalizedItem, error) {
	feed, err := p.inner.Parse(r)
	if err != nil {
		return nil, &ParseError{URL: source.URL, Err: err}
	}

	items := make([]models.NormalizedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" && entry.Title == "" {
			itemsProcessedTotal.WithLabelValues("skipped").Inc()
			continue
		}
		items = append(items, p.normalize(entry, source))
	}
	return items, nil
}

func (p *FeedParser) normalize(entry *gofeed.Item, source models.Source) models.NormalizedItem {
	body := entry.Content
	if body == "" {
		body = entry.Description
	}

	item := models.NormalizedItem{
		ID:          itemID(entry),
		Title:       collapseWhitespace(SanitizeHTML(entry.Title)),
		Link:        entry.Link,
		PublishedAt: publishedAt(entry),
		Content:     collapseWhitespace(SanitizeHTML(body)),
		Summary:     summarize(body),
		Categories:  entry.Categories,
		MediaURL:    p.mediaURL(entry, body, source),
		SourceName:  source.Name,
	}
	if entry.Author != nil {
		item.Creator = entry.Author.Name
	}
	return item
}

// publishedAt prefers the structured timestamps gofeed already parsed,
// then falls back to best-effort parsing of the raw date string.
// Undated entries get the zero time and sort last.
func publishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	raw := entry.Published
	if raw == "" {
		raw = entry.Updated
	}
	if raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// mediaURL walks the image priority chain: media:content, then
// media:thumbnail, then image enclosures, then the feed-level image,
// then the first <img> in the body, then the source default.
func (p *FeedParser) mediaURL(entry *gofeed.Item, body string, source models.Source) string {
	if url := mediaExtensionURL(entry, "content"); url != "" {
		return url
	}
	if url := mediaExtensionURL(entry, "thumbnail"); url != "" {
		return url
	}
	for _, enc := range entry.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	if m := imgSrcPattern.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if source.DefaultImage != "" {
		return source.DefaultImage
	}
	return p.config.DefaultImage
}

func mediaExtensionURL(entry *gofeed.Item, name string) string {
	exts, ok := entry.Extensions["media"]
	if !ok {
		return ""
	}
	for _, ext := range exts[name] {
		if url := ext.Attrs["url"]; url != "" {
			return url
		}
	}
	return ""
}

// itemID is the stable identity used for deduplication across runs:
// md5 of the link, or of the title when the entry has no link.
func itemID(entry *gofeed.Item) string {
	basis := entry.Link
	if basis == "" {
		basis = entry.Title
	}
	sum := md5.Sum([]byte(basis))
	return hex.EncodeToString(sum[:])
}

// summarize produces the short plain-text teaser shown on index pages.
func summarize(body string) string {
	text := collapseWhitespace(SanitizeHTML(body))
	const maxLen = 300
	if len(text) <= maxLen {
		return text
	}
	cut := strings.LastIndex(text[:maxLen], " ")
	if cut <= 0 {
		cut = maxLen
	}
	return text[:cut] + "…"
}

// SanitizeHTML strips markup from feed-supplied text, dropping script
// and style subtrees entirely. Tokenizer failures fall back to a crude
// tag strip so a broken fragment never drops an item.
func SanitizeHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return stripTags(s)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, " ")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
