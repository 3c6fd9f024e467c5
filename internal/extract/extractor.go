// Package extract turns raw markup plus a base URL into an immutable
// page snapshot. Extraction never fails: malformed or partial markup
// degrades individual fields to empty values instead of aborting the
// request, and identical input always yields an identical snapshot.
package extract

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mangoseo/onpage-audit/internal/seo"
	"github.com/mangoseo/onpage-audit/internal/urlid"
)

const maxTitleLength = 255

// Extractor builds page snapshots from HTML.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Snapshot extracts every SEO-relevant structure from the markup. The
// returned snapshot is complete even for empty or broken input.
func (e *Extractor) Snapshot(html, baseURL string) *seo.PageSnapshot {
	snap := &seo.PageSnapshot{
		ID:         urlid.For(baseURL),
		URL:        baseURL,
		MetaTags:   map[string]string{},
		SocialMeta: map[string]string{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		snap.ContentMetrics = contentMetrics("", 0)
		return snap
	}

	snap.MetaTags = metaTags(doc)
	snap.Title = title(doc)
	snap.Headings = headings(doc)
	snap.Images = images(doc, baseURL)
	snap.Links = links(doc, baseURL)
	snap.SchemaBlocks = schemaBlocks(doc)
	snap.CanonicalURL = canonicalURL(doc, baseURL)
	snap.Language = language(doc)
	snap.Charset = charset(snap.MetaTags)
	snap.Viewport = snap.MetaTags["viewport"]
	snap.Hreflangs = hreflangs(doc, baseURL)
	snap.SocialMeta = socialMeta(doc)
	snap.MediaCounts = mediaCounts(doc)
	snap.InlineAssets = inlineAssets(doc)
	snap.SocialButtons = socialButtons(doc)
	snap.Keywords = metaKeywords(doc)
	snap.NoIndex = strings.Contains(strings.ToLower(snap.MetaTags["robots"]), "noindex")

	snap.ContentText = contentText(html)
	snap.ContentMetrics = contentMetrics(snap.ContentText, snap.MediaCounts.Images)

	return snap
}

func title(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && og != "" {
		return og
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		// Truncate on rune boundaries so a multi-byte character is
		// never split at the limit.
		if runes := []rune(h1); len(runes) > maxTitleLength {
			return string(runes[:maxTitleLength])
		}
		return h1
	}
	return ""
}

func metaTags(doc *goquery.Document) map[string]string {
	tags := map[string]string{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := s.AttrOr("content", "")
		switch {
		case s.AttrOr("name", "") != "":
			tags[strings.ToLower(s.AttrOr("name", ""))] = content
		case s.AttrOr("property", "") != "":
			tags[s.AttrOr("property", "")] = content
		case s.AttrOr("http-equiv", "") != "":
			tags[strings.ToLower(s.AttrOr("http-equiv", ""))] = content
		case s.AttrOr("charset", "") != "":
			tags["charset"] = s.AttrOr("charset", "")
		}
	})
	return tags
}

func headings(doc *goquery.Document) seo.Headings {
	collect := func(level string) []string {
		var out []string
		doc.Find(level).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				out = append(out, text)
			}
		})
		return out
	}
	return seo.Headings{
		H1: collect("h1"),
		H2: collect("h2"),
		H3: collect("h3"),
		H4: collect("h4"),
		H5: collect("h5"),
		H6: collect("h6"),
	}
}

func images(doc *goquery.Document, baseURL string) []seo.Image {
	var out []seo.Image
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, hasAlt := s.Attr("alt")
		out = append(out, seo.Image{
			Src:     resolveURL(s.AttrOr("src", ""), baseURL),
			Alt:     alt,
			HasAlt:  hasAlt,
			Title:   s.AttrOr("title", ""),
			Width:   s.AttrOr("width", ""),
			Height:  s.AttrOr("height", ""),
			Loading: s.AttrOr("loading", ""),
		})
	})
	return out
}

func links(doc *goquery.Document, baseURL string) []seo.Link {
	var out []seo.Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		resolved := resolveURL(s.AttrOr("href", ""), baseURL)
		rel := strings.Fields(s.AttrOr("rel", ""))
		nofollow := false
		for _, r := range rel {
			if strings.EqualFold(r, "nofollow") {
				nofollow = true
			}
		}
		out = append(out, seo.Link{
			URL:        resolved,
			AnchorText: strings.TrimSpace(s.Text()),
			Title:      s.AttrOr("title", ""),
			Rel:        rel,
			NoFollow:   nofollow,
			Internal:   isInternal(resolved, baseURL),
		})
	})
	return out
}

func schemaBlocks(doc *goquery.Document) []seo.SchemaBlock {
	var out []seo.SchemaBlock
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		blockType, _ := data["@type"].(string)
		out = append(out, seo.SchemaBlock{
			Format: "json-ld",
			Type:   blockType,
			Data:   data,
		})
	})
	doc.Find("[itemtype]").Each(func(_ int, s *goquery.Selection) {
		out = append(out, seo.SchemaBlock{
			Format:   "microdata",
			ItemType: s.AttrOr("itemtype", ""),
		})
	})
	return out
}

func canonicalURL(doc *goquery.Document, baseURL string) string {
	href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	return resolveURL(href, baseURL)
}

func language(doc *goquery.Document) string {
	return doc.Find("html").First().AttrOr("lang", "")
}

func charset(metaTags map[string]string) string {
	if cs := metaTags["charset"]; cs != "" {
		return cs
	}
	if ct := metaTags["content-type"]; ct != "" {
		if idx := strings.Index(strings.ToLower(ct), "charset="); idx >= 0 {
			return strings.TrimSpace(ct[idx+len("charset="):])
		}
	}
	return ""
}

func hreflangs(doc *goquery.Document, baseURL string) []seo.Hreflang {
	var out []seo.Hreflang
	doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if href == "" {
			out = append(out, seo.Hreflang{Lang: s.AttrOr("hreflang", "")})
			return
		}
		out = append(out, seo.Hreflang{
			Lang: s.AttrOr("hreflang", ""),
			URL:  resolveURL(href, baseURL),
		})
	})
	return out
}

func socialMeta(doc *goquery.Document) map[string]string {
	social := map[string]string{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		prop := s.AttrOr("property", "")
		name := s.AttrOr("name", "")
		if strings.HasPrefix(prop, "og:") {
			social[prop] = s.AttrOr("content", "")
		} else if strings.HasPrefix(name, "twitter:") {
			social[name] = s.AttrOr("content", "")
		}
	})
	return social
}

func mediaCounts(doc *goquery.Document) seo.MediaCounts {
	return seo.MediaCounts{
		Images:  doc.Find("img").Length(),
		Videos:  doc.Find("video").Length(),
		Tables:  doc.Find("table").Length(),
		IFrames: doc.Find("iframe").Length(),
		Buttons: doc.Find("button").Length(),
	}
}

func inlineAssets(doc *goquery.Document) seo.InlineAssets {
	inline := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if s.AttrOr("src", "") == "" {
			inline++
		}
	})
	return seo.InlineAssets{
		Scripts: inline,
		Styles:  doc.Find("style").Length(),
	}
}

var socialButtonSelectors = []string{
	".share-button",
	".social-share",
	"iframe[src*='share']",
	"a[href*='facebook.com/share']",
	"a[href*='twitter.com/intent']",
	"a[href*='linkedin.com/shareArticle']",
}

func socialButtons(doc *goquery.Document) int {
	count := 0
	for _, sel := range socialButtonSelectors {
		count += doc.Find(sel).Length()
	}
	return count
}

// metaKeywords reads the meta keywords tag, preserving first-seen order
// so repeated extraction is deterministic.
func metaKeywords(doc *goquery.Document) []string {
	content, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content")
	if !ok || content == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, kw := range strings.Split(content, ",") {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// contentText strips script, style, nav, header and footer elements and
// flattens the remainder to whitespace-normalized plain text.
func contentText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, footer, header").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func resolveURL(href, baseURL string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "#") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func isInternal(link, baseURL string) bool {
	if link == "" || baseURL == "" {
		return false
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return parsed.Host == "" || parsed.Host == base.Host
}
