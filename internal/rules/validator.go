// Package rules implements the deterministic presence and bounds checks
// that run over every page snapshot. Each check is pure and independent;
// the full set runs in declaration order so the issue list is stable
// across identical inputs.
package rules

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mangoseo/onpage-audit/internal/seo"
)

// Length bounds for the two head tags, in characters.
const (
	titleMin = 50
	titleMax = 60
	descMin  = 150
	descMax  = 160
)

// Content length bounds, in words.
const (
	minWords = 300
	maxWords = 2500
)

const (
	minInternalLinks = 5
	maxHeadingLength = 70
	slowResponseMS   = 3000
	moderateRespMS   = 1000
)

var hreflangPattern = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

var requiredOpenGraph = []string{"og:title", "og:description", "og:image", "og:url"}
var requiredTwitter = []string{"twitter:card", "twitter:title", "twitter:description"}

// Validator runs the fixed rule set against a snapshot.
type Validator struct{}

// New constructs a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate runs every check and returns the union of raised issues in
// declaration order.
func (v *Validator) Validate(snap *seo.PageSnapshot) []seo.Issue {
	var issues []seo.Issue

	issues = append(issues, checkURL(snap.URL)...)
	issues = append(issues, checkTagLength(snap.Title, "title", titleMin, titleMax)...)
	issues = append(issues, checkTagLength(snap.MetaTags["description"], "meta_description", descMin, descMax)...)
	issues = append(issues, checkHeadingStructure(snap.Headings)...)
	issues = append(issues, checkHeadingLengths(snap.Headings)...)
	issues = append(issues, checkImageAltText(snap.Images)...)
	issues = append(issues, checkInternalLinks(snap.Links)...)
	issues = append(issues, checkSchemaPresence(snap.SchemaBlocks)...)
	issues = append(issues, checkContentLength(snap.ContentMetrics.WordCount)...)
	issues = append(issues, checkCanonical(snap.CanonicalURL, snap.URL)...)
	issues = append(issues, checkLanguage(snap.Language, snap.MetaTags["content-language"])...)
	issues = append(issues, checkViewport(snap.Viewport)...)
	issues = append(issues, checkHreflangs(snap.Hreflangs)...)
	issues = append(issues, checkSocialMeta(snap.SocialMeta)...)
	issues = append(issues, checkResponseTime(snap.FetchDuration)...)
	issues = append(issues, checkIndexability(snap.NoIndex)...)

	return issues
}

func checkURL(raw string) []seo.Issue {
	if raw == "" {
		return []seo.Issue{{
			Type:           "url_missing",
			Severity:       seo.SeverityCritical,
			Message:        "No URL provided",
			Element:        "url",
			Recommendation: "Provide a valid absolute URL",
			Weight:         10,
			Fixable:        true,
		}}
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return []seo.Issue{{
			Type:           "url_invalid_format",
			Severity:       seo.SeverityCritical,
			Message:        fmt.Sprintf("URL is not a valid http(s) address: %s", raw),
			Element:        "url",
			Recommendation: "Use an absolute http or https URL",
			Weight:         8,
			Fixable:        true,
		}}
	}
	if parsed.Host == "" {
		return []seo.Issue{{
			Type:           "url_missing_domain",
			Severity:       seo.SeverityCritical,
			Message:        fmt.Sprintf("URL has no domain: %s", raw),
			Element:        "url",
			Recommendation: "Include the domain in the URL",
			Weight:         8,
			Fixable:        true,
		}}
	}
	return nil
}

// checkTagLength covers title and meta description. Missing titles are
// critical; everything else is a warning.
func checkTagLength(content, tag string, minLen, maxLen int) []seo.Issue {
	element := "<title>"
	missingWeight, shortWeight, longWeight := 10.0, 3.0, 2.0
	severity := seo.SeverityCritical
	if tag != "title" {
		element = `<meta name="description">`
		missingWeight, shortWeight, longWeight = 8.0, 2.0, 1.5
		severity = seo.SeverityWarning
	}

	if content == "" {
		return []seo.Issue{{
			Type:           tag + "_missing",
			Severity:       severity,
			Message:        fmt.Sprintf("Missing %s", tag),
			Element:        element,
			Recommendation: fmt.Sprintf("Add a %s", tag),
			Weight:         missingWeight,
			Fixable:        true,
			AutoFixable:    true,
		}}
	}

	length := len(content)
	switch {
	case length < minLen:
		return []seo.Issue{{
			Type:           tag + "_too_short",
			Severity:       seo.SeverityWarning,
			Message:        fmt.Sprintf("%s too short (%d chars, minimum %d)", tag, length, minLen),
			Element:        element,
			Recommendation: fmt.Sprintf("Expand %s to at least %d characters", tag, minLen),
			Weight:         shortWeight,
			Fixable:        true,
			AutoFixable:    true,
		}}
	case length > maxLen:
		return []seo.Issue{{
			Type:           tag + "_too_long",
			Severity:       seo.SeverityWarning,
			Message:        fmt.Sprintf("%s too long (%d chars, maximum %d)", tag, length, maxLen),
			Element:        element,
			Recommendation: fmt.Sprintf("Shorten %s to maximum %d characters", tag, maxLen),
			Weight:         longWeight,
			Fixable:        true,
			AutoFixable:    true,
		}}
	}
	return nil
}

func checkHeadingStructure(h seo.Headings) []seo.Issue {
	switch n := len(h.H1); {
	case n == 0:
		return []seo.Issue{{
			Type:           "missing_h1",
			Severity:       seo.SeverityCritical,
			Message:        "No H1 heading found",
			Element:        "<h1>",
			Recommendation: "Add a single H1 heading describing the page content",
			Weight:         8,
			Fixable:        true,
		}}
	case n > 1:
		return []seo.Issue{{
			Type:           "multiple_h1",
			Severity:       seo.SeverityWarning,
			Message:        fmt.Sprintf("Multiple H1 headings found (%d)", n),
			Element:        "<h1>",
			Recommendation: "Use only one H1 heading per page",
			Weight:         6,
			Fixable:        true,
		}}
	}
	return nil
}

func checkHeadingLengths(h seo.Headings) []seo.Issue {
	var issues []seo.Issue
	for level, texts := range map[string][]string{"h1": h.H1, "h2": h.H2, "h3": h.H3} {
		for _, text := range texts {
			if len(text) <= maxHeadingLength {
				continue
			}
			preview := text
			if len(preview) > 50 {
				preview = preview[:50] + "..."
			}
			issues = append(issues, seo.Issue{
				Type:           level + "_too_long",
				Severity:       seo.SeverityWarning,
				Message:        fmt.Sprintf("%s heading too long (%d chars): %s", strings.ToUpper(level), len(text), preview),
				Element:        "<" + level + ">",
				Recommendation: fmt.Sprintf("Keep %s headings under %d characters", strings.ToUpper(level), maxHeadingLength),
				Weight:         2,
				Fixable:        true,
			})
		}
	}
	// Map iteration order is random; keep the list stable.
	sortIssues(issues)
	return issues
}

func checkImageAltText(images []seo.Image) []seo.Issue {
	var issues []seo.Issue
	for _, img := range images {
		preview := img.Src
		if len(preview) > 50 {
			preview = preview[:50] + "..."
		}
		switch {
		case !img.HasAlt && img.Src != "":
			issues = append(issues, seo.Issue{
				Type:           "missing_alt_text",
				Severity:       seo.SeverityWarning,
				Message:        fmt.Sprintf("Image missing alt text: %s", preview),
				Element:        "<img>",
				Recommendation: "Add descriptive alt text for accessibility and SEO",
				Weight:         4,
				Fixable:        true,
				AutoFixable:    true,
			})
		case img.HasAlt && img.Alt == "":
			issues = append(issues, seo.Issue{
				Type:           "empty_alt_text",
				Severity:       seo.SeverityInfo,
				Message:        fmt.Sprintf("Image has empty alt text: %s", preview),
				Element:        "<img>",
				Recommendation: "Either remove alt attribute or add meaningful text",
				Weight:         2,
				Fixable:        true,
				AutoFixable:    true,
			})
		}
	}
	return issues
}

func checkInternalLinks(links []seo.Link) []seo.Issue {
	internal := 0
	for _, l := range links {
		if l.Internal {
			internal++
		}
	}
	if internal >= minInternalLinks {
		return nil
	}
	return []seo.Issue{{
		Type:           "few_internal_links",
		Severity:       seo.SeverityInfo,
		Message:        fmt.Sprintf("Only %d internal links found", internal),
		Element:        "<a>",
		Recommendation: "Add more internal links to improve site structure",
		Weight:         2,
		Fixable:        true,
	}}
}

func checkSchemaPresence(blocks []seo.SchemaBlock) []seo.Issue {
	if len(blocks) > 0 {
		return nil
	}
	return []seo.Issue{{
		Type:           "no_schema_markup",
		Severity:       seo.SeverityInfo,
		Message:        "No schema.org markup found",
		Element:        `<script type="application/ld+json">`,
		Recommendation: "Add structured data to improve search visibility",
		Weight:         3,
		Fixable:        true,
	}}
}

func checkContentLength(wordCount int) []seo.Issue {
	switch {
	case wordCount < minWords:
		return []seo.Issue{{
			Type:           "thin_content",
			Severity:       seo.SeverityWarning,
			Message:        fmt.Sprintf("Content is too short (%d words)", wordCount),
			Element:        "body content",
			Recommendation: "Add more substantive content to the page",
			Weight:         7,
			Fixable:        true,
		}}
	case wordCount > maxWords:
		return []seo.Issue{{
			Type:           "content_too_long",
			Severity:       seo.SeverityInfo,
			Message:        fmt.Sprintf("Content is very long (%d words)", wordCount),
			Element:        "body content",
			Recommendation: "Consider breaking into multiple pages or adding pagination",
			Weight:         1,
			Fixable:        true,
		}}
	}
	return nil
}

func checkCanonical(canonical, current string) []seo.Issue {
	if canonical == "" {
		return []seo.Issue{{
			Type:           "missing_canonical",
			Severity:       seo.SeverityWarning,
			Message:        "Missing canonical URL",
			Element:        `<link rel="canonical">`,
			Recommendation: "Add canonical URL to avoid duplicate content issues",
			Weight:         4,
			Fixable:        true,
			AutoFixable:    true,
		}}
	}
	if canonical != current {
		return []seo.Issue{{
			Type:           "mismatched_canonical",
			Severity:       seo.SeverityInfo,
			Message:        "Canonical URL differs from current URL",
			Element:        `<link rel="canonical">`,
			Recommendation: "Ensure canonical URL matches the current page URL",
			Weight:         2,
			Fixable:        true,
		}}
	}
	return nil
}

func checkLanguage(htmlLang, contentLanguage string) []seo.Issue {
	if htmlLang != "" || contentLanguage != "" {
		return nil
	}
	return []seo.Issue{{
		Type:           "missing_language",
		Severity:       seo.SeverityInfo,
		Message:        "Missing language declaration",
		Element:        `<html lang>`,
		Recommendation: "Add language attribute to improve accessibility and SEO",
		Weight:         2,
		Fixable:        true,
		AutoFixable:    true,
	}}
}

func checkViewport(viewport string) []seo.Issue {
	if viewport != "" {
		return nil
	}
	return []seo.Issue{{
		Type:           "missing_viewport",
		Severity:       seo.SeverityCritical,
		Message:        "Missing viewport meta tag for mobile",
		Element:        `<meta name="viewport">`,
		Recommendation: `Add viewport meta tag: <meta name="viewport" content="width=device-width, initial-scale=1">`,
		Weight:         8,
		Fixable:        true,
		AutoFixable:    true,
	}}
}

func checkHreflangs(hreflangs []seo.Hreflang) []seo.Issue {
	if len(hreflangs) == 0 {
		return []seo.Issue{{
			Type:           "missing_hreflang",
			Severity:       seo.SeverityInfo,
			Message:        "No hreflang tags found",
			Element:        `<link rel="alternate" hreflang>`,
			Recommendation: "Add hreflang tags for multilingual content",
			Weight:         3,
			Fixable:        true,
		}}
	}

	var issues []seo.Issue
	for _, tag := range hreflangs {
		if tag.Lang == "" || !hreflangPattern.MatchString(tag.Lang) {
			issues = append(issues, seo.Issue{
				Type:           "invalid_hreflang",
				Severity:       seo.SeverityWarning,
				Message:        fmt.Sprintf("Invalid hreflang format: %s", tag.Lang),
				Element:        fmt.Sprintf(`<link hreflang="%s">`, tag.Lang),
				Recommendation: "Use ISO 639-1 codes or ISO 639-1-COUNTRY",
				Weight:         2.5,
				Fixable:        true,
			})
		}
		if tag.URL == "" {
			issues = append(issues, seo.Issue{
				Type:           "hreflang_missing_url",
				Severity:       seo.SeverityWarning,
				Message:        fmt.Sprintf("Hreflang tag missing URL for lang %s", tag.Lang),
				Element:        `<link hreflang>`,
				Recommendation: "Provide a valid URL for each hreflang tag",
				Weight:         2,
				Fixable:        true,
			})
		}
	}
	return issues
}

func checkSocialMeta(social map[string]string) []seo.Issue {
	var issues []seo.Issue
	for _, tag := range requiredOpenGraph {
		if social[tag] == "" {
			issues = append(issues, seo.Issue{
				Type:           "missing_" + tag,
				Severity:       seo.SeverityInfo,
				Message:        fmt.Sprintf("Missing Open Graph tag: %s", tag),
				Element:        `<meta property="og:...">`,
				Recommendation: fmt.Sprintf("Add %s for social sharing optimization", tag),
				Weight:         2.5,
				Fixable:        true,
				AutoFixable:    true,
			})
		}
	}
	for _, tag := range requiredTwitter {
		if social[tag] == "" {
			issues = append(issues, seo.Issue{
				Type:           "missing_" + tag,
				Severity:       seo.SeverityInfo,
				Message:        fmt.Sprintf("Missing Twitter Card tag: %s", tag),
				Element:        `<meta name="twitter:...">`,
				Recommendation: fmt.Sprintf("Add %s for Twitter sharing optimization", tag),
				Weight:         2.5,
				Fixable:        true,
				AutoFixable:    true,
			})
		}
	}
	return issues
}

func checkResponseTime(d time.Duration) []seo.Issue {
	ms := d.Milliseconds()
	switch {
	case ms > slowResponseMS:
		return []seo.Issue{{
			Type:           "slow_response",
			Severity:       seo.SeverityWarning,
			Message:        fmt.Sprintf("Slow response time (%dms)", ms),
			Element:        "server",
			Recommendation: "Optimize server performance and caching",
			Weight:         5,
		}}
	case ms > moderateRespMS:
		return []seo.Issue{{
			Type:           "moderate_response",
			Severity:       seo.SeverityInfo,
			Message:        fmt.Sprintf("Moderate response time (%dms)", ms),
			Element:        "server",
			Recommendation: "Consider performance optimizations",
			Weight:         2,
		}}
	}
	return nil
}

func checkIndexability(noIndex bool) []seo.Issue {
	if !noIndex {
		return nil
	}
	return []seo.Issue{{
		Type:           "noindex_detected",
		Severity:       seo.SeverityInfo,
		Message:        "Page has 'noindex' directive",
		Element:        `<meta name="robots">`,
		Recommendation: "Remove 'noindex' if page should be indexed",
		Weight:         3,
		Fixable:        true,
	}}
}

func sortIssues(issues []seo.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Type != issues[j].Type {
			return issues[i].Type < issues[j].Type
		}
		return issues[i].Message < issues[j].Message
	})
}
