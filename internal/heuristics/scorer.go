// Package heuristics implements the second analysis pass: analytic
// checks over readability, keyword distribution, heading hierarchy,
// link quality, schema richness and content variety. Outputs are the
// same Issue type the rule validator produces and the two lists are
// merged downstream.
package heuristics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mangoseo/onpage-audit/internal/extract"
	"github.com/mangoseo/onpage-audit/internal/seo"
)

const (
	stuffingThreshold = 0.05
	minStuffingWords  = 10
	minReadability    = 60.0
	maxNoFollowRatio  = 0.3
)

// recommendedSchemaTypes are the structured-data types worth flagging
// when absent from a page that already carries some markup.
var recommendedSchemaTypes = []string{"Article", "BreadcrumbList", "FAQPage", "Product"}

// Scorer runs the heuristic pass against a snapshot.
type Scorer struct{}

// New constructs a Scorer.
func New() *Scorer {
	return &Scorer{}
}

// Analyze runs every heuristic in a fixed order and returns the raised
// issues.
func (s *Scorer) Analyze(snap *seo.PageSnapshot) []seo.Issue {
	var issues []seo.Issue

	issues = append(issues, titleStuffing(snap.Title)...)
	issues = append(issues, headingHierarchy(snap.Headings)...)
	issues = append(issues, altCoverage(snap.Images)...)
	issues = append(issues, contentQuality(snap.ContentText, snap.ContentMetrics)...)
	issues = append(issues, linkQuality(snap.Links)...)
	issues = append(issues, schemaRichness(snap.SchemaBlocks)...)
	issues = append(issues, contentRichness(snap.Images, snap.MediaCounts.Tables)...)

	return issues
}

func titleStuffing(title string) []seo.Issue {
	if !KeywordStuffing(title) {
		return nil
	}
	return []seo.Issue{{
		Type:           "title_keyword_stuffing",
		Severity:       seo.SeverityWarning,
		Message:        "Title appears to have keyword stuffing",
		Element:        "<title>",
		Recommendation: "Use natural language with 1-2 primary keywords",
		Weight:         3,
		Fixable:        true,
	}}
}

// headingHierarchy flags a gap between the first and last heading level
// present, e.g. an h1 followed by h3 sections with no h2.
func headingHierarchy(h seo.Headings) []seo.Issue {
	levels := h.Levels()
	first, last := -1, -1
	for i, texts := range levels {
		if len(texts) == 0 {
			continue
		}
		if first == -1 {
			first = i
		}
		last = i
	}
	if first == -1 || first == last {
		return nil
	}
	for i := first; i <= last; i++ {
		if len(levels[i]) == 0 {
			return []seo.Issue{{
				Type:           "poor_heading_hierarchy",
				Severity:       seo.SeverityInfo,
				Message:        "Heading hierarchy could be improved",
				Element:        "<h1>-<h6>",
				Recommendation: "Maintain proper heading order (H1, then H2, then H3)",
				Weight:         3,
				Fixable:        true,
			}}
		}
	}
	return nil
}

func altCoverage(images []seo.Image) []seo.Issue {
	if len(images) == 0 {
		return nil
	}
	withAlt := 0
	for _, img := range images {
		if img.Alt != "" {
			withAlt++
		}
	}
	ratio := float64(withAlt) / float64(len(images))
	if ratio >= 0.8 {
		return nil
	}
	return []seo.Issue{{
		Type:           "low_alt_text_coverage",
		Severity:       seo.SeverityWarning,
		Message:        fmt.Sprintf("Only %d/%d images have alt text (%.0f%%)", withAlt, len(images), ratio*100),
		Element:        "<img>",
		Recommendation: "Add descriptive alt text to all images",
		Weight:         4,
		Fixable:        true,
	}}
}

func contentQuality(text string, metrics seo.ContentMetrics) []seo.Issue {
	var issues []seo.Issue

	if metrics.ReadabilityScore < minReadability && metrics.WordCount > 0 {
		issues = append(issues, seo.Issue{
			Type:           "low_readability",
			Severity:       seo.SeverityInfo,
			Message:        fmt.Sprintf("Content may be difficult to read (score: %.1f/100)", metrics.ReadabilityScore),
			Element:        "body content",
			Recommendation: "Simplify language and shorten sentences",
			Weight:         3,
			Fixable:        true,
		})
	}

	if KeywordStuffing(text) {
		issues = append(issues, seo.Issue{
			Type:           "keyword_stuffing",
			Severity:       seo.SeverityWarning,
			Message:        "Content appears to have keyword stuffing",
			Element:        "body content",
			Recommendation: "Use keywords naturally and focus on user value",
			Weight:         6,
			Fixable:        true,
		})
	}

	return issues
}

func linkQuality(links []seo.Link) []seo.Issue {
	if len(links) == 0 {
		return nil
	}

	var issues []seo.Issue
	broken, nofollow := 0, 0
	for _, l := range links {
		if l.Broken {
			broken++
		}
		if l.NoFollow {
			nofollow++
		}
	}

	if broken > 0 {
		issues = append(issues, seo.Issue{
			Type:           "broken_links",
			Severity:       seo.SeverityWarning,
			Message:        fmt.Sprintf("%d broken links detected", broken),
			Element:        "<a>",
			Recommendation: "Fix or remove broken links",
			Weight:         5,
			Fixable:        true,
		})
	}

	ratio := float64(nofollow) / float64(len(links))
	if ratio > maxNoFollowRatio {
		issues = append(issues, seo.Issue{
			Type:           "high_nofollow_ratio",
			Severity:       seo.SeverityInfo,
			Message:        fmt.Sprintf("Nofollow links are %.0f%% of all links", ratio*100),
			Element:        "<a>",
			Recommendation: "Ensure important links are dofollow where needed",
			Weight:         2,
			Fixable:        true,
		})
	}

	return issues
}

// schemaRichness flags recommended types missing from pages that carry
// some structured data already. Pages with none at all are handled by
// the rule validator's presence check.
func schemaRichness(blocks []seo.SchemaBlock) []seo.Issue {
	if len(blocks) == 0 {
		return nil
	}

	found := map[string]bool{}
	for _, block := range blocks {
		if block.Format == "json-ld" && block.Type != "" {
			found[block.Type] = true
		}
	}

	var issues []seo.Issue
	for _, want := range recommendedSchemaTypes {
		if found[want] {
			continue
		}
		issues = append(issues, seo.Issue{
			Type:           "missing_schema_type",
			Severity:       seo.SeverityInfo,
			Message:        fmt.Sprintf("Recommended schema type %q not found", want),
			Element:        `<script type="application/ld+json">`,
			Recommendation: fmt.Sprintf("Consider adding %q schema for better visibility", want),
			Weight:         2,
			Fixable:        true,
		})
	}
	return issues
}

func contentRichness(images []seo.Image, tables int) []seo.Issue {
	var issues []seo.Issue

	if len(images) < 1 {
		issues = append(issues, seo.Issue{
			Type:           "low_media",
			Severity:       seo.SeverityInfo,
			Message:        "Few or no images in content",
			Element:        "body content",
			Recommendation: "Add images or videos to improve engagement",
			Weight:         1.5,
			Fixable:        true,
		})
	}

	if tables == 0 {
		issues = append(issues, seo.Issue{
			Type:           "no_tables",
			Severity:       seo.SeverityInfo,
			Message:        "No tables detected in content",
			Element:        "body content",
			Recommendation: "Add tables if it improves content clarity",
			Weight:         1,
			Fixable:        true,
		})
	}

	return issues
}

// KeywordStuffing reports whether any single term longer than three
// characters dominates the text beyond the fixed frequency threshold.
func KeywordStuffing(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < minStuffingWords {
		return false
	}

	freq := map[string]int{}
	for _, w := range words {
		if len(w) > 3 {
			freq[w]++
		}
	}
	if len(freq) == 0 {
		return false
	}

	maxFreq := 0
	for _, n := range freq {
		if n > maxFreq {
			maxFreq = n
		}
	}
	return float64(maxFreq)/float64(len(words)) > stuffingThreshold
}

// Readability re-exports the extraction-time estimate so callers that
// only hold raw text can score it.
func Readability(text string) float64 {
	return extract.Readability(text)
}

// TopKeywords returns the most frequent terms longer than three
// characters, capped at limit, ordered by frequency then alphabetically.
func TopKeywords(text string, limit int) []string {
	freq := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 3 {
			freq[w]++
		}
	}
	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}
