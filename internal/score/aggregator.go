// Package score turns an issue list into an overall score, per-category
// sub-scores and a passed-checks list. The formula is shared by the
// overall and category computations so the two always agree.
package score

import (
	"math"
	"strings"

	"github.com/mangoseo/onpage-audit/internal/seo"
)

// MaxScore is the default score ceiling.
const MaxScore = 100.0

// severityMultipliers convert an issue's weight into its penalty share.
var severityMultipliers = map[seo.Severity]float64{
	seo.SeverityCritical: 0.8,
	seo.SeverityWarning:  0.4,
	seo.SeverityInfo:     0.1,
}

// Categories, in reporting order.
var Categories = []string{"technical", "content", "images", "headings", "links"}

// categoryByType assigns every known issue type to exactly one category.
// Types absent from this table (and not matched by a social prefix)
// count toward the overall score only.
var categoryByType = map[string]string{
	"meta_description_missing":   "technical",
	"meta_description_too_short": "technical",
	"meta_description_too_long":  "technical",
	"missing_canonical":          "technical",
	"mismatched_canonical":       "technical",
	"missing_language":           "technical",
	"missing_viewport":           "technical",
	"noindex_detected":           "technical",
	"missing_hreflang":           "technical",
	"invalid_hreflang":           "technical",
	"hreflang_missing_url":       "technical",
	"no_schema_markup":           "technical",
	"missing_schema_type":        "technical",
	"slow_response":              "technical",
	"moderate_response":          "technical",
	"url_missing":                "technical",
	"url_invalid_format":         "technical",
	"url_missing_domain":         "technical",

	"title_missing":          "content",
	"title_too_short":        "content",
	"title_too_long":         "content",
	"title_keyword_stuffing": "content",
	"thin_content":           "content",
	"content_too_long":       "content",
	"low_readability":        "content",
	"keyword_stuffing":       "content",
	"low_media":              "content",
	"no_tables":              "content",

	"missing_alt_text":      "images",
	"empty_alt_text":        "images",
	"low_alt_text_coverage": "images",

	"missing_h1":             "headings",
	"multiple_h1":            "headings",
	"poor_heading_hierarchy": "headings",
	"h1_too_long":            "headings",
	"h2_too_long":            "headings",
	"h3_too_long":            "headings",

	"few_internal_links":    "links",
	"broken_links":          "links",
	"high_nofollow_ratio":   "links",
	"external_link_invalid": "links",
}

// passedCheckFamilies maps each passed-check name to the issue types
// whose presence fails it. A check name is reported iff none of its
// family's types appear in the issue list.
var passedCheckFamilies = []struct {
	Name  string
	Types []string
}{
	{"title_present", []string{"title_missing", "title_too_short", "title_too_long"}},
	{"meta_description_present", []string{"meta_description_missing", "meta_description_too_short", "meta_description_too_long"}},
	{"h1_present", []string{"missing_h1", "multiple_h1"}},
	{"images_have_alt", []string{"missing_alt_text", "empty_alt_text"}},
	{"content_sufficient", []string{"thin_content", "content_too_long"}},
	{"schema_present", []string{"no_schema_markup"}},
	{"canonical_present", []string{"missing_canonical", "mismatched_canonical"}},
	{"language_declared", []string{"missing_language"}},
}

// Score computes the weighted score for an issue list. An empty list
// scores maxScore; otherwise each issue contributes
// weight * severityMultiplier to the penalty and weight to the
// normalizer, and the normalized penalty is capped at 1.
func Score(issues []seo.Issue, maxScore float64) float64 {
	if len(issues) == 0 {
		return maxScore
	}

	penalty, totalWeight := 0.0, 0.0
	for _, issue := range issues {
		penalty += issue.Weight * severityMultipliers[issue.Severity]
		totalWeight += issue.Weight
	}
	if totalWeight == 0 {
		return maxScore
	}

	normalized := math.Min(penalty/totalWeight, 1)
	return math.Round(maxScore*(1-normalized)*10) / 10
}

// CategoryScores computes the per-category sub-scores by re-running the
// same formula against each category's issue subset.
func CategoryScores(issues []seo.Issue) map[string]float64 {
	buckets := map[string][]seo.Issue{}
	for _, issue := range issues {
		if cat, ok := CategoryOf(issue.Type); ok {
			buckets[cat] = append(buckets[cat], issue)
		}
	}

	scores := make(map[string]float64, len(Categories))
	for _, cat := range Categories {
		scores[cat] = Score(buckets[cat], MaxScore)
	}
	return scores
}

// CategoryOf resolves an issue type to its category.
func CategoryOf(issueType string) (string, bool) {
	if cat, ok := categoryByType[issueType]; ok {
		return cat, true
	}
	// Social meta types are parameterized by tag name.
	if strings.HasPrefix(issueType, "missing_og:") || strings.HasPrefix(issueType, "missing_twitter:") {
		return "technical", true
	}
	return "", false
}

// PassedChecks reports every check whose issue family is entirely
// absent from the list.
func PassedChecks(issues []seo.Issue) []string {
	failed := map[string]bool{}
	for _, issue := range issues {
		failed[issue.Type] = true
	}

	var passed []string
	for _, family := range passedCheckFamilies {
		ok := true
		for _, t := range family.Types {
			if failed[t] {
				ok = false
				break
			}
		}
		if ok {
			passed = append(passed, family.Name)
		}
	}
	return passed
}
