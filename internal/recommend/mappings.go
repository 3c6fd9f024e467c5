package recommend

import (
	"encoding/json"
	"fmt"

	"github.com/mangoseo/onpage-audit/internal/seo"
)

// The per-agent conversion tables below carry the impact, complexity
// and time estimates the prioritizer sorts on. Values are fixed per
// recommendation type, not model-supplied.

func keywordRecommendations(result seo.AgentResult, audit *seo.AuditResult) []seo.Recommendation {
	var recs []seo.Recommendation

	if pk, ok := result.Output["primary_keyword"].(string); ok && pk != "" {
		original := ""
		if len(audit.Keywords) > 0 {
			original = audit.Keywords[0]
		}
		recs = append(recs, seo.Recommendation{
			Type:         "primary_keyword_optimization",
			Original:     original,
			Suggested:    pk,
			Confidence:   result.Confidence,
			Reasoning:    "Optimized primary keyword for better search relevance",
			ImpactScore:  0.9,
			AgentType:    seo.AgentKeyword,
			Complexity:   seo.ComplexityMedium,
			EstimatedMin: 30,
		})
	}

	for _, suggestion := range capStrings(result.Output["keyword_density_suggestions"], 3) {
		recs = append(recs, seo.Recommendation{
			Type:         "keyword_density_optimization",
			Suggested:    suggestion,
			Confidence:   0.7,
			Reasoning:    "Keyword density optimization opportunity",
			ImpactScore:  0.6,
			AgentType:    seo.AgentKeyword,
			Complexity:   seo.ComplexityLow,
			EstimatedMin: 15,
		})
	}

	for _, keyword := range capStrings(result.Output["semantic_keywords"], 5) {
		recs = append(recs, seo.Recommendation{
			Type:         "semantic_keyword_addition",
			Suggested:    keyword,
			Confidence:   0.65,
			Reasoning:    "Semantic keyword to improve content relevance",
			ImpactScore:  0.5,
			AgentType:    seo.AgentKeyword,
			Complexity:   seo.ComplexityLow,
			EstimatedMin: 10,
		})
	}

	return recs
}

func semanticRecommendations(result seo.AgentResult, audit *seo.AuditResult) []seo.Recommendation {
	var recs []seo.Recommendation
	snap := audit.Snapshot

	if title, ok := result.Output["optimized_title"].(string); ok && title != "" {
		recs = append(recs, seo.Recommendation{
			Type:         "title_optimization",
			Original:     snap.Title,
			Suggested:    title,
			Confidence:   result.Confidence,
			Reasoning:    "Semantically optimized title for better CTR and relevance",
			ImpactScore:  0.85,
			AgentType:    seo.AgentSemantic,
			Complexity:   seo.ComplexityLow,
			EstimatedMin: 5,
		})
	}

	if meta, ok := result.Output["optimized_meta_description"].(string); ok && meta != "" {
		recs = append(recs, seo.Recommendation{
			Type:         "meta_description_optimization",
			Original:     snap.MetaTags["description"],
			Suggested:    meta,
			Confidence:   result.Confidence * 0.9,
			Reasoning:    "Improved meta description for higher click-through rates",
			ImpactScore:  0.7,
			AgentType:    seo.AgentSemantic,
			Complexity:   seo.ComplexityLow,
			EstimatedMin: 5,
		})
	}

	for _, suggestion := range capStrings(result.Output["content_suggestions"], 3) {
		recs = append(recs, seo.Recommendation{
			Type:         "content_optimization",
			Suggested:    suggestion,
			Confidence:   0.7,
			Reasoning:    "Semantic content improvement for better engagement",
			ImpactScore:  0.6,
			AgentType:    seo.AgentSemantic,
			Complexity:   seo.ComplexityMedium,
			EstimatedMin: 25,
		})
	}

	return recs
}

func schemaRecommendations(result seo.AgentResult, audit *seo.AuditResult) []seo.Recommendation {
	var recs []seo.Recommendation

	if schemaJSON, ok := result.Output["schema_json"]; ok && schemaJSON != nil {
		schemaType := "Article"
		if st, ok := result.Output["schema_type"].(string); ok && st != "" {
			schemaType = st
		}
		original := "Incomplete structured data"
		if hasIssueType(audit, "no_schema_markup") {
			original = "No structured data"
		}
		serialized, err := json.MarshalIndent(schemaJSON, "", "  ")
		if err == nil {
			recs = append(recs, seo.Recommendation{
				Type:         "schema_markup",
				Original:     original,
				Suggested:    string(serialized),
				Confidence:   result.Confidence,
				Reasoning:    fmt.Sprintf("Add %s schema markup for rich results and better visibility", schemaType),
				ImpactScore:  0.8,
				AgentType:    seo.AgentSchema,
				Complexity:   seo.ComplexityHigh,
				EstimatedMin: 45,
			})
		}
	}

	if issues, ok := result.Output["validation_issues"].([]any); ok {
		count := 0
		for _, raw := range issues {
			if count >= 2 {
				break
			}
			suggested, message := validationIssueParts(raw)
			if suggested == "" {
				continue
			}
			recs = append(recs, seo.Recommendation{
				Type:         "schema_validation",
				Suggested:    suggested,
				Confidence:   0.8,
				Reasoning:    fmt.Sprintf("Schema validation issue: %s", message),
				ImpactScore:  0.4,
				AgentType:    seo.AgentSchema,
				Complexity:   seo.ComplexityMedium,
				EstimatedMin: 20,
			})
			count++
		}
	}

	return recs
}

func performanceRecommendations(result seo.AgentResult) []seo.Recommendation {
	var recs []seo.Recommendation

	entries := []struct {
		key          string
		recType      string
		format       string
		reasoning    string
		impact       float64
		complexity   seo.Complexity
		estimatedMin int
	}{
		{"traffic_prediction", "performance_traffic_prediction", "Expected traffic change: %v",
			"Predicted traffic impact based on current performance metrics", 0.8, seo.ComplexityMedium, 20},
		{"timeline", "performance_timeline", "Expected ranking improvement timeline: %v",
			"Timeline prediction for SEO impact", 0.7, seo.ComplexityLow, 10},
		{"mobile_desktop_impact", "performance_device_impact", "Device-specific impact: %v",
			"Impact on mobile vs desktop performance", 0.6, seo.ComplexityMedium, 15},
		{"risk_assessment", "performance_risk", "Risk assessment: %v",
			"Potential SEO risks identified by performance agent", 0.7, seo.ComplexityMedium, 15},
	}

	for _, entry := range entries {
		value, ok := result.Output[entry.key]
		if !ok || value == nil || value == "" {
			continue
		}
		recs = append(recs, seo.Recommendation{
			Type:         entry.recType,
			Suggested:    fmt.Sprintf(entry.format, value),
			Confidence:   result.Confidence,
			Reasoning:    entry.reasoning,
			ImpactScore:  entry.impact,
			AgentType:    seo.AgentPerformance,
			Complexity:   entry.complexity,
			EstimatedMin: entry.estimatedMin,
		})
	}

	return recs
}

func competitorRecommendations(result seo.AgentResult) []seo.Recommendation {
	var recs []seo.Recommendation

	competitors, _ := result.Output["competitors"].([]any)
	if len(competitors) > 5 {
		competitors = competitors[:5]
	}
	for _, raw := range competitors {
		comp, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := competitorName(comp)

		if score, ok := comp["seo_score"].(float64); ok && score < 70 {
			recs = append(recs, seo.Recommendation{
				Type:         "competitor_seo_gap",
				Original:     fmt.Sprintf("%s SEO score: %.0f", name, score),
				Suggested:    "Improve on-page SEO and keyword targeting",
				Confidence:   result.Confidence * 0.9,
				Reasoning:    fmt.Sprintf("%s has a lower SEO score; closing this gap may improve rankings", name),
				ImpactScore:  0.7,
				AgentType:    seo.AgentCompetitor,
				Complexity:   seo.ComplexityMedium,
				EstimatedMin: 30,
			})
		}

		if strategy, ok := comp["content_strategy"].(string); ok && strategy != "" {
			recs = append(recs, seo.Recommendation{
				Type:         "competitor_content_strategy",
				Suggested:    fmt.Sprintf("Align content strategy with competitor: %s", strategy),
				Confidence:   result.Confidence * 0.85,
				Reasoning:    fmt.Sprintf("Learn from %s's content strategy to improve relevance", name),
				ImpactScore:  0.6,
				AgentType:    seo.AgentCompetitor,
				Complexity:   seo.ComplexityMedium,
				EstimatedMin: 25,
			})
		}

		for _, weakness := range capStrings(comp["weaknesses"], 3) {
			recs = append(recs, seo.Recommendation{
				Type:         "competitor_quick_win",
				Suggested:    fmt.Sprintf("Address competitor weakness: %s", weakness),
				Confidence:   result.Confidence * 0.8,
				Reasoning:    fmt.Sprintf("Opportunity identified by analyzing %s", name),
				ImpactScore:  0.5,
				AgentType:    seo.AgentCompetitor,
				Complexity:   seo.ComplexityLow,
				EstimatedMin: 15,
			})
		}

		for _, opportunity := range capStrings(comp["opportunities"], 3) {
			recs = append(recs, seo.Recommendation{
				Type:         "competitor_opportunity",
				Suggested:    fmt.Sprintf("Leverage opportunity: %s", opportunity),
				Confidence:   result.Confidence * 0.75,
				Reasoning:    fmt.Sprintf("Identified from %s's competitive landscape", name),
				ImpactScore:  0.55,
				AgentType:    seo.AgentCompetitor,
				Complexity:   seo.ComplexityLow,
				EstimatedMin: 20,
			})
		}
	}

	gap, _ := result.Output["gap_analysis"].(map[string]any)

	for _, item := range capStrings(gap["content_gaps"], 5) {
		recs = append(recs, seo.Recommendation{
			Type:         "gap_content",
			Suggested:    item,
			Confidence:   result.Confidence * 0.9,
			Reasoning:    "Content gap identified compared to competitors",
			ImpactScore:  0.65,
			AgentType:    seo.AgentCompetitor,
			Complexity:   seo.ComplexityMedium,
			EstimatedMin: 30,
		})
	}

	for _, item := range capStrings(gap["technical_opportunities"], 3) {
		recs = append(recs, seo.Recommendation{
			Type:         "gap_technical",
			Suggested:    item,
			Confidence:   result.Confidence * 0.85,
			Reasoning:    "Technical SEO opportunity found vs competitors",
			ImpactScore:  0.6,
			AgentType:    seo.AgentCompetitor,
			Complexity:   seo.ComplexityMedium,
			EstimatedMin: 25,
		})
	}

	for _, item := range capStrings(gap["quick_wins"], 3) {
		recs = append(recs, seo.Recommendation{
			Type:         "quick_win",
			Suggested:    item,
			Confidence:   result.Confidence * 0.8,
			Reasoning:    "Quick improvement identified by competitor analysis",
			ImpactScore:  0.55,
			AgentType:    seo.AgentCompetitor,
			Complexity:   seo.ComplexityLow,
			EstimatedMin: 15,
		})
	}

	for _, item := range capStrings(gap["long_term_opportunities"], 3) {
		recs = append(recs, seo.Recommendation{
			Type:         "long_term_opportunity",
			Suggested:    item,
			Confidence:   result.Confidence * 0.75,
			Reasoning:    "Long-term opportunity identified from competitor landscape",
			ImpactScore:  0.5,
			AgentType:    seo.AgentCompetitor,
			Complexity:   seo.ComplexityMedium,
			EstimatedMin: 40,
		})
	}

	return recs
}

// capStrings pulls a string slice out of a loosely typed payload value
// and caps its length.
func capStrings(v any, n int) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, n)
	for _, item := range items {
		if len(out) >= n {
			break
		}
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasIssueType(audit *seo.AuditResult, issueType string) bool {
	for _, issue := range audit.AllIssues() {
		if issue.Type == issueType {
			return true
		}
	}
	return false
}

func validationIssueParts(raw any) (suggested, message string) {
	switch v := raw.(type) {
	case string:
		return v, v
	case map[string]any:
		fix, _ := v["fix"].(string)
		msg, _ := v["message"].(string)
		if fix == "" {
			fix = msg
		}
		return fix, msg
	default:
		return "", ""
	}
}

func competitorName(comp map[string]any) string {
	for _, key := range []string{"name", "domain", "url"} {
		if s, ok := comp[key].(string); ok && s != "" {
			return s
		}
	}
	return "Unknown Competitor"
}
