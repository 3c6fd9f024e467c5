// Package seo defines the domain model shared by the audit pipeline:
// page snapshots, detected issues, audit results, agent outputs and
// the recommendations derived from them.
package seo

import "time"

// Severity classifies how badly an issue hurts the page.
type Severity string

// Severity levels, ordered from worst to cosmetic.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
)

// Issue is a single rule- or heuristic-detected defect. Issues are value
// objects: a fresh list is produced per audit and never mutated.
type Issue struct {
	Type           string    `json:"type"`
	Severity       Severity  `json:"level"`
	Message        string    `json:"message"`
	Element        string    `json:"element,omitempty"`
	Recommendation string    `json:"recommendation"`
	Weight         float64   `json:"weight"`
	Fixable        bool      `json:"fixable"`
	AutoFixable    bool      `json:"auto_fix_available"`
	AgentType      AgentType `json:"agent_type,omitempty"`
}

// MetaTag is one <meta> entry keyed by its name/property attribute.
type MetaTag struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Image is one <img> with its SEO-relevant attributes, src resolved to
// absolute form.
type Image struct {
	Src     string `json:"src"`
	Alt     string `json:"alt"`
	HasAlt  bool   `json:"has_alt"`
	Title   string `json:"title,omitempty"`
	Width   string `json:"width,omitempty"`
	Height  string `json:"height,omitempty"`
	Loading string `json:"loading,omitempty"`
}

// Link is one <a href> with its resolved target and classification.
type Link struct {
	URL        string   `json:"url"`
	AnchorText string   `json:"anchor_text"`
	Title      string   `json:"title,omitempty"`
	Rel        []string `json:"rel,omitempty"`
	NoFollow   bool     `json:"nofollow"`
	Internal   bool     `json:"is_internal"`
	Broken     bool     `json:"is_broken"`
}

// SchemaBlock is one structured-data block found on the page, either a
// JSON-LD script or a microdata item.
type SchemaBlock struct {
	Format           string         `json:"format"` // "json-ld" or "microdata"
	Type             string         `json:"type"`
	Data             map[string]any `json:"data,omitempty"`
	ItemType         string         `json:"itemtype,omitempty"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
}

// Hreflang is one <link rel="alternate" hreflang> entry.
type Hreflang struct {
	Lang string `json:"hreflang"`
	URL  string `json:"url"`
}

// Headings holds heading text per level, h1 through h6.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
	H4 []string `json:"h4"`
	H5 []string `json:"h5"`
	H6 []string `json:"h6"`
}

// Levels returns the heading lists in document order, index 0 = h1.
func (h Headings) Levels() [][]string {
	return [][]string{h.H1, h.H2, h.H3, h.H4, h.H5, h.H6}
}

// MediaCounts tallies embedded media and interactive elements.
type MediaCounts struct {
	Images  int `json:"images"`
	Videos  int `json:"videos"`
	Tables  int `json:"tables"`
	IFrames int `json:"iframes"`
	Buttons int `json:"buttons"`
}

// InlineAssets counts inline scripts and styles for performance heuristics.
type InlineAssets struct {
	Scripts int `json:"inline_scripts"`
	Styles  int `json:"inline_styles"`
}

// ContentMetrics are derived measurements over the boilerplate-stripped
// body text. Fields are computed once during extraction and never
// mutated independently.
type ContentMetrics struct {
	WordCount           int                `json:"word_count"`
	SentenceCount       int                `json:"sentence_count"`
	AvgWordsPerSentence float64            `json:"avg_words_per_sentence"`
	UniqueWords         int                `json:"unique_words"`
	CharCount           int                `json:"char_count"`
	ReadabilityScore    float64            `json:"readability_score"`
	KeywordDensity      map[string]float64 `json:"keyword_density"`
	ContentQualityScore float64            `json:"content_quality_score"`
	ImageCount          int                `json:"image_count"`
}

// PageSnapshot is the immutable extracted representation of one page's
// markup. It is created once per analysis and replaced wholesale on
// re-analysis; its ID is a stable hash of the URL.
type PageSnapshot struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	Title           string            `json:"title"`
	MetaTags        map[string]string `json:"meta_tags"`
	Headings        Headings          `json:"headings"`
	Images          []Image           `json:"images"`
	Links           []Link            `json:"links"`
	SchemaBlocks    []SchemaBlock     `json:"schema_markup"`
	ContentText     string            `json:"content_text"`
	ContentMetrics  ContentMetrics    `json:"content_metrics"`
	Keywords        []string          `json:"extracted_keywords"`
	CanonicalURL    string            `json:"canonical_url"`
	Language        string            `json:"language"`
	Charset         string            `json:"charset"`
	Viewport        string            `json:"viewport"`
	Hreflangs       []Hreflang        `json:"hreflangs"`
	SocialMeta      map[string]string `json:"social_meta"`
	MediaCounts     MediaCounts       `json:"media_counts"`
	InlineAssets    InlineAssets      `json:"inline_assets"`
	SocialButtons   int               `json:"social_buttons_count"`
	NoIndex         bool              `json:"noindex"`
	FetchDuration   time.Duration     `json:"-"`
}

// AuditResult is the outcome of one rule/heuristic analysis pass over a
// snapshot. Created once per request, then read-only.
type AuditResult struct {
	URL            string             `json:"url"`
	PageID         string             `json:"url_id"`
	Timestamp      time.Time          `json:"timestamp"`
	OverallScore   float64            `json:"overall_score"`
	CategoryScores map[string]float64 `json:"category_scores"`
	Issues         []Issue            `json:"issues"`
	Warnings       []Issue            `json:"warnings"`
	PassedChecks   []string           `json:"passed_checks"`
	AITriggers     []string           `json:"ai_triggers"`
	Keywords       []string           `json:"extracted_keywords"`
	Industry       string             `json:"industry,omitempty"`
	Snapshot       *PageSnapshot      `json:"page_data,omitempty"`
}

// AllIssues returns issues and warnings as one list, issues first.
func (r AuditResult) AllIssues() []Issue {
	out := make([]Issue, 0, len(r.Issues)+len(r.Warnings))
	out = append(out, r.Issues...)
	out = append(out, r.Warnings...)
	return out
}

// AgentType identifies one enrichment agent.
type AgentType string

// The fixed agent set driven by the recommendation synthesizer.
const (
	AgentKeyword     AgentType = "keyword"
	AgentSemantic    AgentType = "semantic"
	AgentSchema      AgentType = "schema"
	AgentCompetitor  AgentType = "competitor"
	AgentPerformance AgentType = "performance"
)

// AgentResult is the transient outcome of one agent invocation. Only its
// attempt metadata is logged; the payload is converted into
// recommendations and then discarded.
type AgentResult struct {
	AgentType      AgentType      `json:"agent_type"`
	Input          map[string]any `json:"input_data"`
	Output         map[string]any `json:"output_data"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Confidence     float64        `json:"confidence_score"`
	CostEstimate   float64        `json:"cost_estimate"`
	TokensUsed     int            `json:"tokens_used"`
	Err            string         `json:"error,omitempty"`
}

// Fallback reports whether the result is the zero-confidence placeholder
// produced when an agent exhausted its retries.
func (r AgentResult) Fallback() bool {
	return r.Confidence == 0 && len(r.Output) == 0
}

// Complexity grades how much work applying a recommendation takes.
type Complexity string

// Implementation complexity levels.
const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Weight returns the numeric penalty used when prioritizing
// recommendations (low=1, medium=2, high=3).
func (c Complexity) Weight() int {
	switch c {
	case ComplexityLow:
		return 1
	case ComplexityHigh:
		return 3
	default:
		return 2
	}
}

// Recommendation is a persisted, prioritized, agent-sourced suggestion.
// Immutable after creation.
type Recommendation struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id,omitempty"`
	PageID       string     `json:"url_id"`
	Type         string     `json:"type"`
	Original     string     `json:"original"`
	Suggested    string     `json:"suggested"`
	Confidence   float64    `json:"confidence_score"`
	Reasoning    string     `json:"reasoning"`
	ImpactScore  float64    `json:"impact_score"`
	AgentType    AgentType  `json:"agent_type"`
	Complexity   Complexity `json:"implementation_complexity"`
	EstimatedMin int        `json:"estimated_time"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TaskStatus is the lifecycle state of an externally owned task record.
type TaskStatus string

// Task lifecycle states.
const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskRetrying   TaskStatus = "retrying"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task is the external unit of progress tracking for one analysis
// request. The pipeline only writes status transitions into it. Kind
// tags the owning workflow family (one tagged type instead of parallel
// tables per family).
type Task struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      TaskStatus `json:"status"`
	Progress    string     `json:"progress_message"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AgentRun is one append-only attempt record written by the retry
// wrapper.
type AgentRun struct {
	TaskID    string    `json:"task_id,omitempty"`
	PageID    string    `json:"url_id"`
	AgentType AgentType `json:"agent_type"`
	Attempt   int       `json:"attempt"`
	Status    string    `json:"status"`
	Error     string    `json:"error_message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints unique identifiers for audits and recommendations.
type IDGenerator interface {
	NewID() (string, error)
}
