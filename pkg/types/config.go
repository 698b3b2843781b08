package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the per-lookup deadline (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bibsync/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Mailto is the contact address for the Crossref and OpenAlex polite pools.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto"`

	// RequestsPerSecond is the shared rate budget across all lookups of a run.
	// Zero or negative means unlimited.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// DelimiterType selects how BibTeX field values are delimited on output.
type DelimiterType string

const (
	DelimiterBraces DelimiterType = "braces"
	DelimiterQuotes DelimiterType = "quotes"
)

// DOIURLType selects how DOI URLs are rewritten after synchronization.
type DOIURLType string

const (
	DOIURLUnchanged DOIURLType = "unchanged"
	DOIURLNew       DOIURLType = "new"
	DOIURLShort     DOIURLType = "short"
)

// SyncConfig holds settings for a sync run.
type SyncConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Source selects the remote metadata source: crossref, dblp or openalex.
	Source string `json:"source" yaml:"source" mapstructure:"source"`

	// Concurrency is the number of concurrent lookups (default 10).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// Retries is the number of extra attempts for transient lookup failures (default 0).
	Retries int `json:"retries" yaml:"retries" mapstructure:"retries"`

	// LongJournalNames prefers long journal names over abbreviations.
	LongJournalNames bool `json:"long_journal_names" yaml:"long_journal_names" mapstructure:"long_journal_names"`

	// ExtraAbbrevFile is an optional JSON or YAML map of long → abbreviated journal names.
	ExtraAbbrevFile string `json:"extra_abbrev_file,omitempty" yaml:"extra_abbrev_file,omitempty" mapstructure:"extra_abbrev_file"`

	// DOIURLType selects DOI URL rewriting: unchanged, new or short.
	DOIURLType DOIURLType `json:"doi_url_type" yaml:"doi_url_type" mapstructure:"doi_url_type"`

	// HistoryDB is the path of the SQLite run history ledger. Empty disables it.
	HistoryDB string `json:"history_db,omitempty" yaml:"history_db,omitempty" mapstructure:"history_db"`

	// MetricsFile is the path of a Prometheus textfile written after the run. Empty disables it.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}

// OutputConfig holds BibTeX formatting choices for the writer.
type OutputConfig struct {
	// Delimiter selects braces {...} or quotes "..." around values.
	Delimiter DelimiterType `json:"delimiter" yaml:"delimiter" mapstructure:"delimiter_type"`

	// TabIndent indents fields with a tab instead of two spaces.
	TabIndent bool `json:"tab_indent" yaml:"tab_indent" mapstructure:"tab_indent"`

	// SortByKey writes entries sorted by citation key instead of input order.
	SortByKey bool `json:"sort_by_key" yaml:"sort_by_key" mapstructure:"sort_by_bibkey"`
}
