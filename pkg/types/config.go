package types

import "time"

// HTTPConfig holds shared HTTP settings used by source clients.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "literator/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourceConfig holds per-source API settings.
type SourceConfig struct {
	// APIKey authenticates requests to the source.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// APIURL is the search endpoint. Empty selects the source's default.
	APIURL string `json:"api_url,omitempty" yaml:"api_url,omitempty"`

	// PageSize is the maximum number of results per API request (default 25).
	PageSize int `json:"page_size" yaml:"page_size"`

	// RequestsPerSecond caps the client-side request rate (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// FetchConfig holds settings for the fetch stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Scopus configures the Scopus client.
	Scopus SourceConfig `json:"scopus" yaml:"scopus"`

	// ADS configures the NASA ADS client.
	ADS SourceConfig `json:"adsabs" yaml:"adsabs"`

	// MaxResults is the default cap on results per fetch run (default 100).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// StorageConfig holds settings for the paper store.
type StorageConfig struct {
	// DBPath is the SQLite database file (default "literator.db").
	DBPath string `json:"db_path" yaml:"db_path"`

	// MaxResults is the default maximum number of query results (default 100).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// MergePolicy controls how the merge engine resolves conflicts on fields
// that are immutable in practice. The defaults keep the first-seen value
// and surface a conflict flag instead of overwriting.
type MergePolicy struct {
	// PreferLatestTitle overwrites the stored title with the newly fetched one.
	PreferLatestTitle bool `json:"prefer_latest_title" yaml:"prefer_latest_title"`

	// PreferLatestYear overwrites the stored publication year with the newly
	// fetched one.
	PreferLatestYear bool `json:"prefer_latest_year" yaml:"prefer_latest_year"`
}

// Config groups all literator configuration. It is built once at startup
// from the config file, environment, and secrets, then passed by reference
// into the components that need it.
type Config struct {
	Fetch   FetchConfig   `json:"fetch" yaml:"fetch"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Merge   MergePolicy   `json:"merge" yaml:"merge"`
}
