package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/robfig/cron/v3"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "creatorcrawl"

	// DefaultBaseURL is the listing site every path is resolved against.
	DefaultBaseURL = "https://patronite.pl/"

	// DefaultDiscoveryPath is the listing page whose tag bar enumerates
	// every category.
	DefaultDiscoveryPath = "/kategoria/47/polityka"

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// DefaultRequestTimeout bounds a single fetch attempt.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultTransientBackoff is the wait after a network-level failure.
	DefaultTransientBackoff = 10 * time.Second

	// DefaultRateLimitBackoff is the wait after an HTTP 429 response.
	DefaultRateLimitBackoff = 2 * time.Second

	// DefaultMaxAttempts of zero retries transient failures forever.
	DefaultMaxAttempts = 0

	// DefaultPageDelay is the pause between two pages of one category.
	DefaultPageDelay = 500 * time.Millisecond

	// DefaultSchedule fires once a day at 12:10.
	DefaultSchedule = "10 12 * * *"

	// DefaultListenAddress is where the API trigger listens.
	DefaultListenAddress = ":3000"

	// DefaultMeasurement is the InfluxDB measurement name.
	DefaultMeasurement = "creators"

	// DefaultSource is the value of the "source" tag on every point.
	DefaultSource = "go"

	// DefaultBatchSize is the number of points sent per InfluxDB write.
	DefaultBatchSize = 500

	// DefaultRegion is the value of the default "region" tag.
	DefaultRegion = "eu-central"
)

// Config holds every option of a crawl run.
// It is built from defaults, then the YAML file, then the environment, then
// CLI flags, and passed down explicitly instead of living in globals.
type Config struct {
	// BaseURL is the listing site root, e.g. https://patronite.pl/.
	BaseURL string

	// DiscoveryPath is the page whose tag bar lists the categories.
	DiscoveryPath string

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// RequestTimeout bounds each fetch attempt.
	RequestTimeout time.Duration

	// TransientBackoff is the wait before retrying after a network failure.
	TransientBackoff time.Duration

	// RateLimitBackoff is the wait before retrying after HTTP 429.
	RateLimitBackoff time.Duration

	// MaxAttempts limits fetch attempts per page. Zero means unbounded.
	MaxAttempts int

	// PageDelay is the pause between consecutive pages of a category.
	PageDelay time.Duration

	// RequestsPerSecond caps the request rate across all categories.
	// Zero disables the limiter.
	RequestsPerSecond float64

	// MaxConcurrentCategories caps how many categories are crawled at once.
	// Zero crawls every category concurrently.
	MaxConcurrentCategories int

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	// Empty means direct connections.
	ProxyAddress string

	// Influx configures the time-series sink. The sink is skipped when
	// Influx.URL is empty.
	Influx InfluxConfig

	// Schedule is the cron expression used by the serve command.
	Schedule string

	// ListenAddress is the HTTP address of the serve command.
	ListenAddress string

	// RunAsAPI makes the root command behave like serve.
	RunAsAPI bool

	// DBDir is the directory of the SQLite snapshot database.
	DBDir string

	// SaveToDB stores every successful run in the snapshot database.
	SaveToDB bool

	// JSONReport writes the run report as JSON.
	JSONReport bool

	// MarkdownReport writes the run report as Markdown.
	MarkdownReport bool

	// ReportFile is the report destination. Empty means stdout.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches the log handler to JSON.
	LogJSON bool

	// ConfigFilePath is the YAML file given with --config.
	ConfigFilePath string
}

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Source      string
	BatchSize   int
	DefaultTags map[string]string
}

// Enabled reports whether an InfluxDB endpoint is configured.
func (i InfluxConfig) Enabled() bool {
	return i.URL != ""
}

// NewConfig creates a Config populated with the defaults above.
func NewConfig() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		DiscoveryPath:    DefaultDiscoveryPath,
		UserAgent:        DefaultUserAgent,
		RequestTimeout:   DefaultRequestTimeout,
		TransientBackoff: DefaultTransientBackoff,
		RateLimitBackoff: DefaultRateLimitBackoff,
		MaxAttempts:      DefaultMaxAttempts,
		PageDelay:        DefaultPageDelay,
		Influx: InfluxConfig{
			Measurement: DefaultMeasurement,
			Source:      DefaultSource,
			BatchSize:   DefaultBatchSize,
			DefaultTags: map[string]string{"region": DefaultRegion},
		},
		Schedule:      DefaultSchedule,
		ListenAddress: DefaultListenAddress,
		DBDir:         XDGDataDir(),
		SaveToDB:      true,
	}
}

// XDGDataDir returns the data directory holding the snapshot database.
// On Linux: ~/.local/share/creatorcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the directory searched last for the config file.
// On Linux: ~/.config/creatorcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.TransientBackoff < 0 || c.RateLimitBackoff < 0 {
		return ErrInvalidBackoff
	}

	if c.MaxAttempts < 0 {
		return ErrInvalidMaxAttempts
	}

	if c.PageDelay < 0 {
		return ErrInvalidPageDelay
	}

	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}

	if c.MaxConcurrentCategories < 0 {
		return ErrInvalidConcurrency
	}

	if c.Influx.Enabled() {
		if c.Influx.Org == "" || c.Influx.Bucket == "" {
			return ErrIncompleteInflux
		}
		if c.Influx.BatchSize <= 0 {
			return ErrInvalidBatchSize
		}
	}

	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return ErrInvalidSchedule
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
