package config

import "time"

// File is the structure of the .creatorcrawl YAML file.
// Every field is optional; zero values leave the current setting alone.
type File struct {
	Source   SourceSection   `yaml:"source,omitempty"`
	Fetch    FetchSection    `yaml:"fetch,omitempty"`
	Crawl    CrawlSection    `yaml:"crawl,omitempty"`
	Influx   InfluxSection   `yaml:"influx,omitempty"`
	Server   ServerSection   `yaml:"server,omitempty"`
	Database DatabaseSection `yaml:"database,omitempty"`
}

// SourceSection describes the listing site.
type SourceSection struct {
	BaseURL       string `yaml:"baseURL,omitempty"`
	DiscoveryPath string `yaml:"discoveryPath,omitempty"`
	UserAgent     string `yaml:"userAgent,omitempty"`
}

// FetchSection tunes the page fetcher.
type FetchSection struct {
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	TransientBackoff  time.Duration `yaml:"transientBackoff,omitempty"`
	RateLimitBackoff  time.Duration `yaml:"rateLimitBackoff,omitempty"`
	MaxAttempts       int           `yaml:"maxAttempts,omitempty"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond,omitempty"`
	Proxy             string        `yaml:"proxy,omitempty"`
}

// CrawlSection tunes pagination and fan-out.
type CrawlSection struct {
	PageDelay               time.Duration `yaml:"pageDelay,omitempty"`
	MaxConcurrentCategories int           `yaml:"maxConcurrentCategories,omitempty"`
}

// InfluxSection configures the InfluxDB sink.
type InfluxSection struct {
	URL         string            `yaml:"url,omitempty"`
	Token       string            `yaml:"token,omitempty"`
	Org         string            `yaml:"org,omitempty"`
	Bucket      string            `yaml:"bucket,omitempty"`
	Measurement string            `yaml:"measurement,omitempty"`
	Source      string            `yaml:"source,omitempty"`
	BatchSize   int               `yaml:"batchSize,omitempty"`
	DefaultTags map[string]string `yaml:"defaultTags,omitempty"`
}

// ServerSection configures the serve command.
type ServerSection struct {
	Listen   string `yaml:"listen,omitempty"`
	Schedule string `yaml:"schedule,omitempty"`
}

// DatabaseSection configures the snapshot database.
type DatabaseSection struct {
	Dir      string `yaml:"dir,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Apply overlays the non-zero values of the file on cfg.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}

	setString(&cfg.BaseURL, f.Source.BaseURL)
	setString(&cfg.DiscoveryPath, f.Source.DiscoveryPath)
	setString(&cfg.UserAgent, f.Source.UserAgent)

	setDuration(&cfg.RequestTimeout, f.Fetch.Timeout)
	setDuration(&cfg.TransientBackoff, f.Fetch.TransientBackoff)
	setDuration(&cfg.RateLimitBackoff, f.Fetch.RateLimitBackoff)
	if f.Fetch.MaxAttempts != 0 {
		cfg.MaxAttempts = f.Fetch.MaxAttempts
	}
	if f.Fetch.RequestsPerSecond != 0 {
		cfg.RequestsPerSecond = f.Fetch.RequestsPerSecond
	}
	setString(&cfg.ProxyAddress, f.Fetch.Proxy)

	setDuration(&cfg.PageDelay, f.Crawl.PageDelay)
	if f.Crawl.MaxConcurrentCategories != 0 {
		cfg.MaxConcurrentCategories = f.Crawl.MaxConcurrentCategories
	}

	setString(&cfg.Influx.URL, f.Influx.URL)
	setString(&cfg.Influx.Token, f.Influx.Token)
	setString(&cfg.Influx.Org, f.Influx.Org)
	setString(&cfg.Influx.Bucket, f.Influx.Bucket)
	setString(&cfg.Influx.Measurement, f.Influx.Measurement)
	setString(&cfg.Influx.Source, f.Influx.Source)
	if f.Influx.BatchSize != 0 {
		cfg.Influx.BatchSize = f.Influx.BatchSize
	}
	if len(f.Influx.DefaultTags) > 0 {
		if cfg.Influx.DefaultTags == nil {
			cfg.Influx.DefaultTags = make(map[string]string)
		}
		for k, v := range f.Influx.DefaultTags {
			cfg.Influx.DefaultTags[k] = v
		}
	}

	setString(&cfg.ListenAddress, f.Server.Listen)
	setString(&cfg.Schedule, f.Server.Schedule)

	setString(&cfg.DBDir, f.Database.Dir)
	if f.Database.Disabled {
		cfg.SaveToDB = false
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
