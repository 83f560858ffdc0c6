package sink

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/nao1215/creatorcrawl/internal/model"
)

// Point layout.
const (
	tagURL           = "url"
	tagName          = "name"
	tagImageURL      = "image_url"
	tagRecommended   = "is_recommended"
	tagTags          = "tags"
	tagSource        = "source"
	fieldMonthly     = "monthly_revenue"
	fieldPatrons     = "number_of_patrons"
	fieldTotal       = "total_revenue"
	defaultBatchSize = 500
)

// InfluxSink writes every catalog record as a point in InfluxDB.
type InfluxSink struct {
	serverURL   string
	token       string
	org         string
	bucket      string
	measurement string
	source      string
	batchSize   int
	defaultTags map[string]string
	options     *influxdb2.Options
	now         func() time.Time
	logger      *slog.Logger
}

// InfluxOption configures an InfluxSink.
type InfluxOption func(*InfluxSink)

// WithMeasurement sets the measurement name. Default "creators".
func WithMeasurement(name string) InfluxOption {
	return func(s *InfluxSink) {
		if name != "" {
			s.measurement = name
		}
	}
}

// WithSource sets the value of the "source" tag.
func WithSource(source string) InfluxOption {
	return func(s *InfluxSink) {
		s.source = source
	}
}

// WithBatchSize sets how many points go into one write request.
func WithBatchSize(n int) InfluxOption {
	return func(s *InfluxSink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithDefaultTags adds tags to every point. Record tags take precedence
// over default tags with the same key.
func WithDefaultTags(tags map[string]string) InfluxOption {
	return func(s *InfluxSink) {
		s.defaultTags = maps.Clone(tags)
	}
}

// WithInfluxOptions replaces the client options, e.g. to set an HTTP client.
func WithInfluxOptions(opts *influxdb2.Options) InfluxOption {
	return func(s *InfluxSink) {
		s.options = opts
	}
}

// WithInfluxLogger sets the logger.
func WithInfluxLogger(l *slog.Logger) InfluxOption {
	return func(s *InfluxSink) {
		s.logger = l
	}
}

// NewInfluxSink creates a sink writing to the given server and bucket.
func NewInfluxSink(serverURL, token, org, bucket string, opts ...InfluxOption) *InfluxSink {
	s := &InfluxSink{
		serverURL:   serverURL,
		token:       token,
		org:         org,
		bucket:      bucket,
		measurement: "creators",
		batchSize:   defaultBatchSize,
		defaultTags: map[string]string{},
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.options == nil {
		s.options = influxdb2.DefaultOptions()
	}
	return s
}

// Name returns "influx".
func (s *InfluxSink) Name() string {
	return "influx"
}

// Write sends the catalog in batches through the blocking write API.
// Every point carries the same timestamp. The client is closed before
// Write returns.
func (s *InfluxSink) Write(ctx context.Context, h *model.Harvest) error {
	records := h.Catalog.Sorted()
	if len(records) == 0 {
		s.logger.Info("influx: nothing to write", "run", h.ID)
		return nil
	}

	client := influxdb2.NewClientWithOptions(s.serverURL, s.token, s.options)
	defer client.Close()
	writeAPI := client.WriteAPIBlocking(s.org, s.bucket)

	ts := s.now()
	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))

		points := make([]*write.Point, 0, end-start)
		for _, r := range records[start:end] {
			points = append(points, s.point(r, ts))
		}
		if err := writeAPI.WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("influx write of records %d-%d: %w", start, end, err)
		}
		s.logger.Debug("influx: batch written",
			"run", h.ID,
			"from", start,
			"to", end,
		)
	}

	s.logger.Info("influx: records written",
		"run", h.ID,
		"records", len(records),
		"bucket", s.bucket,
	)
	return nil
}

// point converts one record. Metrics are rounded to integers; Unknown is
// written as -1.
func (s *InfluxSink) point(r model.Record, ts time.Time) *write.Point {
	tags := make(map[string]string, len(s.defaultTags)+6)
	maps.Copy(tags, s.defaultTags)
	tags[tagURL] = r.URL
	tags[tagName] = r.Name
	tags[tagImageURL] = r.ImageURL
	tags[tagRecommended] = r.RecommendedString()
	tags[tagTags] = r.TagString()
	tags[tagSource] = s.source

	fields := map[string]any{
		fieldMonthly: int64(math.Round(r.MonthlyRevenue)),
		fieldPatrons: int64(math.Round(r.NumberOfPatrons)),
		fieldTotal:   int64(math.Round(r.TotalRevenue)),
	}

	return influxdb2.NewPoint(s.measurement, tags, fields, ts)
}
