package model

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Unknown is the sentinel stored in numeric fields when the source value was
// present but could not be parsed. It is distinct from a genuine zero.
const Unknown = -1

// TagSeparator joins Record.Tags into the single string written to sinks.
const TagSeparator = ","

// Record is one creator profile as it appeared on a listing page.
// Records are values: merging replaces a record, it never edits one.
type Record struct {
	// URL is the profile link. It identifies the creator across the whole
	// crawl; two records with the same URL describe the same creator.
	URL string `json:"url"`

	// Name is the display name shown on the card.
	Name string `json:"name"`

	// ImageURL is the avatar source. Empty when the card has no image.
	ImageURL string `json:"image_url"`

	// IsRecommended reports whether the record came from the featured
	// section of a category's first page.
	IsRecommended bool `json:"is_recommended"`

	// MonthlyRevenue is the monthly amount in PLN, or Unknown.
	MonthlyRevenue float64 `json:"monthly_revenue"`

	// TotalRevenue is the lifetime amount in PLN, or Unknown.
	TotalRevenue float64 `json:"total_revenue"`

	// NumberOfPatrons is the patron count, or Unknown.
	NumberOfPatrons float64 `json:"number_of_patrons"`

	// Tags are the card labels in the order they were encountered.
	Tags []string `json:"tags"`
}

// Valid reports whether the record can take part in a merge.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.URL) != ""
}

// TagString returns the tags joined for the sink boundary.
func (r Record) TagString() string {
	return strings.Join(r.Tags, TagSeparator)
}

// RecommendedString renders IsRecommended as the "true"/"false" tag value.
func (r Record) RecommendedString() string {
	return strconv.FormatBool(r.IsRecommended)
}

// HasUnknownMetric reports whether any numeric field holds the Unknown sentinel.
func (r Record) HasUnknownMetric() bool {
	return r.MonthlyRevenue == Unknown || r.TotalRevenue == Unknown || r.NumberOfPatrons == Unknown
}

// Fingerprint returns a SHA3-256 digest over every field of the record.
// Two snapshots of the same creator with equal fingerprints are unchanged.
func (r Record) Fingerprint() string {
	h := sha3.New256()
	for _, part := range []string{
		r.URL,
		r.Name,
		r.ImageURL,
		r.RecommendedString(),
		strconv.FormatFloat(r.MonthlyRevenue, 'f', -1, 64),
		strconv.FormatFloat(r.TotalRevenue, 'f', -1, 64),
		strconv.FormatFloat(r.NumberOfPatrons, 'f', -1, 64),
		r.TagString(),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
