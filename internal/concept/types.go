// Package concept defines the canonical project types and the
// normalization rules that turn raw discovery records into them.
package concept

import "time"

// RawProjectRecord is one repository discovered via the graph API.
// It is immutable once produced by the fetcher.
type RawProjectRecord struct {
	Login        string
	OwnerLogin   string
	MemberName   string
	RepoName     string
	Description  string
	CreatedAt    time.Time
	RepoURL      string
	Fork         bool
	Languages    []string
	OverrideText *string
}

// HasOverride reports whether the repository carries an override blob.
// A present-but-empty document is still an override.
func (r RawProjectRecord) HasOverride() bool {
	return r.OverrideText != nil
}

// Concept is the enriched unit the pipeline publishes. It is built once
// during normalization and enriched with screenshot references before
// being frozen into the feed.
type Concept struct {
	Slug              string
	Title             string
	Login             string
	OwnerName         string
	Description       string
	TargetURL         string
	HostedOnPlatform  bool
	Languages         []string
	BannerEnabled     bool
	CoverImageURL     string
	Screenshot        string
	TwitterScreenshot string
	CreatedAt         time.Time
	RepoURL           string
}
