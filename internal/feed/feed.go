// Package feed serializes the enriched concept set into the document
// the listing front end consumes.
package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/devcellar/concepts/internal/concept"
)

// Record is one concept entry in the feed. The field set is the
// contract the front end depends on and must remain stable.
type Record struct {
	Title             string    `json:"title"`
	Login             string    `json:"login"`
	CreatedAt         time.Time `json:"created_at"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Languages         []string  `json:"languages"`
	CoverImage        string    `json:"cover_image,omitempty"`
	Screenshot        string    `json:"screenshot,omitempty"`
	TwitterScreenshot string    `json:"twitter_screenshot,omitempty"`
	Link              string    `json:"link"`
	ProfileLink       string    `json:"profile_link"`
	RepoLink          string    `json:"repo_link"`
	HostedOnPlatform  bool      `json:"hosted_on_platform"`
}

// Document is the feed root: a data array of records.
type Document struct {
	Data []Record `json:"data"`
}

// Publisher writes the feed document.
type Publisher struct {
	path       string
	rootDomain string
	logger     *zap.Logger
}

// NewPublisher creates a Publisher writing to path.
func NewPublisher(path, rootDomain string, logger *zap.Logger) (*Publisher, error) {
	if path == "" {
		return nil, fmt.Errorf("feed path is required")
	}
	if rootDomain == "" {
		return nil, fmt.Errorf("root domain is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{path: path, rootDomain: rootDomain, logger: logger}, nil
}

// Publish serializes the concepts and writes the feed atomically. A
// malformed concept is excluded with a log line rather than corrupting
// the document.
func (p *Publisher) Publish(concepts []concept.Concept) (Document, error) {
	doc := Document{Data: make([]Record, 0, len(concepts))}
	for _, c := range concepts {
		if c.Slug == "" || c.TargetURL == "" {
			p.logger.Warn("excluding malformed concept from feed",
				zap.String("slug", c.Slug),
				zap.String("repo", c.RepoURL),
			)
			continue
		}
		doc.Data = append(doc.Data, p.record(c))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Document{}, fmt.Errorf("marshal feed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o750); err != nil {
		return Document{}, fmt.Errorf("create feed dir: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return Document{}, fmt.Errorf("write feed: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return Document{}, fmt.Errorf("publish feed: %w", err)
	}

	p.logger.Info("feed published",
		zap.String("path", p.path),
		zap.Int("records", len(doc.Data)),
	)
	return doc, nil
}

func (p *Publisher) record(c concept.Concept) Record {
	languages := c.Languages
	if languages == nil {
		languages = []string{}
	}
	return Record{
		Title:             c.Title,
		Login:             c.Login,
		CreatedAt:         c.CreatedAt,
		Name:              c.OwnerName,
		Description:       c.Description,
		Languages:         languages,
		CoverImage:        c.CoverImageURL,
		Screenshot:        c.Screenshot,
		TwitterScreenshot: c.TwitterScreenshot,
		Link:              fmt.Sprintf("http://%s.%s", c.Slug, p.rootDomain),
		ProfileLink:       fmt.Sprintf("https://github.com/%s", c.Login),
		RepoLink:          c.RepoURL,
		HostedOnPlatform:  c.HostedOnPlatform,
	}
}
