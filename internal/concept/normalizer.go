package concept

import (
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// excludedLanguages are markup/styling tags dropped from the published
// language set, matched case-insensitively.
var excludedLanguages = map[string]struct{}{
	"html": {},
	"css":  {},
}

// Normalizer turns raw records into Concepts. It keeps a per-run slug
// registry so the slug-uniqueness invariant holds even when two
// projects normalize to the same name. Not safe for concurrent use.
type Normalizer struct {
	platformMarker string
	used           map[string]int
	logger         *zap.Logger
}

// NewNormalizer creates a Normalizer. platformMarker is the substring
// that marks a target URL as hosted on the known third-party platform.
func NewNormalizer(platformMarker string, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		platformMarker: platformMarker,
		used:           make(map[string]int),
		logger:         logger,
	}
}

// Normalize merges a raw record with its override document into a
// Concept. It is total: an unparsable override degrades to an empty
// document so one bad project never blocks the run.
func (n *Normalizer) Normalize(raw RawProjectRecord) Concept {
	var doc OverrideDocument
	if raw.OverrideText != nil {
		parsed, err := ParseOverride(*raw.OverrideText)
		if err != nil {
			n.logger.Warn("override document unparsable, using defaults",
				zap.String("login", raw.Login),
				zap.String("repo", raw.RepoName),
				zap.Error(err),
			)
		} else {
			doc = parsed
		}
	}

	nameSource := doc.Name
	if strings.TrimSpace(nameSource) == "" {
		nameSource = raw.RepoName
	}

	targetURL := doc.URL
	if targetURL == "" {
		targetURL = raw.RepoURL
	}

	description := doc.Description
	if description == "" {
		description = raw.Description
	}

	// A name whose slug sanitizes away entirely falls back to the
	// repository name, which is already path- and URL-safe on GitHub.
	slug := slugify(nameSource)
	if slug == "" {
		slug = slugify(raw.RepoName)
	}

	return Concept{
		Slug:             n.registerSlug(slug),
		Title:            titleize(nameSource),
		Login:            raw.Login,
		OwnerName:        raw.MemberName,
		Description:      strings.TrimSpace(description),
		TargetURL:        targetURL,
		HostedOnPlatform: n.platformMarker != "" && strings.Contains(targetURL, n.platformMarker),
		Languages:        normalizeLanguages(doc.Technologies, raw.Languages),
		BannerEnabled:    doc.BannerEnabled(),
		CoverImageURL:    doc.CoverImage,
		CreatedAt:        raw.CreatedAt,
		RepoURL:          raw.RepoURL,
	}
}

// registerSlug claims a slug for this run, suffixing -2, -3, ... when
// distinct concepts normalize to the same base.
func (n *Normalizer) registerSlug(base string) string {
	slug := base
	for i := 2; ; i++ {
		if _, taken := n.used[slug]; !taken {
			break
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	n.used[slug] = 1
	return slug
}

// slugify lowercases, collapses whitespace runs to single hyphens, and
// drops every other rune outside [a-z0-9_-]. The slug becomes a
// subdomain, a cache-key prefix, and a filename, so nothing that could
// act as a path or host separator may survive.
func slugify(s string) string {
	joined := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), "-")
	var b strings.Builder
	b.Grow(len(joined))
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

// titleize produces a human title from a name or repository name:
// hyphens and underscores become spaces and each word is capitalized.
func titleize(s string) string {
	replaced := strings.NewReplacer("-", " ", "_", " ").Replace(s)
	words := strings.Fields(replaced)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// normalizeLanguages picks the override technologies when non-empty,
// else the discovered languages, drops HTML/CSS-like entries, and
// dedups case-insensitively preserving first-seen casing.
func normalizeLanguages(override, discovered []string) []string {
	source := override
	if len(source) == 0 {
		source = discovered
	}

	out := make([]string, 0, len(source))
	seen := make(map[string]struct{}, len(source))
	for _, lang := range source {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		key := strings.ToLower(lang)
		if _, excluded := excludedLanguages[key]; excluded {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, lang)
	}
	return out
}
