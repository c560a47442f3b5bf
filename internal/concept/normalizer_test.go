package concept

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func TestNormalize_OverrideWins(t *testing.T) {
	t.Parallel()

	n := NewNormalizer("heroku", zap.NewNop())
	created := time.Date(2019, 3, 4, 0, 0, 0, 0, time.UTC)

	c := n.Normalize(RawProjectRecord{
		Login:       "jane",
		MemberName:  "Jane Doe",
		RepoName:    "widget-factory",
		Description: "repo description",
		CreatedAt:   created,
		RepoURL:     "https://github.com/jane/widget-factory",
		Languages:   []string{"Go", "HTML"},
		OverrideText: strPtr(`name: Fancy Pants
description: override description
url: https://fancy.herokuapp.com
technologies:
  - Elixir
cover_image: https://example.com/cover.png
banner: false
`),
	})

	require.Equal(t, "fancy-pants", c.Slug)
	require.Equal(t, "Fancy Pants", c.Title)
	require.Equal(t, "override description", c.Description)
	require.Equal(t, "https://fancy.herokuapp.com", c.TargetURL)
	require.True(t, c.HostedOnPlatform)
	require.Equal(t, []string{"Elixir"}, c.Languages)
	require.False(t, c.BannerEnabled)
	require.Equal(t, "https://example.com/cover.png", c.CoverImageURL)
	require.Equal(t, created, c.CreatedAt)
	require.Equal(t, "https://github.com/jane/widget-factory", c.RepoURL)
}

func TestNormalize_NoOverrideFallsBackToRepository(t *testing.T) {
	t.Parallel()

	n := NewNormalizer("heroku", zap.NewNop())
	c := n.Normalize(RawProjectRecord{
		Login:       "jane",
		RepoName:    "widget_factory",
		Description: "  a widget factory  ",
		RepoURL:     "https://github.com/jane/widget_factory",
		Languages:   []string{"Ruby"},
	})

	require.Equal(t, "widget_factory", c.Slug)
	require.Equal(t, "Widget Factory", c.Title)
	require.Equal(t, "a widget factory", c.Description)
	require.Equal(t, "https://github.com/jane/widget_factory", c.TargetURL)
	require.False(t, c.HostedOnPlatform)
	require.True(t, c.BannerEnabled)
	require.Empty(t, c.CoverImageURL)
}

func TestNormalize_UnparsableOverrideDegradesToEmpty(t *testing.T) {
	t.Parallel()

	n := NewNormalizer("heroku", zap.NewNop())
	c := n.Normalize(RawProjectRecord{
		Login:        "jane",
		RepoName:     "widget",
		Description:  "repo description",
		RepoURL:      "https://github.com/jane/widget",
		OverrideText: strPtr(":\n\t- not yaml"),
	})

	require.Equal(t, "widget", c.Slug)
	require.Equal(t, "repo description", c.Description)
	require.Equal(t, "https://github.com/jane/widget", c.TargetURL)
	require.True(t, c.BannerEnabled)
}

func TestNormalize_SlugDeterministicAndCollisionFree(t *testing.T) {
	t.Parallel()

	// Same inputs through two independent normalizers yield the same
	// slug.
	first := NewNormalizer("", zap.NewNop()).Normalize(RawProjectRecord{
		RepoName: "widget",
		OverrideText: strPtr(`name: Fancy Pants
`),
	})
	second := NewNormalizer("", zap.NewNop()).Normalize(RawProjectRecord{
		RepoName: "widget",
		OverrideText: strPtr(`name: Fancy Pants
`),
	})
	require.Equal(t, first.Slug, second.Slug)

	// Two distinct projects differing only by case and whitespace must
	// not collide within one run.
	n := NewNormalizer("", zap.NewNop())
	a := n.Normalize(RawProjectRecord{OverrideText: strPtr("name: Fancy Pants\n")})
	b := n.Normalize(RawProjectRecord{OverrideText: strPtr("name: \"fancy   pants\"\n")})
	require.Equal(t, "fancy-pants", a.Slug)
	require.Equal(t, "fancy-pants-2", b.Slug)
	require.NotEqual(t, a.Slug, b.Slug)
}

func TestNormalize_HostileNameCannotEscapePaths(t *testing.T) {
	t.Parallel()

	// The slug ends up in filenames and subdomains; a name carrying
	// path components must come out sanitized.
	n := NewNormalizer("", zap.NewNop())
	c := n.Normalize(RawProjectRecord{
		RepoName:     "widget",
		OverrideText: strPtr("name: ../../escape\n"),
	})
	require.Equal(t, "escape", c.Slug)
	require.NotContains(t, c.Slug, "/")
	require.NotContains(t, c.Slug, "..")

	// A name that sanitizes away entirely falls back to the repository
	// name.
	c = n.Normalize(RawProjectRecord{
		RepoName:     "gadget",
		OverrideText: strPtr("name: \"/// ../ ///\"\n"),
	})
	require.Equal(t, "gadget", c.Slug)
}

func TestNormalize_LanguageDedupAndExclusions(t *testing.T) {
	t.Parallel()

	n := NewNormalizer("", zap.NewNop())
	c := n.Normalize(RawProjectRecord{
		RepoName: "widget",
		OverrideText: strPtr(`technologies:
  - Ruby
  - CSS
  - ruby
`),
	})
	require.Equal(t, []string{"Ruby"}, c.Languages)

	// Discovered languages get the same treatment when the override
	// declares none.
	c = n.Normalize(RawProjectRecord{
		RepoName:  "gadget",
		Languages: []string{"HTML", "JavaScript", "javascript", "Css"},
	})
	require.Equal(t, []string{"JavaScript"}, c.Languages)
}

func TestNormalize_PlatformMarker(t *testing.T) {
	t.Parallel()

	n := NewNormalizer("heroku", zap.NewNop())
	hosted := n.Normalize(RawProjectRecord{
		RepoName:     "widget",
		OverrideText: strPtr("url: https://thing.herokuapp.com\n"),
	})
	require.True(t, hosted.HostedOnPlatform)

	elsewhere := n.Normalize(RawProjectRecord{
		RepoName:     "gadget",
		OverrideText: strPtr("url: https://gadget.example.com\n"),
	})
	require.False(t, elsewhere.HostedOnPlatform)
}

func TestTitleize(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Widget Factory", titleize("widget-factory"))
	require.Equal(t, "Widget Factory", titleize("widget_factory"))
	require.Equal(t, "Fancy Pants", titleize("fancy pants"))
	require.Equal(t, "", titleize(""))
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	require.Equal(t, "fancy-pants", slugify("Fancy Pants"))
	require.Equal(t, "fancy-pants", slugify("  fancy   pants  "))
	require.Equal(t, "widget", slugify("Widget"))
	require.Equal(t, "widget_factory", slugify("widget_factory"))
	require.Equal(t, "escape", slugify("../../escape"))
	require.Equal(t, "etcpasswd", slugify(`..\..\etc\passwd`))
	require.Equal(t, "wdgt", slugify("wídgét"))
	require.Equal(t, "", slugify("///"))
	require.Equal(t, "", slugify(""))
}
