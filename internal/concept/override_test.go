package concept

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOverride_EmptyDocumentIsValid(t *testing.T) {
	t.Parallel()

	doc, err := ParseOverride("")
	require.NoError(t, err)
	require.Equal(t, OverrideDocument{}, doc)
	require.True(t, doc.BannerEnabled())
}

func TestParseOverride_UnknownKeysIgnored(t *testing.T) {
	t.Parallel()

	doc, err := ParseOverride(`name: Widget
unknown_key: whatever
banner: true
`)
	require.NoError(t, err)
	require.Equal(t, "Widget", doc.Name)
	require.True(t, doc.BannerEnabled())
}

func TestParseOverride_ExplicitBannerFalse(t *testing.T) {
	t.Parallel()

	doc, err := ParseOverride("banner: false\n")
	require.NoError(t, err)
	require.False(t, doc.BannerEnabled())
}

func TestParseOverride_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseOverride(":\n\t- nope")
	require.Error(t, err)
}
