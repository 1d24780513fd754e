package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRootSiteURL(t *testing.T) {
	ref, err := ResolveRoot("https://contoso.sharepoint.com/sites/marketing")
	require.NoError(t, err)
	assert.Equal(t, "contoso.sharepoint.com", ref.Hostname)
	assert.Equal(t, "/sites/marketing", ref.SitePath)
	assert.Empty(t, ref.LibraryPath)
	assert.Empty(t, ref.LibraryName())
}

func TestResolveRootLibraryPath(t *testing.T) {
	ref, err := ResolveRoot("https://contoso.sharepoint.com/sites/marketing/Shared%20Documents/Campaigns")
	require.NoError(t, err)
	assert.Equal(t, "/sites/marketing", ref.SitePath)
	assert.Equal(t, "Shared Documents/Campaigns", ref.LibraryPath)
	assert.Equal(t, "Shared Documents", ref.LibraryName())
}

func TestResolveRootTeamsSegment(t *testing.T) {
	ref, err := ResolveRoot("https://contoso.sharepoint.com/teams/finance/Reports")
	require.NoError(t, err)
	assert.Equal(t, "/teams/finance", ref.SitePath)
	assert.Equal(t, "Reports", ref.LibraryName())
}

func TestResolveRootViewURLWithIDParam(t *testing.T) {
	ref, err := ResolveRoot("https://contoso.sharepoint.com/sites/marketing/Shared%20Documents/Forms/AllItems.aspx?id=%2Fsites%2Fmarketing%2FShared%20Documents%2FCampaigns")
	require.NoError(t, err)
	assert.Equal(t, "/sites/marketing", ref.SitePath)
	assert.Equal(t, "Shared Documents/Campaigns", ref.LibraryPath)
}

func TestResolveRootViewURLWithRootFolderParam(t *testing.T) {
	ref, err := ResolveRoot("https://contoso.sharepoint.com/sites/marketing/Shared%20Documents/Forms/AllItems.aspx?RootFolder=%2Fsites%2Fmarketing%2FShared%20Documents")
	require.NoError(t, err)
	assert.Equal(t, "Shared Documents", ref.LibraryPath)
}

func TestResolveRootStripsViewPage(t *testing.T) {
	ref, err := ResolveRoot("https://contoso.sharepoint.com/sites/marketing/Shared%20Documents/Forms/AllItems.aspx")
	require.NoError(t, err)
	assert.Equal(t, "Shared Documents", ref.LibraryPath)
}

func TestResolveRootRejectsUnrecognizableURL(t *testing.T) {
	cases := []string{
		"https://contoso.sharepoint.com/personal/user",
		"https://contoso.sharepoint.com/",
		"https://contoso.sharepoint.com/sites",
		"not a url at all ://",
	}
	for _, source := range cases {
		_, err := ResolveRoot(source)
		assert.Error(t, err, source)
	}
}
