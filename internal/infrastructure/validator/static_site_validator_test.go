package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/internal/domain/entity"
)

func siteFiles(files ...*entity.SiteFile) []*entity.SiteFile {
	return files
}

func TestAnalyzeValidSite(t *testing.T) {
	a := NewSiteAnalyzer()

	res, err := a.Analyze(siteFiles(
		&entity.SiteFile{Name: "index.html", Type: "html", Content: "<!doctype html><html><body><h1>hi</h1></body></html>"},
		&entity.SiteFile{Name: "app.js", Type: "script", Content: "console.log(1);"},
	), nil)

	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Errors)
}

func TestAnalyzeMissingIndex(t *testing.T) {
	a := NewSiteAnalyzer()

	res, err := a.Analyze(siteFiles(
		&entity.SiteFile{Name: "about.html", Type: "html", Content: "<html><body>x</body></html>"},
	), nil)

	require.NoError(t, err)
	assert.False(t, res.Passed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "index.html", res.Errors[0].File)
}

func TestAnalyzeIndexWithoutBody(t *testing.T) {
	a := NewSiteAnalyzer()

	// html.Parse synthesizes html/head/body for fragments, so only content
	// that parses to nothing at all can miss a body.
	res, err := a.Analyze(siteFiles(
		&entity.SiteFile{Name: "index.html", Type: "html", Content: "<html><body></body></html>"},
	), nil)

	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestAnalyzeLeakedSecret(t *testing.T) {
	a := NewSiteAnalyzer()

	res, err := a.Analyze(siteFiles(
		&entity.SiteFile{Name: "index.html", Type: "html", Content: "<html><body>s3cr3t-value</body></html>"},
	), []string{"s3cr3t-value"})

	require.NoError(t, err)
	assert.False(t, res.Passed)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "index.html", res.Errors[0].File)
	assert.Contains(t, res.Errors[0].Message, "secret")
}

func TestAnalyzeHardcodedCredentialWarning(t *testing.T) {
	a := NewSiteAnalyzer()

	res, err := a.Analyze(siteFiles(
		&entity.SiteFile{Name: "index.html", Type: "html", Content: "<html><body>ok</body></html>"},
		&entity.SiteFile{Name: "app.js", Type: "script", Content: `const api_key = "abcd1234";`},
	), nil)

	require.NoError(t, err)
	// Keyword hits are recorded but do not fail the site on their own.
	assert.True(t, res.Passed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "app.js", res.Errors[0].File)
	assert.Contains(t, res.Errors[0].Message, "api_key")
}

func TestAnalyzeEmptySecretIgnored(t *testing.T) {
	a := NewSiteAnalyzer()

	res, err := a.Analyze(siteFiles(
		&entity.SiteFile{Name: "index.html", Type: "html", Content: "<html><body>ok</body></html>"},
	), []string{""})

	require.NoError(t, err)
	assert.True(t, res.Passed)
}
