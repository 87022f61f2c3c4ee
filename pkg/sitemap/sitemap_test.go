package sitemap

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlcorpus/internal/models"
)

func newTestMapper() *Mapper {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAddPageAndGenerateOutput(t *testing.T) {
	m := newTestMapper()
	m.AddPage("https://example.com", []string{"https://example.com/a"}, 0, models.Content{
		URL:   "https://example.com",
		Title: "Home",
		Text:  "Welcome text",
	})
	m.AddPage("https://example.com/a", nil, 1, models.Content{
		URL:   "https://example.com/a",
		Title: "Page A",
		Text:  "Page A text",
	})

	report := m.GenerateOutput([]string{"https://example.com"})

	assert.Equal(t, []string{"https://example.com"}, report.Metadata.StartURLs)
	assert.Equal(t, 2, report.Metadata.TotalPages)
	assert.NotEmpty(t, report.Metadata.CrawlDate)
	assert.Empty(t, report.Metadata.Error)

	require.Contains(t, report.SiteMap, "https://example.com")
	entry := report.SiteMap["https://example.com"]
	assert.Equal(t, []string{"https://example.com/a"}, entry.Links)
	assert.Equal(t, 0, entry.Depth)
	assert.Equal(t, "Home", entry.Title)
	assert.NotEmpty(t, entry.Timestamp)

	// nil links marshal as an empty array, not null.
	assert.Equal(t, []string{}, report.SiteMap["https://example.com/a"].Links)

	expected := "# Home\nURL: https://example.com\n\nWelcome text" +
		"\n\n" +
		"# Page A\nURL: https://example.com/a\n\nPage A text"
	assert.Equal(t, expected, report.LLMFullText)
}

func TestEmptyContentExcludedFromCorpus(t *testing.T) {
	m := newTestMapper()
	m.AddPage("https://example.com/blank", nil, 0, models.Content{
		URL:   "https://example.com/blank",
		Title: "Blank",
	})

	report := m.GenerateOutput([]string{"https://example.com/blank"})

	assert.Contains(t, report.SiteMap, "https://example.com/blank")
	assert.Empty(t, report.LLMFullText)
}

func TestGenerateOutputEmptyMapper(t *testing.T) {
	report := newTestMapper().GenerateOutput([]string{"https://example.com"})

	assert.Equal(t, 0, report.Metadata.TotalPages)
	assert.Empty(t, report.SiteMap)
	assert.Empty(t, report.LLMFullText)
}

func TestSaveWritesIndentedJSON(t *testing.T) {
	m := newTestMapper()
	m.AddPage("https://example.com", nil, 0, models.Content{
		URL:   "https://example.com",
		Title: "Home",
		Text:  "Welcome",
	})
	report := m.GenerateOutput([]string{"https://example.com"})

	path := filepath.Join(t.TempDir(), "nested", "result.json")
	require.NoError(t, Save(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "metadata")
	assert.Contains(t, decoded, "site_map")
	assert.Contains(t, decoded, "llmfulltext")
}

func TestSaveFailsOnUnwritablePath(t *testing.T) {
	report := newTestMapper().GenerateOutput(nil)
	err := Save(report, filepath.Join(t.TempDir(), "missing\x00", "out.json"))
	assert.Error(t, err)
}
