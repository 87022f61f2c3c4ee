package sitemap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"crawlcorpus/internal/models"
)

// Mapper accumulates per-page metadata and the running text corpus for
// one crawl. It is safe for concurrent use; the site map only grows while
// the crawl runs and is read once at the end.
type Mapper struct {
	logger *slog.Logger

	mu     sync.Mutex
	pages  map[string]models.PageEntry
	corpus []models.Content
}

// New creates an empty Mapper.
func New(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		logger: logger,
		pages:  make(map[string]models.PageEntry),
	}
}

// AddPage records one page's metadata and, if the content is non-empty,
// appends a corpus entry.
func (m *Mapper) AddPage(url string, links []string, depth int, content models.Content) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if links == nil {
		links = []string{}
	}
	m.pages[url] = models.PageEntry{
		Links:     links,
		Depth:     depth,
		Title:     content.Title,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if content.Text != "" {
		m.corpus = append(m.corpus, content)
	}
}

// Pages returns the number of recorded pages.
func (m *Mapper) Pages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// GenerateOutput builds the final report: metadata, the full site map and
// the concatenated text corpus. It must not fail the crawl: on an
// internal error it still returns a report, with an empty map and corpus
// and the error surfaced in the metadata.
func (m *Mapper) GenerateOutput(startURLs []string) (report *models.Report) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("error generating output", "panic", r)
			report = &models.Report{
				Metadata: models.Metadata{
					StartURLs: startURLs,
					CrawlDate: time.Now().Format(time.RFC3339),
					Error:     fmt.Sprint(r),
				},
				SiteMap: map[string]models.PageEntry{},
			}
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	sections := make([]string, 0, len(m.corpus))
	for _, page := range m.corpus {
		sections = append(sections, fmt.Sprintf("# %s\nURL: %s\n\n%s", page.Title, page.URL, page.Text))
	}

	siteMap := make(map[string]models.PageEntry, len(m.pages))
	for url, entry := range m.pages {
		siteMap[url] = entry
	}

	return &models.Report{
		Metadata: models.Metadata{
			StartURLs:  startURLs,
			CrawlDate:  time.Now().Format(time.RFC3339),
			TotalPages: len(siteMap),
		},
		SiteMap:     siteMap,
		LLMFullText: strings.Join(sections, "\n\n"),
	}
}

// Save writes the report as indented JSON, creating parent directories as
// needed. Unlike report generation, persisting is allowed to fail loudly.
func Save(report *models.Report, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
