package extractor

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"crawlcorpus/internal/models"
)

// unwantedSelector matches structural and non-content elements removed
// before the body text is extracted.
const unwantedSelector = "header,footer,nav,aside,script,style,noscript,iframe"

var (
	hiddenStyle  = regexp.MustCompile(`display:\s*none`)
	contentClass = regexp.MustCompile(`(?i)(content|main|article)`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// Extractor turns raw markup into cleaned text with fenced code blocks
// preserved, plus a title. It never returns an error: on any internal
// failure it yields an empty result tagged with the source URL so the
// crawl loop needs no special-casing here.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract produces the title, the cleaned body text and the preserved
// code blocks for one page.
func (e *Extractor) Extract(body, pageURL string) models.Content {
	empty := models.Content{URL: pageURL, CodeBlocks: []models.CodeBlock{}}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		e.logger.Error("error extracting content", "url", pageURL, "error", err)
		return empty
	}

	blocks := preserveCodeBlocks(doc)
	removeUnwanted(doc)
	title := extractTitle(doc)
	text := reinsertCodeBlocks(mainContent(doc), blocks)

	return models.Content{
		URL:        pageURL,
		Title:      title,
		Text:       text,
		CodeBlocks: blocks,
	}
}

// preserveCodeBlocks replaces pre/code elements with numbered
// placeholders that survive the cleaning pass. A code element nested in a
// pre is covered by the enclosing pre and skipped.
func preserveCodeBlocks(doc *goquery.Document) []models.CodeBlock {
	blocks := []models.CodeBlock{}
	doc.Find("pre, code").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "code" && s.ParentsFiltered("pre").Length() > 0 {
			return
		}
		blocks = append(blocks, models.CodeBlock{
			Content:  s.Text(),
			Language: languageOf(s),
		})
		s.ReplaceWithHtml(fmt.Sprintf(" [CODE_BLOCK_%d] ", len(blocks)-1))
	})
	return blocks
}

// languageOf derives the fence tag from the element's first class (or
// its inner code element's), stripping the conventional "language-"
// prefix.
func languageOf(s *goquery.Selection) string {
	class, ok := s.Attr("class")
	if !ok || strings.TrimSpace(class) == "" {
		class, _ = s.Find("code").First().Attr("class")
	}
	fields := strings.Fields(class)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[0], "language-")
}

func removeUnwanted(doc *goquery.Document) {
	doc.Find(unwantedSelector).Remove()
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if style, ok := s.Attr("style"); ok && hiddenStyle.MatchString(style) {
			s.Remove()
		}
	})
}

// extractTitle prefers the document title element, falls back to the
// first top-level heading, else returns empty.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// mainContent prefers an explicit main content container over the whole
// document text.
func mainContent(doc *goquery.Document) string {
	sel := doc.Find("main").First()
	if sel.Length() == 0 {
		sel = doc.Find("article").First()
	}
	if sel.Length() == 0 {
		sel = doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			return contentClass.MatchString(class)
		}).First()
	}
	if sel.Length() > 0 {
		return cleanText(sel.Text())
	}
	return cleanText(doc.Text())
}

// cleanText collapses whitespace runs to single spaces.
func cleanText(text string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}

// reinsertCodeBlocks swaps the placeholders back in as fenced blocks at
// their original positions.
func reinsertCodeBlocks(text string, blocks []models.CodeBlock) string {
	for i, block := range blocks {
		placeholder := fmt.Sprintf("[CODE_BLOCK_%d]", i)
		fenced := fmt.Sprintf("\n```%s\n%s\n```\n", block.Language, block.Content)
		text = strings.ReplaceAll(text, placeholder, fenced)
	}
	return text
}
