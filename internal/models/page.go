package models

// CodeBlock is a fenced code sample preserved during content extraction.
type CodeBlock struct {
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Content is the cleaned result of extracting one page. A failed
// extraction yields a zero Content tagged with the source URL.
type Content struct {
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	Text       string      `json:"content"`
	CodeBlocks []CodeBlock `json:"code_blocks"`
}

// PageEntry is one site-map record: the internal links found on a page
// together with its crawl depth, title and crawl timestamp.
type PageEntry struct {
	Links     []string `json:"links"`
	Depth     int      `json:"depth"`
	Title     string   `json:"title"`
	Timestamp string   `json:"timestamp"`
}

// Metadata describes a completed crawl.
type Metadata struct {
	StartURLs  []string `json:"start_urls"`
	CrawlDate  string   `json:"crawl_date"`
	TotalPages int      `json:"total_pages"`
	Error      string   `json:"error,omitempty"`
}

// Report is the final JSON-serializable crawl output: crawl metadata,
// the full site map and the concatenated text corpus.
type Report struct {
	Metadata    Metadata             `json:"metadata"`
	SiteMap     map[string]PageEntry `json:"site_map"`
	LLMFullText string               `json:"llmfulltext"`
}
