package crawler

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crawlcorpus/internal/config"
	"crawlcorpus/internal/models"
	"crawlcorpus/pkg/extractor"
	"crawlcorpus/pkg/sitemap"
	"crawlcorpus/pkg/urlpolicy"
)

// nonHTMLExtensions are document, archive and media suffixes rejected
// before any other admission check.
var nonHTMLExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx",
	".zip", ".rar", ".tar", ".gz", ".jpg", ".jpeg", ".png", ".gif",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".csv", ".xml",
}

// Crawler drives the concurrency-limited, depth-bounded recursive crawl.
// Per-URL failures are recorded, never propagated: Crawl always returns a
// report.
type Crawler struct {
	cfg       *config.CrawlerConfig
	client    *http.Client
	breaker   *CircuitBreaker
	extractor *extractor.Extractor
	mapper    *sitemap.Mapper
	pace      *pacer
	logger    *slog.Logger

	// jitter feeds the retry backoff; swapped out in tests.
	jitter func() float64
}

// New creates a crawler from a validated configuration.
func New(cfg *config.CrawlerConfig, logger *slog.Logger) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Crawler{
		cfg:       cfg,
		client:    &http.Client{Transport: transport},
		breaker:   NewCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout, logger),
		extractor: extractor.New(logger),
		mapper:    sitemap.New(logger),
		pace:      newPacer(cfg.Delay, cfg.RequestsPerSecond),
		logger:    logger,
		jitter:    rand.Float64,
	}, nil
}

// Crawl fetches the seed URLs and their internal links up to the
// configured depth and link budget, then returns the aggregated report.
// Each seed gets its own policy so exclusion, robots and path-prefix
// rules are evaluated relative to that seed's origin.
func (c *Crawler) Crawl(ctx context.Context, seeds []string) *models.Report {
	sess := newSession(c.cfg.MaxLinks)

	// The origin-to-policy mapping is immutable once crawling starts.
	policies := make(map[string]*urlpolicy.Policy, len(seeds))
	for _, seed := range seeds {
		pol, err := urlpolicy.New(seed, urlpolicy.Options{
			RespectRobots:   c.cfg.RespectRobotsTxt,
			SamePathOnly:    c.cfg.SamePathOnly,
			ExcludeKeywords: c.cfg.ExcludeKeywords,
			UserAgent:       c.cfg.UserAgent,
			Client:          c.client,
			Logger:          c.logger,
		})
		if err != nil {
			c.logger.Error("skipping seed", "seed", seed, "error", err)
			continue
		}
		policies[seed] = pol
	}

	var g errgroup.Group
	for _, pol := range policies {
		pol := pol
		g.Go(func() error {
			c.crawlURL(ctx, sess, pol, pol.BaseURL(), 0)
			return nil
		})
	}
	_ = g.Wait()

	if counts := sess.errorCounts(); len(counts) > 0 {
		for kind, n := range counts {
			c.logger.Info("error statistics", "kind", kind, "count", n)
		}
	}
	c.logger.Info("crawl finished", "pages", sess.pages())

	return c.mapper.GenerateOutput(seeds)
}

// crawlURL runs the full admission, fetch-and-retry and recursion
// sequence for one URL. The permit is held for the whole sequence and
// released exactly once on every exit path.
func (c *Crawler) crawlURL(ctx context.Context, sess *session, pol *urlpolicy.Policy, pageURL string, depth int) {
	if sess.stopped() || ctx.Err() != nil {
		return
	}
	if hasNonHTMLExtension(pageURL) {
		return
	}
	// Exclusion is checked before anything that could touch the budget.
	if pol.IsExcluded(pageURL) {
		return
	}
	if !c.shouldCrawl(sess, pol, pageURL, depth) {
		return
	}

	if !sess.acquire() {
		return
	}
	defer sess.release()

	if !sess.claim(pageURL) {
		return
	}

	domain := hostOf(pageURL)

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if !c.backoff(ctx, attempt-1, pageURL) {
				return
			}
		}
		if err := c.pace.wait(ctx, domain); err != nil {
			return
		}

		out := c.fetch(ctx, pageURL)
		switch out.kind {
		case outcomeSuccess:
			c.breaker.RecordSuccess(domain)
			c.processPage(ctx, sess, pol, pageURL, depth, out.body)
			return

		case outcomeSkip:
			sess.markVisited(pageURL)
			return

		case outcomeRetryable:
			sess.recordError(out.errKind)
			c.breaker.RecordFailure(domain)
			c.logger.Warn("retryable error",
				"url", pageURL, "kind", out.errKind,
				"attempt", attempt+1, "max_attempts", c.cfg.MaxRetries+1)
			if attempt == c.cfg.MaxRetries {
				c.logger.Error("giving up", "url", pageURL, "kind", out.errKind)
				sess.markFailed(pageURL)
				return
			}

		case outcomeTerminal:
			sess.recordError(out.errKind)
			c.logger.Warn("terminal error", "url", pageURL, "kind", out.errKind)
			sess.markFailed(pageURL)
			return
		}
	}
}

// processPage handles a decoded HTML page: extraction, aggregation,
// budget accounting and the concurrent recursion into child links. The
// parent is always fully processed before any child is scheduled.
func (c *Crawler) processPage(ctx context.Context, sess *session, pol *urlpolicy.Policy, pageURL string, depth int, body string) {
	if !sess.countSuccess() {
		// Fetched while the budget ran out: not recorded, but marked
		// visited so it is never re-attempted.
		sess.markVisited(pageURL)
		return
	}
	content := c.extractor.Extract(body, pageURL)

	links := pol.ExtractLinks(body, pageURL)
	var internal []string
	for _, link := range links {
		if pol.IsInternal(link) {
			internal = append(internal, link)
		}
	}

	c.mapper.AddPage(pageURL, internal, depth, content)
	sess.markVisited(pageURL)
	c.logger.Debug("crawled", "url", pageURL, "depth", depth, "links", len(internal))

	if depth >= c.cfg.MaxDepth || sess.stopped() {
		return
	}
	var wg sync.WaitGroup
	for _, link := range internal {
		wg.Add(1)
		go func(link string) {
			defer wg.Done()
			c.crawlURL(ctx, sess, pol, link, depth+1)
		}(link)
	}
	wg.Wait()
}

// shouldCrawl applies the admission checks that follow the exclusion
// rules: stop flag, dedup, depth, validity, robots and circuit breaker.
func (c *Crawler) shouldCrawl(sess *session, pol *urlpolicy.Policy, pageURL string, depth int) bool {
	if sess.stopped() {
		return false
	}
	if sess.seen(pageURL) {
		return false
	}
	if depth > c.cfg.MaxDepth {
		return false
	}
	if !pol.IsValid(pageURL) {
		return false
	}
	if !pol.CanFetch(pageURL, c.cfg.UserAgent) {
		return false
	}
	if c.breaker.IsOpen(hostOf(pageURL)) {
		c.logger.Info("skipping URL, circuit breaker open", "url", pageURL)
		return false
	}
	return true
}

// retryDelay computes the wait before the given retry attempt:
// base*2^attempt plus jitter in [0,1) seconds.
func (c *Crawler) retryDelay(attempt int) time.Duration {
	return time.Duration(float64(c.cfg.RetryDelay)*math.Pow(2, float64(attempt))) +
		time.Duration(c.jitter()*float64(time.Second))
}

// backoff sleeps for the attempt's retry delay. It returns false if the
// context is cancelled first.
func (c *Crawler) backoff(ctx context.Context, attempt int, pageURL string) bool {
	delay := c.retryDelay(attempt)
	c.logger.Debug("retrying", "url", pageURL, "backoff", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func hasNonHTMLExtension(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range nonHTMLExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
