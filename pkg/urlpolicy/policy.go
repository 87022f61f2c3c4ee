package urlpolicy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// excludedPatterns reject asset files, non-web schemes, auth paths and
// tracking parameters regardless of per-crawl settings.
var excludedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|ico|css|js|xml|json)$`),
	regexp.MustCompile(`(?i)(mailto:|tel:)`),
	regexp.MustCompile(`(?i)(login|logout|signin|signout|admin)`),
	regexp.MustCompile(`(?i)(\?|&)utm_`),
}

// Options configures a Policy.
type Options struct {
	RespectRobots   bool
	SamePathOnly    bool
	ExcludeKeywords []string
	UserAgent       string
	Client          *http.Client
	Logger          *slog.Logger
}

// Policy evaluates URL admission rules relative to one seed origin.
// It is read-only after construction except for the robots ruleset,
// which is fetched lazily exactly once.
type Policy struct {
	baseURL         *url.URL
	baseDomain      string
	basePathPrefix  string
	respectRobots   bool
	samePathOnly    bool
	excludeKeywords []string
	userAgent       string
	client          *http.Client
	logger          *slog.Logger

	robotsOnce sync.Once
	robots     *robotstxt.RobotsData
}

// New constructs the policy bound to the given seed URL.
func New(seed string, opts Options) (*Policy, error) {
	base, err := url.Parse(Normalize(seed))
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL %q: %w", seed, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("seed URL %q has no host", seed)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Policy{
		baseURL:         base,
		baseDomain:      strings.ToLower(base.Host),
		basePathPrefix:  base.Path,
		respectRobots:   opts.RespectRobots,
		samePathOnly:    opts.SamePathOnly,
		excludeKeywords: opts.ExcludeKeywords,
		userAgent:       opts.UserAgent,
		client:          client,
		logger:          logger,
	}, nil
}

// BaseURL returns the normalized seed URL the policy is bound to.
func (p *Policy) BaseURL() string {
	return p.baseURL.String()
}

// Normalize collapses equivalent URL forms to one identity by stripping
// the fragment and any trailing slashes. It is idempotent.
func Normalize(raw string) string {
	if i := strings.Index(raw, "#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimRight(raw, "/")
}

// IsInternal reports whether the URL belongs to the origin: same host or
// host-relative, and, with the same-path restriction, under the origin's
// base path.
func (p *Policy) IsInternal(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	sameDomain := u.Host == "" || strings.EqualFold(u.Host, p.baseDomain)
	if p.samePathOnly {
		return sameDomain && p.hasSamePathPrefix(u)
	}
	return sameDomain
}

// hasSamePathPrefix checks the URL path against the origin's base path.
// An empty or root base path matches everything.
func (p *Policy) hasSamePathPrefix(u *url.URL) bool {
	if p.basePathPrefix == "" || p.basePathPrefix == "/" {
		return true
	}
	return strings.HasPrefix(u.Path, p.basePathPrefix)
}

// IsValid reports whether the URL is fetchable at all: http or https
// scheme, a non-empty host, and no match against the exclusion rules.
func (p *Policy) IsValid(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	return !p.IsExcluded(pageURL)
}

// IsExcluded checks the URL against the built-in exclusion patterns and
// the configured exclude keywords. Exclusion rejections never count
// against the link budget, so the orchestrator consults this before the
// other admission checks.
func (p *Policy) IsExcluded(pageURL string) bool {
	for _, re := range excludedPatterns {
		if re.MatchString(pageURL) {
			return true
		}
	}
	if len(p.excludeKeywords) == 0 {
		return false
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, kw := range p.excludeKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(path, strings.ToLower(kw)) {
			p.logger.Debug("excluding URL due to keyword match", "url", pageURL, "keyword", kw)
			return true
		}
	}
	return false
}

// CanFetch reports whether robots.txt permits fetching the URL with the
// given user agent. The ruleset is fetched once per origin; any fetch or
// parse failure is treated as allow-all.
func (p *Policy) CanFetch(pageURL, userAgent string) bool {
	if !p.respectRobots {
		return true
	}
	p.robotsOnce.Do(p.fetchRobots)
	if p.robots == nil {
		return true
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return true
	}
	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.robots.TestAgent(path, userAgent)
}

func (p *Policy) fetchRobots() {
	robotsURL := p.baseURL.Scheme + "://" + p.baseURL.Host + "/robots.txt"
	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		return
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("could not fetch robots.txt", "url", robotsURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return
	}
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		p.logger.Warn("could not parse robots.txt", "url", robotsURL, "error", err)
		return
	}
	p.robots = data
}
