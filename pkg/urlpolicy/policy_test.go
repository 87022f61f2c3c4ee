package urlpolicy

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustPolicy(t *testing.T, seed string, opts Options) *Policy {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	pol, err := New(seed, opts)
	require.NoError(t, err)
	return pol
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/docs/", "https://example.com/docs"},
		{"https://example.com/docs///", "https://example.com/docs"},
		{"https://example.com/docs#section", "https://example.com/docs"},
		{"https://example.com/docs/#section", "https://example.com/docs"},
		{"https://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	once := Normalize("https://example.com/docs/#top")
	assert.Equal(t, once, Normalize(once))
}

func TestNewRejectsHostlessSeed(t *testing.T) {
	_, err := New("/just/a/path", Options{Logger: discardLogger()})
	assert.Error(t, err)
}

func TestBaseURLIsNormalized(t *testing.T) {
	pol := mustPolicy(t, "https://example.com/docs/#intro", Options{})
	assert.Equal(t, "https://example.com/docs", pol.BaseURL())
}

func TestIsInternal(t *testing.T) {
	pol := mustPolicy(t, "https://example.com/docs", Options{})

	assert.True(t, pol.IsInternal("https://example.com/other"))
	assert.True(t, pol.IsInternal("https://EXAMPLE.com/other"))
	assert.True(t, pol.IsInternal("/relative/path"))
	assert.False(t, pol.IsInternal("https://other.com/page"))
}

func TestIsInternalSamePathOnly(t *testing.T) {
	pol := mustPolicy(t, "https://example.com/docs", Options{SamePathOnly: true})

	assert.True(t, pol.IsInternal("https://example.com/docs/guide"))
	assert.False(t, pol.IsInternal("https://example.com/blog/post"))
	assert.False(t, pol.IsInternal("https://other.com/docs/guide"))
}

func TestIsInternalSamePathOnlyRootSeed(t *testing.T) {
	pol := mustPolicy(t, "https://example.com/", Options{SamePathOnly: true})
	assert.True(t, pol.IsInternal("https://example.com/anything/at/all"))
}

func TestIsValid(t *testing.T) {
	pol := mustPolicy(t, "https://example.com", Options{})

	assert.True(t, pol.IsValid("https://example.com/page"))
	assert.True(t, pol.IsValid("http://example.com/page"))
	assert.False(t, pol.IsValid("ftp://example.com/file"))
	assert.False(t, pol.IsValid("mailto:someone@example.com"))
	assert.False(t, pol.IsValid("https://example.com/logo.png"))
	assert.False(t, pol.IsValid("https://example.com/styles.css"))
	assert.False(t, pol.IsValid("https://example.com/admin/panel"))
	assert.False(t, pol.IsValid("https://example.com/page?utm_source=feed"))
}

func TestIsExcludedKeywords(t *testing.T) {
	pol := mustPolicy(t, "https://example.com", Options{
		ExcludeKeywords: []string{"Private", "draft"},
	})

	assert.True(t, pol.IsExcluded("https://example.com/private/notes"))
	assert.True(t, pol.IsExcluded("https://example.com/posts/DRAFT-1"))
	assert.False(t, pol.IsExcluded("https://example.com/public/notes"))
	// Keywords apply to the path, not the query string.
	assert.False(t, pol.IsExcluded("https://example.com/page?tag=private"))
}

func TestCanFetchDisabledRobots(t *testing.T) {
	pol := mustPolicy(t, "https://example.com", Options{RespectRobots: false})
	assert.True(t, pol.CanFetch("https://example.com/anywhere", "any-agent"))
}

func TestCanFetchRespectsRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	}))
	defer server.Close()

	pol := mustPolicy(t, server.URL, Options{
		RespectRobots: true,
		UserAgent:     "crawlcorpus-test",
		Client:        server.Client(),
	})

	assert.False(t, pol.CanFetch(server.URL+"/private/page", "crawlcorpus-test"))
	assert.True(t, pol.CanFetch(server.URL+"/public/page", "crawlcorpus-test"))
}

func TestCanFetchIncludesQueryString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "User-agent: *\nDisallow: /search?q=\n")
	}))
	defer server.Close()

	pol := mustPolicy(t, server.URL, Options{
		RespectRobots: true,
		Client:        server.Client(),
	})

	assert.False(t, pol.CanFetch(server.URL+"/search?q=anything", "crawlcorpus-test"))
	assert.True(t, pol.CanFetch(server.URL+"/search", "crawlcorpus-test"))
}

func TestCanFetchMissingRobotsAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	pol := mustPolicy(t, server.URL, Options{
		RespectRobots: true,
		Client:        server.Client(),
	})
	assert.True(t, pol.CanFetch(server.URL+"/private/page", "crawlcorpus-test"))
}

func TestExtractLinks(t *testing.T) {
	pol := mustPolicy(t, "https://example.com", Options{})
	body := `<html><body>
		<a href="/docs">Docs</a>
		<a href="guide">Relative</a>
		<a href="https://example.com/docs#install">Docs again</a>
		<a href="https://other.com/page">External</a>
		<a href="mailto:hi@example.com">Mail</a>
		<a href="/image.png">Image</a>
		<a href="   ">Blank</a>
	</body></html>`

	links := pol.ExtractLinks(body, "https://example.com/docs/start")

	assert.Equal(t, []string{
		"https://example.com/docs",
		"https://example.com/docs/guide",
		"https://other.com/page",
	}, links)
}

func TestExtractLinksDeduplicates(t *testing.T) {
	pol := mustPolicy(t, "https://example.com", Options{})
	body := `<a href="/a">first</a><a href="/a/">same</a><a href="/a#frag">same again</a>`

	links := pol.ExtractLinks(body, "https://example.com")
	assert.Equal(t, []string{"https://example.com/a"}, links)
}
