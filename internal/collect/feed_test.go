package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const articlePage = `<!DOCTYPE html><html><head><title>On sourdough</title></head><body>
<nav>Home | About</nav>
<article>
<h1>On sourdough</h1>
<p>Sourdough is a slow craft. The fermentation takes days, and every loaf depends on the temperature of the kitchen, the hydration of the dough, and the patience of the baker who tends to it.</p>
<p>Over the past year I documented every bake, measuring the rise and the crumb, and learned that the fermentation schedule matters far more than the flour. This essay collects those notes.</p>
<p>The starter lives on the counter, fed twice a day, and it rewards consistency with a reliable rise and a gentle sour flavour that no commercial yeast can match.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Notes</title>
<item><title>Shipping a design system</title><link>%[1]s/posts/design-system</link>
<description>&lt;p&gt;How we built &amp;amp; rolled out the &lt;b&gt;design system&lt;/b&gt;.&lt;/p&gt;</description>
<category>design</category>
<pubDate>Mon, 04 Mar 2024 10:00:00 GMT</pubDate></item>
<item><title>On sourdough</title><link>%[1]s/posts/sourdough</link></item>
<item><title></title><link>%[1]s/posts/untitled</link></item>
<item><title>Third</title><link>%[1]s/posts/third</link><description>Third post</description></item>
</channel></rss>`, srv.URL)
		case "/posts/sourdough":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(articlePage))
		default:
			http.NotFound(w, r)
		}
	}))
	return srv
}

func TestFeedSourceScrape(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()

	src := NewFeedSource(config.FeedScraping{
		Enabled:  true,
		MaxItems: 2,
		URLs: []config.Feed{
			{URL: srv.URL + "/feed.xml", Name: "Notes"},
			{URL: srv.URL + "/missing.xml", Name: "Broken"},
		},
	})
	require.True(t, CanScrape(src))

	projects := src.Scrape(context.Background())
	require.Len(t, projects, 2)

	first := projects[0]
	assert.Equal(t, "Shipping a design system", first.Title)
	assert.Equal(t, model.CategoryWriting, first.Category)
	assert.Equal(t, model.SourceFeed, first.Source)
	assert.Equal(t, "How we built & rolled out the design system .", first.Description)
	assert.Equal(t, []string{srv.URL + "/posts/design-system"}, first.Links)
	assert.Equal(t, []string{"feed", "Notes", "design"}, first.Tags)
	assert.Equal(t, 2024, first.Date.Year())
	assert.InDelta(t, 0.7, first.Confidence, 1e-9)

	second := projects[1]
	assert.Equal(t, "On sourdough", second.Title)
	assert.True(t, strings.Contains(second.Description, "fermentation"), second.Description)
}

func TestFeedSourceNotConfigured(t *testing.T) {
	assert.False(t, NewFeedSource(config.FeedScraping{Enabled: true}).IsConfigured())
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello world & friends", stripHTML("<p>Hello <em>world</em></p> &amp; friends"))
}

func TestExtractSourceName(t *testing.T) {
	assert.Equal(t, "Example", extractSourceName("https://blog.example.com/feed.xml"))
	assert.Equal(t, "Substack", extractSourceName("https://www.substack.com/rss"))
}

func TestFeedSourceFetchFailureYieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()
	defer srv.Close()

	src := NewFeedSource(config.FeedScraping{
		Enabled:  true,
		MaxItems: 5,
		URLs: []config.Feed{
			{URL: srv.URL + "/feed.xml"},
			{URL: downURL + "/feed.xml"},
			{URL: srv.URL + "/not-a-feed", Name: "Broken"},
		},
	})

	assert.Empty(t, src.Scrape(context.Background()))
}
