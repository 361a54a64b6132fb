package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

func TestChatSourceScrape(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/search.messages") {
			http.NotFound(w, r)
			return
		}
		r.ParseForm()
		gotQuery = r.Form.Get("query")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"messages":{"matches":[
			{"text":"Just shipped the new onboarding flow for Acme!\nDemo: <https://acme.example.com/onboarding> and https://github.com/acme/onboarding","username":"ada","ts":"1700000000.000200","channel":{"id":"C1","name":"launches"},"permalink":"https://slack.example/p1"},
			{"text":"ok project","username":"bob","ts":"1700000001.000000","channel":{"id":"C1","name":"launches"}},
			{"text":"Anyone up for lunch later today at noon?","username":"cy","ts":"1700000002.000000","channel":{"id":"C2","name":"random"}},
			{"text":"We finished the migration to the new billing provider","ts":"bogus","channel":{"id":"C3"}}
		]}}`))
	}))
	defer srv.Close()

	src := NewChatSource(config.SlackScraping{Enabled: true, MaxMessages: 25}, "xoxp-test")
	src.apiURL = srv.URL + "/"

	projects := src.Scrape(context.Background())
	require.Len(t, projects, 2)
	assert.Equal(t, chatQuery, gotQuery)

	p := projects[0]
	assert.Equal(t, "Just shipped the new onboarding flow for Acme!", p.Title)
	assert.Equal(t, model.SourceSlack, p.Source)
	assert.Equal(t, []string{"slack", "ada"}, p.Tags)
	assert.Equal(t, []string{"https://acme.example.com/onboarding", "https://github.com/acme/onboarding"}, p.Links)
	assert.Equal(t, int64(1700000000), p.Date.Unix())
	assert.Equal(t, "launches", p.Raw["channel"])
	assert.InDelta(t, 0.5, p.Confidence, 1e-9)

	fallback := projects[1]
	assert.Equal(t, []string{"slack", "Unknown"}, fallback.Tags)
	assert.Equal(t, "unknown", fallback.Raw["channel"])
}

func TestChatSourceNotConfigured(t *testing.T) {
	assert.False(t, NewChatSource(config.SlackScraping{Enabled: true}, "").IsConfigured())
}

func TestChatTitle(t *testing.T) {
	assert.Equal(t, "Slack Discussion", chatTitle("   \nsecond line"))
	assert.Equal(t, "Launched the app", chatTitle("Launched the app\nmore details"))

	long := "Wrapped the redesign. " + strings.Repeat("Lots of extra detail here ", 5)
	assert.Equal(t, "Wrapped the redesign", chatTitle(long))

	noPeriod := strings.Repeat("x", 90)
	assert.Equal(t, strings.Repeat("x", 57)+"...", chatTitle(noPeriod))
}

func TestExtractLinksDedupesInOrder(t *testing.T) {
	text := "see <https://a.example/x> then https://b.example/y and again https://a.example/x"
	assert.Equal(t, []string{"https://a.example/x", "https://b.example/y"}, extractLinks(text))
	assert.Empty(t, extractLinks("no links here"))
}

func TestChatSourceAPIErrorYieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
	}))
	defer srv.Close()

	src := NewChatSource(config.SlackScraping{Enabled: true, MaxMessages: 25}, "xoxp-revoked")
	src.apiURL = srv.URL + "/"

	assert.Empty(t, src.Scrape(context.Background()))
}
