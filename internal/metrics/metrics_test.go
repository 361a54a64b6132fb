package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSource(t *testing.T) {
	m := New()
	m.ObserveSource("email", 3, false)
	m.ObserveSource("email", 2, false)
	m.ObserveSource("slack", 0, true)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.projectsScraped.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceFailures.WithLabelValues("slack")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.projectsScraped.WithLabelValues("slack")))
}

func TestObserveTiers(t *testing.T) {
	m := New()
	m.ObserveClassification("cache")
	m.ObserveClassification("cache")
	m.ObserveNarration("template")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.classifications.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.narrations.WithLabelValues("template")))
}

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun("success", 2*time.Second, 17)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.lastRunProjects))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.ObserveRun("empty", time.Second, 0)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `necromancer_runs_total{status="empty"} 1`))
	assert.False(t, strings.Contains(string(body), "go_goroutines"), "private registry should not carry Go runtime collectors")
}
