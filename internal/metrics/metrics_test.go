package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric gathers reg and returns the samples of the named family.
func findMetric(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, "/api/blog/posts", 200, 15*time.Millisecond)
	c.RecordHTTPRequest(http.MethodGet, "/api/blog/posts", 200, 5*time.Millisecond)

	samples := findMetric(t, reg, "cms_http_requests_total")
	require.Len(t, samples, 1)
	assert.Equal(t, float64(2), samples[0].GetCounter().GetValue())
	assert.Equal(t, "200", labelValue(samples[0], "status"))
	assert.Equal(t, "/api/blog/posts", labelValue(samples[0], "route"))

	latency := findMetric(t, reg, "cms_http_request_duration_seconds")
	require.Len(t, latency, 1)
	assert.Equal(t, uint64(2), latency[0].GetHistogram().GetSampleCount())
}

func TestRecordVerification(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerification(OutcomeOK)
	c.RecordVerification(OutcomeOK)
	c.RecordVerification(OutcomeInvalidToken)

	got := map[string]float64{}
	for _, m := range findMetric(t, reg, "cms_identity_verifications_total") {
		got[labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{OutcomeOK: 2, OutcomeInvalidToken: 1}, got)
}

func TestRecordPostMutationAndViews(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostMutation("create")
	c.RecordAdminElevation()
	c.RecordViewIncrement(true)
	c.RecordViewIncrement(false)

	mutations := findMetric(t, reg, "cms_post_mutations_total")
	require.Len(t, mutations, 1)
	assert.Equal(t, "create", labelValue(mutations[0], "op"))

	elevations := findMetric(t, reg, "cms_admin_elevations_total")
	assert.Equal(t, float64(1), elevations[0].GetCounter().GetValue())

	views := findMetric(t, reg, "cms_post_view_increments_total")
	assert.Len(t, views, 2)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordPostMutation("delete")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `cms_post_mutations_total{op="delete"} 1`))
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordHTTPRequest(http.MethodGet, "/", 200, time.Second)
	r.RecordVerification(OutcomeError)
	r.RecordAdminElevation()
	r.RecordPostMutation("update")
	r.RecordViewIncrement(false)
}
