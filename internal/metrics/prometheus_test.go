package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, pr *PrometheusRecorder) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	pr.Handler().ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecordBuild(t *testing.T) {
	pr := NewPrometheusRecorder()
	pr.RecordBuild("success", 90*time.Second)
	pr.RecordBuild("failure", 5*time.Second)
	pr.RecordBuild("success", 120*time.Second)

	body := scrape(t, pr)
	assert.Contains(t, body, `ttlkernel_builds_total{status="success"} 2`)
	assert.Contains(t, body, `ttlkernel_builds_total{status="failure"} 1`)
	assert.Contains(t, body, "ttlkernel_build_duration_seconds_count 3")
}

func TestRecordStage(t *testing.T) {
	pr := NewPrometheusRecorder()
	pr.RecordStage("sync", 2*time.Second)
	pr.RecordStage("build", 80*time.Second)

	body := scrape(t, pr)
	assert.Contains(t, body, `stage="sync"`)
	assert.Contains(t, body, `stage="build"`)
}

func TestSetLastSuccess(t *testing.T) {
	pr := NewPrometheusRecorder()
	at := time.Unix(1700000000, 0)
	pr.SetLastSuccess(at)

	body := scrape(t, pr)
	assert.Contains(t, body, "ttlkernel_last_success_timestamp_seconds 1.7e+09")
}

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.RecordBuild("success", time.Second)
	r.RecordStage("sync", time.Second)
	r.SetLastSuccess(time.Now())
}
