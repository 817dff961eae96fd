package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// HTTPリクエストカウンタがラベル別に加算されることを検証
func TestCollector_RecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest("GET", 200)
	c.RecordHTTPRequest("GET", 200)
	c.RecordHTTPRequest("POST", 201)

	got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "200"))
	if got != 2 {
		t.Errorf("GET 200 count = %v, want 2", got)
	}
	got = testutil.ToFloat64(c.httpRequests.WithLabelValues("POST", "201"))
	if got != 1 {
		t.Errorf("POST 201 count = %v, want 1", got)
	}
}

// 登録・ログインカウンタの加算を検証
func TestCollector_RecordAuthEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistration()
	c.RecordLogin()
	c.RecordLogin()

	if got := testutil.ToFloat64(c.registrations); got != 1 {
		t.Errorf("registrations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.logins); got != 2 {
		t.Errorf("logins = %v, want 2", got)
	}
}

// エクスポート件数がタスク数単位で加算されることを検証
func TestCollector_RecordTasksExported(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTasksExported(5)
	c.RecordTasksExported(3)

	if got := testutil.ToFloat64(c.tasksExported); got != 8 {
		t.Errorf("tasksExported = %v, want 8", got)
	}
}

// リクエスト処理時間の記録がpanicしないことを検証
func TestCollector_RecordRequestDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestDuration(120 * time.Millisecond)
	c.RecordRequestDuration(5 * time.Millisecond)
}

// /metricsエンドポイントがPrometheus形式で出力することを検証
func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest("GET", 200)
	c.RecordTasksExported(2)

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body := rec.Body.String()
	for _, name := range []string{
		"taskman_http_requests_total",
		"taskman_http_request_duration_seconds",
		"taskman_registrations_total",
		"taskman_logins_total",
		"taskman_tasks_exported_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output should contain %q", name)
		}
	}
}

// SetupMetricsRouteが/metricsのみを公開することを検証
func TestSetupMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/other", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /other status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
