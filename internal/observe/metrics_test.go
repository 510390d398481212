// file: internal/observe/metrics_test.go

package observe

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type regSwap struct {
	oldReg prometheus.Registerer
	oldGat prometheus.Gatherer
}

func swapDefaultRegistry() (*prometheus.Registry, func()) {
	newReg := prometheus.NewRegistry()
	backup := regSwap{
		oldReg: prometheus.DefaultRegisterer,
		oldGat: prometheus.DefaultGatherer,
	}
	prometheus.DefaultRegisterer = newReg
	prometheus.DefaultGatherer = newReg
	return newReg, func() {
		prometheus.DefaultRegisterer = backup.oldReg
		prometheus.DefaultGatherer = backup.oldGat
	}
}

func TestRegister_IsolatedRegistry(t *testing.T) {
	reg, restore := swapDefaultRegistry()
	defer restore()

	Register()

	// 写入样本，确保 Vec 生成子指标
	ObserveProviderRequest("gbif", 200)
	ObserveQuery("gbif", nil, 10*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Registry.Gather() 失败: %v", err)
	}

	want := map[string]bool{
		"dataagents_provider_requests_total":        false,
		"dataagents_adapter_query_duration_seconds": false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("指标 %s 未注册到 Registry 中", name)
		}
	}
}

func TestHandler_MetricsEndpoint(t *testing.T) {
	_, restore := swapDefaultRegistry()
	defer restore()

	Register()
	ObserveRetry("nasa")
	ObservePage("nasa")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/metrics HTTP 状态码错误, got=%d", w.Code)
	}
	bodyBytes, _ := io.ReadAll(w.Body)

	for _, name := range []string{"dataagents_provider_retries_total", "dataagents_pages_fetched_total"} {
		if !bytes.Contains(bodyBytes, []byte(name)) {
			t.Errorf("/metrics 输出缺少 %s, body=\n%s", name, bodyBytes)
		}
	}
}

func TestObserveProviderRequest_TransportFailureLabel(t *testing.T) {
	reg, restore := swapDefaultRegistry()
	defer restore()

	Register()
	ObserveProviderRequest("rest", 0)
	ObserveQuery("rest", errors.New("boom"), time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Registry.Gather() 失败: %v", err)
	}

	var sawError, sawOutcome bool
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "dataagents_provider_requests_total":
				sawError = sawError || labelsMatch(m, map[string]string{"adapter": "rest", "code": "error"})
			case "dataagents_adapter_query_duration_seconds":
				sawOutcome = sawOutcome || labelsMatch(m, map[string]string{"adapter": "rest", "outcome": "error"})
			}
		}
	}
	if !sawError || !sawOutcome {
		t.Errorf("缺少错误标签: requests=%v outcome=%v", sawError, sawOutcome)
	}
}

func TestPrometheusMiddleware_RecordOnce(t *testing.T) {
	reg, restore := swapDefaultRegistry()
	defer restore()

	gin.SetMode(gin.TestMode)
	Register()

	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "pong" {
		t.Fatalf("Gin 处理 /ping 失败, code=%d, body=%s", w.Code, w.Body.String())
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Registry.Gather() 失败: %v", err)
	}

	var matched bool
	for _, mf := range mfs {
		if mf.GetName() != "dataagents_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, map[string]string{
				"path":   "/ping",
				"method": "GET",
				"code":   "200",
			}) && m.GetHistogram().GetSampleCount() == 1 {
				matched = true
				break
			}
		}
	}
	if !matched {
		t.Errorf("Histogram 未记录 /ping 请求 (path=/ping, method=GET, code=200, count=1)")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"Error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// labelsMatch 比较 Metric 的 labelset 是否等于指定键值集合
func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		got[l.GetName()] = l.GetValue()
	}
	return reflect.DeepEqual(got, want)
}
