package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// UnmatchedRoute 未命中任何路由的请求共用的 path 标签.
const UnmatchedRoute = "unmatched"

// HTTPMiddleware 记录请求数与耗时.
//
// path 标签取 ServeMux 写入的 r.Pattern，如 "GET /api/orchestrator/sagas/{sagaId}"，
// 每个 sagaId 不会产生新的时间序列. 扫描类请求统一归入 UnmatchedRoute.
func HTTPMiddleware(collector *PrometheusCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			route := r.Pattern
			if route == "" {
				route = UnmatchedRoute
			}
			collector.RecordHTTPRequest(r.Method, route, strconv.Itoa(sw.status()), time.Since(start))
		})
	}
}

// statusWriter 记下第一次写出的状态码.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap 供 http.ResponseController 访问底层 Writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}
