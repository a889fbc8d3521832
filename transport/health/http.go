package health

import (
	"encoding/json"
	"net/http"
)

// 探针路径.
const (
	LivenessPath  = "/healthz"
	ReadinessPath = "/readyz"
)

// LivenessHandler 存活探针.
func LivenessHandler(h *Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeResponse(w, h.Liveness(r.Context()))
	}
}

// ReadinessHandler 就绪探针.
func ReadinessHandler(h *Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeResponse(w, h.Readiness(r.Context()))
	}
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	code := http.StatusOK
	if resp.Status != StatusUp {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Middleware 拦截探针路径，其余请求交给 next.
func Middleware(h *Health) func(http.Handler) http.Handler {
	liveness, readiness := LivenessHandler(h), ReadinessHandler(h)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LivenessPath:
				liveness(w, r)
			case ReadinessPath:
				readiness(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
