package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
	"github.com/Tsukikage7/saga-orchestrator/transport/health"
	"github.com/Tsukikage7/saga-orchestrator/transport/response"
)

func TestNew(t *testing.T) {
	mux := http.NewServeMux()

	t.Run("默认值", func(t *testing.T) {
		srv := New(mux, WithLogger(logger.NewNop()))
		assert.Equal(t, "HTTP", srv.Name())
		assert.Equal(t, ":8080", srv.Addr())
		assert.NotNil(t, srv.Health())
	})

	t.Run("配置覆盖默认值", func(t *testing.T) {
		srv := New(mux, WithLogger(logger.NewNop()), WithConfig(Config{Name: "orchestrator", Addr: ":3000"}))
		assert.Equal(t, "orchestrator", srv.Name())
		assert.Equal(t, ":3000", srv.Addr())
		assert.Equal(t, 30*time.Second, srv.opts.readTimeout)
	})

	t.Run("未设置logger时panic", func(t *testing.T) {
		assert.Panics(t, func() { New(mux) })
	})
}

func TestServer_Routes(t *testing.T) {
	collector := metrics.MustNewMetrics(&metrics.Config{Namespace: "test"})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orchestrator/sagas/{sagaId}", func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteSuccess(w, map[string]string{"sagaId": r.PathValue("sagaId")})
	})

	down := health.NewPingChecker("broker", health.KindBroker, health.PingerFunc(func(context.Context) error {
		return errors.New("no brokers")
	}))
	srv := New(mux, WithLogger(logger.NewNop()), WithMetrics(collector), WithReadinessChecker(down))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/orchestrator/sagas/abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sagaId":"abc"`)

	assert.Equal(t, http.StatusOK, get(health.LivenessPath).Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(health.ReadinessPath).Code)

	scrape := get("/metrics")
	require.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), `path="GET /api/orchestrator/sagas/{sagaId}"`)
}

func TestServer_StartAndStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	srv := New(mux, WithLogger(logger.NewNop()), WithAddr("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(srv.Addr(), ":0")
	}, time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, srv.Stop(stopCtx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start 未在 Stop 后返回")
	}
}

func TestServer_StartListenError(t *testing.T) {
	srv := New(http.NewServeMux(), WithLogger(logger.NewNop()), WithAddr("invalid-addr"))
	assert.Error(t, srv.Start(context.Background()))
}

func TestServer_StopNotStarted(t *testing.T) {
	srv := New(http.NewServeMux(), WithLogger(logger.NewNop()))
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestEndpointHandler(t *testing.T) {
	type req struct{ ID string }
	decode := func(_ context.Context, r *http.Request) (any, error) {
		id := r.URL.Query().Get("id")
		if id == "" {
			return nil, response.NewErrorWithMessage(response.CodeInvalidParam, "id 不能为空")
		}
		return req{ID: id}, nil
	}
	ep := func(_ context.Context, request any) (any, error) {
		switch id := request.(req).ID; id {
		case "missing":
			return nil, response.NewError(response.CodeNotFound)
		case "boom":
			return nil, errors.New("connection reset")
		default:
			return map[string]string{"id": id}, nil
		}
	}
	h := NewEndpointHandler(ep, decode, EncodeJSONResponse)

	tests := []struct {
		name    string
		query   string
		status  int
		code    int
		message string
	}{
		{"成功", "?id=42", http.StatusOK, 0, "成功"},
		{"解码失败", "", http.StatusBadRequest, 30001, "id 不能为空"},
		{"资源不存在", "?id=missing", http.StatusNotFound, 40001, "资源不存在"},
		{"内部错误不暴露细节", "?id=boom", http.StatusInternalServerError, 50001, "服务器内部错误"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil))

			assert.Equal(t, tt.status, rec.Code)
			var body response.Response[json.RawMessage]
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestEndpointHandler_Options(t *testing.T) {
	type ctxKey struct{}
	var seen any
	ep := func(ctx context.Context, _ any) (any, error) {
		seen = ctx.Value(ctxKey{})
		return nil, errors.New("fail")
	}
	h := NewEndpointHandler(ep,
		func(context.Context, *http.Request) (any, error) { return nil, nil },
		EncodeJSONResponse,
		WithBefore(func(ctx context.Context, r *http.Request) context.Context {
			return context.WithValue(ctx, ctxKey{}, r.Header.Get("X-Request-Id"))
		}),
		WithErrorEncoder(func(_ context.Context, err error, w http.ResponseWriter) {
			w.WriteHeader(http.StatusTeapot)
		}),
	)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
