package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/transport/http/server"
	"github.com/Tsukikage7/saga-orchestrator/transport/response"
)

// 请求体上限.
const maxBodyBytes = 1 << 20

// 成功消息.
const (
	MessageOrderCreated = "订单已创建，Saga 已启动"
	MessageRetryStarted = "Saga 重试已开始"
)

// NewHandler 注册编排器路由.
func NewHandler(svc Service, log logger.Logger) http.Handler {
	return NewHTTPHandler(NewEndpoints(svc, log))
}

// NewHTTPHandler 将端点挂载到 ServeMux.
func NewHTTPHandler(eps Endpoints) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/orchestrator/orders",
		server.NewEndpointHandler(eps.CreateOrder, decodeCreateOrderRequest, encodeCreated(MessageOrderCreated)))
	mux.Handle("GET /api/orchestrator/sagas",
		server.NewEndpointHandler(eps.ListSagas, decodeListSagasRequest, server.EncodeJSONResponse))
	mux.Handle("GET /api/orchestrator/sagas/{sagaId}",
		server.NewEndpointHandler(eps.GetSaga, decodeSagaIDRequest, server.EncodeJSONResponse))
	mux.Handle("GET /api/orchestrator/sagas/order/{orderId}",
		server.NewEndpointHandler(eps.GetSagaByOrderID, decodeOrderIDRequest, server.EncodeJSONResponse))
	mux.Handle("POST /api/orchestrator/sagas/{sagaId}/retry",
		server.NewEndpointHandler(eps.RetrySaga, decodeSagaIDRequest, encodeWithMessage(MessageRetryStarted)))
	return mux
}

func decodeCreateOrderRequest(_ context.Context, r *http.Request) (any, error) {
	var req CreateOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, response.NewErrorWithMessage(response.CodeInvalidParam, "请求体不能为空")
		}
		return nil, response.WrapWithMessage(response.CodeInvalidParam, "请求体不是有效的 JSON", err)
	}
	return req, nil
}

func decodeListSagasRequest(_ context.Context, r *http.Request) (any, error) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), "page")
	if err != nil {
		return nil, err
	}
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		return nil, err
	}
	return ListSagasRequest{
		Page:      page,
		Limit:     limit,
		Statuses:  q["status"],
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}, nil
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, response.WrapWithMessage(response.CodeInvalidParam, name+" 必须是整数", err)
	}
	return n, nil
}

func decodeSagaIDRequest(_ context.Context, r *http.Request) (any, error) {
	return sagaIDRequest{SagaID: r.PathValue("sagaId")}, nil
}

func decodeOrderIDRequest(_ context.Context, r *http.Request) (any, error) {
	return orderIDRequest{OrderID: r.PathValue("orderId")}, nil
}

func encodeCreated(message string) server.EncodeResponseFunc {
	return func(_ context.Context, w http.ResponseWriter, resp any) error {
		return response.WriteCreated(w, resp, message)
	}
}

func encodeWithMessage(message string) server.EncodeResponseFunc {
	return func(_ context.Context, w http.ResponseWriter, resp any) error {
		return response.WriteJSON(w, http.StatusOK, response.OKWithMessage(resp, message))
	}
}
