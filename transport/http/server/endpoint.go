package server

import (
	"context"
	"net/http"

	"github.com/Tsukikage7/saga-orchestrator/endpoint"
	"github.com/Tsukikage7/saga-orchestrator/transport/response"
)

type (
	// DecodeRequestFunc 把 HTTP 请求解码为端点请求，错误交给错误编码器.
	DecodeRequestFunc func(ctx context.Context, r *http.Request) (any, error)
	// EncodeResponseFunc 写出端点的成功结果.
	EncodeResponseFunc func(ctx context.Context, w http.ResponseWriter, resp any) error
	// EncodeErrorFunc 写出解码、端点或编码阶段的错误.
	EncodeErrorFunc func(ctx context.Context, err error, w http.ResponseWriter)
	// RequestFunc 在解码前从请求中取值放入 ctx，如请求 ID.
	RequestFunc func(ctx context.Context, r *http.Request) context.Context
)

// EndpointHandler 以 decode → endpoint → encode 的顺序把 Endpoint 挂到 http.Handler 上.
//
//	mux.Handle("GET /api/orchestrator/sagas/{sagaId}",
//	    server.NewEndpointHandler(eps.GetSaga, decodeSagaIDRequest, server.EncodeJSONResponse))
type EndpointHandler struct {
	e      endpoint.Endpoint
	decode DecodeRequestFunc
	encode EncodeResponseFunc

	before  []RequestFunc
	onError EncodeErrorFunc
}

// EndpointOption EndpointHandler 选项.
type EndpointOption func(*EndpointHandler)

// WithBefore 追加解码前执行的 RequestFunc，按顺序执行.
func WithBefore(funcs ...RequestFunc) EndpointOption {
	return func(h *EndpointHandler) { h.before = append(h.before, funcs...) }
}

// WithErrorEncoder 替换默认的 EncodeErrorResponse.
func WithErrorEncoder(enc EncodeErrorFunc) EndpointOption {
	return func(h *EndpointHandler) { h.onError = enc }
}

func NewEndpointHandler(e endpoint.Endpoint, dec DecodeRequestFunc, enc EncodeResponseFunc, opts ...EndpointOption) *EndpointHandler {
	h := &EndpointHandler{e: e, decode: dec, encode: enc, onError: EncodeErrorResponse}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *EndpointHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	for _, before := range h.before {
		ctx = before(ctx, r)
	}
	if err := h.serve(ctx, w, r); err != nil {
		h.onError(ctx, err, w)
	}
}

func (h *EndpointHandler) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	req, err := h.decode(ctx, r)
	if err != nil {
		return err
	}
	resp, err := h.e(ctx, req)
	if err != nil {
		return err
	}
	return h.encode(ctx, w, resp)
}

// EncodeErrorResponse 写出 {code, message}，HTTP 状态取自错误码，5xxxx 与 6xxxx 不暴露细节.
func EncodeErrorResponse(_ context.Context, err error, w http.ResponseWriter) {
	_ = response.WriteError(w, err)
}

// EncodeJSONResponse 以 200 写出 {code, message, data}.
func EncodeJSONResponse(_ context.Context, w http.ResponseWriter, resp any) error {
	return response.WriteSuccess(w, resp)
}
