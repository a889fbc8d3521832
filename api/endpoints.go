package api

import (
	"context"
	"errors"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/endpoint"
	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/saga"
	"github.com/Tsukikage7/saga-orchestrator/transport/response"
)

// Endpoints 编排器接口的全部端点.
type Endpoints struct {
	CreateOrder      endpoint.Endpoint
	ListSagas        endpoint.Endpoint
	GetSaga          endpoint.Endpoint
	GetSagaByOrderID endpoint.Endpoint
	RetrySaga        endpoint.Endpoint
}

// RequestTimeout 单个请求的处理时限.
const RequestTimeout = 10 * time.Second

// NewEndpoints 创建端点，每个端点都记录日志并将 saga 错误映射为业务错误码.
func NewEndpoints(svc Service, log logger.Logger) Endpoints {
	wrap := func(operation string, e endpoint.Endpoint) endpoint.Endpoint {
		return endpoint.Chain(
			endpoint.LoggingMiddleware(log, operation),
			errorMiddleware,
			endpoint.RecoveryMiddleware(log, operation),
			endpoint.TimeoutMiddleware(RequestTimeout),
		)(e)
	}
	return Endpoints{
		CreateOrder:      wrap("CreateOrder", makeCreateOrderEndpoint(svc)),
		ListSagas:        wrap("ListSagas", makeListSagasEndpoint(svc)),
		GetSaga:          wrap("GetSaga", makeGetSagaEndpoint(svc)),
		GetSagaByOrderID: wrap("GetSagaByOrderID", makeGetSagaByOrderIDEndpoint(svc)),
		RetrySaga:        wrap("RetrySaga", makeRetrySagaEndpoint(svc)),
	}
}

func makeCreateOrderEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(CreateOrderRequest)
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		s, err := svc.StartSaga(ctx, req.orderData())
		if err != nil {
			return nil, err
		}
		return CreateOrderResponse{SagaID: s.SagaID, OrderID: s.OrderID, Status: s.Status}, nil
	}
}

func makeListSagasEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(ListSagasRequest)
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		statuses := make([]saga.Status, len(req.Statuses))
		for i, s := range req.Statuses {
			statuses[i] = saga.Status(s)
		}
		return svc.ListSagas(ctx, saga.ListOptions{
			Page:      req.Page,
			Limit:     req.Limit,
			Statuses:  statuses,
			SortBy:    req.SortBy,
			SortOrder: req.SortOrder,
		})
	}
}

func makeGetSagaEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(sagaIDRequest)
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		return svc.GetSaga(ctx, req.SagaID)
	}
}

func makeGetSagaByOrderIDEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(orderIDRequest)
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		return svc.GetSagaByOrderID(ctx, req.OrderID)
	}
}

func makeRetrySagaEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(sagaIDRequest)
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		s, err := svc.RetrySaga(ctx, req.SagaID)
		if err != nil {
			return nil, err
		}
		return RetryResponse{SagaID: s.SagaID, Status: s.Status, CurrentStep: s.CurrentStep}, nil
	}
}

// errorMiddleware 将 saga 包的哨兵错误转换为带错误码的业务错误.
func errorMiddleware(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		resp, err := next(ctx, request)
		if err != nil {
			return nil, translateError(err)
		}
		return resp, nil
	}
}

func translateError(err error) error {
	if _, ok := response.AsError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, saga.ErrInvalidOrder):
		return response.WrapWithMessage(response.CodeInvalidParam, err.Error(), err)
	case errors.Is(err, saga.ErrSagaNotFound):
		return response.WrapWithMessage(response.CodeNotFound, "Saga 不存在", err)
	case errors.Is(err, saga.ErrInvalidState):
		return response.WrapWithMessage(response.CodeConflict, "仅 FAILED 或 COMPENSATED 状态的 Saga 可以重试", err)
	case errors.Is(err, saga.ErrNoFailedStep):
		return response.WrapWithMessage(response.CodeConflict, "没有可重试的失败步骤", err)
	case errors.Is(err, saga.ErrPublish):
		return response.Wrap(response.CodeBrokerError, err)
	case errors.Is(err, context.Canceled):
		return response.Wrap(response.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return response.Wrap(response.CodeTimeout, err)
	default:
		return response.Wrap(response.CodeInternal, err)
	}
}
