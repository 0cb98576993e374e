package service

import (
	"context"
	"time"

	"coupon-system/internal/metrics"
	"coupon-system/internal/repository"
	"coupon-system/pkg/apperrors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("coupon-system/service")

// Stores groups the repositories and the transaction runner the services share
type Stores struct {
	Tx           repository.Transactor
	Books        repository.CouponBookRepository
	Coupons      repository.CouponRepository
	UserCoupons  repository.UserCouponRepository
	Transactions repository.TransactionRepository
	Jobs         repository.GenerationJobRepository
}

// startOp opens a span for operation and returns a finisher that records the
// outcome on the span and in the operation metrics.
func startOp(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = apperrors.KindOf(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.Observe(operation, outcome, started)
		span.End()
	}
}
