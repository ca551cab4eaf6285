package decorator

import (
	"context"

	"github.com/architeacher/adaptivebreaker/pkg/breaker"
)

type (
	commandBreakerDecorator[C Command, R any] struct {
		base      CommandHandler[C, R]
		manager   *breaker.Manager
		circuit   string
		overrides []breaker.ConfigOverride
	}

	queryBreakerDecorator[Q Query, R Result] struct {
		base      QueryHandler[Q, R]
		manager   *breaker.Manager
		circuit   string
		overrides []breaker.ConfigOverride
	}
)

func (d commandBreakerDecorator[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return breaker.Execute(ctx, d.manager, d.circuit, func(ctx context.Context) (R, error) {
		return d.base.Handle(ctx, cmd)
	}, d.overrides...)
}

func (d queryBreakerDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	return breaker.Execute(ctx, d.manager, d.circuit, func(ctx context.Context) (R, error) {
		return d.base.Execute(ctx, query)
	}, d.overrides...)
}
