package observability

import (
	"context"
	"fmt"

	"github.com/whitecard/whitecard-backend/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
)

// serviceResource is shared by the log, metric and trace providers so all three
// signals carry the same identity.
func serviceResource(ctx context.Context, cfg *config.Config, signal string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("service.namespace", "whitecard"),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s resource: %w", signal, err)
	}
	return res, nil
}

func propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}
