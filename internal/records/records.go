// Package records is the compliance record lifecycle module: kind-aware
// construction, descriptive updates, status transitions, soft delete, and the
// audit trail behind all of it.
package records

import (
	"log/slog"

	"complyd/internal/platform/middleware"
	"complyd/internal/records/handler"
	"complyd/internal/records/service"
)

// Service exposes record lifecycle orchestration.
type Service = service.Service

// Handler wires HTTP endpoints to the records service.
type Handler = handler.Handler

// NewService constructs the records service.
func NewService(store service.RecordStore, audit service.AuditPublisher, opts ...service.Option) *Service {
	return service.New(store, audit, opts...)
}

// NewHandler constructs the HTTP handler for record routes.
func NewHandler(s *Service, validator middleware.TokenValidator, logger *slog.Logger, opts ...handler.Option) *Handler {
	return handler.New(s, validator, logger, opts...)
}
