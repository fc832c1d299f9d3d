package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geomeasure/internal/core/usecases"
)

// Pinger is a backend that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Screens *usecases.ScreenRegistry
	Records *usecases.RecordService
	Groups  *usecases.GroupService
	NATS    *nats.Conn
	Storage Pinger // nil for the in-memory store
	Cache   Pinger
	Version string
}
