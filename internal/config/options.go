package config

import (
	"log/slog"

	"github.com/wagiedev/omegga-sdk-go/internal/rpc"
)

// Options configures the behavior of an Omegga client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Handlers maps request methods to the handler invoked when the host
	// calls them. Entries here are installed before the first line is read,
	// so an early host request cannot race past registration and land on
	// the event stream instead.
	Handlers map[string]rpc.Handler

	// Subscriptions maps notification methods to callbacks invoked on the
	// dispatch path in registration order. Like Handlers, these are
	// installed before reading starts.
	Subscriptions map[string][]rpc.NotificationFunc

	// WriteRate caps outbound messages per second. Zero means unlimited.
	WriteRate float64

	// WriteBurst is the burst size used when WriteRate is set.
	// If zero, a burst of 1 is used.
	WriteBurst int

	// QueueCapacity pre-sizes the backing array of the inbound event queue.
	// The queue itself grows without bound; a consumer that falls behind
	// costs memory, never delivery.
	QueueCapacity int

	// Transport allows injecting a custom transport implementation.
	// If nil, a stdio transport bound to the process's own stdin and
	// stdout is created automatically.
	Transport Transport
}
