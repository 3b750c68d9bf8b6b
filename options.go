package omegga

import (
	"log/slog"

	"github.com/wagiedev/omegga-sdk-go/internal/config"
)

// Option configures Options using the functional options pattern.
// This is the primary option type for configuring clients.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTransport injects a custom transport implementation.
// The transport must implement the Transport interface.
// If not set, the client speaks over the process's stdin and stdout.
func WithTransport(transport config.Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// ===== Handlers and Subscriptions =====

// WithHandler registers h to answer inbound requests for method.
// Handlers installed this way are live before the first inbound line
// is read, so an immediate request from the host cannot slip past
// them onto the event stream. Use this for init and stop.
func WithHandler(method string, h Handler) Option {
	return func(o *Options) {
		if o.Handlers == nil {
			o.Handlers = make(map[string]Handler, 1)
		}

		o.Handlers[method] = h
	}
}

// WithOnNotification subscribes fn to notifications for method.
// Subscriptions installed this way are live before the first inbound
// line is read. Repeated options for the same method run in the order
// they were given.
func WithOnNotification(method string, fn NotificationFunc) Option {
	return func(o *Options) {
		if o.Subscriptions == nil {
			o.Subscriptions = make(map[string][]NotificationFunc, 1)
		}

		o.Subscriptions[method] = append(o.Subscriptions[method], fn)
	}
}

// ===== Flow Control =====

// WithWriteLimit caps outbound writes at rps lines per second with the
// given burst. Zero or negative rps leaves writes unthrottled.
func WithWriteLimit(rps float64, burst int) Option {
	return func(o *Options) {
		o.WriteRate = rps
		o.WriteBurst = burst
	}
}

// WithQueueCapacity sets the initial capacity of the unclaimed message
// queue. The queue grows without bound regardless; this only sizes the
// backing array.
func WithQueueCapacity(n int) Option {
	return func(o *Options) {
		o.QueueCapacity = n
	}
}
