package client

import (
	"time"

	"github.com/dan-strohschein/syndrdb-aggregates/aggregate"
	"github.com/dan-strohschein/syndrdb-aggregates/mapper"
)

// ClientOptions configures the aggregate client.
type ClientOptions struct {
	// DefaultTimeoutMs bounds every client call in milliseconds. Zero or
	// less leaves calls bounded by the caller's context only.
	// Default: 10000 (10 seconds)
	DefaultTimeoutMs int

	// DebugMode logs every statement with its trace id and formats errors
	// with their full detail.
	// Default: false
	DebugMode bool

	// SingleQuery loads join-fetched relations together with their root in
	// one joined query. When false every relation is read by a query of its
	// own.
	// Default: true
	SingleQuery bool

	// Dialect names the database vendor, see dialect.ByName. Vendors
	// without array columns, such as mysql, use the generic dialect.
	// Default: "postgres"
	Dialect string

	// Converter turns assembled aggregates into results. If nil, results
	// are mapper.Documents.
	Converter mapper.Converter

	// Resolvers replaces the resolver used for select-fetched relations.
	Resolvers aggregate.ResolverFactory

	// Logger is the logger implementation to use.
	// If nil, a default logger is used.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "INFO"
	LogLevel string

	// OnConnected is called when the transport is ready.
	OnConnected func(StateTransition)

	// OnDisconnected is called when the transport has been closed.
	OnDisconnected func(StateTransition)
}

// DefaultOptions returns ClientOptions with default values.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		DefaultTimeoutMs: 10000,
		DebugMode:        false,
		SingleQuery:      true,
		Dialect:          "postgres",
		LogLevel:         "INFO",
	}
}

func (o ClientOptions) timeout() time.Duration {
	if o.DefaultTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(o.DefaultTimeoutMs) * time.Millisecond
}
