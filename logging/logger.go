// Package logging carries a structured logger through context.Context.
//
// The registry builder attaches the configured logger once. Driver.Load then
// narrows it to the driver being loaded, so every line the resolver, mirror,
// archive expansion and license gate write for that load carries the driver's
// full name:
//
//	ctx = logging.Ensure(ctx, runtime.Logger)
//	ctx = logging.WithFields(ctx, "driver", d.FullName())
//	logging.Warnw(ctx, "zip skipped", "path", p)
//
// Library code never checks for a logger; FromContext falls back to a no-op
// logger when none was attached.
package logging

import "context"

type ctxkey struct {
	logger Logger
}

// With attaches logger to the context, starting a new scope. Fields tracked in
// the new scope do not reach the parent.
func With(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxkey{}, &ctxkey{
		logger: logger,
	})
}

// Ensure attaches fallback unless the context already carries a logger. A nil
// fallback leaves ctx as is.
func Ensure(ctx context.Context, fallback Logger) context.Context {
	if fallback == nil || Has(ctx) {
		return ctx
	}
	return With(ctx, fallback)
}

// WithFields starts a scope whose logger adds the given key/value pairs to
// every entry. A trailing key without a value is ignored.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	l := FromContext(ctx)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		l = l.With(key, keysAndValues[i+1])
	}
	return With(ctx, l)
}

// Has reports whether a logger has been attached to the context.
func Has(ctx context.Context) bool {
	_, ok := ctx.Value(ctxkey{}).(*ctxkey)
	return ok
}

// FromContext returns the scoped logger, or a no-op logger when none has been
// attached.
func FromContext(ctx context.Context) Logger {
	if c, ok := ctx.Value(ctxkey{}).(*ctxkey); ok {
		return c.logger
	}
	return nopLogger
}

// Track adds a field to the current scope in place. Unlike WithFields the
// value is visible to whoever created the scope, e.g. a registry-wide field set
// once after the builder attaches its logger. Start a new scope before tracking
// per-driver values.
func Track(ctx context.Context, field string, value interface{}) {
	c, ok := ctx.Value(ctxkey{}).(*ctxkey)
	if ok {
		c.logger = c.logger.With(field, value)
	}
}

// Logger is the subset of zap's sugared logger driverhub logs through. Other
// logging libraries can be adapted to it.
type Logger interface {
	Debug(args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Debugf(msg string, args ...interface{})
	Info(args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Infof(msg string, args ...interface{})
	Warn(args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Warnf(msg string, args ...interface{})
	Error(args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Errorf(msg string, args ...interface{})

	// Named creates a child logger with the given name.
	Named(name string) Logger

	// With creates a child logger and attaches structured context to it.
	With(field string, value interface{}) Logger
}

func Debug(ctx context.Context, msg string) {
	FromContext(ctx).Debug(msg)
}

func Debugw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Debugw(msg, fields...)
}

func Debugf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Debugf(msg, args...)
}

func Info(ctx context.Context, msg string) {
	FromContext(ctx).Info(msg)
}

func Infow(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Infow(msg, fields...)
}

func Infof(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Infof(msg, args...)
}

func Warn(ctx context.Context, msg string) {
	FromContext(ctx).Warn(msg)
}

func Warnw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Warnw(msg, fields...)
}

func Warnf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Warnf(msg, args...)
}

func Error(ctx context.Context, msg string) {
	FromContext(ctx).Error(msg)
}

func Errorw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Errorw(msg, fields...)
}

func Errorf(ctx context.Context, msg string, args ...interface{}) {
	FromContext(ctx).Errorf(msg, args...)
}
