package logger

import (
	"parcel/internal/app/port"
)

// slogAdapter implements port.Logger on top of the package level functions.
type slogAdapter struct {
	attrs []any
}

// NewSlogAdapter creates a port.Logger backed by the global slog logger.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

// With returns a logger that appends attrs to every entry.
func With(l port.Logger, attrs ...any) port.Logger {
	if a, ok := l.(*slogAdapter); ok {
		merged := append(append([]any{}, a.attrs...), attrs...)
		return &slogAdapter{attrs: merged}
	}
	return &prefixed{next: l, attrs: attrs}
}

func (a *slogAdapter) Info(msg string, args ...any) {
	Info(msg, append(args, a.attrs...)...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	Debug(msg, append(args, a.attrs...)...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	Warn(msg, append(args, a.attrs...)...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	Error(msg, append(args, a.attrs...)...)
}

type prefixed struct {
	next  port.Logger
	attrs []any
}

func (p *prefixed) Info(msg string, args ...any)  { p.next.Info(msg, append(args, p.attrs...)...) }
func (p *prefixed) Debug(msg string, args ...any) { p.next.Debug(msg, append(args, p.attrs...)...) }
func (p *prefixed) Warn(msg string, args ...any)  { p.next.Warn(msg, append(args, p.attrs...)...) }
func (p *prefixed) Error(msg string, args ...any) { p.next.Error(msg, append(args, p.attrs...)...) }

// Nop discards everything.
type Nop struct{}

func (Nop) Info(string, ...any)  {}
func (Nop) Debug(string, ...any) {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
