package logger

import (
	"log/slog"
	"time"
)

// Error records a single error under the key "error". Nil errors produce an
// empty attribute, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// SQL records a statement under the key "sql".
func SQL(stmt string) slog.Attr {
	return slog.String("sql", stmt)
}

// Args records statement arguments under the key "args".
func Args(args []any) slog.Attr {
	return slog.Any("args", args)
}

// Table records the table a statement touches.
func Table(name string) slog.Attr {
	return slog.String("table", name)
}

// Duration records elapsed time in milliseconds under the key "duration_ms".
func Duration(d time.Duration) slog.Attr {
	return slog.Float64("duration_ms", float64(d.Microseconds())/1000)
}
