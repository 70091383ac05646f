package radio

import "log/slog"

func radioLogger(name string, attrs ...any) *slog.Logger {
	logger := slog.With("component", "radio", "radio", name)
	if len(attrs) == 0 {
		return logger
	}

	return logger.With(attrs...)
}
