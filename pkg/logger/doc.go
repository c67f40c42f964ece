// Package logger builds configured slog loggers and provides attribute
// helpers for database statement logging.
//
// The factory covers the two formats that matter in practice: JSON for
// aggregation pipelines and text for a developer terminal. Level and format
// can come from code or from LOG_* environment variables via Config.
//
// Usage:
//
//	log := logger.New(logger.WithTextFormat(), logger.WithLevel(slog.LevelDebug))
//	session := pgmodel.NewSession(driver, pgmodel.WithLogger(log))
//
// Or driven by the environment:
//
//	cfg, err := config.Load[logger.Config]()
//	log := logger.FromConfig(cfg)
package logger
