// Package pg bootstraps the PostgreSQL layer under pgmodel: an env-driven
// pool configuration, pool connection with retry, goose schema migrations,
// a health check closure, and error classifiers for the constraint
// violations a validated model can still hit (uniqueness and foreign keys
// are ultimately enforced by the database, not the validators).
//
//	var cfg pg.Config
//	_ = env.Parse(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	...
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil { ... }
//
//	session := pgmodel.NewSession(postgres.New(pool))
package pg
