// Package pgmodel is a declarative validation and dynamic-query layer for
// PostgreSQL entities on top of pgx/v5.
//
// It combines four pieces:
//
//   - validated columns: schema metadata attaches validators, uniqueness
//     checks, length limits and value generators to the columns of a plain
//     Go struct (pkg/validator holds the validators themselves);
//   - an entity lifecycle: Model[T] orchestrates validate/save/delete with
//     before/after hooks, aggregated per-field errors, and change history
//     computed against the session's last-flushed snapshots;
//   - a session: an explicit unit-of-work handle over a Driver that tracks
//     pending inserts, dirty updates and transaction state. There is no
//     process-global session; every Model and Catalog receives one;
//   - a query builder: Finder[T] turns pkg/query criteria (the
//     "field__operator" grammar, Or/And combinators, relationship
//     traversal) into SQL predicates, with aliased inner and outer joins
//     declared through CJoin.
//
// A minimal setup:
//
//	type User struct {
//	    pgmodel.IntID
//	    pgmodel.Timestamps
//	    Name  *string `db:"name"`
//	    Email *string `db:"email"`
//	    Age   *int64  `db:"age"`
//	}
//
//	schema := pgmodel.NewSchema[User]("users",
//	    pgmodel.Override("name", pgmodel.NotNull(), pgmodel.MaxLen(24)),
//	    pgmodel.Override("email", pgmodel.Use(validator.Email{})),
//	)
//
//	session := pgmodel.NewSession(postgres.New(pool))
//	users := pgmodel.NewModel[User](schema, session)
//
//	err := users.Save(ctx, &u, pgmodel.Commit())
//	adults, err := users.Find(query.M{"age__ge": 18}).All(ctx)
package pgmodel
