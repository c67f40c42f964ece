package pgmodel_test

import (
	"context"

	"github.com/dmitrymomot/pgmodel"
	"github.com/dmitrymomot/pgmodel/pkg/validator"
)

// fakeDriver records every statement and replays scripted query results in
// FIFO order, so tests assert generated SQL and feed back rows without a
// database.
type fakeDriver struct {
	stmts     []statement
	results   []fakeResult
	begun     int
	commits   int
	rollbacks int
	inTx      bool
}

type statement struct {
	sql  string
	args []any
	inTx bool
}

type fakeResult struct {
	cols []string
	rows [][]any
}

func (d *fakeDriver) expect(cols []string, rows ...[]any) {
	d.results = append(d.results, fakeResult{cols: cols, rows: rows})
}

func (d *fakeDriver) record(sql string, args []any) {
	d.stmts = append(d.stmts, statement{sql: sql, args: args, inTx: d.inTx})
}

func (d *fakeDriver) last() statement {
	if len(d.stmts) == 0 {
		return statement{}
	}
	return d.stmts[len(d.stmts)-1]
}

func (d *fakeDriver) pop() fakeResult {
	if len(d.results) == 0 {
		return fakeResult{}
	}
	r := d.results[0]
	d.results = d.results[1:]
	return r
}

func (d *fakeDriver) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	d.record(sql, args)
	return 1, nil
}

func (d *fakeDriver) Query(_ context.Context, sql string, args ...any) (pgmodel.Rows, error) {
	d.record(sql, args)
	return &fakeRows{result: d.pop()}, nil
}

func (d *fakeDriver) Begin(context.Context) (pgmodel.Tx, error) {
	d.begun++
	d.inTx = true
	return &fakeTx{d: d}, nil
}

type fakeTx struct {
	d *fakeDriver
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return t.d.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgmodel.Rows, error) {
	return t.d.Query(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.d.commits++
	t.d.inTx = false
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.d.rollbacks++
	t.d.inTx = false
	return nil
}

type fakeRows struct {
	result fakeResult
	i      int
}

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.result.rows)
}

func (r *fakeRows) Columns() []string        { return r.result.cols }
func (r *fakeRows) Values() ([]any, error)   { return r.result.rows[r.i-1], nil }
func (r *fakeRows) Close()                   {}
func (r *fakeRows) Err() error               { return nil }

// Fixture entities mirror a small org domain: users in companies, linked to
// teams through a join table, plus a slugged product and a role catalog.

type Company struct {
	pgmodel.IntID
	Name *string `db:"name"`
}

type Team struct {
	pgmodel.IntID
	Name *string `db:"name"`
}

type UserTeam struct {
	pgmodel.IntID
	UserID *int64 `db:"user_id,notnull"`
	TeamID *int64 `db:"team_id,notnull"`
	User   *User  `db:"-"`
	Team   *Team  `db:"-"`
}

type User struct {
	pgmodel.IntID
	pgmodel.Timestamps
	Name      *string  `db:"name"`
	Email     *string  `db:"email"`
	Age       *int64   `db:"age"`
	CompanyID *int64   `db:"company_id"`
	Company   *Company `db:"-"`
}

type Product struct {
	pgmodel.IntID
	pgmodel.SlugField
	Name *string `db:"name"`
}

type Role struct {
	pgmodel.IntID
	pgmodel.SlugField
	pgmodel.CatalogEntry
}

var (
	companySchema  = pgmodel.NewSchema[Company]("company")
	teamSchema     = pgmodel.NewSchema[Team]("team")
	userTeamSchema = pgmodel.NewSchema[UserTeam]("user_team")
	userSchema     = pgmodel.NewSchema[User]("user",
		pgmodel.Override("name", pgmodel.NotNull(), pgmodel.MaxLen(24)),
		pgmodel.Override("email", pgmodel.Use(validator.Email{})),
	)
	productSchema = pgmodel.NewSchema[Product]("product",
		pgmodel.Override("slug", pgmodel.MaxLen(8), pgmodel.NotNull()),
		pgmodel.WithSlug("name"),
	)
	roleSchema = pgmodel.NewSchema[Role]("role", pgmodel.WithSlug("name"))
)

func init() {
	userSchema.HasOne("company", companySchema, "company_id", pgmodel.Field("Company"))
	userSchema.HasMany("teams", userTeamSchema, "user_id")
	userSchema.ManyToMany("teams_has", teamSchema, "user_team", "user_id", "team_id")
	userTeamSchema.HasOne("user", userSchema, "user_id", pgmodel.Field("User"))
	userTeamSchema.HasOne("team", teamSchema, "team_id", pgmodel.Field("Team"))
	companySchema.HasMany("users", userSchema, "company_id")
}

// userCols is the projection All() selects for the user fixture.
const userCols = `"user"."id", "user"."created_at", "user"."updated_at", "user"."name", "user"."email", "user"."age", "user"."company_id"`

func str(s string) *string { return &s }
func i64(n int64) *int64   { return &n }

func newUserModel(d *fakeDriver) *pgmodel.Model[User] {
	return pgmodel.NewModel[User](userSchema, pgmodel.NewSession(d))
}
