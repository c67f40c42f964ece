package pgmodel_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pgmodel"
)

// Audited exercises every lifecycle hook.
type Audited struct {
	pgmodel.IntID
	Name *string `db:"name"`

	calls []string
}

func (a *Audited) BeforeValidate(fields []string) {
	a.calls = append(a.calls, "before_validate")
}

func (a *Audited) CustomValidation(fields []string) map[string][]string {
	a.calls = append(a.calls, "custom_validation")
	if a.Name != nil && *a.Name == "reserved" {
		return map[string][]string{"name": {"name is reserved"}}
	}
	return nil
}

func (a *Audited) BeforeSave()  { a.calls = append(a.calls, "before_save") }
func (a *Audited) AfterSave()   { a.calls = append(a.calls, "after_save") }
func (a *Audited) AfterDelete() { a.calls = append(a.calls, "after_delete") }

var auditedSchema = pgmodel.NewSchema[Audited]("audited")

func TestModelValidate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		user       *User
		fields     []string
		wantField  string
		wantSubstr string
	}{
		{
			name:       "missing required column",
			user:       &User{},
			wantField:  "name",
			wantSubstr: "cannot be null",
		},
		{
			name:       "value over max length",
			user:       &User{Name: str(strings.Repeat("x", 30))},
			wantField:  "name",
			wantSubstr: "cannot be longer than 24 characters",
		},
		{
			name:       "invalid email",
			user:       &User{Name: str("User One"), Email: str("not-an-email")},
			wantField:  "email",
			wantSubstr: "is not a valid email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newUserModel(&fakeDriver{})

			err := users.Validate(ctx, tt.user, tt.fields...)
			verr, ok := pgmodel.AsValidationError(err)
			require.True(t, ok, "expected a validation error, got %v", err)
			assert.Equal(t, "User", verr.Entity)
			require.Contains(t, verr.Fields, tt.wantField)
			assert.Contains(t, strings.Join(verr.Fields[tt.wantField], "; "), tt.wantSubstr)
		})
	}

	t.Run("valid entity passes", func(t *testing.T) {
		users := newUserModel(&fakeDriver{})
		u := &User{Name: str("User One"), Email: str("one@example.com"), Age: i64(18)}
		assert.NoError(t, users.Validate(ctx, u))
	})

	t.Run("errors accumulate across fields", func(t *testing.T) {
		users := newUserModel(&fakeDriver{})
		u := &User{Name: str(strings.Repeat("x", 30)), Email: str("nope")}

		err := users.Validate(ctx, u)
		verr, ok := pgmodel.AsValidationError(err)
		require.True(t, ok)
		assert.Contains(t, verr.Fields, "name")
		assert.Contains(t, verr.Fields, "email")
	})

	t.Run("field subset skips other columns", func(t *testing.T) {
		users := newUserModel(&fakeDriver{})
		u := &User{Email: str("one@example.com")} // name missing
		assert.NoError(t, users.Validate(ctx, u, "email"))
	})

	t.Run("unknown field", func(t *testing.T) {
		users := newUserModel(&fakeDriver{})
		err := users.Validate(ctx, &User{}, "nope")
		assert.ErrorIs(t, err, pgmodel.ErrUnknownColumn)
	})
}

func TestModelValidateUniqueCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate on a new entity", func(t *testing.T) {
		d := &fakeDriver{}
		products := pgmodel.NewModel[Product](productSchema, pgmodel.NewSession(d))

		p := &Product{Name: str("On Stock")}
		p.Slug = "on-stock" // assigned explicitly, slug generation steps aside
		d.expect([]string{"id"}, []any{int64(5)})

		err := products.Validate(ctx, p)
		verr, ok := pgmodel.AsValidationError(err)
		require.True(t, ok)
		require.Contains(t, verr.Fields, "slug")
		assert.Contains(t, verr.Fields["slug"][0], "already exists")
		assert.Equal(t,
			`SELECT "id" FROM "product" WHERE "slug" = $1 LIMIT 1`,
			d.last().sql)
	})

	t.Run("no duplicate passes", func(t *testing.T) {
		d := &fakeDriver{}
		products := pgmodel.NewModel[Product](productSchema, pgmodel.NewSession(d))

		p := &Product{Name: str("On Stock")}
		p.Slug = "on-stock"
		assert.NoError(t, products.Validate(ctx, p))
	})

	t.Run("check without unique never looks up", func(t *testing.T) {
		type Tag struct {
			pgmodel.IntID
			Label *string `db:"label"`
		}
		schema := pgmodel.NewSchema[Tag]("tag",
			pgmodel.Override("label", pgmodel.CheckUnique()),
		)

		d := &fakeDriver{}
		tags := pgmodel.NewModel[Tag](schema, pgmodel.NewSession(d))
		require.NoError(t, tags.Validate(ctx, &Tag{Label: str("dup")}))
		assert.Empty(t, d.stmts, "lookup fires only on unique columns")
	})
}

func TestModelForeignKeyDerivation(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{}
	memberships := pgmodel.NewModel[UserTeam](userTeamSchema, pgmodel.NewSession(d))

	ut := &UserTeam{
		User: &User{IntID: pgmodel.IntID{ID: 7}},
		Team: &Team{IntID: pgmodel.IntID{ID: 3}},
	}
	require.NoError(t, memberships.Validate(ctx, ut))
	require.NotNil(t, ut.UserID)
	require.NotNil(t, ut.TeamID)
	assert.Equal(t, int64(7), *ut.UserID)
	assert.Equal(t, int64(3), *ut.TeamID)
}

func TestModelForeignKeyNullableLeftUnset(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(&fakeDriver{})

	// user.company_id is nullable, so a populated relation is not enough to
	// fill it; derivation only rescues required columns.
	u := &User{Name: str("User One"), Company: &Company{IntID: pgmodel.IntID{ID: 9}}}
	require.NoError(t, users.Validate(ctx, u))
	assert.Nil(t, u.CompanyID)
}

func TestModelForeignKeyStillRequired(t *testing.T) {
	ctx := context.Background()
	memberships := pgmodel.NewModel[UserTeam](userTeamSchema, pgmodel.NewSession(&fakeDriver{}))

	ut := &UserTeam{Team: &Team{IntID: pgmodel.IntID{ID: 3}}}
	err := memberships.Validate(ctx, ut)
	verr, ok := pgmodel.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "user_id")
}

func TestModelSave(t *testing.T) {
	ctx := context.Background()

	t.Run("default only stages", func(t *testing.T) {
		d := &fakeDriver{}
		users := newUserModel(d)

		u := &User{Name: str("User One")}
		require.NoError(t, users.Save(ctx, u))
		assert.Empty(t, d.stmts)
		assert.True(t, users.IsNew(u))
	})

	t.Run("flush writes inside the transaction", func(t *testing.T) {
		d := &fakeDriver{}
		users := newUserModel(d)

		u := &User{Name: str("User One")}
		d.expect([]string{"id"}, []any{int64(1)})
		require.NoError(t, users.Save(ctx, u, pgmodel.Flush()))
		assert.Equal(t, int64(1), u.ID)
		assert.Equal(t, 0, d.commits)
	})

	t.Run("commit commits the transaction", func(t *testing.T) {
		d := &fakeDriver{}
		users := newUserModel(d)

		u := &User{Name: str("User One")}
		d.expect([]string{"id"}, []any{int64(1)})
		require.NoError(t, users.Save(ctx, u, pgmodel.Commit()))
		assert.Equal(t, 1, d.commits)
	})

	t.Run("invalid entity is not staged", func(t *testing.T) {
		d := &fakeDriver{}
		users := newUserModel(d)

		u := &User{}
		err := users.Save(ctx, u, pgmodel.Commit())
		_, ok := pgmodel.AsValidationError(err)
		require.True(t, ok)
		assert.Empty(t, d.stmts)
	})
}

func TestModelSaveFields(t *testing.T) {
	ctx := context.Background()

	t.Run("targeted update of persisted entity", func(t *testing.T) {
		d := &fakeDriver{}
		users := newUserModel(d)

		u := &User{Name: str("User One")}
		d.expect([]string{"id"}, []any{int64(1)})
		require.NoError(t, users.Save(ctx, u, pgmodel.Flush()))

		u.Age = i64(30)
		u.Name = str("ignored change") // not in the field list
		require.NoError(t, users.Save(ctx, u, pgmodel.Fields("age")))

		assert.Equal(t, `UPDATE "user" SET "age" = $1 WHERE "user"."id" = $2`, d.last().sql)
		assert.Equal(t, []any{int64(30), int64(1)}, d.last().args)
	})

	t.Run("rejected for a new entity", func(t *testing.T) {
		users := newUserModel(&fakeDriver{})

		u := &User{Name: str("User One"), Age: i64(30)}
		err := users.Save(ctx, u, pgmodel.Fields("age"))
		assert.ErrorIs(t, err, pgmodel.ErrFieldsOnNewEntity)
	})

	t.Run("validates only the saved fields by default", func(t *testing.T) {
		d := &fakeDriver{}
		users := newUserModel(d)

		u := &User{Name: str("User One")}
		d.expect([]string{"id"}, []any{int64(1)})
		require.NoError(t, users.Save(ctx, u, pgmodel.Flush()))

		u.Name = nil // would fail a full validation
		u.Age = i64(30)
		assert.NoError(t, users.Save(ctx, u, pgmodel.Fields("age")))
	})
}

func TestModelHooks(t *testing.T) {
	ctx := context.Background()

	t.Run("save runs hooks in order", func(t *testing.T) {
		d := &fakeDriver{}
		audits := pgmodel.NewModel[Audited](auditedSchema, pgmodel.NewSession(d))

		a := &Audited{Name: str("ok")}
		d.expect([]string{"id"}, []any{int64(1)})
		require.NoError(t, audits.Save(ctx, a, pgmodel.Flush()))
		assert.Equal(t,
			[]string{"before_validate", "custom_validation", "before_save", "after_save"},
			a.calls)
	})

	t.Run("custom validation failure stops the save", func(t *testing.T) {
		d := &fakeDriver{}
		audits := pgmodel.NewModel[Audited](auditedSchema, pgmodel.NewSession(d))

		a := &Audited{Name: str("reserved")}
		err := audits.Save(ctx, a, pgmodel.Flush())
		verr, ok := pgmodel.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, []string{"name is reserved"}, verr.Fields["name"])
		assert.Empty(t, d.stmts)
		assert.NotContains(t, a.calls, "before_save")
	})

	t.Run("delete runs after-delete", func(t *testing.T) {
		d := &fakeDriver{}
		audits := pgmodel.NewModel[Audited](auditedSchema, pgmodel.NewSession(d))

		a := &Audited{Name: str("ok")}
		d.expect([]string{"id"}, []any{int64(1)})
		require.NoError(t, audits.Save(ctx, a, pgmodel.Flush()))

		require.NoError(t, audits.Delete(ctx, a, true))
		assert.Contains(t, a.calls, "after_delete")
		assert.Equal(t, 1, d.commits)
	})
}

func TestModelHistoryChange(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{}
	users := newUserModel(d)

	u := &User{Name: str("User One")}

	hist, err := users.HistoryChange(u, "name")
	require.NoError(t, err)
	assert.False(t, hist.WasChanged, "a never-flushed entity has no history")

	d.expect([]string{"id"}, []any{int64(1)})
	require.NoError(t, users.Save(ctx, u, pgmodel.Flush()))

	u.Name = str("Renamed")
	hist, err = users.HistoryChange(u, "name")
	require.NoError(t, err)
	assert.True(t, hist.WasChanged)
	assert.Equal(t, "User One", hist.Previous)
	assert.Equal(t, "Renamed", hist.Current)

	require.NoError(t, users.Session().Flush(ctx))
	hist, err = users.HistoryChange(u, "name")
	require.NoError(t, err)
	assert.False(t, hist.WasChanged, "flushing resets the baseline")
}

func TestModelPopulate(t *testing.T) {
	users := newUserModel(&fakeDriver{})

	u := &User{}
	require.NoError(t, users.Populate(u, map[string]any{
		"name": "User One",
		"age":  30,
	}))
	assert.Equal(t, "User One", *u.Name)
	assert.Equal(t, int64(30), *u.Age)

	err := users.Populate(u, map[string]any{"nope": 1})
	assert.ErrorIs(t, err, pgmodel.ErrUnknownColumn)
}

func TestModelForcePK(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{}
	users := newUserModel(d)

	u := &User{Name: str("User One")}
	assert.True(t, users.IsNew(u))
	assert.Equal(t, int64(0), users.PK(u))

	d.expect([]string{"id"}, []any{int64(9)})
	pk, err := users.ForcePK(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pk)
	assert.False(t, users.IsNew(u))

	// Idempotent once the key exists.
	pk, err = users.ForcePK(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pk)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &pgmodel.ValidationError{Entity: "User"}
	err.Add("name", "cannot be null")
	err.Add("email", "x is not a valid email")

	assert.Equal(t,
		"pgmodel: validation failed for User: email: x is not a valid email; name: cannot be null",
		err.Error())
}
