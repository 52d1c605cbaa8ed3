package localauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

type row struct {
	values []string
	err    error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		p, ok := d.(*string)
		if !ok {
			return errors.New("unsupported scan target")
		}
		*p = r.values[i]
	}
	return nil
}

type db struct {
	row      row
	lastSQL  string
	lastArgs []any
}

func (d *db) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.lastSQL, d.lastArgs = sql, args
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (d *db) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (d *db) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.lastSQL, d.lastArgs = sql, args
	return d.row
}

func newProvider(t *testing.T, d *db) *Provider {
	t.Helper()
	p := New(d, "test-secret", time.Hour, zap.NewNop())
	p.cost = bcrypt.MinCost
	return p
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestSignIn_ThenGetUser(t *testing.T) {
	d := &db{row: row{values: []string{"u-1", "ana@coop.ec", hashOf(t, "secreto123")}}}
	p := newProvider(t, d)

	sess, err := p.SignInWithPassword(context.Background(), " Ana@coop.ec ", "secreto123")
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.Identity.ID)
	assert.Equal(t, 3600, sess.ExpiresIn)
	assert.Equal(t, "Ana@coop.ec", d.lastArgs[0])

	id, err := p.GetUser(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.ID)
	assert.Equal(t, "ana@coop.ec", id.Email)
}

func TestSignIn_WrongPassword(t *testing.T) {
	p := newProvider(t, &db{row: row{values: []string{"u-1", "ana@coop.ec", hashOf(t, "secreto123")}}})

	_, err := p.SignInWithPassword(context.Background(), "ana@coop.ec", "otra")
	var unauthorized *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)
}

func TestSignIn_UnknownEmail(t *testing.T) {
	p := newProvider(t, &db{row: row{err: pgx.ErrNoRows}})

	_, err := p.SignInWithPassword(context.Background(), "nadie@coop.ec", "x")
	var unauthorized *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)
}

func TestSignOut_RevokesToken(t *testing.T) {
	p := newProvider(t, &db{row: row{values: []string{"u-1", "ana@coop.ec", hashOf(t, "secreto123")}}})
	sess, err := p.SignInWithPassword(context.Background(), "ana@coop.ec", "secreto123")
	require.NoError(t, err)

	require.NoError(t, p.SignOut(context.Background(), sess.AccessToken))

	_, err = p.GetUser(context.Background(), sess.AccessToken)
	var unauthorized *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)
}

func TestGetUser_ForeignSecret(t *testing.T) {
	other := New(&db{}, "other-secret", time.Hour, zap.NewNop())
	token, err := other.issue("u-1", "ana@coop.ec")
	require.NoError(t, err)

	_, err = newProvider(t, &db{}).GetUser(context.Background(), token)
	var unauthorized *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)
}

func TestCreateUser(t *testing.T) {
	d := &db{row: row{values: []string{"u-9"}}}
	p := newProvider(t, d)

	id, err := p.CreateUser(context.Background(), "nuevo@coop.ec", "clave-segura", nil)
	require.NoError(t, err)
	assert.Equal(t, "u-9", id.ID)
	require.Len(t, d.lastArgs, 3)
	hash := d.lastArgs[1].(string)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("clave-segura")))
}

func TestCreateUser_ShortPassword(t *testing.T) {
	_, err := newProvider(t, &db{}).CreateUser(context.Background(), "a@b.ec", "corta", nil)
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "password", validation.Field)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	p := newProvider(t, &db{row: row{err: &pgconn.PgError{Code: "23505"}}})

	_, err := p.CreateUser(context.Background(), "ana@coop.ec", "clave-segura", nil)
	var conflict *domain.ErrConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestDeleteUser(t *testing.T) {
	d := &db{}
	require.NoError(t, newProvider(t, d).DeleteUser(context.Background(), "u-1"))
	assert.Contains(t, d.lastSQL, "DELETE FROM local_credentials")
	assert.Equal(t, []any{"u-1"}, d.lastArgs)
}
