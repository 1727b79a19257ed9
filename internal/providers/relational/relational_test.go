package relational

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/altai-labs/magellan/internal/providers"
)

func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFromDB(sqlx.NewDb(db, "sqlmock"), zaptest.NewLogger(t)), mock
}

func TestQueryMapsRowsToRecords(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT country, requirement FROM business_requirements WHERE material = ?")).
		WithArgs("cocoa").
		WillReturnRows(sqlmock.NewRows([]string{"country", "requirement"}).
			AddRow("Ecuador", "fine flavor certification").
			AddRow("Ghana", "fair trade sourcing"))

	v, err := p.Query(context.Background(),
		"SELECT country, requirement FROM business_requirements WHERE material = ?",
		[]any{"cocoa"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// Normalization takes the first record; no text-like key, so the
	// sorted structural serialization applies.
	text := v.Normalize()
	assert.Equal(t, `{"country": "Ecuador", "requirement": "fine flavor certification"}`, text)
}

func TestQueryEmptyResultNormalizes(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"country"}))

	v, err := p.Query(context.Background(), "SELECT country FROM producers", nil)
	require.NoError(t, err)
	assert.Equal(t, "No result returned", v.Normalize())
}

func TestQueryRejectsWrites(t *testing.T) {
	p, _ := newMockProvider(t)
	for _, q := range []string{
		"DELETE FROM producers",
		"UPDATE producers SET country = 'X'",
		"INSERT INTO producers VALUES ('X')",
		"DROP TABLE producers",
	} {
		_, err := p.Query(context.Background(), q, nil)
		var vErr *providers.ValidationError
		require.ErrorAs(t, err, &vErr, "query %q must be rejected", q)
	}
}

func TestQueryEmptyStatementIsValidationError(t *testing.T) {
	p, _ := newMockProvider(t)
	_, err := p.Query(context.Background(), "  ", nil)
	var vErr *providers.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestQueryDatabaseFailureIsRetryable(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	_, err := p.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.True(t, providers.IsRetryable(err))
}

func TestQueryAllowsCTEs(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery("WITH ranked").
		WillReturnRows(sqlmock.NewRows([]string{"country"}).AddRow("Chile"))

	v, err := p.Query(context.Background(),
		"WITH ranked AS (SELECT country FROM producers) SELECT country FROM ranked", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"country": "Chile"}`, v.Normalize())
}
