package pgxstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/screwyprof/hivestake/web/funding"
	"github.com/screwyprof/hivestake/web/store/pgxstore"
)

func TestFundingsQueryBuilder(t *testing.T) {
	t.Parallel()

	const base = `SELECT id, request_id::text AS request_id, funder, amount::text AS amount, funded_at FROM funding_records`

	t.Run("it paginates the first page without an offset", func(t *testing.T) {
		t.Parallel()

		// Arrange
		criteria := funding.Criteria{Page: 1, Size: 50}

		// Act
		sql, args := pgxstore.NewFundingsQuery().ForCriteria(criteria).Build()

		// Assert
		assert.Equal(t, base+" ORDER BY funded_at DESC, id DESC LIMIT $1", sql)
		assert.Equal(t, []any{uint64(51)}, args)
	})

	t.Run("it filters by year and skips earlier pages", func(t *testing.T) {
		t.Parallel()

		// Arrange
		criteria := funding.Criteria{Year: 2025, Page: 3, Size: 10}

		// Act
		sql, args := pgxstore.NewFundingsQuery().ForCriteria(criteria).Build()

		// Assert
		assert.Equal(t, base+" WHERE funded_at >= $1 AND funded_at < $2 ORDER BY funded_at DESC, id DESC LIMIT $3 OFFSET $4", sql)
		assert.Equal(t, []any{
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			uint64(11),
			uint64(20),
		}, args)
	})
}
