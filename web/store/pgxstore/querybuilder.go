package pgxstore

import (
	"fmt"

	"github.com/screwyprof/hivestake/web/funding"
)

const baseFundingsQuery = `SELECT id, request_id::text AS request_id, funder, amount::text AS amount, funded_at FROM funding_records`

// FundingsQueryBuilder assembles the funding history query
type FundingsQueryBuilder struct {
	sql   string
	args  []any
	where bool
}

// NewFundingsQuery creates a new funding history query builder
func NewFundingsQuery() *FundingsQueryBuilder {
	return &FundingsQueryBuilder{
		sql: baseFundingsQuery,
	}
}

// ForCriteria applies the criteria to the query in one fluent call
func (q *FundingsQueryBuilder) ForCriteria(criteria funding.Criteria) *FundingsQueryBuilder {
	return q.
		filterByYear(criteria.Year).
		orderByFundedAtDesc().
		paginateWithDetection(criteria)
}

// filterByYear restricts funded_at to the year as a range so the index applies
func (q *FundingsQueryBuilder) filterByYear(year funding.Year) *FundingsQueryBuilder {
	if year.Uint64() > 0 {
		from, to := year.Bounds()
		q.addWhereCondition("funded_at >= $%d", from)
		q.addWhereCondition("funded_at < $%d", to)
	}
	return q
}

// orderByFundedAtDesc puts the most recent funding first; id breaks ties
func (q *FundingsQueryBuilder) orderByFundedAtDesc() *FundingsQueryBuilder {
	q.sql += " ORDER BY funded_at DESC, id DESC"
	return q
}

// paginateWithDetection asks for one extra row to learn whether another page exists
func (q *FundingsQueryBuilder) paginateWithDetection(criteria funding.Criteria) *FundingsQueryBuilder {
	limit := criteria.ItemsPerPage() + 1
	offset := criteria.ItemsToSkip()

	q.addParameter("LIMIT $%d", limit)

	if offset > 0 {
		q.addParameter("OFFSET $%d", offset)
	}

	return q
}

// Build returns the final SQL query and arguments
func (q *FundingsQueryBuilder) Build() (string, []any) {
	return q.sql, q.args
}

func (q *FundingsQueryBuilder) addWhereCondition(sqlClause string, value any) {
	keyword := " WHERE "
	if q.where {
		keyword = " AND "
	}
	q.where = true

	q.sql += keyword + fmt.Sprintf(sqlClause, q.nextPlaceholder())
	q.args = append(q.args, value)
}

func (q *FundingsQueryBuilder) addParameter(sqlClause string, value any) {
	q.sql += " " + fmt.Sprintf(sqlClause, q.nextPlaceholder())
	q.args = append(q.args, value)
}

func (q *FundingsQueryBuilder) nextPlaceholder() int {
	return len(q.args) + 1
}
