package postgresengine

import (
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

const (
	litAttributeValue = "? -> ?"
	litEquals         = "? = ?"
	litEqualsJsonb    = "? = ?::jsonb"
	litPassThrough    = "?"
	litFalse          = "FALSE"
	funcJsonbObject   = "jsonb_build_object"

	// litJsonbTypeRank and litTextSortKey order jsonb values independently of the database collation:
	// by type like jsonb does, then strings and identifiers by their UTF-8 bytes, then numbers and booleans by value.
	litJsonbTypeRank = `CASE jsonb_typeof(?) WHEN 'null' THEN 0 WHEN 'string' THEN 1 WHEN 'number' THEN 2 ` +
		`WHEN 'boolean' THEN 3 WHEN 'array' THEN 4 ELSE 5 END`
	litTextSortKey = `(CASE jsonb_typeof(?) WHEN 'string' THEN ? #>> '{}' WHEN 'object' THEN ? ->> '@id' END) COLLATE "C"`
)

// binding is the SQL expression a symbol was first bound to.
// entityColumn is set when that happened in an entity position, so later entity positions can join on the column.
type binding struct {
	expr         exp.Expression
	entityColumn exp.IdentifierExpression
}

// buildVisibleVersionsStmt selects the version of every entity that is current at (validTime, transactionTime):
// the greatest (valid_time, tx_time, tx_id) not after the coordinates, dropping deletions.
func (e Engine) buildVisibleVersionsStmt(
	builder goqu.DialectWrapper,
	validTime time.Time,
	transactionTime time.Time,
) *goqu.SelectDataset {

	latest := builder.
		From(e.tableName).
		Select(colEntityID, colValidTime, colTxTime, colTxID, colContentHash, colDocument).
		Distinct(colEntityID).
		Where(
			goqu.C(colValidTime).Lte(validTime),
			goqu.C(colTxTime).Lte(transactionTime),
		).
		Order(
			goqu.C(colEntityID).Asc(),
			goqu.C(colValidTime).Desc(),
			goqu.C(colTxTime).Desc(),
			goqu.C(colTxID).Desc(),
		)

	return builder.
		From(latest.As(aliasLatest)).
		Where(goqu.C(colDocument).IsNotNull())
}

// buildSelectQuery compiles query into one SQL statement.
//
// Every where clause ranges over its own alias of the visible versions. A symbol is bound to the
// first expression it appears in: jsonb_build_object('@id', entity_id) in an entity position,
// document -> 'attribute' in a value position. Further appearances become equality conditions.
// Both sides are jsonb, so references inside documents join with entity positions.
func (e Engine) buildSelectQuery(
	query bitemporal.Query,
	validTime time.Time,
	transactionTime time.Time,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	bindings := make(map[bitemporal.Symbol]binding)
	from := make([]any, 0, len(query.Where()))
	conditions := make([]exp.Expression, 0, 2*len(query.Where()))

	for i, clause := range query.Where() {
		alias := fmt.Sprintf("%s%d", aliasClausePrefix, i)
		from = append(from, goqu.T(cteVisible).As(alias))

		entityColumn := goqu.I(alias + "." + colEntityID)
		attributeValue := goqu.L(litAttributeValue, goqu.I(alias+"."+colDocument), clause.Attribute())
		conditions = append(conditions, attributeValue.IsNotNull())

		entityConditions, err := compileEntityTerm(clause.Entity(), entityColumn, bindings)
		if err != nil {
			return "", err
		}

		valueConditions, err := compileValueTerm(clause.Value(), attributeValue, bindings)
		if err != nil {
			return "", err
		}

		conditions = append(conditions, entityConditions...)
		conditions = append(conditions, valueConditions...)
	}

	columnAliases := make(map[bitemporal.Symbol]string, len(query.OutputSymbols()))
	projections := make([]any, 0, len(query.OutputSymbols()))
	for i, symbol := range query.OutputSymbols() {
		b, ok := bindings[symbol]
		if !ok {
			return "", errors.Join(bitemporal.ErrUnboundSymbol, errors.New(symbol.Name()))
		}

		columnAlias := fmt.Sprintf("%s%d", aliasColumnPrefix, i)
		columnAliases[symbol] = columnAlias
		projections = append(projections, goqu.L(litPassThrough, b.expr).As(columnAlias))
	}

	if limit, ok := query.Limit(); ok && limit == 0 {
		conditions = append(conditions, goqu.L(litFalse))
	}

	selectStmt := builder.
		From(from...).
		With(cteVisible, e.buildVisibleVersionsStmt(builder, validTime, transactionTime)).
		Select(projections...).
		Distinct().
		Where(conditions...)

	if len(query.OrderBy()) > 0 {
		selectStmt = orderResult(builder, selectStmt, query, columnAliases)
	}

	if limit, ok := query.Limit(); ok && limit > 0 {
		selectStmt = selectStmt.Limit(uint(limit)) //nolint:gosec // validated non-negative
	}

	if query.Offset() > 0 {
		selectStmt = selectStmt.Offset(uint(query.Offset())) //nolint:gosec // validated non-negative
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(bitemporal.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// orderResult wraps the distinct rows in a subquery and sorts them by three keys per order-by symbol,
// see litJsonbTypeRank. SELECT DISTINCT can only be ordered by plain output columns, hence the subquery.
func orderResult(
	builder goqu.DialectWrapper,
	distinct *goqu.SelectDataset,
	query bitemporal.Query,
	columnAliases map[bitemporal.Symbol]string,
) *goqu.SelectDataset {

	columns := make([]any, 0, len(query.OutputSymbols()))
	for _, symbol := range query.OutputSymbols() {
		columns = append(columns, goqu.I(aliasResult+"."+columnAliases[symbol]))
	}

	orderBy := make([]exp.OrderedExpression, 0, 3*len(query.OrderBy()))
	for _, o := range query.OrderBy() {
		column := goqu.I(aliasResult + "." + columnAliases[o.Symbol()])
		keys := []exp.Orderable{
			goqu.L(litJsonbTypeRank, column),
			goqu.L(litTextSortKey, column, column, column),
			column,
		}

		for _, key := range keys {
			if o.Direction() == bitemporal.Descending {
				orderBy = append(orderBy, key.Desc())
			} else {
				orderBy = append(orderBy, key.Asc())
			}
		}
	}

	return builder.
		From(distinct.As(aliasResult)).
		Select(columns...).
		Order(orderBy...)
}

func compileEntityTerm(
	term bitemporal.Term,
	entityColumn exp.IdentifierExpression,
	bindings map[bitemporal.Symbol]binding,
) ([]exp.Expression, error) {

	if id, ok := term.Identifier(); ok {
		return []exp.Expression{entityColumn.Eq(id.Canonical())}, nil
	}

	symbol, ok := term.Symbol()
	if !ok {
		return nil, errors.Join(bitemporal.ErrMalformedQuery, errors.New("entity position must be a symbol or an identifier"))
	}

	reference := goqu.Func(funcJsonbObject, bitemporal.IDReferenceKey, entityColumn)

	b, bound := bindings[symbol]
	switch {
	case !bound:
		bindings[symbol] = binding{expr: reference, entityColumn: entityColumn}
		return nil, nil
	case b.entityColumn != nil:
		return []exp.Expression{entityColumn.Eq(b.entityColumn)}, nil
	default:
		return []exp.Expression{goqu.L(litEquals, reference, b.expr)}, nil
	}
}

func compileValueTerm(
	term bitemporal.Term,
	attributeValue exp.LiteralExpression,
	bindings map[bitemporal.Symbol]binding,
) ([]exp.Expression, error) {

	if symbol, ok := term.Symbol(); ok {
		b, bound := bindings[symbol]
		if !bound {
			bindings[symbol] = binding{expr: attributeValue}
			return nil, nil
		}

		return []exp.Expression{goqu.L(litEquals, attributeValue, b.expr)}, nil
	}

	value, ok := term.Value()
	if !ok {
		return nil, errors.Join(bitemporal.ErrMalformedQuery, errors.New("invalid value term"))
	}

	encoded, err := bitemporal.EncodeValue(value)
	if err != nil {
		return nil, errors.Join(bitemporal.ErrBuildingQueryFailed, err)
	}

	return []exp.Expression{goqu.L(litEqualsJsonb, attributeValue, string(encoded))}, nil
}

// buildEntityLookupQuery selects the single version of one entity that is current at the coordinates.
// A NULL document in the result is a deletion.
func (e Engine) buildEntityLookupQuery(
	id bitemporal.Identifier,
	validTime time.Time,
	transactionTime time.Time,
) (sqlQueryString, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(e.tableName).
		Select(colEntityID, colValidTime, colTxTime, colTxID, colContentHash, colDocument).
		Where(
			goqu.C(colEntityID).Eq(id.Canonical()),
			goqu.C(colValidTime).Lte(validTime),
			goqu.C(colTxTime).Lte(transactionTime),
		).
		Order(
			goqu.C(colValidTime).Desc(),
			goqu.C(colTxTime).Desc(),
			goqu.C(colTxID).Desc(),
		).
		Limit(1)

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(bitemporal.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (e Engine) buildLatestTransactionQuery() (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(e.tableName).
		Select(goqu.MAX(colTxTime).As(aliasMaxTx))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(bitemporal.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
