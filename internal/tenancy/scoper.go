package tenancy

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Values carries column/value pairs for filters and payloads.
type Values map[string]any

// exemptTables lists globally shared reference tables that carry no tenant
// column. Everything else is isolated by default; a new table is scoped
// without any opt-in.
var exemptTables = map[string]struct{}{
	"species": {},
	"tenants": {},
}

// Exempt reports whether the table is on the shared reference allow-list.
func Exempt(table string) bool {
	_, ok := exemptTables[table]
	return ok
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Scoper builds and executes statements with tenant and environment
// predicates injected. Construct one per operation from the caller's claimed
// tenant; rebind onto a transaction with ForTx.
type Scoper struct {
	q     Querier
	scope Scope
}

// NewScoper binds a querier to a tenant scope.
func NewScoper(q Querier, scope Scope) *Scoper {
	if q == nil {
		panic("tenancy: nil querier")
	}
	return &Scoper{q: q, scope: scope}
}

// ForTx returns a Scoper with the same scope bound to tx.
func (s *Scoper) ForTx(tx pgx.Tx) *Scoper {
	return &Scoper{q: tx, scope: s.scope}
}

// Scope returns the bound scope.
func (s *Scoper) Scope() Scope {
	return s.scope
}

type queryOptions struct {
	orderBy   string
	desc      bool
	limit     int
	offset    int
	forUpdate bool
}

// QueryOption adjusts read statements.
type QueryOption func(*queryOptions)

// OrderBy sorts results by the given column.
func OrderBy(column string, desc bool) QueryOption {
	mustIdent(column)
	return func(o *queryOptions) { o.orderBy, o.desc = column, desc }
}

// Limit caps the number of returned rows.
func Limit(n int) QueryOption {
	return func(o *queryOptions) { o.limit = n }
}

// Offset skips the first n rows.
func Offset(n int) QueryOption {
	return func(o *queryOptions) { o.offset = n }
}

// ForUpdate locks matched rows for the duration of the transaction.
func ForUpdate() QueryOption {
	return func(o *queryOptions) { o.forUpdate = true }
}

// Find executes a scoped SELECT.
func (s *Scoper) Find(ctx context.Context, table string, columns []string, filter Values, opts ...QueryOption) (pgx.Rows, error) {
	sql, args := s.buildSelect(table, columns, filter, opts...)
	return s.q.Query(ctx, sql, args...)
}

// FindRow executes a scoped single-row SELECT.
func (s *Scoper) FindRow(ctx context.Context, table string, columns []string, filter Values, opts ...QueryOption) pgx.Row {
	sql, args := s.buildSelect(table, columns, filter, opts...)
	return s.q.QueryRow(ctx, sql, args...)
}

// Count executes a scoped SELECT count(*).
func (s *Scoper) Count(ctx context.Context, table string, filter Values) (int64, error) {
	merged := s.mergeFilter(table, filter)
	var b strings.Builder
	args := make([]any, 0, len(merged))
	fmt.Fprintf(&b, "SELECT count(*) FROM %s", mustIdent(table))
	appendWhere(&b, &args, merged)
	var count int64
	if err := s.q.QueryRow(ctx, b.String(), args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Insert executes a scoped INSERT. The tenant and environment columns are
// merged into the payload.
func (s *Scoper) Insert(ctx context.Context, table string, payload Values) error {
	sql, args := s.buildInsert(table, payload, nil)
	_, err := s.q.Exec(ctx, sql, args...)
	return err
}

// InsertReturning executes a scoped INSERT ... RETURNING.
func (s *Scoper) InsertReturning(ctx context.Context, table string, payload Values, returning []string) pgx.Row {
	sql, args := s.buildInsert(table, payload, returning)
	return s.q.QueryRow(ctx, sql, args...)
}

// InsertMany executes one scoped INSERT per payload, merging the scope into
// every element. A nil element is a programming error.
func (s *Scoper) InsertMany(ctx context.Context, table string, payloads []Values) error {
	if len(payloads) == 0 {
		panic("tenancy: InsertMany with no payloads")
	}
	for i, payload := range payloads {
		if payload == nil {
			panic(fmt.Sprintf("tenancy: InsertMany payload %d is nil", i))
		}
		if err := s.Insert(ctx, table, payload); err != nil {
			return err
		}
	}
	return nil
}

// Upsert executes a scoped INSERT ... ON CONFLICT DO UPDATE. The scope is
// merged into the insert payload, and the update branch carries the scope
// predicate so a conflict row from another tenant can never be written.
func (s *Scoper) Upsert(ctx context.Context, table string, conflictColumns []string, payload Values, updateColumns []string) error {
	if len(conflictColumns) == 0 {
		panic("tenancy: Upsert without conflict columns")
	}
	if len(updateColumns) == 0 {
		panic("tenancy: Upsert without update columns")
	}
	merged := s.mergePayload(table, payload)
	cols, args := sortedColumns(merged)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (", mustIdent(table))
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mustIdent(col))
	}
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
	}
	b.WriteString(") ON CONFLICT (")
	for i, col := range conflictColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mustIdent(col))
	}
	b.WriteString(") DO UPDATE SET ")
	for i, col := range updateColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", mustIdent(col), mustIdent(col))
	}
	if !Exempt(table) {
		fmt.Fprintf(&b, " WHERE %s.tenant_id = EXCLUDED.tenant_id AND %s.environment = EXCLUDED.environment", table, table)
	}
	_, err := s.q.Exec(ctx, b.String(), args...)
	return err
}

// Update executes a scoped UPDATE and returns the affected row count.
func (s *Scoper) Update(ctx context.Context, table string, set Values, filter Values) (int64, error) {
	if len(set) == 0 {
		panic("tenancy: Update with empty set")
	}
	merged := s.mergeFilter(table, filter)
	setCols, args := sortedColumns(set)

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET ", mustIdent(table))
	for i, col := range setCols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = $%d", mustIdent(col), i+1)
	}
	appendWhere(&b, &args, merged)
	tag, err := s.q.Exec(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete executes a scoped DELETE and returns the affected row count.
func (s *Scoper) Delete(ctx context.Context, table string, filter Values) (int64, error) {
	merged := s.mergeFilter(table, filter)
	var b strings.Builder
	args := make([]any, 0, len(merged))
	fmt.Fprintf(&b, "DELETE FROM %s", mustIdent(table))
	appendWhere(&b, &args, merged)
	tag, err := s.q.Exec(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Scoper) buildSelect(table string, columns []string, filter Values, opts ...QueryOption) (string, []any) {
	if len(columns) == 0 {
		panic("tenancy: select without columns")
	}
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	merged := s.mergeFilter(table, filter)

	var b strings.Builder
	args := make([]any, 0, len(merged))
	b.WriteString("SELECT ")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mustIdent(col))
	}
	fmt.Fprintf(&b, " FROM %s", mustIdent(table))
	appendWhere(&b, &args, merged)
	if o.orderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", o.orderBy)
		if o.desc {
			b.WriteString(" DESC")
		}
	}
	if o.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", o.limit)
	}
	if o.offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", o.offset)
	}
	if o.forUpdate {
		b.WriteString(" FOR UPDATE")
	}
	return b.String(), args
}

func (s *Scoper) buildInsert(table string, payload Values, returning []string) (string, []any) {
	merged := s.mergePayload(table, payload)
	cols, args := sortedColumns(merged)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (", mustIdent(table))
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mustIdent(col))
	}
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
	}
	b.WriteString(")")
	for i, col := range returning {
		if i == 0 {
			b.WriteString(" RETURNING ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(mustIdent(col))
	}
	return b.String(), args
}

func (s *Scoper) mergeFilter(table string, filter Values) Values {
	merged := make(Values, len(filter)+2)
	for k, v := range filter {
		mustIdent(k)
		merged[k] = v
	}
	if Exempt(table) {
		return merged
	}
	merged["tenant_id"] = s.scope.TenantID
	merged["environment"] = string(s.scope.Env)
	return merged
}

func (s *Scoper) mergePayload(table string, payload Values) Values {
	if len(payload) == 0 {
		panic("tenancy: insert with empty payload")
	}
	merged := make(Values, len(payload)+2)
	for k, v := range payload {
		mustIdent(k)
		merged[k] = v
	}
	if Exempt(table) {
		return merged
	}
	merged["tenant_id"] = s.scope.TenantID
	merged["environment"] = string(s.scope.Env)
	return merged
}

func appendWhere(b *strings.Builder, args *[]any, filter Values) {
	if len(filter) == 0 {
		return
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString(" WHERE ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" AND ")
		}
		if filter[k] == nil {
			fmt.Fprintf(b, "%s IS NULL", mustIdent(k))
			continue
		}
		*args = append(*args, filter[k])
		fmt.Fprintf(b, "%s = $%d", mustIdent(k), len(*args))
	}
}

func sortedColumns(values Values) ([]string, []any) {
	cols := make([]string, 0, len(values))
	for k := range values {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = values[col]
	}
	return cols, args
}

// mustIdent validates a SQL identifier. An invalid identifier is a
// programming error, never user input.
func mustIdent(name string) string {
	if !identPattern.MatchString(name) {
		panic(fmt.Sprintf("tenancy: invalid identifier %q", name))
	}
	return name
}
