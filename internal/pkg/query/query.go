// Package query is a small typed filter builder shared by every store adapter.
//
// A Query is built once against an allow-list of column names and can then be
// rendered to SQL (pgx, gorm) or evaluated in memory. Only named operations
// are supported: equality, set membership, null checks and ranges.
package query

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Op names a filter operation.
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpIn      Op = "in"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
)

var (
	ErrUnknownColumn = errors.New("query: unknown column")
	ErrNilValue      = errors.New("query: nil comparison value")
	ErrInvalidPage   = errors.New("query: limit and offset must be non-negative")
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Condition is a single predicate on one column.
// Values holds one element for comparisons, the set for OpIn and nothing for null checks.
type Condition struct {
	Column string
	Op     Op
	Values []any
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Query is an immutable, validated filter with ordering and paging.
// Limit 0 means no limit.
type Query struct {
	Conditions []Condition
	Orders     []Order
	Limit      int
	Offset     int
}

// Builder accumulates conditions; the first validation error sticks and is
// returned by Build.
type Builder struct {
	columns map[string]struct{}
	q       Query
	err     error
}

// For starts a builder restricted to the given columns.
func For(columns ...string) *Builder {
	set := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	return &Builder{columns: set}
}

func (b *Builder) Eq(column string, value any) *Builder  { return b.compare(column, OpEq, value) }
func (b *Builder) Neq(column string, value any) *Builder { return b.compare(column, OpNeq, value) }
func (b *Builder) Gt(column string, value any) *Builder  { return b.compare(column, OpGt, value) }
func (b *Builder) Gte(column string, value any) *Builder { return b.compare(column, OpGte, value) }
func (b *Builder) Lt(column string, value any) *Builder  { return b.compare(column, OpLt, value) }
func (b *Builder) Lte(column string, value any) *Builder { return b.compare(column, OpLte, value) }

// Between is an inclusive range on column.
func (b *Builder) Between(column string, from, to any) *Builder {
	return b.Gte(column, from).Lte(column, to)
}

// In matches rows whose column is one of values. An empty set matches nothing.
func (b *Builder) In(column string, values ...any) *Builder {
	if !b.check(column) {
		return b
	}
	for _, v := range values {
		if normalize(v) == nil {
			b.err = fmt.Errorf("%w: %s in (...)", ErrNilValue, column)
			return b
		}
	}
	b.q.Conditions = append(b.q.Conditions, Condition{Column: column, Op: OpIn, Values: append([]any(nil), values...)})
	return b
}

func (b *Builder) IsNull(column string) *Builder {
	if b.check(column) {
		b.q.Conditions = append(b.q.Conditions, Condition{Column: column, Op: OpIsNull})
	}
	return b
}

func (b *Builder) NotNull(column string) *Builder {
	if b.check(column) {
		b.q.Conditions = append(b.q.Conditions, Condition{Column: column, Op: OpNotNull})
	}
	return b
}

func (b *Builder) OrderBy(column string, desc bool) *Builder {
	if b.check(column) {
		b.q.Orders = append(b.q.Orders, Order{Column: column, Desc: desc})
	}
	return b
}

func (b *Builder) Page(limit, offset int) *Builder {
	if limit < 0 || offset < 0 {
		if b.err == nil {
			b.err = fmt.Errorf("%w: limit=%d offset=%d", ErrInvalidPage, limit, offset)
		}
		return b
	}
	b.q.Limit = limit
	b.q.Offset = offset
	return b
}

// Build returns the query or the first validation error.
func (b *Builder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	return b.q, nil
}

func (b *Builder) compare(column string, op Op, value any) *Builder {
	if !b.check(column) {
		return b
	}
	if normalize(value) == nil {
		b.err = fmt.Errorf("%w: %s %s", ErrNilValue, column, op)
		return b
	}
	b.q.Conditions = append(b.q.Conditions, Condition{Column: column, Op: op, Values: []any{value}})
	return b
}

func (b *Builder) check(column string) bool {
	if b.err != nil {
		return false
	}
	_, allowed := b.columns[column]
	if !allowed || !identifier.MatchString(column) {
		b.err = fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		return false
	}
	return true
}

// Strings converts ids for use with In.
func Strings(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ===================== SQL rendering =====================

// Placeholder renders the n-th (1-based) bind parameter.
type Placeholder func(n int) string

// Dollar renders Postgres style parameters ($1, $2, ...).
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Question renders gorm/sqlite style parameters.
func Question(int) string { return "?" }

// Where renders the conditions joined with AND. Parameters are numbered from
// start+1 so the fragment can follow other bound arguments.
func (q Query) Where(ph Placeholder, start int) (string, []any) {
	if len(q.Conditions) == 0 {
		return "1 = 1", nil
	}
	var (
		parts []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return ph(start + len(args))
	}
	for _, c := range q.Conditions {
		switch c.Op {
		case OpIsNull:
			parts = append(parts, c.Column+" IS NULL")
		case OpNotNull:
			parts = append(parts, c.Column+" IS NOT NULL")
		case OpIn:
			if len(c.Values) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			marks := make([]string, len(c.Values))
			for i, v := range c.Values {
				marks[i] = next(v)
			}
			parts = append(parts, c.Column+" IN ("+strings.Join(marks, ", ")+")")
		default:
			parts = append(parts, c.Column+" "+sqlOperator(c.Op)+" "+next(c.Values[0]))
		}
	}
	return strings.Join(parts, " AND "), args
}

// OrderClause renders the ORDER BY terms without the keyword, or "" when unordered.
func (q Query) OrderClause() string {
	if len(q.Orders) == 0 {
		return ""
	}
	terms := make([]string, len(q.Orders))
	for i, o := range q.Orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms[i] = o.Column + " " + dir
	}
	return strings.Join(terms, ", ")
}

func sqlOperator(op Op) string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "<>"
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	}
	return "="
}

// ===================== in-memory evaluation =====================

// Record exposes column values of a row for in-memory evaluation.
// Null columns must be reported as nil.
type Record interface {
	Field(column string) any
}

// Match reports whether r satisfies every condition, with SQL null semantics:
// comparisons against a null column never match.
func (q Query) Match(r Record) bool {
	for _, c := range q.Conditions {
		v := normalize(r.Field(c.Column))
		switch c.Op {
		case OpIsNull:
			if v != nil {
				return false
			}
		case OpNotNull:
			if v == nil {
				return false
			}
		case OpIn:
			if v == nil {
				return false
			}
			found := false
			for _, want := range c.Values {
				if cmp, ok := Compare(v, want); ok && cmp == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if v == nil {
				return false
			}
			cmp, ok := Compare(v, c.Values[0])
			if !ok || !holds(c.Op, cmp) {
				return false
			}
		}
	}
	return true
}

func holds(op Op, cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

// Compare orders two column values of the same kind. ok is false when the
// values are not comparable.
func Compare(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	}
	// Named types such as enums over string.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

// Sort orders records by the query's Orders. Nulls compare greater than any
// value, so they come last ascending and first descending, as in Postgres.
func Sort[T Record](records []T, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, o := range orders {
			a := normalize(records[i].Field(o.Column))
			b := normalize(records[j].Field(o.Column))
			var cmp int
			switch {
			case a == nil && b == nil:
				cmp = 0
			case a == nil:
				cmp = 1
			case b == nil:
				cmp = -1
			default:
				cmp, _ = Compare(a, b)
			}
			if cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// Paginate applies limit/offset to an already ordered slice.
func Paginate[T any](records []T, limit, offset int) []T {
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
