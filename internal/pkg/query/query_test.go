package query_test

import (
	"errors"
	"testing"
	"time"

	"github.com/AndreiCalugar/MyCommunity/internal/pkg/query"
)

type row map[string]any

func (r row) Field(column string) any { return r[column] }

func TestBuildRejectsUnknownColumn(t *testing.T) {
	_, err := query.For("id").Eq("name", "x").Build()
	if !errors.Is(err, query.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestBuildRejectsNilComparison(t *testing.T) {
	var ts *time.Time
	_, err := query.For("created_at").Gt("created_at", ts).Build()
	if !errors.Is(err, query.ErrNilValue) {
		t.Fatalf("expected ErrNilValue, got %v", err)
	}
}

func TestBuildRejectsNegativePage(t *testing.T) {
	_, err := query.For("id").Page(-1, 0).Build()
	if !errors.Is(err, query.ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
}

func TestWhereRendersDollarPlaceholders(t *testing.T) {
	q, err := query.For("conversation_id", "user_id", "deleted_at", "created_at").
		Eq("conversation_id", "c1").
		IsNull("deleted_at").
		Neq("user_id", "u1").
		In("user_id", "a", "b").
		OrderBy("created_at", true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	where, args := q.Where(query.Dollar, 0)
	want := "conversation_id = $1 AND deleted_at IS NULL AND user_id <> $2 AND user_id IN ($3, $4)"
	if where != want {
		t.Fatalf("unexpected where:\n got %q\nwant %q", where, want)
	}
	if len(args) != 4 || args[0] != "c1" || args[3] != "b" {
		t.Fatalf("unexpected args: %v", args)
	}
	if got := q.OrderClause(); got != "created_at DESC" {
		t.Fatalf("unexpected order clause %q", got)
	}
}

func TestWhereOffsetsArguments(t *testing.T) {
	q, _ := query.For("id").Eq("id", "x").Build()
	where, _ := q.Where(query.Dollar, 2)
	if where != "id = $3" {
		t.Fatalf("expected numbering to continue after 2, got %q", where)
	}
}

func TestEmptyInMatchesNothing(t *testing.T) {
	q, _ := query.For("id").In("id").Build()
	where, args := q.Where(query.Question, 0)
	if where != "1 = 0" || len(args) != 0 {
		t.Fatalf("unexpected rendering %q %v", where, args)
	}
	if q.Match(row{"id": "x"}) {
		t.Fatalf("empty set must not match")
	}
}

func TestMatchUsesSQLNullSemantics(t *testing.T) {
	now := time.Now()
	q, _ := query.For("user_id", "deleted_at", "created_at").
		Neq("user_id", "me").
		IsNull("deleted_at").
		Gt("created_at", now.Add(-time.Minute)).
		Build()

	cases := []struct {
		name string
		r    row
		want bool
	}{
		{"other user recent", row{"user_id": "you", "deleted_at": (*time.Time)(nil), "created_at": now}, true},
		{"own message", row{"user_id": "me", "deleted_at": nil, "created_at": now}, false},
		{"deleted", row{"user_id": "you", "deleted_at": &now, "created_at": now}, false},
		{"too old", row{"user_id": "you", "deleted_at": nil, "created_at": now.Add(-time.Hour)}, false},
		{"null author", row{"user_id": nil, "deleted_at": nil, "created_at": now}, false},
	}
	for _, tc := range cases {
		if got := q.Match(tc.r); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSortAndPaginate(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{
		{"id": "b", "created_at": base},
		{"id": "c", "created_at": base.Add(time.Second)},
		{"id": "a", "created_at": base},
	}
	query.Sort(rows, []query.Order{{Column: "created_at", Desc: true}, {Column: "id", Desc: true}})
	got := []string{rows[0]["id"].(string), rows[1]["id"].(string), rows[2]["id"].(string)}
	if got[0] != "c" || got[1] != "b" || got[2] != "a" {
		t.Fatalf("unexpected order %v", got)
	}

	page := query.Paginate(rows, 1, 1)
	if len(page) != 1 || page[0]["id"] != "b" {
		t.Fatalf("unexpected page %v", page)
	}
	if query.Paginate(rows, 10, 5) != nil {
		t.Fatalf("offset past end must return nil")
	}
}

func TestSortPlacesNullsLikePostgres(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := base.Add(time.Minute)
	var unset *time.Time
	ids := func(rows []row) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r["id"].(string)
		}
		return out
	}
	newRows := func() []row {
		return []row{
			{"id": "null", "deleted_at": unset},
			{"id": "late", "deleted_at": &later},
			{"id": "early", "deleted_at": &base},
		}
	}

	asc := newRows()
	query.Sort(asc, []query.Order{{Column: "deleted_at"}})
	if got := ids(asc); got[0] != "early" || got[1] != "late" || got[2] != "null" {
		t.Fatalf("ascending must put nulls last, got %v", got)
	}

	desc := newRows()
	query.Sort(desc, []query.Order{{Column: "deleted_at", Desc: true}})
	if got := ids(desc); got[0] != "null" || got[1] != "late" || got[2] != "early" {
		t.Fatalf("descending must put nulls first, got %v", got)
	}
}
