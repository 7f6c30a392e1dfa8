package join

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"ordersetl/internal/dataset"
)

func usersFixture() *dataset.Dataset {
	return dataset.MustNew(
		dataset.Column{Name: "user_id", Values: []any{"u1", "u2"}},
		dataset.Column{Name: "country", Values: []any{"DE", "FR"}},
		dataset.Column{Name: "signup_date", Values: []any{"2020-01-01", "2021-06-15"}},
	)
}

func TestSafeLeftJoin_ManyToOne(t *testing.T) {
	t.Parallel()

	orders := dataset.MustNew(
		dataset.Column{Name: "order_id", Values: []any{"o1", "o2", "o3"}},
		dataset.Column{Name: "user_id", Values: []any{"u1", "u2", "u1"}},
	)

	joined, err := SafeLeftJoin(orders, usersFixture(), "user_id", ManyToOne, "_user")
	if err != nil {
		t.Fatalf("SafeLeftJoin() err=%v", err)
	}

	if joined.NumRows() != orders.NumRows() {
		t.Fatalf("joined rows=%d, want %d", joined.NumRows(), orders.NumRows())
	}
	// Right key column is not duplicated.
	want := []string{"order_id", "user_id", "country", "signup_date"}
	if got := joined.ColumnNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("columns=%v, want %v", got, want)
	}

	country, _ := joined.Column("country")
	if !reflect.DeepEqual(country, []any{"DE", "FR", "DE"}) {
		t.Fatalf("country=%v", country)
	}
}

func TestSafeLeftJoin_NoMatchGetsNulls(t *testing.T) {
	t.Parallel()

	orders := dataset.MustNew(
		dataset.Column{Name: "order_id", Values: []any{"o1", "o2"}},
		dataset.Column{Name: "user_id", Values: []any{"u1", "ghost"}},
	)

	joined, err := SafeLeftJoin(orders, usersFixture(), "user_id", ManyToOne, "_user")
	if err != nil {
		t.Fatalf("SafeLeftJoin() err=%v", err)
	}
	if joined.NumRows() != 2 {
		t.Fatalf("rows=%d, want 2 (left rows preserved)", joined.NumRows())
	}
	country, _ := joined.Column("country")
	if country[0] != "DE" || country[1] != nil {
		t.Fatalf("country=%v, want [DE <nil>]", country)
	}
}

// TestSafeLeftJoin_DuplicateRightKey verifies the cardinality gate fires
// before any output is materialized.
func TestSafeLeftJoin_DuplicateRightKey(t *testing.T) {
	t.Parallel()

	orders := dataset.MustNew(
		dataset.Column{Name: "order_id", Values: []any{"o1"}},
		dataset.Column{Name: "user_id", Values: []any{"u1"}},
	)
	dupUsers := dataset.MustNew(
		dataset.Column{Name: "user_id", Values: []any{"u1", "u1"}},
		dataset.Column{Name: "country", Values: []any{"DE", "FR"}},
	)

	_, err := SafeLeftJoin(orders, dupUsers, "user_id", ManyToOne, "_user")
	var ce *CardinalityError
	if !errors.As(err, &ce) {
		t.Fatalf("SafeLeftJoin(dup right key) err=%v, want *CardinalityError", err)
	}
	if ce.Column != "user_id" || ce.Value != "u1" {
		t.Fatalf("CardinalityError=%+v", ce)
	}
}

func TestSafeLeftJoin_CollidingColumnGetsSuffix(t *testing.T) {
	t.Parallel()

	orders := dataset.MustNew(
		dataset.Column{Name: "user_id", Values: []any{"u1"}},
		dataset.Column{Name: "country", Values: []any{"from_orders"}},
	)
	users := dataset.MustNew(
		dataset.Column{Name: "user_id", Values: []any{"u1"}},
		dataset.Column{Name: "country", Values: []any{"DE"}},
	)

	joined, err := SafeLeftJoin(orders, users, "user_id", ManyToOne, "_user")
	if err != nil {
		t.Fatalf("SafeLeftJoin() err=%v", err)
	}
	left, _ := joined.Column("country")
	right, ok := joined.Column("country_user")
	if !ok {
		t.Fatalf("collided column not suffixed; columns=%v", joined.ColumnNames())
	}
	if left[0] != "from_orders" || right[0] != "DE" {
		t.Fatalf("country=%v country_user=%v", left, right)
	}
}

func TestSafeLeftJoin_UnsupportedCardinality(t *testing.T) {
	t.Parallel()

	d := dataset.MustNew(dataset.Column{Name: "user_id", Values: []any{"u1"}})
	if _, err := SafeLeftJoin(d, d, "user_id", Cardinality("one_to_one"), "_r"); err == nil {
		t.Fatalf("SafeLeftJoin(unsupported cardinality) err=nil, want error")
	}
}

// TestSafeLeftJoin_HundredRows verifies the row-count invariant at a scale
// where a fan-out or row loss could hide in small fixtures.
func TestSafeLeftJoin_HundredRows(t *testing.T) {
	t.Parallel()

	const n = 100
	orderIDs := make([]any, n)
	userIDs := make([]any, n)
	for i := 0; i < n; i++ {
		orderIDs[i] = fmt.Sprintf("o%d", i)
		userIDs[i] = fmt.Sprintf("u%d", i%10)
	}
	orders := dataset.MustNew(
		dataset.Column{Name: "order_id", Values: orderIDs},
		dataset.Column{Name: "user_id", Values: userIDs},
	)

	rightIDs := make([]any, 10)
	countries := make([]any, 10)
	for i := 0; i < 10; i++ {
		rightIDs[i] = fmt.Sprintf("u%d", i)
		countries[i] = "DE"
	}
	users := dataset.MustNew(
		dataset.Column{Name: "user_id", Values: rightIDs},
		dataset.Column{Name: "country", Values: countries},
	)

	joined, err := SafeLeftJoin(orders, users, "user_id", ManyToOne, "_user")
	if err != nil {
		t.Fatalf("SafeLeftJoin() err=%v", err)
	}
	if joined.NumRows() != n {
		t.Fatalf("joined rows=%d, want %d", joined.NumRows(), n)
	}
	if err := CheckRowCount(orders, joined); err != nil {
		t.Fatalf("CheckRowCount() err=%v", err)
	}
}

func TestCheckRowCount(t *testing.T) {
	t.Parallel()

	left := dataset.MustNew(dataset.Column{Name: "a", Values: []any{1, 2, 3}})
	same := dataset.MustNew(dataset.Column{Name: "a", Values: []any{1, 2, 3}})
	short := dataset.MustNew(dataset.Column{Name: "a", Values: []any{1}})

	if err := CheckRowCount(left, same); err != nil {
		t.Fatalf("CheckRowCount(equal) err=%v", err)
	}

	err := CheckRowCount(left, short)
	var re *RowCountMismatchError
	if !errors.As(err, &re) {
		t.Fatalf("CheckRowCount(mismatch) err=%v, want *RowCountMismatchError", err)
	}
	if re.Want != 3 || re.Got != 1 {
		t.Fatalf("RowCountMismatchError=%+v", re)
	}
}
