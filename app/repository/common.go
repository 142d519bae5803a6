package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DueQuery bounds one due-set fetch. A zero GiveUpCutoff disables the give-up filter.
type DueQuery struct {
	Now          time.Time
	GiveUpCutoff time.Time
	Limit        int
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func nullableStringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt32Value(v *int32) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64Value(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTimeValue(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDecimalValue(v decimal.NullDecimal) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Decimal.String()
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int32PtrFromNull(v sql.NullInt32) *int32 {
	if !v.Valid {
		return nil
	}
	n := v.Int32
	return &n
}

func int64PtrFromNull(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtrFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func sqlValue(v interface{}) interface{} {
	switch x := v.(type) {
	case *string:
		return nullableStringValue(x)
	case *int32:
		return nullableInt32Value(x)
	case *int64:
		return nullableInt64Value(x)
	case *time.Time:
		return nullableTimeValue(x)
	case decimal.NullDecimal:
		return nullableDecimalValue(x)
	case decimal.Decimal:
		return x.String()
	case entity.RefundStatus:
		return string(x)
	case entity.RefundOrderStatus:
		return int32(x)
	default:
		return v
	}
}

// assignments collects the SET clause of a partial update.
type assignments struct {
	columns []string
	args    []interface{}
}

func setField[T any](a *assignments, column string, f entity.Field[T]) {
	v, ok := f.Get()
	if !ok {
		return
	}
	a.columns = append(a.columns, column+" = ?")
	a.args = append(a.args, sqlValue(v))
}

func (a *assignments) updateQuery(table, key string, keyValue interface{}, now time.Time) (string, []interface{}) {
	columns := append(append([]string{}, a.columns...), "updated_at = ?")
	args := append(append([]interface{}{}, a.args...), now, keyValue)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(columns, ", "), key), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// rowExists tells a missing row apart from an UPDATE whose values were already stored.
func rowExists(ctx context.Context, db DBTX, table, key string, keyValue interface{}) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? LIMIT 1", table, key), keyValue).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
