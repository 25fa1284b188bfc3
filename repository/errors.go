package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// IsDuplicateEntry reports whether err is a MySQL duplicate-entry
// violation (error 1062). Inserts racing on the same unique key lose
// with this error; callers recover by re-querying the row the winner
// created instead of surfacing the failure.
func IsDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
