package store

import "database/sql"

// requireOne reports sql.ErrNoRows when an UPDATE or DELETE matched nothing.
func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
