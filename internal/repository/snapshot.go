package repository

import (
	"database/sql"
	"encoding/json"
)

// encodeSnapshot marshals a denormalized snapshot for a JSON column. A nil
// snapshot is stored as SQL NULL.
func encodeSnapshot[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// decodeSnapshot is the inverse of encodeSnapshot. Unparseable column data
// yields nil: snapshots are display caches and never worth failing a read.
func decodeSnapshot[T any](raw sql.NullString) *T {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(raw.String), v); err != nil {
		return nil
	}
	return v
}

// rowsAffectedToFound maps an UPDATE/DELETE result onto ErrNotFound.
func rowsAffectedToFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
