package db

import (
	"database/sql/driver"
	"fmt"
)

// OptionalString is a string stored as NULL when empty. It implements
// sql.Scanner and driver.Valuer so it works with nullable text columns
// without sprinkling sql.NullString through the store.
type OptionalString string

// Scan implements sql.Scanner
func (s *OptionalString) Scan(src interface{}) error {
	if s == nil {
		return fmt.Errorf("dbtypes: Scan on nil *OptionalString")
	}
	switch v := src.(type) {
	case nil:
		*s = ""
		return nil
	case []byte:
		*s = OptionalString(v)
		return nil
	case string:
		*s = OptionalString(v)
		return nil
	default:
		return fmt.Errorf("dbtypes: cannot scan type %T into OptionalString", src)
	}
}

// Value implements driver.Valuer
func (s OptionalString) Value() (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	return string(s), nil
}

// String returns the plain value, empty for NULL.
func (s OptionalString) String() string { return string(s) }
