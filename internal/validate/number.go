package validate

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric input as received on the wire: a JSON number, a JSON
// string or a query/form value. It is only converted by Float, so a value
// like "abc" is reported as InvalidType instead of silently becoming zero.
type Number struct {
	Raw string
	Set bool
}

// NumberOf wraps a query or form value. Blank values count as absent.
func NumberOf(s string) Number {
	s = strings.TrimSpace(s)
	return Number{Raw: s, Set: s != ""}
}

// UnmarshalJSON keeps the raw token. Strings are unquoted; null and blank
// strings leave the number unset; booleans, objects and arrays stay raw and
// fail Float.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumberOf(s)
		return nil
	}
	*n = Number{Raw: string(b), Set: len(b) > 0}
	return nil
}

// Float parses the value; NaN and infinities are not numbers here.
func (n Number) Float() (float64, bool) {
	if !n.Set {
		return 0, false
	}
	v, err := strconv.ParseFloat(n.Raw, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

// Int parses an integral value. "2.0" is accepted, "2.5" is not.
func (n Number) Int() (int, bool) {
	v, ok := n.Float()
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
