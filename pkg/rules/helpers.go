package rules

import (
	"errors"
	"reflect"
)

var errNotNumeric = errors.New("value is not numeric")

func deepEqualAny(a, b any) bool {
	return reflect.DeepEqual(normalizeNumber(a), normalizeNumber(b))
}
