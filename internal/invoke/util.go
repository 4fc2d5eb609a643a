package invoke

import (
	"context"
	"errors"
	"reflect"
)

func outcome(err error) string {
	var (
		verr *ValidationError
		xerr *ExecutionError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrToolNotFound):
		return "not_found"
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &xerr) && errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}

// metricLabel keeps names that are not in the catalog out of metric labels.
func metricLabel(name, status string) string {
	if status == "not_found" {
		return "unknown"
	}
	return name
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
