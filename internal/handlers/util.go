package handlers

import "reflect"

func isNilInterface(value interface{}) bool {
	val := reflect.ValueOf(value)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan:
		return val.IsNil()
	default:
		return false
	}
}
