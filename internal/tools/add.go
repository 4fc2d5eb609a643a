package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// Add sums the numeric arguments "a" and "b".
func Add() Handler {
	return HandlerFunc(func(ctx context.Context, args map[string]interface{}) (Output, error) {
		a, err := number(args, "a")
		if err != nil {
			return Output{}, err
		}
		b, err := number(args, "b")
		if err != nil {
			return Output{}, err
		}
		sum := a + b
		if math.IsInf(sum, 0) || math.IsNaN(sum) {
			return Output{}, fmt.Errorf("sum of %s and %s is not a finite number", formatNumber(a), formatNumber(b))
		}
		return Output{
			Text:  fmt.Sprintf("%s + %s = %s", formatNumber(a), formatNumber(b), formatNumber(sum)),
			Value: sum,
		}, nil
	})
}

func number(args map[string]interface{}, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
