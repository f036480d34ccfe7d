package router

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ai-support-router-be/internal/model"
)

// CoerceValue converts a decoded JSON value to the declared parameter type.
// Planner models routinely quote numbers and booleans, so lenient string
// conversions are accepted; structural mismatches (scalar where an array is
// declared) are not. The second return reports whether the value is usable.
func CoerceValue(value interface{}, paramType string) (interface{}, bool) {
	switch model.NormalizeParamType(paramType) {
	case model.ParamTypeString:
		switch v := value.(type) {
		case string:
			return v, true
		case float64, bool:
			return fmt.Sprint(v), true
		}
		return nil, false

	case model.ParamTypeInteger:
		switch v := value.(type) {
		case float64:
			if v == math.Trunc(v) {
				return int(v), true
			}
			return nil, false
		case string:
			// Models emit "3" and "3.0" interchangeably.
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err == nil && f == math.Trunc(f) {
				return int(f), true
			}
			return nil, false
		}
		return nil, false

	case model.ParamTypeFloat:
		switch v := value.(type) {
		case float64:
			return v, true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err == nil {
				return f, true
			}
			return nil, false
		}
		return nil, false

	case model.ParamTypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1":
				return true, true
			case "false", "0":
				return false, true
			}
			return nil, false
		case float64:
			if v == 1 {
				return true, true
			}
			if v == 0 {
				return false, true
			}
			return nil, false
		}
		return nil, false

	case model.ParamTypeArray:
		if v, ok := value.([]interface{}); ok {
			return v, true
		}
		return nil, false

	case model.ParamTypeObject:
		if v, ok := value.(map[string]interface{}); ok {
			return v, true
		}
		return nil, false
	}

	// Unknown type tags pass the value through untouched.
	return value, true
}

// coerceScore converts a 0-100 score field that may arrive as number or
// string. Returns the clamped score and whether it was valid as given.
func coerceScore(value interface{}) (int, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	score := int(f)
	if score < 0 {
		return 0, false
	}
	if score > 100 {
		return 100, false
	}
	return score, true
}
