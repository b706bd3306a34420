package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// FlexString accepts a JSON string, number or boolean. Models and web forms
// are loose about scalar types, e.g. estimated_effort arrives as 5 or "5".
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		*s = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*s = FlexString(v)
	case '{', '[':
		return fmt.Errorf("flex string: unsupported json value %s", trimmed)
	default:
		*s = FlexString(trimmed)
	}
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexFloat accepts a JSON number or a numeric string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		trimmed = []byte(strings.TrimSpace(v))
		if len(trimmed) == 0 {
			*f = 0
			return nil
		}
	}
	n, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return fmt.Errorf("flex float: %w", err)
	}
	*f = FlexFloat(n)
	return nil
}

// FlexBool accepts a JSON boolean, a number or a boolean-like string such as
// "yes", "on" or "1". Strings it does not recognise decode as false; only
// objects and arrays are rejected.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		*b = false
		return nil
	}
	switch trimmed[0] {
	case '{', '[':
		return fmt.Errorf("flex bool: unsupported json value %s", trimmed)
	case '"':
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*b = FlexBool(truthy(v))
	default:
		*b = FlexBool(truthy(string(trimmed)))
	}
	return nil
}

func truthy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "true", "t", "yes", "y", "on", "checked":
		return true
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n != 0
	}
	return false
}
