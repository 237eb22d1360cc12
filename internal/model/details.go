package model

// Detail accessors tolerant of the two provenances a details map can have:
// typed values placed by the trace-derived dialect, and generic JSON values
// (float64, map[string]interface{}) decoded from explicit-event markers.

// DetailString returns the string at key, or "".
func DetailString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// DetailInt64 returns the integer at key under any numeric representation.
func DetailInt64(m map[string]interface{}, key string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// DetailUint64 returns the unsigned integer at key. Capability masks may set
// bit 63, so float64 round-trips are not trusted for them; uint64 and int64
// sources are exact.
func DetailUint64(m map[string]interface{}, key string) (uint64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case float64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

// NextListFromValue accepts both shapes a next-candidate list is logged in:
// a JSON array of names, or an array of {name, anchor, jump_back} objects.
func NextListFromValue(v interface{}) []NextListItem {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	items := make([]NextListItem, 0, len(arr))
	for _, e := range arr {
		switch x := e.(type) {
		case string:
			items = append(items, NextListItem{Name: x})
		case map[string]interface{}:
			name := DetailString(x, "name")
			if name == "" {
				continue
			}
			items = append(items, NextListItem{
				Name:     name,
				Anchor:   DetailBool(x, "anchor"),
				JumpBack: DetailBool(x, "jump_back"),
			})
		}
	}
	return items
}

// IntSliceFromValue converts a JSON number array into ints; nil when any
// element is not numeric.
func IntSliceFromValue(v interface{}) []int {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, len(arr))
	for i, e := range arr {
		f, ok := e.(float64)
		if !ok {
			return nil
		}
		out[i] = int(f)
	}
	return out
}

// DetailBool returns the bool at key, or false.
func DetailBool(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}
