package store

import "fmt"

// Column coercion helpers. The engine hands back driver-native values whose
// Go types vary by column kind and code path, so every read asserts
// explicitly and reports mismatches by column name.

func colUint64(v any, name string) (uint64, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("column %s: negative value %d", name, n)
		}
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("column %s: negative value %d", name, n)
		}
		return uint64(n), nil
	case int32:
		if n < 0 {
			return 0, fmt.Errorf("column %s: negative value %d", name, n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("column %s: unexpected type %T", name, v)
	}
}

func colBytes(v any, name string) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("column %s: unexpected type %T", name, v)
	}
	return b, nil
}

func colBool(v any, name string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("column %s: unexpected type %T", name, v)
	}
	return b, nil
}

func colText(v any, name string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("column %s: unexpected type %T", name, v)
	}
	return s, nil
}
