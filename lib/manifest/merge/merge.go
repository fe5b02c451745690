// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package merge

// Merge combines base with the more specific child. Neither input is
// modified.
func Merge(base, child Value) Value {
	switch {
	case child.kind == Null:
		return base
	case base.kind == Sequence && child.kind == Sequence:
		items := make([]Value, 0, len(child.items)+len(base.items))
		items = append(items, child.items...)
		items = append(items, base.items...)
		return Value{kind: Sequence, items: items}
	case base.kind == Mapping && child.kind == Mapping:
		return mergeMappings(base, child)
	default:
		return child
	}
}

func mergeMappings(base, child Value) Value {
	result := Value{
		kind:   Mapping,
		keys:   make([]string, 0, len(base.keys)+len(child.keys)),
		fields: make(map[string]Value, len(base.keys)+len(child.keys)),
	}
	for _, key := range base.keys {
		merged := base.fields[key]
		if childField, ok := child.fields[key]; ok {
			merged = Merge(merged, childField)
		}
		result.keys = append(result.keys, key)
		result.fields[key] = merged
	}
	for _, key := range child.keys {
		if _, inBase := base.fields[key]; inBase {
			continue
		}
		result.keys = append(result.keys, key)
		result.fields[key] = child.fields[key]
	}
	return result
}

// Override replaces the top-level fields of mapping base with those of
// mapping overrides, without merging inside them. Non-mapping inputs
// return base unchanged.
func Override(base, overrides Value) Value {
	if base.kind != Mapping || overrides.kind != Mapping {
		return base
	}
	result := base
	for _, key := range overrides.keys {
		result = result.With(key, overrides.fields[key])
	}
	return result
}
