package weather

import "strconv"

// Flatten converts a decoded JSON document (maps, slices, scalars) into a
// flat map keyed by slash-joined paths. Map entries contribute their key as
// a path segment, slice entries their zero-based index; scalars (including
// nil) are recorded at the accumulated path. Paths are unique by structural
// position, so no collisions can occur.
//
// The traversal uses an explicit work stack rather than recursion, so depth
// is bounded only by the document size. Provider documents nest at most
// about four levels; anything finite and acyclic is handled. Cyclic values
// cannot occur in decoded JSON and are not supported.
func Flatten(doc any) map[string]any {
	flat := make(map[string]any)

	type frame struct {
		path  string
		value any
	}

	stack := []frame{{path: "", value: doc}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := f.value.(type) {
		case map[string]any:
			for key, child := range v {
				stack = append(stack, frame{path: joinPath(f.path, key), value: child})
			}
		case []any:
			for i, child := range v {
				stack = append(stack, frame{path: joinPath(f.path, strconv.Itoa(i)), value: child})
			}
		default:
			flat[f.path] = f.value
		}
	}

	return flat
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "/" + segment
}
