package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/goliatone/go-relay/core"
)

func parseJSON(body []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var document any
	if err := decoder.Decode(&document); err != nil {
		return nil, jsonExtractionError(err)
	}
	// Trailing content after the first value is malformed input, not a
	// second document.
	var extra any
	if err := decoder.Decode(&extra); err == nil {
		return nil, &ExtractionError{
			ContentType: core.ContentTypeJSON,
			Reason:      "unexpected trailing content after document",
		}
	}
	return document, nil
}

func jsonExtractionError(err error) error {
	position := ""
	if syntaxErr, ok := err.(*json.SyntaxError); ok {
		position = fmt.Sprintf("offset %d", syntaxErr.Offset)
	}
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		position = fmt.Sprintf("offset %d", typeErr.Offset)
	}
	return &ExtractionError{
		ContentType: core.ContentTypeJSON,
		Position:    position,
		Reason:      err.Error(),
	}
}

func walkJSONLeaves(value any, path []pathSegment, visit func(path []pathSegment, value any)) {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			return
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			walkJSONLeaves(typed[key], append(path, pathSegment{name: key}), visit)
		}
	case []any:
		if len(path) == 0 {
			// A bare top-level array has no key to index; synthesize one so
			// every leaf remains addressable.
			path = []pathSegment{{name: ""}}
		}
		parent := path[len(path)-1]
		for i, element := range typed {
			indexed := parent
			indexed.hasIndex = true
			indexed.index = i
			walkJSONLeaves(element, append(path[:len(path)-1:len(path)-1], indexed), visit)
		}
	default:
		if len(path) == 0 {
			path = []pathSegment{{name: ""}}
		}
		visit(path, typed)
	}
}

// pruneJSON removes every leaf the rules reject, dropping containers that
// end up empty. Arrays the rules address by exact ordinal keep a null in
// each rejected slot instead of compacting, so the surviving ordinals stay
// stable. The second return reports whether anything survived.
func pruneJSON(value any, path []pathSegment, rules ruleSet) (any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		pruned := map[string]any{}
		for key, child := range typed {
			kept, ok := pruneJSON(child, append(path, pathSegment{name: key}), rules)
			if ok {
				pruned[key] = kept
			}
		}
		if len(pruned) == 0 {
			return nil, false
		}
		return pruned, true
	case []any:
		if len(path) == 0 {
			path = []pathSegment{{name: ""}}
		}
		parent := path[len(path)-1]
		keepSlots := rules.addressesByOrdinal(path)
		pruned := make([]any, 0, len(typed))
		kept := 0
		for i, element := range typed {
			indexed := parent
			indexed.hasIndex = true
			indexed.index = i
			child, ok := pruneJSON(element, append(path[:len(path)-1:len(path)-1], indexed), rules)
			switch {
			case ok:
				pruned = append(pruned, child)
				kept++
			case keepSlots:
				// Rejected slots stay as null so the surviving ordinals
				// resolve to the same elements when the output is
				// filtered again.
				pruned = append(pruned, nil)
			}
		}
		if kept == 0 {
			return nil, false
		}
		return pruned, true
	default:
		if len(path) == 0 {
			path = []pathSegment{{name: ""}}
		}
		if !rules.keeps(path) {
			return nil, false
		}
		return typed, true
	}
}

func renderJSONLeaf(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
