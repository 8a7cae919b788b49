package filter

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-relay/core"
)

// Engine extracts dotted field paths from JSON and XML documents and prunes
// documents down to the leaves a filter config keeps. Filtering operates on
// leaf paths only: a kept leaf keeps its ancestor containers, a container
// that loses every leaf is dropped.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Extract returns every leaf path in the document mapped to its rendered
// scalar value.
func (e *Engine) Extract(body []byte, contentType core.ContentType) (map[string]string, error) {
	if e == nil {
		return nil, fmt.Errorf("filter: engine is nil")
	}
	switch contentType {
	case core.ContentTypeJSON:
		document, err := parseJSON(body)
		if err != nil {
			return nil, err
		}
		fields := map[string]string{}
		walkJSONLeaves(document, nil, func(path []pathSegment, value any) {
			fields[joinPath(path)] = renderJSONLeaf(value)
		})
		return fields, nil
	case core.ContentTypeXML:
		root, err := parseXML(body)
		if err != nil {
			return nil, err
		}
		fields := map[string]string{}
		walkXMLLeaves(root, []pathSegment{{name: root.name}}, func(path []pathSegment, value string) {
			fields[joinPath(path)] = value
		})
		return fields, nil
	default:
		return nil, fmt.Errorf("filter: unsupported content type %q", contentType)
	}
}

// Filter returns the document with every leaf the config rejects removed.
// An empty config returns the document re-serialized but semantically
// unchanged.
func (e *Engine) Filter(body []byte, contentType core.ContentType, config core.FieldFilterConfig) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("filter: engine is nil")
	}
	rules := newRuleSet(config.IncludedFields, config.ExcludedFields)
	switch contentType {
	case core.ContentTypeJSON:
		document, err := parseJSON(body)
		if err != nil {
			return nil, err
		}
		pruned, ok := pruneJSON(document, nil, rules)
		if !ok {
			return []byte("{}"), nil
		}
		encoded, err := json.Marshal(pruned)
		if err != nil {
			return nil, fmt.Errorf("filter: encode filtered document: %w", err)
		}
		return encoded, nil
	case core.ContentTypeXML:
		root, err := parseXML(body)
		if err != nil {
			return nil, err
		}
		pruned, ok := pruneXML(root, []pathSegment{{name: root.name}}, rules)
		if !ok {
			pruned = &xmlElement{name: root.name}
		}
		return renderXML(pruned)
	default:
		return nil, fmt.Errorf("filter: unsupported content type %q", contentType)
	}
}

var _ core.FilterEngine = (*Engine)(nil)
