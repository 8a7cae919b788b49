package filter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-relay/core"
)

type xmlAttr struct {
	name  string
	value string
}

type xmlElement struct {
	name     string
	attrs    []xmlAttr
	children []*xmlElement
	text     string
}

func parseXML(body []byte) (*xmlElement, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))

	var root *xmlElement
	var stack []*xmlElement
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ExtractionError{
				ContentType: core.ContentTypeXML,
				Position:    fmt.Sprintf("offset %d", decoder.InputOffset()),
				Reason:      err.Error(),
			}
		}
		switch typed := token.(type) {
		case xml.StartElement:
			element := &xmlElement{name: typed.Name.Local}
			for _, attr := range typed.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				element.attrs = append(element.attrs, xmlAttr{name: attr.Name.Local, value: attr.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &ExtractionError{
						ContentType: core.ContentTypeXML,
						Reason:      "multiple root elements",
					}
				}
				root = element
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, element)
			}
			stack = append(stack, element)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			current := stack[len(stack)-1]
			current.text += string(typed)
		}
	}
	if root == nil {
		return nil, &ExtractionError{
			ContentType: core.ContentTypeXML,
			Reason:      "document has no root element",
		}
	}
	if len(stack) != 0 {
		return nil, &ExtractionError{
			ContentType: core.ContentTypeXML,
			Reason:      fmt.Sprintf("unclosed element %q", stack[len(stack)-1].name),
		}
	}
	root.trimText()
	return root, nil
}

func (e *xmlElement) trimText() {
	e.text = strings.TrimSpace(e.text)
	for _, child := range e.children {
		child.trimText()
	}
}

// childSegments assigns one path segment per child, adding [k] ordinals only
// when the same element name repeats among siblings.
func childSegments(children []*xmlElement) []pathSegment {
	counts := map[string]int{}
	for _, child := range children {
		counts[child.name]++
	}
	ordinals := map[string]int{}
	segments := make([]pathSegment, len(children))
	for i, child := range children {
		segment := pathSegment{name: child.name}
		if counts[child.name] > 1 {
			segment.hasIndex = true
			segment.index = ordinals[child.name]
			ordinals[child.name]++
		}
		segments[i] = segment
	}
	return segments
}

const textLeafName = "#text"

// hasTextLeaf reports whether the element's text is addressed as a separate
// #text leaf. An element with only text collapses onto its own path instead.
func (e *xmlElement) hasTextLeaf() bool {
	return e.text != "" && (len(e.attrs) > 0 || len(e.children) > 0)
}

func walkXMLLeaves(element *xmlElement, path []pathSegment, visit func(path []pathSegment, value string)) {
	for _, attr := range element.attrs {
		visit(append(path, pathSegment{name: "@" + attr.name}), attr.value)
	}
	if element.hasTextLeaf() {
		visit(append(path, pathSegment{name: textLeafName}), element.text)
	} else if len(element.children) == 0 {
		visit(path, element.text)
	}
	segments := childSegments(element.children)
	for i, child := range element.children {
		walkXMLLeaves(child, append(path[:len(path):len(path)], segments[i]), visit)
	}
}

// pruneXML drops every leaf the rules reject. Elements that lose all their
// leaves are removed, except in repeated groups the rules address by exact
// ordinal, where rejected occurrences leave an empty element in place. The
// second return reports whether the element survived.
func pruneXML(element *xmlElement, path []pathSegment, rules ruleSet) (*xmlElement, bool) {
	pruned := &xmlElement{name: element.name}
	for _, attr := range element.attrs {
		if rules.keeps(append(path, pathSegment{name: "@" + attr.name})) {
			pruned.attrs = append(pruned.attrs, attr)
		}
	}
	if element.hasTextLeaf() {
		if rules.keeps(append(path, pathSegment{name: textLeafName})) {
			pruned.text = element.text
		}
	} else if len(element.children) == 0 {
		if rules.keeps(path) {
			pruned.text = element.text
		} else if len(pruned.attrs) == 0 {
			return nil, false
		}
	}
	segments := childSegments(element.children)
	type prunedChild struct {
		element *xmlElement
		ok      bool
	}
	results := make([]prunedChild, len(element.children))
	keptByName := map[string]int{}
	for i, child := range element.children {
		kept, ok := pruneXML(child, append(path[:len(path):len(path)], segments[i]), rules)
		results[i] = prunedChild{element: kept, ok: ok}
		if ok {
			keptByName[child.name]++
		}
	}
	ordinalGroups := map[string]bool{}
	for i, child := range element.children {
		if !segments[i].hasIndex {
			continue
		}
		if _, seen := ordinalGroups[child.name]; seen {
			continue
		}
		groupPath := append(path[:len(path):len(path)], pathSegment{name: child.name})
		ordinalGroups[child.name] = rules.addressesByOrdinal(groupPath)
	}
	for i, child := range element.children {
		switch {
		case results[i].ok:
			pruned.children = append(pruned.children, results[i].element)
		case segments[i].hasIndex && ordinalGroups[child.name] && keptByName[child.name] > 0:
			// Rejected occurrences keep an empty slot so the surviving
			// ordinals resolve to the same elements when the output is
			// filtered again.
			pruned.children = append(pruned.children, &xmlElement{name: child.name})
		}
	}
	if len(pruned.attrs) == 0 && len(pruned.children) == 0 && pruned.text == "" && len(element.children) > 0 {
		return nil, false
	}
	return pruned, true
}

func renderXML(element *xmlElement) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeXMLElement(&buf, element); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXMLElement(buf *bytes.Buffer, element *xmlElement) error {
	buf.WriteByte('<')
	buf.WriteString(element.name)
	for _, attr := range element.attrs {
		buf.WriteByte(' ')
		buf.WriteString(attr.name)
		buf.WriteString(`="`)
		if err := xml.EscapeText(buf, []byte(attr.value)); err != nil {
			return err
		}
		buf.WriteByte('"')
	}
	if len(element.children) == 0 && element.text == "" {
		buf.WriteString("/>")
		return nil
	}
	buf.WriteByte('>')
	if element.text != "" {
		if err := xml.EscapeText(buf, []byte(element.text)); err != nil {
			return err
		}
	}
	for _, child := range element.children {
		if err := writeXMLElement(buf, child); err != nil {
			return err
		}
	}
	buf.WriteString("</")
	buf.WriteString(element.name)
	buf.WriteByte('>')
	return nil
}
