package filter

import (
	"strconv"
	"strings"
)

// pathSegment is one dotted-path element. Attribute (@name) and text (#text)
// segments are plain names; only array/repeated-element segments carry an
// index.
type pathSegment struct {
	name     string
	hasIndex bool
	anyIndex bool
	index    int
}

func (s pathSegment) String() string {
	switch {
	case s.anyIndex:
		return s.name + "[*]"
	case s.hasIndex:
		return s.name + "[" + strconv.Itoa(s.index) + "]"
	default:
		return s.name
	}
}

const wildcardSegment = "*"

// pattern is a parsed include/exclude rule: a sequence of segments,
// optionally ending in "*" which prefix-matches any deeper leaf.
type pattern struct {
	segments []pathSegment
	trailing bool
}

func parsePattern(raw string) pattern {
	parts := splitPath(strings.TrimSpace(raw))
	parsed := pattern{}
	for i, part := range parts {
		if part == wildcardSegment && i == len(parts)-1 {
			parsed.trailing = true
			break
		}
		parsed.segments = append(parsed.segments, parseSegment(part))
	}
	return parsed
}

func parseSegment(raw string) pathSegment {
	segment := pathSegment{name: raw}
	open := strings.LastIndexByte(raw, '[')
	if open < 0 || !strings.HasSuffix(raw, "]") {
		return segment
	}
	inner := raw[open+1 : len(raw)-1]
	segment.name = raw[:open]
	if inner == "*" {
		segment.anyIndex = true
		return segment
	}
	index, err := strconv.Atoi(inner)
	if err != nil || index < 0 {
		// Not an index expression; treat the brackets as part of the name.
		return pathSegment{name: raw}
	}
	segment.hasIndex = true
	segment.index = index
	return segment
}

func splitPath(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ".")
}

// matches reports whether a concrete leaf path satisfies the pattern. A
// segment with no index expression only matches an unindexed path segment;
// [*] matches any occurrence, indexed or not; [n] matches exactly that
// index. With lenientIndex set, [n] also accepts an occurrence rendered
// without an ordinal, such as a sole XML element. A trailing "*" matches
// one or more remaining segments.
func (p pattern) matches(path []pathSegment, lenientIndex bool) bool {
	if len(p.segments) > len(path) {
		return false
	}
	for i, want := range p.segments {
		if !segmentMatches(want, path[i], lenientIndex) {
			return false
		}
	}
	rest := len(path) - len(p.segments)
	if p.trailing {
		return rest >= 1
	}
	return rest == 0
}

func segmentMatches(want pathSegment, got pathSegment, lenientIndex bool) bool {
	if want.name != got.name {
		return false
	}
	switch {
	case want.anyIndex:
		return true
	case want.hasIndex:
		if got.hasIndex {
			return want.index == got.index
		}
		return lenientIndex
	default:
		return !got.hasIndex
	}
}

type ruleSet struct {
	included []pattern
	excluded []pattern
}

func newRuleSet(includedFields []string, excludedFields []string) ruleSet {
	rules := ruleSet{}
	for _, raw := range includedFields {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rules.included = append(rules.included, parsePattern(raw))
	}
	for _, raw := range excludedFields {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rules.excluded = append(rules.excluded, parsePattern(raw))
	}
	return rules
}

// keeps applies the inclusion policy: with includes configured a leaf must
// match one of them and none of the excludes; without includes every leaf
// survives unless excluded. Exclude wins on conflict. Include rules resolve
// exact ordinals leniently so a sole unindexed occurrence still satisfies
// them; exclude rules require the ordinal to be present.
func (r ruleSet) keeps(path []pathSegment) bool {
	if matchesAny(r.excluded, path, false) {
		return false
	}
	if len(r.included) == 0 {
		return true
	}
	return matchesAny(r.included, path, true)
}

// addressesByOrdinal reports whether any rule selects occurrences of the
// group at path by exact index. The last path segment names the group
// itself, without an ordinal. Pruning keeps rejected slots in place for
// such groups so the surviving ordinals stay valid on re-filtering.
func (r ruleSet) addressesByOrdinal(path []pathSegment) bool {
	if len(path) == 0 {
		return false
	}
	return anyOrdinalAt(r.included, path) || anyOrdinalAt(r.excluded, path)
}

func anyOrdinalAt(patterns []pattern, path []pathSegment) bool {
	depth := len(path) - 1
	for _, candidate := range patterns {
		if len(candidate.segments) <= depth {
			continue
		}
		segment := candidate.segments[depth]
		if !segment.hasIndex || segment.name != path[depth].name {
			continue
		}
		prefixOK := true
		for i := 0; i < depth; i++ {
			if !segmentMatches(candidate.segments[i], path[i], true) {
				prefixOK = false
				break
			}
		}
		if prefixOK {
			return true
		}
	}
	return false
}

func matchesAny(patterns []pattern, path []pathSegment, lenientIndex bool) bool {
	for _, candidate := range patterns {
		if candidate.matches(path, lenientIndex) {
			return true
		}
	}
	return false
}

func joinPath(path []pathSegment) string {
	parts := make([]string, 0, len(path))
	for _, segment := range path {
		parts = append(parts, segment.String())
	}
	return strings.Join(parts, ".")
}
