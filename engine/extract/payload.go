// Package extract turns free-text generator output into structured payloads.
// It strips code fences, repairs JSON embedded in prose, and retries the
// generator with progressively stricter instructions until the caller's
// decoder accepts the answer or the attempts run out.
package extract

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Kind tags the shape of a parsed payload.
type Kind int

const (
	Unparseable Kind = iota
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "unparseable"
	}
}

// ErrUnparseable is wrapped by Payload.Err when no JSON could be recovered.
var ErrUnparseable = errors.New("extract: no JSON object or array in response")

// Payload is the tagged result of Parse. Exactly one of Object or Array is
// set for the matching Kind; Raw is always the fence-stripped input.
type Payload struct {
	Kind   Kind
	Object map[string]any
	Array  []any
	Raw    string
	Err    error
}

// StripFences removes markdown code fences and their language tag. Text
// outside the first fenced block is dropped when a fence is present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// language tag runs to the end of the opening line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		tag := strings.TrimSpace(body[:nl])
		if tag == "" || isLangTag(tag) {
			body = body[nl+1:]
		}
	} else {
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isLangTag(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// Parse strips fences and decodes the text as a JSON object or array. When
// the text is not valid JSON as a whole, the largest balanced object or array
// span inside it that decodes is used instead, with trailing commas removed.
func Parse(s string) Payload {
	if cands := Candidates(s); len(cands) > 0 {
		return cands[0]
	}
	raw := StripFences(s)
	p := Payload{Kind: Unparseable, Raw: raw, Err: ErrUnparseable}
	if raw == "" {
		p.Err = fmt.Errorf("%w: empty", ErrUnparseable)
	}
	return p
}

// Candidates returns every payload recoverable from s. The whole text comes
// first when it decodes on its own; otherwise the decodable balanced spans
// are returned largest first, so a citation like "[1]" in surrounding prose
// ranks below the answer itself.
func Candidates(s string) []Payload {
	raw := StripFences(s)
	if raw == "" {
		return nil
	}
	whole := Payload{Raw: raw}
	if decodeInto(&whole, raw) {
		return []Payload{whole}
	}
	spans := balancedSpans(raw)
	sort.SliceStable(spans, func(i, j int) bool { return len(spans[i]) > len(spans[j]) })
	var out []Payload
	for _, span := range spans {
		p := Payload{Raw: raw}
		if decodeInto(&p, span) || decodeInto(&p, dropTrailingCommas(span)) {
			out = append(out, p)
		}
	}
	return out
}

func decodeInto(p *Payload, s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return false
		}
		p.Kind, p.Object, p.Err = Object, obj, nil
		return true
	case '[':
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return false
		}
		p.Kind, p.Array, p.Err = Array, arr, nil
		return true
	}
	return false
}

// balancedSpans returns every top-level {...} or [...] span in s, in order.
// String literals are honoured so braces inside values do not count.
func balancedSpans(s string) []string {
	var spans []string
	var stack []byte
	start := -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if len(stack) > 0 {
				inString = true
			}
		case '{', '[':
			if len(stack) == 0 {
				start = i
			}
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			if (open == '{') != (c == '}') {
				// mismatched closer; restart the scan after this span
				stack = stack[:0]
				start = -1
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 && start >= 0 {
				spans = append(spans, s[start:i+1])
				start = -1
			}
		}
	}
	return spans
}

func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Keyed returns the payload in keyed-map form. Array entries that are
// objects are grouped by keyFn; entries sharing a key are merged with later
// fields overriding earlier ones. The object-valued members of an Object are
// returned under their own keys, and its scalar members form a flat entry
// keyed with keyFn. Entries for which keyFn returns "" are dropped.
func Keyed(p Payload, keyFn func(map[string]any) string) map[string]map[string]any {
	out := map[string]map[string]any{}
	add := func(entry map[string]any) {
		k := keyFn(entry)
		if k == "" {
			return
		}
		dst, ok := out[k]
		if !ok {
			dst = make(map[string]any, len(entry))
			out[k] = dst
		}
		for f, v := range entry {
			dst[f] = v
		}
	}

	switch p.Kind {
	case Array:
		for _, item := range p.Array {
			if entry, ok := item.(map[string]any); ok {
				add(entry)
			}
		}
	case Object:
		if arr, ok := wrapped(p.Object); ok {
			return Keyed(Payload{Kind: Array, Array: arr}, keyFn)
		}
		nested, flat := splitObject(p.Object)
		if len(flat) > 0 {
			add(flat)
		}
		for k, entry := range nested {
			out[k] = entry
		}
	}
	return out
}

// wrapped unwraps {"results": [...]} style answers.
func wrapped(obj map[string]any) ([]any, bool) {
	if len(obj) != 1 {
		return nil, false
	}
	for _, v := range obj {
		arr, ok := v.([]any)
		return arr, ok
	}
	return nil, false
}

// splitObject separates the object-valued members of obj from its scalar
// members, such as a "currency" note beside keyed entries.
func splitObject(obj map[string]any) (nested map[string]map[string]any, flat map[string]any) {
	nested = map[string]map[string]any{}
	for k, v := range obj {
		if entry, ok := v.(map[string]any); ok {
			nested[k] = entry
			continue
		}
		if flat == nil {
			flat = map[string]any{}
		}
		flat[k] = v
	}
	return nested, flat
}

// Entries returns the payload as a list of objects: the array items that are
// objects, or for an Object its scalar members as one flat entry followed by
// its object-valued members (with "_key" set to the member name when the
// entry has no key of its own). Keyed members are sorted by name.
func Entries(p Payload) []map[string]any {
	var out []map[string]any
	switch p.Kind {
	case Array:
		for _, item := range p.Array {
			if entry, ok := item.(map[string]any); ok {
				out = append(out, entry)
			}
		}
	case Object:
		if arr, ok := wrapped(p.Object); ok {
			return Entries(Payload{Kind: Array, Array: arr})
		}
		nested, flat := splitObject(p.Object)
		if len(flat) > 0 {
			out = append(out, flat)
		}
		keys := make([]string, 0, len(nested))
		for k := range nested {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entry := nested[k]
			if _, ok := entry["_key"]; !ok {
				cp := make(map[string]any, len(entry)+1)
				for f, fv := range entry {
					cp[f] = fv
				}
				cp["_key"] = k
				entry = cp
			}
			out = append(out, entry)
		}
	}
	return out
}
