// ABOUTME: Template parsing: turns a CloudFormation/SAM document into typed resources keyed by logical ID.
// ABOUTME: Defines MalformedInputError, the fatal-per-template error for documents that cannot be interpreted.
package cfn

import (
	"errors"
	"fmt"
	"sort"
)

// Resource is one declared resource: its raw type tag and properties tree.
type Resource struct {
	Type       string
	Properties Value
}

// Template holds a parsed template's resource declarations.
type Template struct {
	resources map[string]Resource
}

// MalformedInputError reports a document that cannot be interpreted as a
// template: unparseable source, a missing Resources section, or a property
// tree nested beyond the resolution depth limit. It is fatal for the single
// template it describes; callers processing several templates continue with
// the rest.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed template: %s: %v", e.Reason, e.Err)
	}
	return "malformed template: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// IsMalformedInput reports whether err is (or wraps) a MalformedInputError.
func IsMalformedInput(err error) bool {
	var m *MalformedInputError
	return errors.As(err, &m)
}

// ParseTemplate decodes a YAML or JSON template document. The document must
// be a mapping with a Resources section; anything else is a
// MalformedInputError. Resources missing a Type or Properties entry are kept
// with zero values rather than rejected, matching the best-effort stance of
// the extraction rules.
func ParseTemplate(data []byte) (*Template, error) {
	root, err := DecodeValue(data)
	if err != nil {
		return nil, &MalformedInputError{Reason: "document is not valid YAML or JSON", Err: err}
	}
	if root.Kind != KindMapping {
		return nil, &MalformedInputError{Reason: "document is not a mapping"}
	}
	section, ok := root.Get("Resources")
	if !ok {
		return nil, &MalformedInputError{Reason: "document has no Resources section"}
	}
	if section.Kind != KindMapping {
		return nil, &MalformedInputError{Reason: "Resources section is not a mapping"}
	}

	t := &Template{resources: make(map[string]Resource, section.MapLen())}
	for _, id := range section.Keys() {
		decl, _ := section.Get(id)
		var res Resource
		if typeVal, ok := decl.Get("Type"); ok {
			res.Type = typeVal.ScalarOr("")
		}
		if props, ok := decl.Get("Properties"); ok {
			res.Properties = props
		}
		t.resources[id] = res
	}
	return t, nil
}

// Resource returns the declaration stored under the logical ID.
func (t *Template) Resource(id string) (Resource, bool) {
	r, ok := t.resources[id]
	return r, ok
}

// LogicalIDs returns every declared logical ID in sorted order.
func (t *Template) LogicalIDs() []string {
	ids := make([]string, 0, len(t.resources))
	for id := range t.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of declared resources.
func (t *Template) Len() int {
	return len(t.resources)
}

// IDSet returns the set of declared logical IDs, the known-identifier set
// handed to reference resolution.
func (t *Template) IDSet() map[string]bool {
	set := make(map[string]bool, len(t.resources))
	for id := range t.resources {
		set[id] = true
	}
	return set
}
