// ABOUTME: Tagged-variant value model for template property trees: scalars, sequences, and ordered mappings.
// ABOUTME: Decodes YAML (and JSON) fragments, collapsing CloudFormation short tags the same way the long forms appear.
package cfn

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	// KindInvalid is the zero Value, produced by lookups that found nothing.
	KindInvalid Kind = iota
	// KindScalar is a leaf string value.
	KindScalar
	// KindSequence is an ordered list of Values.
	KindSequence
	// KindMapping is a string-keyed mapping of Values, preserving document order.
	KindMapping
)

// Value is one node of a template's property tree. Template values mix
// mappings, sequences, and scalars freely, so consumers switch on Kind rather
// than assuming a shape. The zero Value is invalid and safe to return from
// failed lookups.
type Value struct {
	Kind  Kind
	Str   string  // scalar payload
	Items []Value // sequence payload

	keys    []string
	entries map[string]Value
}

// Pair is one key/value entry for building a mapping programmatically.
type Pair struct {
	Key   string
	Value Value
}

// Scalar returns a scalar Value holding s.
func Scalar(s string) Value {
	return Value{Kind: KindScalar, Str: s}
}

// Sequence returns a sequence Value holding the given items.
func Sequence(items ...Value) Value {
	return Value{Kind: KindSequence, Items: items}
}

// Mapping returns a mapping Value with entries in the given order. A repeated
// key overwrites the earlier entry but keeps its original position.
func Mapping(pairs ...Pair) Value {
	v := Value{Kind: KindMapping, entries: make(map[string]Value, len(pairs))}
	for _, p := range pairs {
		if _, exists := v.entries[p.Key]; !exists {
			v.keys = append(v.keys, p.Key)
		}
		v.entries[p.Key] = p.Value
	}
	return v
}

// IsZero reports whether the value is the invalid zero Value.
func (v Value) IsZero() bool {
	return v.Kind == KindInvalid
}

// Get looks up a mapping entry. Returns the zero Value and false when the
// receiver is not a mapping or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindMapping {
		return Value{}, false
	}
	e, ok := v.entries[key]
	return e, ok
}

// Has reports whether the mapping contains the key.
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Keys returns the mapping's keys in document order. Empty for non-mappings.
func (v Value) Keys() []string {
	return v.keys
}

// MapLen returns the number of mapping entries, or zero for non-mappings.
func (v Value) MapLen() int {
	return len(v.keys)
}

// ScalarOr returns the scalar payload, or fallback when the value is not a
// scalar.
func (v Value) ScalarOr(fallback string) string {
	if v.Kind != KindScalar {
		return fallback
	}
	return v.Str
}

// DecodeValue parses a YAML or JSON fragment into a Value. CloudFormation
// short tags are normalized while decoding so that downstream consumers only
// ever see the long forms:
//
//   - !Sub payloads are wrapped as a {"Fn::Sub": ...} mapping, since
//     substitution strings need their own resolution treatment;
//   - every other short tag (!Ref, !GetAtt, ...) is dropped and its payload
//     kept as-is. A !Ref becomes the plain target string and a !GetAtt the
//     plain "Logical.Attr" string, which is exactly how reference resolution
//     expects to find them.
func DecodeValue(data []byte) (Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Value{}, fmt.Errorf("decode value: %w", err)
	}
	if root.Kind == 0 {
		return Value{}, nil
	}
	return fromYAMLNode(&root)
}

// UnmarshalYAML implements yaml.Unmarshaler with the same short-tag
// normalization as DecodeValue.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := fromYAMLNode(node)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func fromYAMLNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Value{}, nil
		}
		return fromYAMLNode(n.Content[0])

	case yaml.AliasNode:
		return fromYAMLNode(n.Alias)

	case yaml.ScalarNode:
		if isSubTag(n.Tag) {
			return Mapping(Pair{Key: "Fn::Sub", Value: Scalar(n.Value)}), nil
		}
		return Scalar(n.Value), nil

	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := fromYAMLNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		seq := Value{Kind: KindSequence, Items: items}
		if isSubTag(n.Tag) {
			return Mapping(Pair{Key: "Fn::Sub", Value: seq}), nil
		}
		return seq, nil

	case yaml.MappingNode:
		pairs := make([]Pair, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			val, err := fromYAMLNode(n.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			pairs = append(pairs, Pair{Key: n.Content[i].Value, Value: val})
		}
		return Mapping(pairs...), nil
	}

	return Value{}, fmt.Errorf("unexpected YAML node kind %d", n.Kind)
}

// isSubTag reports whether the node carries the !Sub short tag. Standard YAML
// tags come through as "!!str" and friends, so a plain equality check is
// enough to tell the intrinsic apart.
func isSubTag(tag string) bool {
	return tag == "!Sub"
}
