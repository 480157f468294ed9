package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Ordered is a YAML mapping that remembers key order.
type Ordered[V any] struct {
	Keys   []string
	Values map[string]V
}

func (o *Ordered[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: 必须是 key/value 结构", node.Line)
	}
	keys := make([]string, 0, len(node.Content)/2)
	values := make(map[string]V, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i].Value
		if _, dup := values[k]; dup {
			return fmt.Errorf("line %d: 重复的 key %q", node.Content[i].Line, k)
		}
		var v V
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		keys = append(keys, k)
		values[k] = v
	}
	o.Keys, o.Values = keys, values
	return nil
}

func (o Ordered[V]) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range o.Keys {
		var v yaml.Node
		if err := v.Encode(o.Values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &v)
	}
	return node, nil
}

func (o Ordered[V]) Get(key string) (V, bool) {
	v, ok := o.Values[key]
	return v, ok
}

func (o Ordered[V]) Len() int { return len(o.Keys) }

// IsZero lets omitempty drop an empty mapping.
func (o Ordered[V]) IsZero() bool { return len(o.Keys) == 0 }

// Clone copies keys and the map; values are copied by assignment.
func (o Ordered[V]) Clone() Ordered[V] {
	if o.Values == nil {
		return Ordered[V]{Keys: append([]string(nil), o.Keys...)}
	}
	values := make(map[string]V, len(o.Values))
	for k, v := range o.Values {
		values[k] = v
	}
	return Ordered[V]{Keys: append([]string(nil), o.Keys...), Values: values}
}

// Set appends key when it is new.
func (o *Ordered[V]) Set(key string, v V) {
	if o.Values == nil {
		o.Values = make(map[string]V)
	}
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = v
}
