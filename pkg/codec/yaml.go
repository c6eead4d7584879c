package codec

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

// ExportYAML encodes schema as YAML with the same key order as Serialize.
func ExportYAML(schema model.FormSchema) ([]byte, error) {
	node, err := yamlNode(schemaObject(schema))
	if err != nil {
		return nil, fmt.Errorf("codec: export yaml: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("codec: export yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("codec: export yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportYAML parses a YAML schema with the same rules and errors as
// Deserialize. Fields without an order key take their list position.
func ImportYAML(data []byte, resolver model.KindResolver) (model.FormSchema, error) {
	raw, err := parseYAML(data)
	if err != nil {
		return model.FormSchema{}, err
	}
	if doc, ok := raw.(map[string]any); ok {
		fillOrders(doc["fields"])
	}
	return build(raw, resolver)
}

func fillOrders(fields any) {
	list, _ := fields.([]any)
	for idx, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, set := obj["order"]; !set {
			obj["order"] = idx
		}
		fillOrders(obj["children"])
	}
}

func parseYAML(data []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &model.MalformedSchemaError{Err: err}
	}
	return raw, nil
}

func yamlNode(value any) (*yaml.Node, error) {
	switch typed := value.(type) {
	case object:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, m := range typed {
			child, err := yamlNode(m.value)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.key},
				child,
			)
		}
		if len(typed) == 0 {
			node.Style = yaml.FlowStyle
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range typed {
			child, err := yamlNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		if len(typed) == 0 {
			node.Style = yaml.FlowStyle
		}
		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(typed); err != nil {
			return nil, err
		}
		return node, nil
	}
}
