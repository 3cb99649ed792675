package procedure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

type document struct {
	Name         string         `yaml:"name"`
	Workspace    []variableSpec `yaml:"workspace"`
	Instructions yaml.Node      `yaml:"instructions"`
}

type variableSpec struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Value yaml.Node `yaml:"value"`
}

// Load reads a procedure file. The file name is used when the document has no name.
func Load(path string) (*Procedure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read procedure: %w", err)
	}
	proc, err := parse(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return proc, nil
}

// Parse builds a procedure from its YAML description.
func Parse(data []byte) (*Procedure, error) {
	return parse(data, "")
}

func parse(data []byte, fallbackName string) (*Procedure, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid procedure document: %w", err)
	}
	if doc.Name == "" {
		doc.Name = fallbackName
	}

	ws := NewWorkspace()
	for _, spec := range doc.Workspace {
		v, err := buildVariable(spec)
		if err != nil {
			return nil, err
		}
		if err := ws.AddVariable(v); err != nil {
			return nil, err
		}
	}

	if doc.Instructions.Kind == 0 {
		return nil, fmt.Errorf("procedure %s: no instructions", doc.Name)
	}
	root, err := buildInstruction(&doc.Instructions)
	if err != nil {
		return nil, err
	}
	return New(doc.Name, root, ws)
}

func buildVariable(spec variableSpec) (*Variable, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("line %d: variable without name", spec.Value.Line)
	}
	if spec.Type != "" && spec.Type != "Local" {
		return nil, fmt.Errorf("variable %s: unsupported type %q", spec.Name, spec.Type)
	}

	value := cty.NilVal
	if spec.Value.Kind != 0 {
		var native interface{}
		if err := spec.Value.Decode(&native); err != nil {
			return nil, fmt.Errorf("variable %s: %w", spec.Name, err)
		}
		v, err := anyvalue.FromNative(native)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", spec.Name, err)
		}
		value = v
	}
	return NewLocalVariable(spec.Name, value), nil
}

func buildInstruction(node *yaml.Node) (*Instruction, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: instruction must be a mapping", node.Line)
	}

	var (
		typeName string
		attrs    []domain.Attribute
		children []*Instruction
	)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "type":
			typeName = value.Value
		case "children":
			if value.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("line %d: children must be a list", value.Line)
			}
			for _, childNode := range value.Content {
				child, err := buildInstruction(childNode)
				if err != nil {
					return nil, err
				}
				children = append(children, child)
			}
		default:
			if value.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: attribute %s must be a scalar", value.Line, key.Value)
			}
			attrs = append(attrs, domain.Attribute{Name: key.Value, Value: value.Value})
		}
	}

	if typeName == "" {
		return nil, fmt.Errorf("line %d: instruction without type", node.Line)
	}
	instr, err := NewInstruction(typeName, attrs, children...)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	return instr, nil
}
