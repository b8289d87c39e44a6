// Package schema validates master-data records against the field schemas in
// entities.yaml.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
	"github.com/jacksonlee411/harbor-erp/pkg/httperr"
)

//go:embed entities.yaml
var defaultEntitiesYAML []byte

const (
	AttributeString = "string"
	AttributeNumber = "number"
	AttributeBool   = "bool"
	AttributeDate   = "date"
)

type FieldRule struct {
	Required  bool `yaml:"required"`
	MaxLength int  `yaml:"max_length"`
}

type Attribute struct {
	Key       string   `yaml:"key"`
	Type      string   `yaml:"type"`
	Required  bool     `yaml:"required"`
	MaxLength int      `yaml:"max_length"`
	Enum      []string `yaml:"enum"`
}

type Rule struct {
	Expr    string `yaml:"expr"`
	Message string `yaml:"message"`
}

type Entity struct {
	Entity     types.Entity `yaml:"entity"`
	Label      string       `yaml:"label"`
	Code       FieldRule    `yaml:"code"`
	Name       FieldRule    `yaml:"name"`
	Attributes []Attribute  `yaml:"attributes"`
	Rules      []Rule       `yaml:"rules"`

	programs []cel.Program
}

type file struct {
	Version  int      `yaml:"version"`
	Entities []Entity `yaml:"entities"`
}

// Registry holds the compiled schema of every known entity.
type Registry struct {
	entities map[types.Entity]*Entity
	order    []types.Entity
}

var newRecordCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)))
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return Parse(defaultEntitiesYAML)
})

// Default returns the registry built from the embedded entities.yaml.
func Default() (*Registry, error) { return loadDefault() }

// Parse reads a schema file and compiles its rules.
func Parse(b []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if f.Version != 1 {
		return nil, errors.New("schema: unsupported version")
	}
	if len(f.Entities) == 0 {
		return nil, errors.New("schema: no entities")
	}

	env, err := newRecordCELEnv()
	if err != nil {
		return nil, err
	}
	reg := &Registry{entities: make(map[types.Entity]*Entity, len(f.Entities))}
	for i := range f.Entities {
		e := &f.Entities[i]
		if e.Entity == "" {
			return nil, fmt.Errorf("schema: entity %d has no name", i)
		}
		if _, dup := reg.entities[e.Entity]; dup {
			return nil, fmt.Errorf("schema: entity %s listed twice", e.Entity)
		}
		for _, a := range e.Attributes {
			switch a.Type {
			case AttributeString, AttributeNumber, AttributeBool, AttributeDate:
			default:
				return nil, fmt.Errorf("schema: %s.%s has unknown type %q", e.Entity, a.Key, a.Type)
			}
			if a.Key == types.LockedAttribute {
				return nil, fmt.Errorf("schema: %s redefines %s", e.Entity, types.LockedAttribute)
			}
		}
		for _, rule := range e.Rules {
			prg, err := compileRule(env, rule.Expr)
			if err != nil {
				return nil, fmt.Errorf("schema: %s rule %q: %w", e.Entity, rule.Expr, err)
			}
			e.programs = append(e.programs, prg)
		}
		reg.entities[e.Entity] = e
		reg.order = append(reg.order, e.Entity)
	}
	return reg, nil
}

func compileRule(env *cel.Env, expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.New("expression output type mismatch")
	}
	return env.Program(ast)
}

func (r *Registry) Lookup(entity types.Entity) (*Entity, bool) {
	e, ok := r.entities[entity]
	return e, ok
}

// Entities lists entity names in file order.
func (r *Registry) Entities() []types.Entity { return slices.Clone(r.order) }

// Validate returns a bad-request error carrying the first failed check.
func (e *Entity) Validate(rec types.Record) error {
	if msg := checkField("Code", rec.Code, e.Code); msg != "" {
		return httperr.NewBadRequest(msg)
	}
	if msg := checkField("Name", rec.Name, e.Name); msg != "" {
		return httperr.NewBadRequest(msg)
	}
	if msg := e.checkAttributes(rec.Attributes); msg != "" {
		return httperr.NewBadRequest(msg)
	}

	activation := map[string]any{"record": map[string]any{
		"code":       rec.Code,
		"name":       rec.Name,
		"isActive":   rec.IsActive,
		"attributes": attributesOrEmpty(rec.Attributes),
	}}
	for i, prg := range e.programs {
		out, _, err := prg.Eval(activation)
		if err != nil {
			return httperr.NewBadRequest(e.Rules[i].Message)
		}
		if ok, _ := out.Value().(bool); !ok {
			return httperr.NewBadRequest(e.Rules[i].Message)
		}
	}
	return nil
}

func checkField(label, value string, rule FieldRule) string {
	if rule.Required && strings.TrimSpace(value) == "" {
		return label + " is required."
	}
	if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
		return fmt.Sprintf("%s must be at most %d characters.", label, rule.MaxLength)
	}
	return ""
}

func (e *Entity) checkAttributes(attrs map[string]any) string {
	known := make(map[string]bool, len(e.Attributes)+1)
	known[types.LockedAttribute] = true
	for _, a := range e.Attributes {
		known[a.Key] = true
		v, present := attrs[a.Key]
		if !present || v == nil {
			if a.Required {
				return a.Key + " is required."
			}
			continue
		}
		if msg := checkAttribute(a, v); msg != "" {
			return msg
		}
	}
	if v, ok := attrs[types.LockedAttribute]; ok {
		if _, isBool := v.(bool); !isBool {
			return types.LockedAttribute + " must be true or false."
		}
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !known[k] {
			return "Unknown attribute " + k + "."
		}
	}
	return ""
}

func checkAttribute(a Attribute, v any) string {
	switch a.Type {
	case AttributeString:
		s, ok := v.(string)
		if !ok {
			return a.Key + " must be text."
		}
		if a.Required && strings.TrimSpace(s) == "" {
			return a.Key + " is required."
		}
		if a.MaxLength > 0 && utf8.RuneCountInString(s) > a.MaxLength {
			return fmt.Sprintf("%s must be at most %d characters.", a.Key, a.MaxLength)
		}
		if len(a.Enum) > 0 && !slices.Contains(a.Enum, s) {
			return fmt.Sprintf("%s must be one of %s.", a.Key, strings.Join(a.Enum, ", "))
		}
	case AttributeNumber:
		if _, ok := v.(float64); !ok {
			return a.Key + " must be a number."
		}
	case AttributeBool:
		if _, ok := v.(bool); !ok {
			return a.Key + " must be true or false."
		}
	case AttributeDate:
		s, ok := v.(string)
		if !ok {
			return a.Key + " must be a date (YYYY-MM-DD)."
		}
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return a.Key + " must be a date (YYYY-MM-DD)."
		}
	}
	return ""
}

func attributesOrEmpty(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	return attrs
}
