package task

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Type string

const (
	ResourceGathering   Type = "resource_gathering"
	Combat              Type = "combat"
	Mission             Type = "mission"
	InventoryManagement Type = "inventory_management"
)

var (
	ErrUnknownType   = errors.New("unknown task type")
	ErrInvalidParams = errors.New("invalid task parameters")
)

// Params is implemented by the typed parameter set of every task type.
type Params interface {
	TaskType() Type
	Validate() error
}

// Task is a validated task descriptor ready to be assigned to a client.
type Task struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
	Params   Params `json:"params"`
}

func (t Task) Label() string {
	if t.Name != "" && t.Name != string(t.Type) {
		return fmt.Sprintf("%s (%s)", t.Name, t.Type)
	}
	return string(t.Type)
}

// Descriptor is the raw, config level representation of a task. Params stays
// undecoded until the type is known.
type Descriptor struct {
	Name     string    `yaml:"name"`
	Type     Type      `yaml:"type"`
	Priority int       `yaml:"priority"`
	Enabled  *bool     `yaml:"enabled,omitempty"`
	Params   yaml.Node `yaml:"params,omitempty"`
}

// FromDescriptor decodes the descriptor params on top of the type defaults and
// validates the result.
func FromDescriptor(d Descriptor) (Task, error) {
	params, err := DefaultParams(d.Type)
	if err != nil {
		return Task{}, err
	}

	if d.Params.Kind != 0 {
		if err = d.Params.Decode(params); err != nil {
			return Task{}, fmt.Errorf("%w: %s: %w", ErrInvalidParams, d.Type, err)
		}
	}
	params = deref(params)

	t := Task{
		Name:     strings.TrimSpace(d.Name),
		Type:     d.Type,
		Priority: d.Priority,
		Enabled:  d.Enabled == nil || *d.Enabled,
		Params:   params,
	}
	if t.Name == "" {
		t.Name = string(d.Type)
	}

	return t, t.Validate()
}

// Default returns a task of the given type carrying default params.
func Default(t Type) (Task, error) {
	return FromDescriptor(Descriptor{Type: t})
}

// Validate checks the params match the declared type and are within range.
func (t Task) Validate() error {
	if t.Params == nil {
		return fmt.Errorf("%w: %s has no params", ErrInvalidParams, t.Label())
	}
	if t.Params.TaskType() != t.Type {
		return fmt.Errorf("%w: %s params declared for %s", ErrInvalidParams, t.Type, t.Params.TaskType())
	}
	if err := t.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidParams, t.Label(), err)
	}
	return nil
}

// DefaultParams returns a pointer to the default params of a task type, ready
// to be decoded into.
func DefaultParams(t Type) (Params, error) {
	switch t {
	case ResourceGathering:
		p := DefaultGatherParams()
		return &p, nil
	case Combat:
		p := DefaultCombatParams()
		return &p, nil
	case Mission:
		p := DefaultMissionParams()
		return &p, nil
	case InventoryManagement:
		p := DefaultMaintenanceParams()
		return &p, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func deref(p Params) Params {
	switch v := p.(type) {
	case *GatherParams:
		return *v
	case *CombatParams:
		return *v
	case *MissionParams:
		return *v
	case *MaintenanceParams:
		return *v
	}
	return p
}
