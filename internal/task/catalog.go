package task

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog holds the named tasks known to the bot.
type Catalog struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewCatalog(descriptors []Descriptor) (*Catalog, error) {
	c := &Catalog{tasks: make(map[string]Task, len(descriptors))}
	for _, d := range descriptors {
		t, err := FromDescriptor(d)
		if err != nil {
			return nil, err
		}
		if _, found := c.tasks[t.Name]; found {
			return nil, fmt.Errorf("duplicated task name %q", t.Name)
		}
		c.tasks[t.Name] = t
	}

	return c, nil
}

// Lookup resolves a task by name. Names that match a task type and are not
// declared explicitly resolve to that type with default params.
func (c *Catalog) Lookup(name string) (Task, error) {
	c.mu.RLock()
	t, found := c.tasks[name]
	c.mu.RUnlock()
	if found {
		return t, nil
	}

	return Default(Type(name))
}

func (c *Catalog) Put(t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.tasks[t.Name] = t
	c.mu.Unlock()
	return nil
}

// Tasks returns all declared tasks ordered by priority, then name.
func (c *Catalog) Tasks() []Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DefaultPolicy picks a task for a client that has no explicit assignment,
// based on the client position in the active set.
type DefaultPolicy struct {
	ByIndex  []Task
	Fallback Task
}

// StandardPolicy is gathering for the first client, combat for the second and
// maintenance for any other.
func StandardPolicy() DefaultPolicy {
	gather, _ := Default(ResourceGathering)
	combat, _ := Default(Combat)
	maintenance, _ := Default(InventoryManagement)
	return DefaultPolicy{ByIndex: []Task{gather, combat}, Fallback: maintenance}
}

// NewDefaultPolicy resolves task names through the catalog.
func NewDefaultPolicy(c *Catalog, byIndex []string, fallback string) (DefaultPolicy, error) {
	p := DefaultPolicy{}
	for _, name := range byIndex {
		t, err := c.Lookup(name)
		if err != nil {
			return p, fmt.Errorf("default task %q: %w", name, err)
		}
		p.ByIndex = append(p.ByIndex, t)
	}

	fb, err := c.Lookup(fallback)
	if err != nil {
		return p, fmt.Errorf("fallback task %q: %w", fallback, err)
	}
	p.Fallback = fb

	return p, nil
}

func (p DefaultPolicy) For(index int) Task {
	if index >= 0 && index < len(p.ByIndex) {
		return p.ByIndex[index]
	}
	return p.Fallback
}
