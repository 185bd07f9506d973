package rules

import (
	"fmt"
	"strings"
)

// Registry holds the registered retailer rules. Iteration order is the
// registration order so classification stays deterministic even when two
// retailers' signals could overlap.
type Registry struct {
	rules  []*RetailerRule
	byName map[string]*RetailerRule
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*RetailerRule),
	}
}

// Register validates and adds a rule. Errors here are configuration
// errors and should abort startup.
func (reg *Registry) Register(rule *RetailerRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	name := strings.ToLower(rule.Name)
	if _, exists := reg.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRetailer, name)
	}
	reg.byName[name] = rule
	reg.rules = append(reg.rules, rule)
	return nil
}

// Rules returns the registered rules in registration order
func (reg *Registry) Rules() []*RetailerRule {
	return reg.rules
}

// Get looks up a rule by retailer name
func (reg *Registry) Get(name string) (*RetailerRule, bool) {
	rule, ok := reg.byName[strings.ToLower(name)]
	return rule, ok
}

// Len returns the number of registered rules
func (reg *Registry) Len() int {
	return len(reg.rules)
}

// DefaultRegistry returns a registry loaded with the built-in retailer
// rules. An error means a built-in rule is malformed, which is fatal.
func DefaultRegistry() (*Registry, error) {
	reg := NewRegistry()
	for _, rule := range builtinRules() {
		if err := reg.Register(rule); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
