// Package transform holds the per-API transformer registry. A transformer
// substitutes a declared target ("wire") type for a source type before
// schema derivation.
package transform

import (
	"fmt"
	"sync"

	"github.com/artpar/schemagate/domain/typedesc"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rule declares one transformer. Exactly one of Source and When is set.
type Rule struct {
	// Source matches a single type by canonical key.
	Source typedesc.Type
	// When is an Expr predicate evaluated against the type identity.
	// Available variables: name, package, kind, type, key, args.
	When string
	// Target is the wire type substituted for matching types.
	Target typedesc.Type
}

type predicate struct {
	src     string
	program *vm.Program
	target  typedesc.Type
}

// Registry maps source types to their target types. Exact rules win over
// predicate rules; predicate rules are tried in registration order.
type Registry struct {
	mu         sync.RWMutex
	exact      map[string]typedesc.Type
	predicates []predicate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{exact: make(map[string]typedesc.Type)}
}

// Add registers a rule. Predicates are compiled here so that broken
// expressions surface at load time.
func (r *Registry) Add(rule Rule) error {
	if rule.Target == nil {
		return fmt.Errorf("transformer target is required")
	}
	if (rule.Source == nil) == (rule.When == "") {
		return fmt.Errorf("transformer to %s needs exactly one of source or when", typedesc.Format(rule.Target))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.Source != nil {
		key := typedesc.Key(rule.Source)
		if existing, ok := r.exact[key]; ok {
			return fmt.Errorf("type %s already transformed to %s",
				typedesc.Format(rule.Source), typedesc.Format(existing))
		}
		if r.reaches(rule.Target, key) {
			return fmt.Errorf("transformer %s -> %s forms a cycle",
				typedesc.Format(rule.Source), typedesc.Format(rule.Target))
		}
		r.exact[key] = rule.Target
		return nil
	}

	program, err := expr.Compile(rule.When, expr.Env(env(typedesc.Any)), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile transformer predicate %q: %w", rule.When, err)
	}
	r.predicates = append(r.predicates, predicate{src: rule.When, program: program, target: rule.Target})
	return nil
}

// reaches reports whether following exact rules from t arrives at key.
// Callers hold r.mu.
func (r *Registry) reaches(t typedesc.Type, key string) bool {
	seen := map[string]bool{}
	for t != nil {
		k := typedesc.Key(t)
		if k == key {
			return true
		}
		if seen[k] {
			return false
		}
		seen[k] = true
		t = r.exact[k]
	}
	return false
}

// TransformerFor returns the target type registered for t.
func (r *Registry) TransformerFor(t typedesc.Type) (typedesc.Type, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target, ok := r.exact[typedesc.Key(t)]; ok {
		return target, true
	}
	if len(r.predicates) == 0 {
		return nil, false
	}

	vars := env(t)
	for _, p := range r.predicates {
		out, err := expr.Run(p.program, vars)
		if err != nil {
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return p.target, true
		}
	}
	return nil, false
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exact) + len(r.predicates)
}

func env(t typedesc.Type) map[string]any {
	args := make([]string, 0, len(t.Args()))
	for _, a := range t.Args() {
		args = append(args, typedesc.Format(a))
	}
	return map[string]any{
		"name":    t.Name(),
		"package": t.Package(),
		"kind":    t.Kind().String(),
		"type":    typedesc.Format(t),
		"key":     typedesc.Key(t),
		"args":    args,
	}
}
