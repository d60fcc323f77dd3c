package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// Inject resolves every placeholder in the template against the tenant's
// bindings and returns a fully concrete, deployable graph. Injection is all
// or nothing: a single missing binding fails the whole call with the exact
// token named, and nothing partially substituted is ever returned.
//
// After substitution one structural pass validates that every resolved
// label ID exists in the tenant's currently provisioned label set. All
// offending intent keys are reported in one error so a single provisioning
// fix covers them.
func Inject(tpl *workflow.CompositeTemplate, bindings workflow.BindingSet, graphName string) (*workflow.ConcreteGraph, error) {
	inj := injector{bindings: bindings}

	nodes := make([]workflow.GraphNode, 0, len(tpl.Graph.Nodes))
	for _, n := range tpl.Graph.Nodes {
		resolved := workflow.GraphNode{
			ID:         n.ID,
			Name:       n.Name,
			Kind:       n.Kind,
			Category:   n.Category,
			Parameters: make(map[string]string, len(n.Parameters)),
		}
		for k, v := range n.Parameters {
			out, err := inj.resolve(v)
			if err != nil {
				return nil, err
			}
			resolved.Parameters[k] = out
		}
		nodes = append(nodes, resolved)
	}

	if len(inj.staleLabels) > 0 {
		keys := make([]string, 0, len(inj.staleLabels))
		for k := range inj.staleLabels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, appErrors.NewLabelBindingMismatchError(keys)
	}

	return &workflow.ConcreteGraph{
		Name:        graphName,
		Strategy:    tpl.Strategy,
		Nodes:       nodes,
		Connections: append([]workflow.Connection(nil), tpl.Graph.Connections...),
	}, nil
}

type injector struct {
	bindings workflow.BindingSet
	// staleLabels collects intent keys whose bound label no longer exists
	// on the mailbox; they are reported in one batch.
	staleLabels map[string]bool
}

// resolve substitutes every placeholder token in one parameter value
func (inj *injector) resolve(value string) (string, error) {
	matches := workflow.FindPlaceholders(value)
	if len(matches) == 0 {
		return value, nil
	}

	out := value
	for _, m := range matches {
		token, class, name := m[0], m[1], m[2]
		bound, err := inj.lookup(token, class, name)
		if err != nil {
			return "", err
		}
		out = strings.Replace(out, token, bound, 1)
	}
	return out, nil
}

func (inj *injector) lookup(token, class, name string) (string, error) {
	switch class {
	case workflow.PlaceholderLabel:
		// Label problems are batched into one mismatch error instead of
		// failing on the first token: a missing binding and a bound label
		// that no longer exists on the mailbox are the same operator fix.
		labelID, ok := inj.bindings.Labels[name]
		if !ok || !inj.bindings.ProvisionedLabelIDs[labelID] {
			if inj.staleLabels == nil {
				inj.staleLabels = make(map[string]bool)
			}
			inj.staleLabels[name] = true
			return labelID, nil
		}
		return labelID, nil
	case workflow.PlaceholderFact:
		fact, ok := inj.bindings.Facts[name]
		if !ok {
			return "", appErrors.NewUnresolvedPlaceholderError(token)
		}
		return fact, nil
	case workflow.PlaceholderCredential:
		cred, ok := inj.bindings.Credentials[name]
		if !ok {
			return "", appErrors.NewUnresolvedPlaceholderError(token)
		}
		return cred, nil
	default:
		return "", appErrors.NewValidationError(fmt.Sprintf("unknown placeholder class %q in token %q", class, token))
	}
}
