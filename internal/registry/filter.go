// Package registry implements the module registry and governance state
// machine (spec component C3): it holds the live module set in memory,
// routes pipeline-stage subscriptions through a JSON-Pointer
// filter grammar, and drives module lifecycle proposals through the
// Proposed -> Shadowed -> Approved/Rejected -> Applied/RolledBack machine.
// The proposal/vote/enact shape is grounded on the teacher's
// core/governance.go (ProposeChange/VoteChange/EnactChange), generalized
// from a flat parameter-change proposal to the module ChangeSet the spec
// describes and tightened to the fixed state graph in
// internal/domain.CanTransition rather than a single enacted bool.
package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentworld/runtime/internal/domain"
)

// Match evaluates a subscription filter tree against subject, a decoded
// event/action payload. A nil node matches everything (an unconditional
// subscription).
func Match(node *domain.FilterNode, subject map[string]any) (bool, error) {
	if node == nil {
		return true, nil
	}
	if node.IsLeaf() {
		return matchLeaf(node, subject)
	}
	switch node.Combine {
	case domain.CombineAll:
		for i := range node.Children {
			ok, err := Match(&node.Children[i], subject)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case domain.CombineAny:
		for i := range node.Children {
			ok, err := Match(&node.Children[i], subject)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("registry: unknown filter combinator %q", node.Combine)
	}
}

func matchLeaf(node *domain.FilterNode, subject map[string]any) (bool, error) {
	val, ok := resolvePointer(subject, node.Path)
	if !ok {
		// A missing field matches only a ne comparison and no other
		// operator, mirroring the "absent field compares as
		// not-equal/not-present" convention used for balances elsewhere in
		// the domain model.
		return node.Op == domain.FilterNe, nil
	}
	switch node.Op {
	case domain.FilterEq:
		return equalValues(val, node.Value), nil
	case domain.FilterNe:
		return !equalValues(val, node.Value), nil
	case domain.FilterGt, domain.FilterGte, domain.FilterLt, domain.FilterLte:
		return compareNumeric(node.Op, val, node.Value)
	case domain.FilterRe:
		return matchRegex(val, node.Value)
	default:
		return false, fmt.Errorf("registry: unknown filter op %q", node.Op)
	}
}

// resolvePointer walks a JSON-Pointer-like dotted/"/"-separated path
// (e.g. "/params/amount" or "params.amount") through nested maps.
func resolvePointer(subject map[string]any, path string) (any, bool) {
	path = strings.TrimPrefix(path, "/")
	path = strings.ReplaceAll(path, "/", ".")
	if path == "" {
		return subject, true
	}
	parts := strings.Split(path, ".")
	var cur any = subject
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func equalValues(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareNumeric(op domain.FilterOp, a, b any) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false, fmt.Errorf("registry: filter op %q requires numeric operands", op)
	}
	switch op {
	case domain.FilterGt:
		return af > bf, nil
	case domain.FilterGte:
		return af >= bf, nil
	case domain.FilterLt:
		return af < bf, nil
	case domain.FilterLte:
		return af <= bf, nil
	default:
		return false, fmt.Errorf("registry: %q is not a numeric op", op)
	}
}

func matchRegex(a, b any) (bool, error) {
	pattern, ok := b.(string)
	if !ok {
		return false, fmt.Errorf("registry: re filter requires a string pattern")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("registry: invalid regex %q: %w", pattern, err)
	}
	return re.MatchString(fmt.Sprint(a)), nil
}

// ValidateFilterSchema walks a subscription filter tree structurally,
// without evaluating it against any subject: a leaf must name a non-empty
// Path and a recognized Op, a combinator must name a recognized Combine and
// have at least one child. Used by shadow validation to catch a malformed
// filter before a module is ever activated (spec §4.3 step 2's "filter
// schemas" check).
func ValidateFilterSchema(node *domain.FilterNode) error {
	if node == nil {
		return nil
	}
	if node.IsLeaf() {
		if node.Path == "" {
			return fmt.Errorf("registry: filter leaf missing path")
		}
		switch node.Op {
		case domain.FilterEq, domain.FilterNe, domain.FilterGt, domain.FilterGte, domain.FilterLt, domain.FilterLte, domain.FilterRe:
		default:
			return fmt.Errorf("registry: filter leaf has unrecognized op %q", node.Op)
		}
		return nil
	}
	switch node.Combine {
	case domain.CombineAll, domain.CombineAny:
	default:
		return fmt.Errorf("registry: filter node has unrecognized combinator %q", node.Combine)
	}
	if len(node.Children) == 0 {
		return fmt.Errorf("registry: filter combinator %q has no children", node.Combine)
	}
	for i := range node.Children {
		if err := ValidateFilterSchema(&node.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
