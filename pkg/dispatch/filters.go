package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/theapemachine/mem0-go/pkg/errors"
)

/*
Filter trees are forwarded to the memory store verbatim; validation only
checks the structure so a malformed tree fails fast here instead of as an
opaque store-side error. A tree is either a logical node (AND, OR, NOT over
an array of subtrees) or a leaf mapping a field name to a bare value or to a
comparator object. Field names are not restricted: besides the entity
identifiers, arbitrary metadata keys are legal.
*/

const maxFilterDepth = 8

var comparators = map[string]struct{}{
	"eq": {}, "ne": {}, "in": {}, "nin": {},
	"gt": {}, "gte": {}, "lt": {}, "lte": {},
	"contains": {}, "icontains": {}, "*": {},
}

// ValidateFilters checks that raw is a structurally valid filter tree.
func ValidateFilters(raw json.RawMessage) error {
	if !gjson.ValidBytes(raw) {
		return errors.NewValidation("filters", "filter expression is not valid JSON")
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return errors.NewValidation("filters", "filter expression must be a JSON object")
	}

	return validateNode(root, 0)
}

func validateNode(node gjson.Result, depth int) error {
	if depth > maxFilterDepth {
		return errors.NewValidation("filters", fmt.Sprintf("filter tree exceeds maximum depth of %d", maxFilterDepth))
	}

	var inner error

	node.ForEach(func(key, value gjson.Result) bool {
		switch key.Str {
		case "AND", "OR", "NOT":
			if !value.IsArray() {
				inner = errors.NewValidation("filters", key.Str+" must hold an array of sub-filters")
				return false
			}

			branches := value.Array()
			if len(branches) == 0 {
				inner = errors.NewValidation("filters", key.Str+" must hold at least one sub-filter")
				return false
			}

			for _, branch := range branches {
				if !branch.IsObject() {
					inner = errors.NewValidation("filters", key.Str+" sub-filters must be objects")
					return false
				}
				if inner = validateNode(branch, depth+1); inner != nil {
					return false
				}
			}
		default:
			inner = validateLeaf(key.Str, value)
			if inner != nil {
				return false
			}
		}
		return true
	})

	return inner
}

// validateLeaf accepts either a bare comparison value or a comparator
// object like {"in": [...]} with exactly known operators.
func validateLeaf(field string, value gjson.Result) error {
	if !value.IsObject() {
		return nil
	}

	var inner error

	value.ForEach(func(op, operand gjson.Result) bool {
		if _, ok := comparators[op.Str]; !ok {
			inner = errors.NewValidation("filters", fmt.Sprintf("unknown comparator %q for field %q", op.Str, field))
			return false
		}

		switch op.Str {
		case "in", "nin":
			if !operand.IsArray() {
				inner = errors.NewValidation("filters", fmt.Sprintf("%s comparator for field %q requires an array operand", op.Str, field))
				return false
			}
		}
		return true
	})

	return inner
}
