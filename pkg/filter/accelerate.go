package filter

import "fmt"

// monotoneAccelerateFields are the fields whose value can only grow (depth,
// nodes) or move in a fixed direction as a search deepens (score, as a
// magnitude): evaluating them against a partial analysis and again against
// the final one never flips a true result back to false. "diff" and
// "pvCount" can both go either way as more PVs arrive, so they're excluded.
var monotoneAccelerateFields = map[string]bool{
	"score": true,
	"depth": true,
	"nodes": true,
}

// ValidateAccelerate rejects accelerate expressions that reference fields
// unsafe for early termination: an accelerate predicate is evaluated
// against partial search results, so it must be idempotent and monotone
// with respect to the eventual final analysis. Only depth, nodes and
// best-score magnitude qualify.
func ValidateAccelerate(expr Expr) error {
	switch e := expr.(type) {
	case Const:
		return nil
	case Predicate:
		if !monotoneAccelerateFields[e.Field.Name] {
			return fmt.Errorf("accelerate: field %q is not allowed (only score, depth, nodes are monotone)", e.Field.Name)
		}
		if e.Field.Index != 0 {
			return fmt.Errorf("accelerate: field %v[%v] is not allowed (only the best PV's score qualifies)", e.Field.Name, e.Field.Index)
		}
		if e.Operand.Kind == OperandFieldRef && !monotoneAccelerateFields[e.Operand.FieldName.Name] {
			return fmt.Errorf("accelerate: field %q is not allowed (only score, depth, nodes are monotone)", e.Operand.FieldName.Name)
		}
		if e.Operand.Kind == OperandFieldRef && e.Operand.FieldName.Index != 0 {
			return fmt.Errorf("accelerate: field %v[%v] is not allowed (only the best PV's score qualifies)", e.Operand.FieldName.Name, e.Operand.FieldName.Index)
		}
		return nil
	case And:
		for _, sub := range e {
			if err := ValidateAccelerate(sub); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, sub := range e {
			if err := ValidateAccelerate(sub); err != nil {
				return err
			}
		}
		return nil
	case Not:
		return ValidateAccelerate(e.Expr)
	default:
		return fmt.Errorf("accelerate: unrecognized expression node")
	}
}
