package filter

import (
	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/board"
)

// Context supplies the values a filter expression may reference: the
// analyzed position (for sideToMove) and its analysis.
type Context struct {
	Position *board.Position
	Analysis analysis.Analysis
}

// value is the internal representation of a resolved field or operand.
type value struct {
	isNone      bool
	isString    bool
	str         string
	isScoreLike bool // true for score[k]/diff: num is already a Score.Magnitude().
	num         float64
}

// Eval evaluates expr against ctx. Evaluation is total: it never errors,
// and a missing field makes its enclosing predicate false.
func Eval(expr Expr, ctx Context) bool {
	switch e := expr.(type) {
	case Const:
		return bool(e)
	case Predicate:
		return evalPredicate(e, ctx)
	case And:
		for _, sub := range e {
			if !Eval(sub, ctx) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range e {
			if Eval(sub, ctx) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(e.Expr, ctx)
	default:
		return false
	}
}

// Verify implements the puzzle-verify composition: quality AND (winning OR drawing).
func Verify(quality, winning, drawing Expr, ctx Context) bool {
	return Eval(quality, ctx) && (Eval(winning, ctx) || Eval(drawing, ctx))
}

func evalPredicate(p Predicate, ctx Context) bool {
	lhs := resolveField(p.Field, ctx)
	if lhs.isNone {
		return false
	}

	rhs := resolveOperand(p.Operand, lhs.isScoreLike, ctx)
	if rhs.isNone {
		return p.Op == NE
	}

	return compareValues(lhs, p.Op, rhs)
}

func compareValues(lhs value, op Op, rhs value) bool {
	if lhs.isString || rhs.isString {
		switch op {
		case EQ:
			return lhs.str == rhs.str
		case NE:
			return lhs.str != rhs.str
		default:
			return false
		}
	}
	switch op {
	case LT:
		return lhs.num < rhs.num
	case LE:
		return lhs.num <= rhs.num
	case EQ:
		return lhs.num == rhs.num
	case NE:
		return lhs.num != rhs.num
	case GE:
		return lhs.num >= rhs.num
	case GT:
		return lhs.num > rhs.num
	default:
		return false
	}
}

func resolveField(f Field, ctx Context) value {
	switch f.Name {
	case "score":
		pv, ok := pvAt(ctx.Analysis, f.Index)
		if !ok {
			return value{isNone: true}
		}
		return value{isScoreLike: true, num: pv.Score.Magnitude()}
	case "mate":
		pv, ok := pvAt(ctx.Analysis, f.Index)
		if !ok || !pv.Score.IsMate() {
			return value{isNone: true}
		}
		return value{num: float64(pv.Score.Mate)}
	case "nodes":
		pv, ok := ctx.Analysis.BestPV()
		if !ok {
			return value{isNone: true}
		}
		return value{num: float64(pv.Nodes)}
	case "depth":
		pv, ok := ctx.Analysis.BestPV()
		if !ok {
			return value{isNone: true}
		}
		return value{num: float64(pv.Depth)}
	case "pvCount":
		return value{num: float64(len(ctx.Analysis.PV))}
	case "diff":
		if len(ctx.Analysis.PV) < 2 {
			return value{isNone: true}
		}
		d := analysis.Sub(ctx.Analysis.PV[0].Score, ctx.Analysis.PV[1].Score)
		return value{isScoreLike: true, num: d}
	case "bound":
		if ctx.Analysis.Bound == "" {
			return value{isNone: true}
		}
		return value{isString: true, str: string(ctx.Analysis.Bound)}
	case "sideToMove":
		if ctx.Position == nil {
			return value{isNone: true}
		}
		if ctx.Position.Turn() == board.White {
			return value{isString: true, str: "white"}
		}
		return value{isString: true, str: "black"}
	default:
		return value{isNone: true}
	}
}

func resolveOperand(op Operand, scoreLike bool, ctx Context) value {
	switch op.Kind {
	case OperandNumber:
		return value{num: op.Number}
	case OperandMate:
		if scoreLike {
			return value{num: analysis.Mate(op.MateN).Magnitude()}
		}
		return value{num: float64(op.MateN)}
	case OperandSymbol:
		return value{isString: true, str: op.Symbol}
	case OperandNone:
		return value{isNone: true}
	case OperandFieldRef:
		return resolveField(op.FieldName, ctx)
	default:
		return value{isNone: true}
	}
}

func pvAt(a analysis.Analysis, k int) (analysis.PV, bool) {
	if k < 0 || k >= len(a.PV) {
		return analysis.PV{}, false
	}
	return a.PV[k], true
}
