package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// symbolicConstants names the bare identifiers that denote symbolic literal
// values (bound/sideToMove values) rather than field references. None of
// these collide with a recognized field name.
var symbolicConstants = map[string]bool{
	"exact": true, "lower": true, "upper": true,
	"white": true, "black": true,
}

// Parse compiles a filter DSL string into an Expr tree. The parser is pure
// and free of side effects; errors carry a 1-based column index.
//
//	Expr       := OrExpr
//	OrExpr     := AndExpr ("OR"  AndExpr)*
//	AndExpr    := NotExpr ("AND" NotExpr)*
//	NotExpr    := "NOT" NotExpr | Atom
//	Atom       := "(" Expr ")" | "TRUE" | "FALSE" | Predicate
//	Predicate  := Field Op Operand
//	Op         := "<" | "<=" | "=" | "!=" | ">=" | ">"
//	Operand    := Number | Mate | Field | "NONE"
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, &ParseError{Col: p.peek().col, Message: fmt.Sprintf("unexpected token %q", p.peek().text)}
	}
	return expr, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := Or{first}
	for p.peek().kind == tokOr {
		p.next()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

func (p *parser) parseAnd() (Expr, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	terms := And{first}
	for p.peek().kind == tokAnd {
		p.next()
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, &ParseError{Col: p.peek().col, Message: "expected ')'"}
		}
		p.next()
		return inner, nil
	case tokTrue:
		p.next()
		return Const(true), nil
	case tokFalse:
		p.next()
		return Const(false), nil
	case tokIdent:
		return p.parsePredicate()
	default:
		return nil, &ParseError{Col: t.col, Message: fmt.Sprintf("unexpected token %q", t.text)}
	}
}

func (p *parser) parsePredicate() (Expr, error) {
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}

	opTok := p.peek()
	if opTok.kind != tokOp {
		return nil, &ParseError{Col: opTok.col, Message: "expected comparator"}
	}
	p.next()

	operand, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return Predicate{Field: field, Op: Op(opTok.text), Operand: operand}, nil
}

func (p *parser) parseField() (Field, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return Field{}, &ParseError{Col: t.col, Message: "expected field name"}
	}
	p.next()

	f := Field{Name: t.text}
	if p.peek().kind == tokLBracket {
		p.next()
		idxTok := p.peek()
		if idxTok.kind != tokNumber {
			return Field{}, &ParseError{Col: idxTok.col, Message: "expected integer index"}
		}
		p.next()
		idx, err := strconv.Atoi(idxTok.text)
		if err != nil {
			return Field{}, &ParseError{Col: idxTok.col, Message: "index must be a non-negative integer"}
		}
		f.Index = idx
		if p.peek().kind != tokRBracket {
			return Field{}, &ParseError{Col: p.peek().col, Message: "expected ']'"}
		}
		p.next()
	}
	return f, nil
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return Operand{Kind: OperandNumber, Number: t.num}, nil
	case tokMate:
		p.next()
		return Operand{Kind: OperandMate, MateN: t.mate}, nil
	case tokNone:
		p.next()
		return Operand{Kind: OperandNone}, nil
	case tokIdent:
		if symbolicConstants[strings.ToLower(t.text)] {
			p.next()
			return Operand{Kind: OperandSymbol, Symbol: strings.ToLower(t.text)}, nil
		}
		field, err := p.parseField()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandFieldRef, FieldName: field}, nil
	default:
		return Operand{}, &ParseError{Col: t.col, Message: fmt.Sprintf("unexpected token %q in operand position", t.text)}
	}
}
