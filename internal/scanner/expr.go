package scanner

import (
	"go/ast"
	"go/token"
)

// ExprClass ranks an argument expression by how freely it may move
// relative to its neighbours when the native parameter order differs from
// the agnostic one.
type ExprClass uint8

const (
	// ExprEffect may observe or mutate state (calls, channel ops,
	// indexing): pinned to its original evaluation slot.
	ExprEffect ExprClass = iota
	// ExprRead evaluates without side effects but reads a mutable value
	// (identifiers, selector chains): must not cross an ExprEffect,
	// which could mutate what it reads.
	ExprRead
	// ExprPure is a constant: moves freely across anything.
	ExprPure
)

// classifyExpr is deliberately conservative: anything it cannot prove to be
// a constant or a plain read counts as ExprEffect.
func classifyExpr(e ast.Expr) ExprClass {
	switch x := e.(type) {
	case *ast.BasicLit:
		return ExprPure
	case *ast.Ident:
		return ExprRead
	case *ast.SelectorExpr:
		return weaker(ExprRead, classifyExpr(x.X))
	case *ast.ParenExpr:
		return classifyExpr(x.X)
	case *ast.UnaryExpr:
		switch x.Op {
		case token.AND, token.NOT, token.SUB, token.ADD, token.XOR:
			return weaker(ExprRead, classifyExpr(x.X))
		}
		return ExprEffect
	case *ast.BinaryExpr:
		return weaker(classifyExpr(x.X), classifyExpr(x.Y))
	}
	return ExprEffect
}

// weaker returns the more movement-restricted of two classes.
func weaker(a, b ExprClass) ExprClass {
	if a < b {
		return a
	}
	return b
}
