// Package sqltree turns SQL text into a tree of statements.
//
// Each top-level statement is a group node. Inside it, leaves carry a single
// token and groups collect related tokens: parenthesized sections, function
// calls, qualified identifiers and WHERE clauses. Every byte of the input
// ends up in exactly one leaf.
package sqltree

import (
	"strings"

	"github.com/leapstack-labs/sqlinsight/pkg/token"
)

// Node is one element of a parsed statement tree.
type Node interface {
	// IsWhitespace reports whether the node is pure layout. A group is
	// whitespace when all of its children are.
	IsWhitespace() bool
	// IsGroup reports whether the node has children rather than a token.
	IsGroup() bool
	// Category is the lexical category of a leaf; token.None for groups.
	Category() token.Category
	// Literal is the exact source text covered by the node.
	Literal() string
	// Name is the semantic name of the node, or "" when it has none.
	Name() string
	// Normalized is the source text with keywords upper-cased.
	Normalized() string
	// Children returns the ordered children of a group; nil for leaves.
	Children() []Node
}

// GroupKind identifies what a group node represents.
type GroupKind uint8

// Group kinds.
const (
	StatementGroup GroupKind = iota
	ParenthesisGroup
	FunctionGroup
	IdentifierGroup
	WhereGroup
)

var groupKindNames = map[GroupKind]string{
	StatementGroup:   "Statement",
	ParenthesisGroup: "Parenthesis",
	FunctionGroup:    "Function",
	IdentifierGroup:  "Identifier",
	WhereGroup:       "Where",
}

func (k GroupKind) String() string {
	return groupKindNames[k]
}

// Leaf is a node holding a single token.
type Leaf struct {
	Token token.Token
}

// NewLeaf creates a leaf node for tok.
func NewLeaf(tok token.Token) *Leaf {
	return &Leaf{Token: tok}
}

// IsWhitespace implements Node.
func (l *Leaf) IsWhitespace() bool { return l.Token.Category.IsWhitespace() }

// IsGroup implements Node.
func (l *Leaf) IsGroup() bool { return false }

// Category implements Node.
func (l *Leaf) Category() token.Category { return l.Token.Category }

// Literal implements Node.
func (l *Leaf) Literal() string { return l.Token.Literal }

// Name implements Node. Only identifiers have a name.
func (l *Leaf) Name() string {
	if l.Token.Category.IsName() {
		return unquote(l.Token.Literal)
	}
	return ""
}

// Normalized implements Node.
func (l *Leaf) Normalized() string {
	if l.Token.Category.IsKeyword() {
		return strings.ToUpper(l.Token.Literal)
	}
	return l.Token.Literal
}

// Children implements Node.
func (l *Leaf) Children() []Node { return nil }

// Group is a node holding an ordered list of children.
type Group struct {
	Kind     GroupKind
	children []Node
	name     string
}

// NewGroup creates a group of the given kind. Statement names are derived
// from the children; other group kinds compute their name on demand.
func NewGroup(kind GroupKind, children ...Node) *Group {
	g := &Group{Kind: kind, children: children}
	if kind == StatementGroup {
		g.name = statementName(children)
	}
	return g
}

// IsWhitespace implements Node.
func (g *Group) IsWhitespace() bool {
	for _, c := range g.children {
		if !c.IsWhitespace() {
			return false
		}
	}
	return true
}

// IsGroup implements Node.
func (g *Group) IsGroup() bool { return true }

// Category implements Node.
func (g *Group) Category() token.Category { return token.None }

// Literal implements Node.
func (g *Group) Literal() string {
	var b strings.Builder
	for _, c := range g.children {
		b.WriteString(c.Literal())
	}
	return b.String()
}

// Name implements Node.
func (g *Group) Name() string {
	switch g.Kind {
	case StatementGroup:
		return g.name
	case IdentifierGroup:
		return qualifiedName(g.children)
	case FunctionGroup:
		if len(g.children) > 0 {
			return g.children[0].Name()
		}
	}
	return ""
}

// Normalized implements Node.
func (g *Group) Normalized() string {
	var b strings.Builder
	for _, c := range g.children {
		b.WriteString(c.Normalized())
	}
	return b.String()
}

// Children implements Node.
func (g *Group) Children() []Node { return g.children }

// Leaves returns the leaves under n in document order.
func Leaves(n Node) []Node {
	if !n.IsGroup() {
		return []Node{n}
	}
	var out []Node
	for _, c := range n.Children() {
		out = append(out, Leaves(c)...)
	}
	return out
}

// unquote strips one level of identifier quoting and collapses doubled quotes.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '"' && q != '`') || s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	return strings.ReplaceAll(inner, string([]byte{q, q}), string(q))
}

// qualifiedName joins the name parts of a dotted identifier.
func qualifiedName(children []Node) string {
	var parts []string
	for _, c := range children {
		switch {
		case c.Category().IsName():
			parts = append(parts, c.Name())
		case c.Category() == token.Wildcard:
			parts = append(parts, c.Literal())
		}
	}
	return strings.Join(parts, ".")
}
