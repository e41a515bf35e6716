package sqltree

import (
	"strings"

	"github.com/leapstack-labs/sqlinsight/pkg/token"
)

// Parse tokenizes text and returns its top-level statements in document
// order. Parsing is lenient: any input, including malformed SQL, produces a
// tree whose leaves cover the text exactly.
func Parse(text string) []*Group {
	return ParseTokens(Tokenize(text))
}

// ParseTokens groups an already tokenized input into statements.
func ParseTokens(tokens []token.Token) []*Group {
	var stmts []*Group
	for _, toks := range splitStatements(tokens) {
		nodes, _ := parseSequence(toks, 0, false)
		stmts = append(stmts, NewGroup(StatementGroup, refine(nodes)...))
	}
	return stmts
}

// splitStatements cuts the token stream after each top-level semicolon.
// Whitespace and single-line comments following a semicolon stay with the
// statement it terminates. Semicolons inside parentheses, and inside
// BEGIN/CASE ... END blocks of CREATE statements, do not terminate.
func splitStatements(tokens []token.Token) [][]token.Token {
	var (
		stmts      [][]token.Token
		cur        []token.Token
		depth      int
		block      int
		isCreate   bool
		seenWord   bool
		terminated bool
	)

	for _, tok := range tokens {
		if terminated {
			if tok.Category.IsWhitespace() || tok.Category == token.SingleComment {
				cur = append(cur, tok)
				continue
			}
			stmts = append(stmts, cur)
			cur, depth, block, isCreate, seenWord, terminated = nil, 0, 0, false, false, false
		}

		cur = append(cur, tok)

		switch {
		case tok.Is(token.Punctuation, "("):
			depth++
		case tok.Is(token.Punctuation, ")"):
			if depth > 0 {
				depth--
			}
		case tok.Is(token.Punctuation, ";"):
			terminated = depth == 0 && block == 0
		case tok.Category.IsKeyword():
			if !seenWord {
				isCreate = tok.Is(token.DDL, "create")
			}
			if isCreate {
				switch strings.ToLower(tok.Literal) {
				case "begin", "case":
					block++
				case "end":
					if block > 0 {
						block--
					}
				}
			}
		}

		if !tok.Category.IsWhitespace() && !tok.Category.IsComment() {
			seenWord = true
		}
	}

	if len(cur) > 0 {
		stmts = append(stmts, cur)
	}
	return stmts
}

// parseSequence builds leaves and parenthesis groups starting at tokens[i].
// Inside a parenthesis it stops after the matching ")"; an unmatched "("
// extends to the end of the statement.
func parseSequence(tokens []token.Token, i int, inParen bool) ([]Node, int) {
	var nodes []Node
	for i < len(tokens) {
		tok := tokens[i]
		switch {
		case tok.Is(token.Punctuation, "("):
			inner, next := parseSequence(tokens, i+1, true)
			children := append([]Node{NewLeaf(tok)}, inner...)
			nodes = append(nodes, NewGroup(ParenthesisGroup, refine(children)...))
			i = next
		case tok.Is(token.Punctuation, ")") && inParen:
			return append(nodes, NewLeaf(tok)), i + 1
		default:
			nodes = append(nodes, NewLeaf(tok))
			i++
		}
	}
	return nodes, i
}

// refine applies the grouping passes to one level of the tree.
func refine(nodes []Node) []Node {
	return groupWhere(groupFunctions(groupIdentifiers(nodes)))
}

// groupIdentifiers folds dotted names (schema.table, t.*) into one group.
func groupIdentifiers(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		if !isNameLeaf(nodes[i]) {
			out = append(out, nodes[i])
			continue
		}
		j := i
		for j+2 < len(nodes) && isPunct(nodes[j+1], ".") {
			next := nodes[j+2]
			if !isNameLeaf(next) && next.Category() != token.Wildcard {
				break
			}
			j += 2
			if next.Category() == token.Wildcard {
				break
			}
		}
		if j == i {
			out = append(out, nodes[i])
			continue
		}
		out = append(out, NewGroup(IdentifierGroup, cloneNodes(nodes[i:j+1])...))
		i = j
	}
	return out
}

// groupFunctions pairs a name directly followed by a parenthesis.
func groupFunctions(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		if i+1 < len(nodes) && isFunctionName(n) && isGroupKind(nodes[i+1], ParenthesisGroup) {
			out = append(out, NewGroup(FunctionGroup, n, nodes[i+1]))
			i++
			continue
		}
		out = append(out, n)
	}
	return out
}

var whereTerminators = map[string]bool{
	"group":     true,
	"order":     true,
	"limit":     true,
	"having":    true,
	"union":     true,
	"except":    true,
	"intersect": true,
	"returning": true,
	"window":    true,
	"offset":    true,
	"fetch":     true,
	"qualify":   true,
}

// groupWhere collects a WHERE keyword and its condition.
func groupWhere(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		if !isKeyword(nodes[i], "where") {
			out = append(out, nodes[i])
			continue
		}
		j := i + 1
		for j < len(nodes) && !endsWhere(nodes[j]) {
			j++
		}
		out = append(out, NewGroup(WhereGroup, cloneNodes(nodes[i:j])...))
		i = j - 1
	}
	return out
}

func endsWhere(n Node) bool {
	if isPunct(n, ";") {
		return true
	}
	return !n.IsGroup() && n.Category().IsKeyword() && whereTerminators[strings.ToLower(n.Literal())]
}

func isNameLeaf(n Node) bool {
	return !n.IsGroup() && n.Category().IsName()
}

func isFunctionName(n Node) bool {
	return isNameLeaf(n) || isGroupKind(n, IdentifierGroup)
}

func isGroupKind(n Node, kind GroupKind) bool {
	g, ok := n.(*Group)
	return ok && g.Kind == kind
}

func isPunct(n Node, lit string) bool {
	return !n.IsGroup() && n.Category() == token.Punctuation && n.Literal() == lit
}

func isKeyword(n Node, word string) bool {
	return !n.IsGroup() && n.Category().IsKeyword() && strings.EqualFold(n.Literal(), word)
}

func cloneNodes(nodes []Node) []Node {
	return append([]Node(nil), nodes...)
}
