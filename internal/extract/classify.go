package extract

import (
	"github.com/leapstack-labs/sqlinsight/pkg/sqltree"
	"github.com/leapstack-labs/sqlinsight/pkg/token"
)

// significance says which node categories carry meaning. Groups report
// token.None and are significant unless they hold only layout.
var significance = func() map[token.Category]bool {
	m := map[token.Category]bool{token.None: true}
	for _, c := range token.Categories() {
		m[c] = true
	}
	m[token.Whitespace] = false
	m[token.Newline] = false
	m[token.Punctuation] = false
	return m
}()

// IsSignificant reports whether a node should be recorded. Whitespace
// (including groups made only of whitespace) and punctuation are not.
func IsSignificant(n sqltree.Node) bool {
	if n == nil || n.IsWhitespace() {
		return false
	}
	return significance[n.Category()]
}

// Prune returns a copy of n without insignificant nodes, or nil when n
// itself is insignificant. Groups left without children are dropped too, so
// Prune(Prune(n)) equals Prune(n).
func Prune(n sqltree.Node) sqltree.Node {
	if !IsSignificant(n) {
		return nil
	}
	g, ok := n.(*sqltree.Group)
	if !ok {
		return n
	}

	var kept []sqltree.Node
	for _, c := range g.Children() {
		if p := Prune(c); p != nil {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return sqltree.NewGroup(g.Kind, kept...)
}
