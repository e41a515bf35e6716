package sqltree

import (
	"strings"

	"github.com/leapstack-labs/sqlinsight/pkg/token"
)

// statementName returns the object a DML or DDL statement targets:
// the table after INSERT INTO, UPDATE, DELETE FROM, MERGE INTO, the first
// table after SELECT ... FROM, or the object a CREATE/ALTER/DROP/TRUNCATE
// acts on. Anything else has no name.
func statementName(children []Node) string {
	nodes := meaningful(children)
	if len(nodes) == 0 || nodes[0].IsGroup() {
		return ""
	}

	first := nodes[0]
	switch first.Category() {
	case token.DML:
		switch strings.ToLower(first.Literal()) {
		case "insert", "merge", "upsert":
			return nameAfter(nodes, "into")
		case "select", "delete":
			return nameAfter(nodes, "from")
		case "update":
			return firstName(nodes[1:])
		}
	case token.DDL:
		return firstName(nodes[1:])
	}
	return ""
}

// meaningful drops layout and comments.
func meaningful(children []Node) []Node {
	out := make([]Node, 0, len(children))
	for _, c := range children {
		if c.IsWhitespace() || c.Category().IsComment() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// nameAfter returns the first name following the keyword at this level.
func nameAfter(nodes []Node, keyword string) string {
	for i, n := range nodes {
		if isKeyword(n, keyword) {
			return firstName(nodes[i+1:])
		}
	}
	return ""
}

// firstName skips leading keywords (OR REPLACE, TABLE, IF NOT EXISTS, ...)
// and returns the name of the next node.
func firstName(nodes []Node) string {
	for _, n := range nodes {
		if !n.IsGroup() && n.Category().IsKeyword() {
			continue
		}
		return n.Name()
	}
	return ""
}
