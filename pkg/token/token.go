// Package token defines the lexical categories produced by the SQL lexer.
//
// Categories form a closed enumeration. Their String form is the tag persisted
// as a unit's kind, written in the dotted style used by most SQL tokenizers
// (Token.Keyword.DML, Token.Literal.String.Single, ...).
package token

import (
	"fmt"
	"strings"
)

// Category classifies the lexical role of a token.
type Category uint8

const (
	// None is the category of group nodes, which carry no token of their own.
	None Category = iota

	Whitespace
	Newline
	SingleComment    // -- comment
	MultilineComment // /* comment */
	Punctuation      // ; , ( ) . [ ] { } ::
	Keyword
	DML // SELECT, INSERT, UPDATE, DELETE, MERGE
	DDL // CREATE, ALTER, DROP, TRUNCATE
	Identifier
	QuotedIdentifier // "name" or `name`
	String           // 'text'
	Integer
	Float
	Operator
	Comparison
	Wildcard
	Placeholder // ?, $1, :name
	Error       // byte sequence the lexer does not understand

	categoryCount
)

var categoryNames = [categoryCount]string{
	None:             "",
	Whitespace:       "Token.Text.Whitespace",
	Newline:          "Token.Text.Whitespace.Newline",
	SingleComment:    "Token.Comment.Single",
	MultilineComment: "Token.Comment.Multiline",
	Punctuation:      "Token.Punctuation",
	Keyword:          "Token.Keyword",
	DML:              "Token.Keyword.DML",
	DDL:              "Token.Keyword.DDL",
	Identifier:       "Token.Name",
	QuotedIdentifier: "Token.Literal.String.Symbol",
	String:           "Token.Literal.String.Single",
	Integer:          "Token.Literal.Number.Integer",
	Float:            "Token.Literal.Number.Float",
	Operator:         "Token.Operator",
	Comparison:       "Token.Operator.Comparison",
	Wildcard:         "Token.Wildcard",
	Placeholder:      "Token.Name.Placeholder",
	Error:            "Token.Error",
}

// String returns the persisted tag of the category.
func (c Category) String() string {
	if c < categoryCount {
		return categoryNames[c]
	}
	return fmt.Sprintf("Token.Category(%d)", c)
}

// IsWhitespace reports whether the category is pure layout.
func (c Category) IsWhitespace() bool {
	return c == Whitespace || c == Newline
}

// IsComment reports whether the category is a comment.
func (c Category) IsComment() bool {
	return c == SingleComment || c == MultilineComment
}

// IsKeyword reports whether the category is any kind of keyword.
func (c Category) IsKeyword() bool {
	return c == Keyword || c == DML || c == DDL
}

// IsName reports whether the category names a database object.
func (c Category) IsName() bool {
	return c == Identifier || c == QuotedIdentifier
}

// Categories returns every category except None, in declaration order.
func Categories() []Category {
	out := make([]Category, 0, categoryCount-1)
	for c := Whitespace; c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// keywords maps lowercase keyword strings to their category.
var keywords = map[string]Category{
	"select": DML,
	"insert": DML,
	"update": DML,
	"delete": DML,
	"merge":  DML,
	"upsert": DML,

	"create":   DDL,
	"alter":    DDL,
	"drop":     DDL,
	"truncate": DDL,
	"rename":   DDL,
}

func init() {
	for _, kw := range []string{
		"add", "all", "and", "any", "as", "asc", "begin", "between", "by",
		"cascade", "case", "cast", "check", "collate", "column", "commit",
		"concurrently", "constraint", "cross", "current", "database", "default",
		"desc", "distinct", "else", "end", "escape", "except", "exists",
		"external", "false", "fetch", "filter", "first", "following", "for",
		"foreign", "from", "full", "function", "global", "grant", "group",
		"groups", "having", "if", "ignore", "ilike", "in", "index", "inner",
		"intersect", "interval", "into", "is", "join", "key", "last", "lateral",
		"left", "like", "limit", "local", "materialized", "natural", "not",
		"null", "nulls", "of", "offset", "on", "only", "or", "order", "outer",
		"over", "partition", "preceding", "primary", "procedure", "qualify",
		"range", "recursive", "references", "replace", "restrict", "returning",
		"revoke", "right", "rollback", "row", "rows", "schema", "sequence",
		"set", "table", "temp", "temporary", "then", "to", "transaction",
		"trigger", "true", "unbounded", "union", "unique", "unlogged", "using",
		"values", "view", "when", "where", "window", "with", "within",
	} {
		keywords[kw] = Keyword
	}
}

// LookupWord returns the category of a bare word: a keyword category when the
// word is reserved (case-insensitively), Identifier otherwise.
func LookupWord(word string) Category {
	if c, ok := keywords[strings.ToLower(word)]; ok {
		return c
	}
	return Identifier
}

// Position represents a location in the source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based byte column
	Offset int // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Token is a lexical token with its exact source text.
type Token struct {
	Category Category
	Literal  string
	Pos      Position
}

// Is reports whether the token has the given category and, ignoring case,
// the given literal.
func (t Token) Is(c Category, literal string) bool {
	return t.Category == c && strings.EqualFold(t.Literal, literal)
}
