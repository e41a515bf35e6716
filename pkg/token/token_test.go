package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupWord(t *testing.T) {
	tests := []struct {
		word string
		want Category
	}{
		{"select", DML},
		{"SELECT", DML},
		{"Insert", DML},
		{"create", DDL},
		{"TRUNCATE", DDL},
		{"from", Keyword},
		{"Where", Keyword},
		{"orders", Identifier},
		{"select_count", Identifier},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupWord(tt.word))
		})
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "", None.String())
	assert.Equal(t, "Token.Punctuation", Punctuation.String())
	assert.Equal(t, "Token.Keyword.DML", DML.String())
	assert.Equal(t, "Token.Text.Whitespace.Newline", Newline.String())
	assert.Equal(t, "Token.Category(200)", Category(200).String())
}

func TestCategoriesHaveDistinctTags(t *testing.T) {
	seen := make(map[string]Category)
	for _, c := range Categories() {
		tag := c.String()
		assert.NotEmpty(t, tag, "category %d has no tag", c)
		if prev, ok := seen[tag]; ok {
			t.Errorf("categories %d and %d share tag %q", prev, c, tag)
		}
		seen[tag] = c
	}
}

func TestCategoryPredicates(t *testing.T) {
	assert.True(t, Whitespace.IsWhitespace())
	assert.True(t, Newline.IsWhitespace())
	assert.False(t, SingleComment.IsWhitespace())
	assert.True(t, MultilineComment.IsComment())
	assert.True(t, DDL.IsKeyword())
	assert.False(t, Identifier.IsKeyword())
	assert.True(t, QuotedIdentifier.IsName())
}

func TestTokenIs(t *testing.T) {
	tok := Token{Category: Keyword, Literal: "From"}
	assert.True(t, tok.Is(Keyword, "FROM"))
	assert.False(t, tok.Is(DML, "FROM"))
	assert.False(t, tok.Is(Keyword, "WHERE"))
}
