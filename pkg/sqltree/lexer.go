package sqltree

import (
	"unicode/utf8"

	"github.com/leapstack-labs/sqlinsight/pkg/token"
)

// Lexer splits SQL text into tokens without discarding anything: whitespace,
// comments and punctuation are all emitted, so concatenating every token
// literal reproduces the input exactly.
//
// The lexer never fails. Bytes it cannot classify become token.Error tokens.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' && l.pos < len(l.input) {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// NextToken returns the next token. The boolean is false once the input is
// exhausted.
func (l *Lexer) NextToken() (token.Token, bool) {
	if l.atEOF() {
		return token.Token{}, false
	}
	pos := l.currentPos()
	start := l.pos
	cat := l.scan()
	return token.Token{Category: cat, Literal: l.input[start:l.pos], Pos: pos}, true
}

// scan consumes one token and returns its category.
func (l *Lexer) scan() token.Category {
	switch ch := l.ch; {
	case ch == ' ' || ch == '\t' || ch == '\f' || ch == '\v':
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\f' || l.ch == '\v' {
			l.readChar()
		}
		return token.Whitespace
	case ch == '\r':
		l.readChar()
		if l.ch == '\n' {
			l.readChar()
		}
		return token.Newline
	case ch == '\n':
		l.readChar()
		return token.Newline
	case ch == '-' && l.peekChar() == '-':
		for !l.atEOF() && l.ch != '\n' && l.ch != '\r' {
			l.readChar()
		}
		return token.SingleComment
	case ch == '/' && l.peekChar() == '*':
		l.skipBlockComment()
		return token.MultilineComment
	case ch == '\'':
		l.skipQuoted('\'')
		return token.String
	case ch == '"' || ch == '`':
		l.skipQuoted(ch)
		return token.QuotedIdentifier
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		return l.readNumber()
	case isWordStart(ch):
		start := l.pos
		l.readWord()
		return token.LookupWord(l.input[start:l.pos])
	case ch == '@' && isWordStart(l.peekChar()):
		l.readChar()
		l.readWord()
		return token.Identifier
	case ch == '?':
		l.readChar()
		return token.Placeholder
	case ch == '$' && isDigit(l.peekChar()):
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
		return token.Placeholder
	case ch == ':':
		switch next := l.peekChar(); {
		case next == ':':
			l.readChar()
			l.readChar()
			return token.Punctuation
		case isWordStart(next):
			l.readChar()
			l.readWord()
			return token.Placeholder
		}
		l.readChar()
		return token.Punctuation
	}
	return l.readSymbol()
}

// readSymbol consumes operators, comparisons and punctuation.
func (l *Lexer) readSymbol() token.Category {
	ch, next := l.ch, l.peekChar()
	switch ch {
	case ';', ',', '(', ')', '.', '[', ']', '{', '}':
		l.readChar()
		return token.Punctuation
	case '*':
		l.readChar()
		return token.Wildcard
	case '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
		}
		return token.Comparison
	case '<':
		l.readChar()
		if next == '=' || next == '>' {
			l.readChar()
		}
		return token.Comparison
	case '>':
		l.readChar()
		if next == '=' {
			l.readChar()
		}
		return token.Comparison
	case '!':
		l.readChar()
		if next == '=' {
			l.readChar()
			return token.Comparison
		}
		return token.Operator
	case '|':
		l.readChar()
		if next == '|' {
			l.readChar()
		}
		return token.Operator
	case '+', '-', '/', '%', '&', '^', '~':
		l.readChar()
		return token.Operator
	}

	// Unknown input: consume a whole UTF-8 sequence so multi-byte characters
	// are not split across tokens.
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	for i := 0; i < size; i++ {
		l.readChar()
	}
	return token.Error
}

// skipBlockComment consumes a /* ... */ comment. An unterminated comment runs
// to the end of the input.
func (l *Lexer) skipBlockComment() {
	l.readChar() // skip '/'
	l.readChar() // skip '*'
	for !l.atEOF() {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return
		}
		l.readChar()
	}
}

// skipQuoted consumes a quoted literal. A doubled quote is an escaped quote;
// an unterminated literal runs to the end of the input.
func (l *Lexer) skipQuoted(quote byte) {
	l.readChar() // skip opening quote
	for !l.atEOF() {
		if l.ch == quote {
			if l.peekChar() == quote {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return
		}
		l.readChar()
	}
}

// readWord consumes identifier characters.
func (l *Lexer) readWord() {
	for !l.atEOF() && (isWordStart(l.ch) || isDigit(l.ch) || l.ch == '$') {
		l.readChar()
	}
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() token.Category {
	cat := token.Integer
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		cat = token.Float
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		cat = token.Float
		l.readChar() // skip 'e' or 'E'
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return cat
}

// isWordStart accepts ASCII letters, underscore and any non-ASCII byte, so
// identifiers written in other scripts stay in one token.
func isWordStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch >= utf8.RuneSelf
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok, ok := l.NextToken()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}
