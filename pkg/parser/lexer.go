package parser

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// Lexer tokenizes formula input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)

	err *LexError // first error, reported with an ILLEGAL token
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Err returns the first lexical error, or nil.
func (l *Lexer) Err() error {
	if l.err == nil {
		return nil
	}
	return l.err
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
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

// currentPos returns the position of the current character.
func (l *Lexer) currentPos() Position {
	return Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token. After an error it keeps returning the
// same ILLEGAL token.
func (l *Lexer) NextToken() Token {
	if l.err != nil {
		return Token{Type: TOKEN_ILLEGAL, Pos: l.err.Pos, End: l.err.Pos}
	}

	l.skipWhitespace()

	pos := l.currentPos()
	if l.atEOF() {
		return Token{Type: TOKEN_EOF, Pos: pos, End: pos}
	}

	switch l.ch {
	case '+':
		return l.single(TOKEN_PLUS, pos)
	case '-':
		return l.single(TOKEN_MINUS, pos)
	case '*':
		return l.single(TOKEN_STAR, pos)
	case '/':
		return l.single(TOKEN_SLASH, pos)
	case '&':
		return l.single(TOKEN_AMP, pos)
	case '=':
		return l.single(TOKEN_EQ, pos)
	case ',':
		return l.single(TOKEN_COMMA, pos)
	case '(':
		return l.single(TOKEN_LPAREN, pos)
	case ')':
		return l.single(TOKEN_RPAREN, pos)
	case '<':
		switch l.peekChar() {
		case '=':
			return l.double(TOKEN_LE, pos)
		case '>':
			return l.double(TOKEN_NE, pos)
		default:
			return l.single(TOKEN_LT, pos)
		}
	case '>':
		if l.peekChar() == '=' {
			return l.double(TOKEN_GE, pos)
		}
		return l.single(TOKEN_GT, pos)
	case '!':
		if l.peekChar() == '=' {
			return l.double(TOKEN_NE, pos)
		}
		return l.illegal(UnknownCharacter, pos, "unexpected character '!'; did you mean '!='?")
	case '"', '\'':
		return l.readString(pos)
	case '{':
		return l.readField(pos)
	case '#':
		return l.readDate(pos)
	}

	switch {
	case isLetter(l.ch) || l.ch == '_':
		lit := l.readIdentifier()
		return Token{Type: LookupIdent(lit), Literal: lit, Pos: pos, End: l.currentPos()}
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(pos)
	default:
		r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
		return l.illegal(UnknownCharacter, pos, "unexpected character %q", r)
	}
}

// single consumes a one-byte token.
func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos, End: l.currentPos()}
}

// double consumes a two-byte token.
func (l *Lexer) double(t TokenType, pos Position) Token {
	lit := l.input[l.pos : l.pos+2]
	l.readChar()
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos, End: l.currentPos()}
}

// illegal records the first error and returns an ILLEGAL token.
func (l *Lexer) illegal(kind LexErrorKind, pos Position, format string, args ...any) Token {
	l.err = newLexError(kind, pos, format, args...)
	return Token{Type: TOKEN_ILLEGAL, Pos: pos, End: pos}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readString reads a string delimited by the current quote character.
// Backslash escapes \" \' \\ \n \t are decoded; any other escaped
// character stands for itself.
func (l *Lexer) readString(pos Position) Token {
	quote := l.ch
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		switch {
		case l.atEOF():
			return l.illegal(UnterminatedString, pos, "unterminated string literal")
		case l.ch == quote:
			l.readChar() // skip closing quote
			return Token{Type: TOKEN_STRING, Literal: result.String(), Pos: pos, End: l.currentPos()}
		case l.ch == '\\':
			l.readChar()
			if l.atEOF() {
				return l.illegal(UnterminatedString, pos, "unterminated string literal")
			}
			switch l.ch {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			default:
				result.WriteByte(l.ch)
			}
			l.readChar()
		default:
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readField reads {fld<alnum>+}. Anything else starting with '{' is an
// unknown character at the brace.
func (l *Lexer) readField(pos Position) Token {
	rest := l.input[l.pos:]
	end := strings.IndexByte(rest, '}')
	if end < 0 || !isFieldID(rest[1:end]) {
		return l.illegal(UnknownCharacter, pos, "unexpected character '{'; field references look like {fldXXXX}")
	}
	id := rest[1:end]
	for range end + 1 {
		l.readChar()
	}
	return Token{Type: TOKEN_FIELD, Literal: id, Pos: pos, End: l.currentPos()}
}

// IsFieldID reports whether s is a well-formed field id: "fld" followed by
// at least one ASCII letter or digit.
func IsFieldID(s string) bool { return isFieldID(s) }

func isFieldID(s string) bool {
	if len(s) <= 3 || s[:3] != "fld" {
		return false
	}
	for i := 3; i < len(s); i++ {
		if !isLetter(s[i]) && !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// readDate reads #...# and validates the enclosed date.
func (l *Lexer) readDate(pos Position) Token {
	rest := l.input[l.pos+1:]
	end := strings.IndexByte(rest, '#')
	if end < 0 {
		return l.illegal(InvalidDateLiteral, pos, "unterminated date literal")
	}
	lit := rest[:end]
	if _, ok := core.ParseDate(lit, time.UTC); !ok {
		return l.illegal(InvalidDateLiteral, pos, "invalid date literal #%s#", lit)
	}
	for range end + 2 {
		l.readChar()
	}
	return Token{Type: TOKEN_DATE, Literal: lit, Pos: pos, End: l.currentPos()}
}

// readIdentifier reads an identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
// Trailing letters, digits or dots make the whole literal invalid.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos

	// Read integer part
	for isDigit(l.ch) {
		l.readChar()
	}

	// Read decimal part
	if l.ch == '.' {
		l.readChar()
		if !isDigit(l.ch) {
			return l.illegal(InvalidNumber, pos, "invalid number literal %q", l.input[start:l.pos])
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// Read exponent part (e.g., 1e10, 1E-5)
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return l.illegal(InvalidNumber, pos, "invalid number literal %q", l.input[start:l.pos])
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '.' {
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '.' {
			l.readChar()
		}
		return l.illegal(InvalidNumber, pos, "invalid number literal %q", l.input[start:l.pos])
	}

	lit := l.input[start:l.pos]
	if _, err := strconv.ParseFloat(lit, 64); err != nil {
		return l.illegal(InvalidNumber, pos, "number literal %q is out of range", lit)
	}
	return Token{Type: TOKEN_NUMBER, Literal: lit, Pos: pos, End: l.currentPos()}
}

// isLetter returns true for ASCII letters. Non-ASCII text is only valid
// inside string literals.
func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF. It stops at
// the first lexical error.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == TOKEN_ILLEGAL {
			return tokens, l.err
		}
		tokens = append(tokens, tok)
		if tok.Type == TOKEN_EOF {
			return tokens, nil
		}
	}
}
