package graphdb

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TokenType defines types of tokens
type TokenType int

const (
	TokenIdentifier TokenType = iota
	TokenString
	TokenNumber
	TokenSymbol
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenIdentifier:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenSymbol:
		return "symbol"
	default:
		return "EOF"
	}
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Tokenizer breaks Gremlin text into tokens
type Tokenizer struct {
	input  []rune
	pos    int
	tokens []Token
}

// NewTokenizer initializes a new Tokenizer
func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{
		input:  []rune(input),
		tokens: []Token{},
	}
}

// Tokenize processes the input into tokens terminated by TokenEOF
func (t *Tokenizer) Tokenize() ([]Token, error) {
	log := logrus.WithField("component", "Tokenizer")
	for t.pos < len(t.input) {
		c := t.input[t.pos]
		switch {
		case unicode.IsSpace(c):
			t.pos++
		case unicode.IsLetter(c) || c == '_':
			t.readIdentifier()
		case c == '\'' || c == '"':
			if err := t.readString(c); err != nil {
				log.WithError(err).Error("Failed to tokenize query")
				return nil, err
			}
		case unicode.IsDigit(c) || (c == '-' && t.pos+1 < len(t.input) && unicode.IsDigit(t.input[t.pos+1])):
			t.readNumber()
		case strings.ContainsRune(".(),", c):
			t.tokens = append(t.tokens, Token{Type: TokenSymbol, Value: string(c), Pos: t.pos})
			t.pos++
		default:
			err := errors.Wrapf(ErrSyntax, "unexpected character %q at position %d", c, t.pos)
			log.WithError(err).Error("Failed to tokenize query")
			return nil, err
		}
	}
	t.tokens = append(t.tokens, Token{Type: TokenEOF, Pos: t.pos})

	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		tokenList := make([]string, len(t.tokens))
		for i, token := range t.tokens {
			tokenList[i] = fmt.Sprintf("%v:%s", token.Type, token.Value)
		}
		log.WithField("tokens", strings.Join(tokenList, ", ")).Debug("Tokens produced")
	}
	return t.tokens, nil
}

func (t *Tokenizer) readIdentifier() {
	start := t.pos
	for t.pos < len(t.input) && (unicode.IsLetter(t.input[t.pos]) || unicode.IsDigit(t.input[t.pos]) || t.input[t.pos] == '_') {
		t.pos++
	}
	t.tokens = append(t.tokens, Token{Type: TokenIdentifier, Value: string(t.input[start:t.pos]), Pos: start})
}

// readString reads a string quoted with quote; backslash escapes the next rune
func (t *Tokenizer) readString(quote rune) error {
	start := t.pos
	t.pos++
	var sb strings.Builder
	for t.pos < len(t.input) {
		c := t.input[t.pos]
		switch {
		case c == '\\' && t.pos+1 < len(t.input):
			sb.WriteRune(t.input[t.pos+1])
			t.pos += 2
		case c == quote:
			t.pos++
			t.tokens = append(t.tokens, Token{Type: TokenString, Value: sb.String(), Pos: start})
			return nil
		default:
			sb.WriteRune(c)
			t.pos++
		}
	}
	return errors.Wrapf(ErrSyntax, "unterminated string starting at position %d", start)
}

func (t *Tokenizer) readNumber() {
	start := t.pos
	t.pos++ // digit or sign
	for t.pos < len(t.input) && unicode.IsDigit(t.input[t.pos]) {
		t.pos++
	}
	t.tokens = append(t.tokens, Token{Type: TokenNumber, Value: string(t.input[start:t.pos]), Pos: start})
	// Gremlin long suffix, 30L
	if t.pos < len(t.input) && (t.input[t.pos] == 'L' || t.input[t.pos] == 'l') {
		t.pos++
	}
}
