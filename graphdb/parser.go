package graphdb

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrSyntax is returned for query text that is not a valid traversal
var ErrSyntax = errors.New("syntax error")

// Terminal is the call that ends a text query and decides how results are read
type Terminal string

const (
	TerminalToList  Terminal = "toList"
	TerminalNext    Terminal = "next"
	TerminalHasNext Terminal = "hasNext"
	TerminalIterate Terminal = "iterate"
)

// Query is a parsed text traversal
type Query struct {
	Bytecode Bytecode
	Terminal Terminal
}

// ParseQuery parses text such as g.V().hasLabel('person').count().next().
// Without a terminal call the query ends in toList.
func ParseQuery(text string) (Query, error) {
	tokens, err := NewTokenizer(text).Tokenize()
	if err != nil {
		return Query{}, err
	}
	return NewParser(tokens).Parse()
}

// Parser converts tokens into bytecode
type Parser struct {
	tokens []Token
	pos    int
	log    *logrus.Entry
}

// NewParser initializes a new Parser
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		log:    logrus.WithField("component", "Parser"),
	}
}

// Parse parses the token stream into a Query
func (p *Parser) Parse() (Query, error) {
	query, err := p.query()
	if err != nil {
		p.log.WithError(err).Error("Failed to parse query")
		return Query{}, err
	}
	p.log.WithFields(logrus.Fields{
		"steps":    len(query.Bytecode.Steps),
		"terminal": query.Terminal,
	}).Debug("Parsing complete")
	return query, nil
}

func (p *Parser) query() (Query, error) {
	if !p.accept(TokenIdentifier, "g") {
		return Query{}, p.errorf("query must start with g")
	}
	query := Query{Terminal: TerminalToList}

	for p.accept(TokenSymbol, ".") {
		name := p.current()
		if name.Type != TokenIdentifier {
			return Query{}, p.errorf("expected step name")
		}
		p.pos++

		args, err := p.arguments()
		if err != nil {
			return Query{}, err
		}

		if terminal, ok := terminals[name.Value]; ok {
			if len(args) > 0 {
				return Query{}, errors.Wrapf(ErrSyntax, "%s() takes no arguments", name.Value)
			}
			query.Terminal = terminal
			if p.current().Type != TokenEOF {
				return Query{}, p.errorf("%s() must be the last call", name.Value)
			}
			break
		}
		query.Bytecode = query.Bytecode.Add(Instruction{Operator: name.Value, Args: args})
	}

	if p.current().Type != TokenEOF {
		return Query{}, p.errorf("unexpected token %q", p.current().Value)
	}
	return query, nil
}

var terminals = map[string]Terminal{
	"toList":  TerminalToList,
	"next":    TerminalNext,
	"hasNext": TerminalHasNext,
	"iterate": TerminalIterate,
}

// arguments parses a parenthesized, comma separated argument list
func (p *Parser) arguments() ([]Value, error) {
	if !p.accept(TokenSymbol, "(") {
		return nil, p.errorf("expected (")
	}
	var args []Value
	if p.accept(TokenSymbol, ")") {
		return args, nil
	}
	for {
		arg, err := p.argument()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.accept(TokenSymbol, ")") {
			return args, nil
		}
		if !p.accept(TokenSymbol, ",") {
			return nil, p.errorf("expected , or )")
		}
	}
}

func (p *Parser) argument() (Value, error) {
	tok := p.current()
	switch tok.Type {
	case TokenString:
		p.pos++
		return StringValue(tok.Value), nil
	case TokenNumber:
		p.pos++
		i, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return Null, errors.Wrapf(ErrSyntax, "invalid number %q", tok.Value)
		}
		return Int64Value(i), nil
	case TokenIdentifier:
		return p.identifierArgument()
	}
	return Null, p.errorf("expected argument")
}

// identifierArgument parses true, false, null and cardinality markers,
// optionally qualified as in VertexProperty.Cardinality.list
func (p *Parser) identifierArgument() (Value, error) {
	var parts []string
	for {
		tok := p.current()
		if tok.Type != TokenIdentifier {
			return Null, p.errorf("expected identifier")
		}
		parts = append(parts, tok.Value)
		p.pos++
		if !p.accept(TokenSymbol, ".") {
			break
		}
	}

	name := parts[len(parts)-1]
	if len(parts) == 1 {
		switch name {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		case "null":
			return Null, nil
		}
	}
	for _, qualifier := range parts[:len(parts)-1] {
		if qualifier != "Cardinality" && qualifier != "VertexProperty" {
			return Null, errors.Wrapf(ErrSyntax, "unknown argument %q", strings.Join(parts, "."))
		}
	}
	card, err := ParseCardinality(name)
	if err != nil {
		return Null, errors.Wrapf(ErrSyntax, "unknown argument %q", strings.Join(parts, "."))
	}
	return CardinalityValue(card), nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// accept consumes the current token if it matches
func (p *Parser) accept(tokenType TokenType, value string) bool {
	tok := p.current()
	if tok.Type == tokenType && tok.Value == value {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSyntax, format+" at position %d", append(args, p.current().Pos)...)
}
