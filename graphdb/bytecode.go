package graphdb

import (
	"strings"
)

// Instruction is one operator with its ordered arguments
type Instruction struct {
	Operator string
	Args     []Value
}

// NewInstruction converts native arguments with ValueOf
func NewInstruction(operator string, args ...interface{}) (Instruction, error) {
	values := make([]Value, 0, len(args))
	for _, arg := range args {
		v, err := ValueOf(arg)
		if err != nil {
			return Instruction{}, err
		}
		values = append(values, v)
	}
	return Instruction{Operator: operator, Args: values}, nil
}

func (i Instruction) String() string {
	args := make([]string, len(i.Args))
	for n, arg := range i.Args {
		args[n] = formatArg(arg)
	}
	return i.Operator + "(" + strings.Join(args, ", ") + ")"
}

// Bytecode is one traversal program, run top to bottom exactly once
type Bytecode struct {
	Steps []Instruction
}

// Add returns a copy of the program with instruction appended
func (b Bytecode) Add(instruction Instruction) Bytecode {
	steps := make([]Instruction, len(b.Steps), len(b.Steps)+1)
	copy(steps, b.Steps)
	return Bytecode{Steps: append(steps, instruction)}
}

// String renders the program as Gremlin text rooted at g
func (b Bytecode) String() string {
	var sb strings.Builder
	sb.WriteString("g")
	for _, step := range b.Steps {
		sb.WriteString(".")
		sb.WriteString(step.String())
	}
	return sb.String()
}

func formatArg(v Value) string {
	switch v.Kind() {
	case KindString:
		return "'" + strings.ReplaceAll(v.s, "'", "\\'") + "'"
	case KindVertex:
		return "'" + v.v.ID + "'"
	default:
		return v.String()
	}
}
