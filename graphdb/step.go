package graphdb

import (
	"github.com/pkg/errors"
)

// Step is the closed set of operators the executor understands
type Step int

const (
	StepV Step = iota
	StepE
	StepAddV
	StepAddE
	StepProperty
	StepProperties
	StepCount
	StepHasLabel
	StepHasIDs
)

var stepNames = map[string]Step{
	"V":          StepV,
	"E":          StepE,
	"addV":       StepAddV,
	"addE":       StepAddE,
	"property":   StepProperty,
	"properties": StepProperties,
	"count":      StepCount,
	"hasLabel":   StepHasLabel,
	"hasIds":     StepHasIDs,
	"hasId":      StepHasIDs,
}

func (s Step) String() string {
	switch s {
	case StepV:
		return "V"
	case StepE:
		return "E"
	case StepAddV:
		return "addV"
	case StepAddE:
		return "addE"
	case StepProperty:
		return "property"
	case StepProperties:
		return "properties"
	case StepCount:
		return "count"
	case StepHasLabel:
		return "hasLabel"
	case StepHasIDs:
		return "hasIds"
	default:
		return "unknown"
	}
}

// StepKind classifies how a step treats the active stream
type StepKind int

const (
	// StreamingSource steps (re)establish the stream and its terminator
	StreamingSource StepKind = iota
	// ReducingBarrier steps collapse the stream to a scalar
	ReducingBarrier
	// Elementwise steps act on each element of the stream
	Elementwise
)

func (k StepKind) String() string {
	switch k {
	case StreamingSource:
		return "streaming source"
	case ReducingBarrier:
		return "reducing barrier"
	default:
		return "elementwise"
	}
}

func (s Step) Kind() StepKind {
	switch s {
	case StepV, StepE, StepAddV, StepAddE:
		return StreamingSource
	case StepCount:
		return ReducingBarrier
	default:
		return Elementwise
	}
}

// ParseStep classifies an operator name
func ParseStep(operator string) (Step, error) {
	step, ok := stepNames[operator]
	if !ok {
		return 0, errors.Wrapf(ErrUnsupportedOperator, "%q", operator)
	}
	return step, nil
}
