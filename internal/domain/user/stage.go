package user

import "strings"

// Stage is a lead lifecycle stage.
type Stage string

const (
	StageCaptured    Stage = "captured"
	StageEngaged     Stage = "engaged"
	StageQualified   Stage = "qualified"
	StageOpportunity Stage = "opportunity"
	StageCustomer    Stage = "customer"
	StageChurned     Stage = "churned"
)

// pipeline is the intended forward order. Churned sits outside it.
var pipeline = []Stage{StageCaptured, StageEngaged, StageQualified, StageOpportunity, StageCustomer}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, bool) {
	stage := Stage(strings.ToLower(strings.TrimSpace(s)))
	if stage == StageChurned {
		return stage, true
	}
	for _, p := range pipeline {
		if p == stage {
			return stage, true
		}
	}
	return "", false
}

// Rank is the position in the forward pipeline, or -1 for churned.
func (s Stage) Rank() int {
	for i, p := range pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether s is the absorbing churned stage.
func (s Stage) IsTerminal() bool { return s == StageChurned }

// Direction describes a transition relative to the intended pipeline.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionChurn    Direction = "churn"
	DirectionRevive   Direction = "revive"
	DirectionNone     Direction = "none"
)

// DirectionOf classifies from→to. Every direction is allowed; the
// classification is only attached to history events.
func DirectionOf(from, to Stage) Direction {
	switch {
	case from == to:
		return DirectionNone
	case to == StageChurned:
		return DirectionChurn
	case from == StageChurned:
		return DirectionRevive
	case to.Rank() > from.Rank():
		return DirectionForward
	default:
		return DirectionBackward
	}
}
