package comparison

import "fmt"

// Stage represents the current step of a fare comparison run.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageValidating      Stage = "validating"
	StageGeocodingPickup Stage = "geocoding_pickup"
	StageGeocodingDrop   Stage = "geocoding_drop"
	StageRouting         Stage = "routing"
	StagePricing         Stage = "pricing"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// validTransitions defines the state machine for comparison runs.
var validTransitions = map[Stage][]Stage{
	StageIdle:            {StageValidating},
	StageValidating:      {StageGeocodingPickup, StageFailed},
	StageGeocodingPickup: {StageGeocodingDrop, StageFailed},
	StageGeocodingDrop:   {StageRouting, StageFailed},
	StageRouting:         {StagePricing, StageFailed},
	StagePricing:         {StageDone, StageFailed},
	StageDone:            {StageValidating},
	StageFailed:          {StageValidating},
}

// IsValid returns true if the stage is a recognized comparison stage.
func (s Stage) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this stage to the target is allowed.
func (s Stage) CanTransitionTo(target Stage) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the run has finished, successfully or not.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// IsInFlight returns true while a run is working through the pipeline.
func (s Stage) IsInFlight() bool {
	return s.IsValid() && s != StageIdle && !s.IsTerminal()
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// ParseStage converts a string to a Stage, returning an error if invalid.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid comparison stage: %s", s)
	}
	return stage, nil
}
