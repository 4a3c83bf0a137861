package entity

import "fmt"

// ProcessingStage is the closed set of pipeline positions a Source can occupy.
type ProcessingStage string

const (
	StageQueued                     ProcessingStage = "QUEUED"
	StageIngesting                  ProcessingStage = "INGESTING"
	StageTranscriptionPending       ProcessingStage = "TRANSCRIPTION_PENDING"
	StageTranscriptionInProgress    ProcessingStage = "TRANSCRIPTION_IN_PROGRESS"
	StageOcrPending                 ProcessingStage = "OCR_PENDING"
	StageOcrInProgress              ProcessingStage = "OCR_IN_PROGRESS"
	StageStructurePending           ProcessingStage = "STRUCTURE_PENDING"
	StageGeneratingStructure        ProcessingStage = "GENERATING_STRUCTURE"
	StageVisualsPending             ProcessingStage = "VISUALS_PENDING"
	StageCreatingVisualPlaceholders ProcessingStage = "CREATING_VISUAL_PLACEHOLDERS"
	StageGeneratingVisuals          ProcessingStage = "GENERATING_VISUALS"
	StageAssemblyPending            ProcessingStage = "ASSEMBLY_PENDING"
	StageAssembling                 ProcessingStage = "ASSEMBLING"
	StageCompleted                  ProcessingStage = "COMPLETED"
)

// stageTransitions lists the legal successors of every stage. In-progress stages
// may transition to themselves so a redelivered job can re-claim its own work.
var stageTransitions = map[ProcessingStage][]ProcessingStage{
	StageQueued:                     {StageIngesting},
	StageIngesting:                  {StageIngesting, StageTranscriptionPending, StageOcrPending, StageStructurePending},
	StageTranscriptionPending:       {StageTranscriptionInProgress},
	StageTranscriptionInProgress:    {StageTranscriptionInProgress, StageStructurePending},
	StageOcrPending:                 {StageOcrInProgress},
	StageOcrInProgress:              {StageOcrInProgress, StageStructurePending},
	StageStructurePending:           {StageGeneratingStructure},
	StageGeneratingStructure:        {StageGeneratingStructure, StageVisualsPending},
	StageVisualsPending:             {StageCreatingVisualPlaceholders},
	StageCreatingVisualPlaceholders: {StageCreatingVisualPlaceholders, StageGeneratingVisuals, StageAssemblyPending},
	StageGeneratingVisuals:          {StageAssemblyPending},
	StageAssemblyPending:            {StageAssembling},
	StageAssembling:                 {StageAssembling, StageCompleted},
	StageCompleted:                  {},
}

// AllStages returns every known stage in pipeline order.
func AllStages() []ProcessingStage {
	return []ProcessingStage{
		StageQueued,
		StageIngesting,
		StageTranscriptionPending,
		StageTranscriptionInProgress,
		StageOcrPending,
		StageOcrInProgress,
		StageStructurePending,
		StageGeneratingStructure,
		StageVisualsPending,
		StageCreatingVisualPlaceholders,
		StageGeneratingVisuals,
		StageAssemblyPending,
		StageAssembling,
		StageCompleted,
	}
}

func ParseStage(label string) (ProcessingStage, error) {
	stage := ProcessingStage(label)
	if _, ok := stageTransitions[stage]; !ok {
		return "", fmt.Errorf("unknown processing stage %q", label)
	}
	return stage, nil
}

func (s ProcessingStage) String() string {
	return string(s)
}

func (s ProcessingStage) IsValid() bool {
	_, ok := stageTransitions[s]
	return ok
}

func (s ProcessingStage) CanTransitionTo(next ProcessingStage) bool {
	for _, candidate := range stageTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Predecessors returns every stage from which target may be entered.
func Predecessors(target ProcessingStage) []ProcessingStage {
	var from []ProcessingStage
	for _, stage := range AllStages() {
		if stage.CanTransitionTo(target) {
			from = append(from, stage)
		}
	}
	return from
}

// Transition is a validated stage change. It can only be built through
// NewTransition, so an illegal edge is rejected before any row is touched.
type Transition struct {
	from []ProcessingStage
	to   ProcessingStage
}

func NewTransition(to ProcessingStage, from ...ProcessingStage) (Transition, error) {
	if !to.IsValid() {
		return Transition{}, fmt.Errorf("unknown target stage %q", to)
	}
	if len(from) == 0 {
		return Transition{}, fmt.Errorf("transition to %s needs at least one source stage", to)
	}
	for _, f := range from {
		if !f.CanTransitionTo(to) {
			return Transition{}, fmt.Errorf("illegal stage transition %s -> %s", f, to)
		}
	}
	return Transition{from: from, to: to}, nil
}

// MustTransition is NewTransition for package-level tables built from constants.
func MustTransition(to ProcessingStage, from ...ProcessingStage) Transition {
	t, err := NewTransition(to, from...)
	if err != nil {
		panic(err)
	}
	return t
}

// EnterTransition claims target from any of its legal predecessors.
func EnterTransition(target ProcessingStage) Transition {
	return MustTransition(target, Predecessors(target)...)
}

func (t Transition) From() []ProcessingStage {
	out := make([]ProcessingStage, len(t.from))
	copy(out, t.from)
	return out
}

func (t Transition) To() ProcessingStage {
	return t.to
}

func (t Transition) Allows(current ProcessingStage) bool {
	for _, f := range t.from {
		if f == current {
			return true
		}
	}
	return false
}
