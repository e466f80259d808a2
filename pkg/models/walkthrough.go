package models

// WalkthroughKind identifies a timed demo.
type WalkthroughKind string

const (
	WalkthroughDemo  WalkthroughKind = "demo"
	WalkthroughGuide WalkthroughKind = "guide"
)

// WalkthroughState is a read-only snapshot of a timed walkthrough.
type WalkthroughState struct {
	ID           string          `json:"id"`
	Kind         WalkthroughKind `json:"kind"`
	CurrentIndex int             `json:"current_index"`
	TotalSteps   int             `json:"total_steps"`
	StepTitle    string          `json:"step_title,omitempty"`
	Progress     float64         `json:"progress_within_step"`
	Percent      float64         `json:"percent"`
	Running      bool            `json:"running"`
	Starting     bool            `json:"starting"`
	Finished     bool            `json:"finished"`
}

// WalkthroughDefinition lists the step titles of a timed walkthrough.
type WalkthroughDefinition struct {
	Kind   WalkthroughKind
	Titles []string
}
