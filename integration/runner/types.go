package runner

import (
	"time"
)

// Step kinds.
const (
	StepPlan   = "plan"   // plan the next chapter
	StepScene  = "scene"  // write the next scene of the planned chapter
	StepFinish = "finish" // write scenes until the chapter ends
	StepEvent  = "event"  // queue a story event for the next plan
)

// TestSuite defines a complete playthrough.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name            string     `yaml:"name"`
	Tone            string     `yaml:"tone,omitempty"`
	ProtagonistName string     `yaml:"protagonist_name,omitempty"`
	Backstory       string     `yaml:"backstory,omitempty"`
	PreferenceTags  []string   `yaml:"preference_tags,omitempty"`
	Start           Expect     `yaml:"start,omitempty"` // checked against the start_story result
	Steps           []TestStep `yaml:"steps,omitempty"`
	Cases           []string   `yaml:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one request and its expected outcome.
type TestStep struct {
	Name string `yaml:"name,omitempty"`
	Kind string `yaml:"kind"`
	// Choice is a 1-based index into the choices last offered. Zero picks
	// none.
	Choice    int      `yaml:"choice,omitempty"`
	FreeInput string   `yaml:"free_input,omitempty"`
	Decisions []string `yaml:"decisions,omitempty"`
	// SceneNumber overrides the next scene number, to exercise ordering.
	SceneNumber int    `yaml:"scene_number,omitempty"`
	Event       string `yaml:"event,omitempty"`
	Expect      Expect `yaml:"expect,omitempty"`
}

// Expect defines what to check after a step.
type Expect struct {
	ChapterNumber *int  `yaml:"chapter_number,omitempty"`
	SceneNumber   *int  `yaml:"scene_number,omitempty"`
	TotalScenes   *int  `yaml:"total_scenes,omitempty"`
	IsChapterEnd  *bool `yaml:"is_chapter_end,omitempty"`
	Choices       *int  `yaml:"choices,omitempty"`
	MinProse      *int  `yaml:"min_prose,omitempty"`
	Combat        *bool `yaml:"combat,omitempty"`

	ProseContains []string `yaml:"prose_contains,omitempty"`
	ProseRegex    string   `yaml:"prose_regex,omitempty"`

	// ErrorContains expects the request to fail with this text.
	ErrorContains string `yaml:"error_contains,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName  string
	RequestID string
	Success   bool
	Error     error
	Duration  time.Duration
	Prose     string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	StoryID  string
}
