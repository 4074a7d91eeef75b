package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/amoisekai/engine/internal/orchestrator"
	"github.com/amoisekai/engine/internal/services/events"
	"github.com/amoisekai/engine/internal/services/queue"
	queuePkg "github.com/amoisekai/engine/pkg/queue"
	"github.com/amoisekai/engine/pkg/story"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// maxScenes bounds a finish step.
const maxScenes = 12

// Runner plays test suites through the request queue and a running worker.
type Runner struct {
	Requests          *queue.RequestQueue
	StoryEvents       *queue.StoryEventQueue
	Events            *events.Broadcaster
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(requests *queue.RequestQueue, storyEvents *queue.StoryEventQueue, b *events.Broadcaster) *Runner {
	return &Runner{
		Requests:          requests,
		StoryEvents:       storyEvents,
		Events:            b,
		Timeout:           RequestTimeout,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a YAML file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// playState tracks where a playthrough is between steps.
type playState struct {
	userID    string
	storyID   string
	chapterID string
	nextScene int
	offered   []story.Choice
}

// outcome is what a step produced, flattened for expectation checks.
type outcome struct {
	chapterNumber int
	sceneNumber   int
	totalScenes   int
	isChapterEnd  bool
	choices       int
	prose         string
	combat        bool
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:     TestJob{Name: suite.Name, Suite: suite},
		Results: make([]TestResult, 0, len(suite.Steps)+1),
	}
	ps := &playState{userID: "it-" + uuid.NewString()}

	startResult := r.startStory(ctx, ps, suite)
	result.Results = append(result.Results, startResult)
	if startResult.Error != nil {
		result.Error = fmt.Errorf("failed to start story: %w", startResult.Error)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.StoryID = ps.storyID

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), stepName(step))
		stepResult := r.runStep(ctx, ps, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), stepName(step), stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, stepName(step), stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), stepName(step), stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func stepName(s TestStep) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind
}

func (r *Runner) startStory(ctx context.Context, ps *playState, suite TestSuite) TestResult {
	begin := time.Now()
	res := TestResult{StepName: "start_story"}

	req := queuePkg.NewRequest(queuePkg.RequestTypeStartStory, ps.userID, "")
	req.Tone = suite.Tone
	req.ProtagonistName = suite.ProtagonistName
	req.Backstory = suite.Backstory
	req.PreferenceTags = suite.PreferenceTags
	res.RequestID = req.RequestID

	data, err := Submit(ctx, r.Requests, r.Events, req, r.Timeout)
	if err != nil {
		res.Error = err
		res.Duration = time.Since(begin)
		return res
	}
	var (
		st story.Story
		ch story.Chapter
	)
	if err := Decode(data, "story", &st); err != nil {
		res.Error = err
	} else if err := Decode(data, "chapter", &ch); err != nil {
		res.Error = err
	}
	if res.Error == nil {
		ps.storyID = st.ID
		ps.chapterID = ch.ID
		ps.offered = ch.Choices
		res.Prose = ch.Prose
		res.Error = checkExpectations(suite.Start, outcome{
			chapterNumber: ch.ChapterNumber,
			totalScenes:   ch.TotalScenes,
			isChapterEnd:  ch.Completed,
			choices:       len(ch.Choices),
			prose:         ch.Prose,
		}, nil)
	}
	res.Success = res.Error == nil
	res.Duration = time.Since(begin)
	return res
}

func (r *Runner) runStep(ctx context.Context, ps *playState, step TestStep) TestResult {
	begin := time.Now()
	res := TestResult{StepName: stepName(step)}

	var (
		out outcome
		err error
	)
	switch step.Kind {
	case StepPlan:
		out, err = r.plan(ctx, ps, step, &res)
	case StepScene:
		out, err = r.scene(ctx, ps, step, &res)
	case StepFinish:
		for range maxScenes {
			if out, err = r.scene(ctx, ps, step, &res); err != nil || out.isChapterEnd {
				break
			}
			// Later scenes follow the first offered choice.
			step.Choice, step.SceneNumber = 1, 0
		}
		if err == nil && !out.isChapterEnd {
			err = fmt.Errorf("chapter did not end within %d scenes", maxScenes)
		}
	case StepEvent:
		err = r.StoryEvents.Enqueue(ctx, ps.storyID, step.Event)
	default:
		err = fmt.Errorf("unknown step kind %q", step.Kind)
	}

	res.Error = checkExpectations(step.Expect, out, err)
	res.Prose = out.prose
	res.Success = res.Error == nil
	res.Duration = time.Since(begin)
	return res
}

func (ps *playState) choiceID(n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	if n < 1 || n > len(ps.offered) {
		return "", fmt.Errorf("choice %d out of %d offered", n, len(ps.offered))
	}
	return ps.offered[n-1].ID, nil
}

func (r *Runner) plan(ctx context.Context, ps *playState, step TestStep, res *TestResult) (outcome, error) {
	choice, err := ps.choiceID(step.Choice)
	if err != nil {
		return outcome{}, err
	}
	req := queuePkg.NewRequest(queuePkg.RequestTypeChapterPlan, ps.userID, ps.storyID)
	req.ChoiceID = choice
	req.FreeInput = step.FreeInput
	res.RequestID = req.RequestID

	data, err := Submit(ctx, r.Requests, r.Events, req, r.Timeout)
	if err != nil {
		return outcome{}, err
	}
	var plan orchestrator.ChapterPlanResult
	if err := Decode(data, "plan", &plan); err != nil {
		return outcome{}, err
	}
	ps.chapterID = plan.ChapterID
	ps.nextScene = 1
	ps.offered = nil
	return outcome{chapterNumber: plan.ChapterNumber, totalScenes: plan.TotalScenes}, nil
}

func (r *Runner) scene(ctx context.Context, ps *playState, step TestStep, res *TestResult) (outcome, error) {
	choice, err := ps.choiceID(step.Choice)
	if err != nil {
		return outcome{}, err
	}
	n := ps.nextScene
	if step.SceneNumber != 0 {
		n = step.SceneNumber
	}
	req := queuePkg.NewRequest(queuePkg.RequestTypeScene, ps.userID, ps.storyID)
	req.ChapterID = ps.chapterID
	req.SceneNumber = n
	req.ChoiceID = choice
	req.FreeInput = step.FreeInput
	req.CombatDecisions = step.Decisions
	res.RequestID = req.RequestID

	data, err := Submit(ctx, r.Requests, r.Events, req, r.Timeout)
	if err != nil {
		return outcome{}, err
	}
	var sr orchestrator.SingleSceneResult
	if err := Decode(data, "scene", &sr); err != nil {
		return outcome{}, err
	}
	ps.nextScene = sr.SceneNumber + 1
	out := outcome{
		sceneNumber:  sr.SceneNumber,
		totalScenes:  sr.TotalScenes,
		isChapterEnd: sr.IsChapterEnd,
		combat:       sr.CombatData != nil,
	}
	if sr.Scene != nil {
		ps.offered = sr.Scene.Choices
		out.choices = len(sr.Scene.Choices)
		out.prose = sr.Scene.Prose
	}
	return out, nil
}

// checkExpectations validates the outcome of a step. err is the step's own
// error, which is only acceptable when the step expects one.
func checkExpectations(exp Expect, out outcome, err error) error {
	if exp.ErrorContains != "" {
		if err == nil {
			return fmt.Errorf("expected an error containing %q, got success", exp.ErrorContains)
		}
		var failed *RequestFailedError
		msg := err.Error()
		if errors.As(err, &failed) {
			msg = failed.Message
		}
		if !strings.Contains(strings.ToLower(msg), strings.ToLower(exp.ErrorContains)) {
			return fmt.Errorf("expected an error containing %q, got %q", exp.ErrorContains, msg)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if exp.ChapterNumber != nil && out.chapterNumber != *exp.ChapterNumber {
		return fmt.Errorf("expected chapter %d, got %d", *exp.ChapterNumber, out.chapterNumber)
	}
	if exp.SceneNumber != nil && out.sceneNumber != *exp.SceneNumber {
		return fmt.Errorf("expected scene %d, got %d", *exp.SceneNumber, out.sceneNumber)
	}
	if exp.TotalScenes != nil && out.totalScenes != *exp.TotalScenes {
		return fmt.Errorf("expected %d scenes, got %d", *exp.TotalScenes, out.totalScenes)
	}
	if exp.IsChapterEnd != nil && out.isChapterEnd != *exp.IsChapterEnd {
		return fmt.Errorf("expected is_chapter_end to be %t, got %t", *exp.IsChapterEnd, out.isChapterEnd)
	}
	if exp.Choices != nil && out.choices != *exp.Choices {
		return fmt.Errorf("expected %d choices, got %d", *exp.Choices, out.choices)
	}
	if exp.Combat != nil && out.combat != *exp.Combat {
		return fmt.Errorf("expected combat to be %t, got %t", *exp.Combat, out.combat)
	}
	if exp.MinProse != nil && len(out.prose) < *exp.MinProse {
		return fmt.Errorf("expected prose length >= %d, got %d", *exp.MinProse, len(out.prose))
	}

	lower := strings.ToLower(out.prose)
	for _, want := range exp.ProseContains {
		if !strings.Contains(lower, strings.ToLower(want)) {
			return fmt.Errorf("expected prose to contain '%s', but it didn't", want)
		}
	}
	if exp.ProseRegex != "" {
		matched, err := regexp.MatchString(exp.ProseRegex, out.prose)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("prose didn't match regex pattern: %s", exp.ProseRegex)
		}
	}
	return nil
}
