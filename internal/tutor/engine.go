package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/szaher/meemo/internal/gen"
	"github.com/szaher/meemo/internal/slide"
)

// StartUtterance is the synthetic first message a caller sends to
// bootstrap a fresh session. It triggers the greeting but is not
// recorded as a learner turn.
const StartUtterance = "(start)"

// maxNodesPerTurn bounds the node loop so a routing mistake can never
// spin a turn forever.
const maxNodesPerTurn = 8

// Sink receives intermediate progress while a turn runs. Implementations
// must be cheap; they are called from the generation hot path.
type Sink interface {
	NodeStart(node string)
	Token(text string)
	StageChange(from, to Stage)
	Slide(s slide.Slide)
}

type nopSink struct{}

func (nopSink) NodeStart(string)         {}
func (nopSink) Token(string)             {}
func (nopSink) StageChange(Stage, Stage) {}
func (nopSink) Slide(slide.Slide)        {}

// NopSink discards all progress events.
func NopSink() Sink { return nopSink{} }

// CommitFunc persists the state at a node boundary. The engine calls it
// after every node so a crash mid-turn loses at most the node in
// flight, never a partially applied one.
type CommitFunc func(st *State) error

// Outcome is the terminal result of one turn.
type Outcome struct {
	// Suspended reports that the turn paused for required input.
	// Prompt and InterruptID are set, and Stage is the transient
	// awaiting_user_input marker.
	Suspended   bool
	Prompt      string
	InterruptID string

	// Message is the full assistant output of the turn. Stage is the
	// stage the session ended the turn at.
	Message string
	Stage   Stage
}

// Engine runs the learning state machine over a session state. It is
// stateless across turns; everything lives in the State.
type Engine struct {
	port   gen.Generator
	slides *slide.Builder
	course string
	policy *RoutingPolicy
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPolicy sets the routing policy.
func WithPolicy(p *RoutingPolicy) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine for the given course.
func NewEngine(port gen.Generator, slides *slide.Builder, course string, opts ...EngineOption) *Engine {
	defaultPolicy, _ := NewRoutingPolicy("", nil, false)
	e := &Engine{
		port:   port,
		slides: slides,
		course: course,
		policy: defaultPolicy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// turnContext is per-turn bookkeeping shared between the node loop and
// the router.
type turnContext struct {
	sink       Sink
	utterance  string
	entryStage Stage
	msgStart   int

	questionChecked bool
	isQuestion      bool
	ranQA           bool
	ranTeaching     bool
}

// RunTurn drives one learner utterance through the state machine. When
// the session has a pending suspension the utterance is treated as its
// answer.
func (e *Engine) RunTurn(ctx context.Context, st *State, utterance string, sink Sink, commit CommitFunc) (*Outcome, error) {
	if st.Pending != nil {
		return e.Resume(ctx, st, utterance, sink, commit)
	}
	if strings.TrimSpace(utterance) == "" {
		return nil, ErrEmptyMessage
	}
	if sink == nil {
		sink = NopSink()
	}

	bootstrap := utterance == StartUtterance && !st.Greeted
	if !bootstrap {
		st.AppendUser(utterance)
	}

	tc := &turnContext{
		sink:       sink,
		entryStage: st.Stage,
		msgStart:   len(st.Messages),
	}
	if !bootstrap {
		tc.utterance = utterance
	}
	return e.runLoop(ctx, st, tc, commit)
}

// Resume supplies the answer to a pending suspension and continues the
// turn from the suspended node. A second suspension may immediately
// follow, so callers must loop.
func (e *Engine) Resume(ctx context.Context, st *State, answer string, sink Sink, commit CommitFunc) (*Outcome, error) {
	if st.Pending == nil {
		return nil, ErrNoPendingSuspension
	}
	if sink == nil {
		sink = NopSink()
	}
	pending := *st.Pending

	tc := &turnContext{
		sink:       sink,
		entryStage: st.Stage,
		msgStart:   len(st.Messages),
	}

	switch pending.Kind {
	case AwaitingName:
		if strings.TrimSpace(answer) == "" {
			return e.reRequest(st, tc, pending.Kind,
				"I didn't catch your name. What should I call you? 😊", commit)
		}
		st.AppendUser(answer)
		tc.msgStart = len(st.Messages)
		name := e.extractName(ctx, answer)
		if name == "" {
			return e.reRequest(st, tc, pending.Kind,
				"I didn't catch your name. What should I call you? 😊", commit)
		}
		st.UserName = name
		st.Pending = nil

	case AwaitingGoal:
		if strings.TrimSpace(answer) != "" {
			st.AppendUser(answer)
			tc.msgStart = len(st.Messages)
		}
		st.Goal = e.extractGoal(ctx, answer)
		st.GoalSet = true
		st.Pending = nil

	default:
		return nil, fmt.Errorf("unknown suspension kind %q", pending.Kind)
	}

	return e.runLoop(ctx, st, tc, commit)
}

// runLoop is the shared entry-route + node loop.
func (e *Engine) runLoop(ctx context.Context, st *State, tc *turnContext, commit CommitFunc) (*Outcome, error) {
	node := e.entryRoute(st)

	for i := 0; i < maxNodesPerTurn; i++ {
		tc.sink.NodeStart(node)
		before := st.Stage

		err := e.runNode(ctx, node, st, tc)
		if errors.Is(err, errSuspended) {
			if cerr := e.commit(st, commit); cerr != nil {
				return nil, cerr
			}
			e.logger.Info("turn suspended", "node", node, "kind", st.Pending.Kind)
			return &Outcome{
				Suspended:   true,
				Prompt:      st.Pending.Prompt,
				InterruptID: st.Pending.ID,
				Stage:       StageAwaitingInput,
			}, nil
		}
		if err != nil {
			return nil, e.failTurn(st, node, err, commit)
		}

		if st.Stage != before {
			tc.sink.StageChange(before, st.Stage)
		}
		if cerr := e.commit(st, commit); cerr != nil {
			return nil, cerr
		}

		next, ok := e.postRoute(ctx, st, tc, node)
		if !ok {
			break
		}
		node = next
	}

	// postRoute may have moved the stage (topic advance, completion)
	// after the last node commit.
	if cerr := e.commit(st, commit); cerr != nil {
		return nil, cerr
	}
	return &Outcome{
		Message: e.turnMessage(st, tc),
		Stage:   st.Stage,
	}, nil
}

func (e *Engine) runNode(ctx context.Context, node string, st *State, tc *turnContext) error {
	switch node {
	case nodeIntroduction:
		return e.runIntroduction(ctx, st, tc)
	case nodeTeaching:
		return e.runTeaching(ctx, st, tc)
	case nodeAssessment:
		return e.runAssessment(ctx, st, tc)
	case nodeEvaluateAnswer:
		return e.runEvaluateAnswer(ctx, st, tc)
	case nodeQuestionAnswering:
		return e.runQuestionAnswering(ctx, st, tc)
	default:
		return fmt.Errorf("unknown node %q", node)
	}
}

// suspend records the pending suspension and signals the loop to stop.
// The prompt has already been streamed; it is also appended to the
// transcript so resume sees a coherent history.
func (e *Engine) suspend(st *State, kind, prompt string) error {
	st.AppendAssistant(prompt)
	st.Pending = &Suspension{
		ID:     ulid.Make().String(),
		Kind:   kind,
		Prompt: prompt,
	}
	return errSuspended
}

// reRequest re-suspends with a static prompt when a resume answer was
// unusable. The original suspension is not considered consumed.
func (e *Engine) reRequest(st *State, tc *turnContext, kind, prompt string, commit CommitFunc) (*Outcome, error) {
	tc.sink.Token(prompt)
	st.AppendAssistant(prompt)
	st.Pending = &Suspension{
		ID:     ulid.Make().String(),
		Kind:   kind,
		Prompt: prompt,
	}
	if cerr := e.commit(st, commit); cerr != nil {
		return nil, cerr
	}
	return &Outcome{
		Suspended:   true,
		Prompt:      prompt,
		InterruptID: st.Pending.ID,
		Stage:       StageAwaitingInput,
	}, nil
}

// failTurn converts a node error into a NodeFailure: the friendly
// message is appended as an assistant turn, evaluation failures are
// escalated past the assessment loop, and the state is committed so
// the session stays consistent.
func (e *Engine) failTurn(st *State, node string, err error, commit CommitFunc) error {
	msgStage := nodeMessageStage(node)
	msg := StageErrorMessage(msgStage)
	st.AppendAssistant(msg)

	if node == nodeEvaluateAnswer {
		st.Stage = StageEvaluationComplete
		st.AssessmentQuestion = ""
		st.AssessmentAttempts = 0
	}

	e.logger.Error("node failed", "node", node, "stage", st.Stage, "error", err)
	if cerr := e.commit(st, commit); cerr != nil {
		e.logger.Error("commit after node failure", "error", cerr)
	}
	return &NodeFailure{Node: node, Stage: st.Stage, Message: msg, Err: err}
}

// nodeMessageStage maps a node to the stage key of its friendly error
// message.
func nodeMessageStage(node string) Stage {
	switch node {
	case nodeIntroduction:
		return StageIntroduction
	case nodeTeaching:
		return StageTeaching
	case nodeAssessment:
		return StageAssessment
	case nodeEvaluateAnswer:
		return StageEvaluationComplete
	case nodeQuestionAnswering:
		return StageQuestionAnswering
	}
	return StageTeaching
}

func (e *Engine) setStage(st *State, tc *turnContext, to Stage) {
	if st.Stage == to {
		return
	}
	from := st.Stage
	st.Stage = to
	tc.sink.StageChange(from, to)
}

func (e *Engine) commit(st *State, commit CommitFunc) error {
	if commit == nil {
		return nil
	}
	st.UpdatedAt = time.Now().UTC()
	if err := commit(st); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

// turnMessage joins the assistant turns appended during this turn into
// the terminal message.
func (e *Engine) turnMessage(st *State, tc *turnContext) string {
	var parts []string
	for _, m := range st.Messages[tc.msgStart:] {
		if m.Role == RoleAssistant {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
