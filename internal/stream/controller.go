package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/szaher/meemo/internal/curriculum"
	"github.com/szaher/meemo/internal/session"
	"github.com/szaher/meemo/internal/slide"
	"github.com/szaher/meemo/internal/telemetry"
	"github.com/szaher/meemo/internal/tutor"
)

// TurnResult is the terminal summary of one turn.
type TurnResult struct {
	SessionID   string        `json:"session_id"`
	Suspended   bool          `json:"suspended"`
	Prompt      string        `json:"prompt,omitempty"`
	InterruptID string        `json:"interrupt_id,omitempty"`
	Message     string        `json:"message,omitempty"`
	Stage       tutor.Stage   `json:"stage"`
	Slide       *slide.Slide  `json:"slide,omitempty"`
	Summary     tutor.Summary `json:"summary"`
}

// Controller drives turns through the engine with per-session
// serialization and commit-per-node persistence.
type Controller struct {
	engine  *tutor.Engine
	store   session.Store
	courses *curriculum.Provider
	locker  *session.Locker
	metrics *telemetry.Metrics
	logger  *slog.Logger
	active  atomic.Int64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a session controller.
func NewController(engine *tutor.Engine, store session.Store, courses *curriculum.Provider, opts ...ControllerOption) *Controller {
	c := &Controller{
		engine:  engine,
		store:   store,
		courses: courses,
		locker:  session.NewLocker(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// emitterSink adapts an Emitter to the engine's progress interface.
type emitterSink struct {
	emitter   Emitter
	sessionID string
	metrics   *telemetry.Metrics
}

func (s *emitterSink) NodeStart(node string) {
	s.emitter.Emit(New(NodeStart, s.sessionID).WithData("node", node))
}

func (s *emitterSink) Token(text string) {
	s.emitter.Emit(New(Token, s.sessionID).WithData("content", text))
}

func (s *emitterSink) StageChange(from, to tutor.Stage) {
	s.emitter.Emit(New(StageChange, s.sessionID).
		WithData("from", string(from)).
		WithData("to", string(to)))
}

func (s *emitterSink) Slide(sl slide.Slide) {
	s.emitter.Emit(New(SlideCreated, s.sessionID).WithData("slide", sl))
	if s.metrics != nil {
		s.metrics.RecordSlide()
	}
}

// SubmitMessage runs one learner utterance as a turn. Events are
// delivered to the emitter in generation order; the TurnResult carries
// the terminal payload. When the session has a pending suspension the
// utterance is treated as its resume answer.
func (c *Controller) SubmitMessage(ctx context.Context, sessionID, utterance string, emitter Emitter) (*TurnResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, tutor.ErrEmptySessionID
	}
	if strings.TrimSpace(utterance) == "" {
		return nil, tutor.ErrEmptyMessage
	}
	return c.runTurn(ctx, sessionID, utterance, emitter, false)
}

// SubmitResumeAnswer answers a pending suspension.
func (c *Controller) SubmitResumeAnswer(ctx context.Context, sessionID, answer string, emitter Emitter) (*TurnResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, tutor.ErrEmptySessionID
	}
	return c.runTurn(ctx, sessionID, answer, emitter, true)
}

func (c *Controller) runTurn(ctx context.Context, sessionID, input string, emitter Emitter, resume bool) (*TurnResult, error) {
	if emitter == nil {
		emitter = NoopEmitter{}
	}

	unlock := c.locker.Lock(sessionID)
	defer unlock()

	st, err := c.loadOrCreate(ctx, sessionID, resume)
	if err != nil {
		return nil, err
	}

	logger := telemetry.SessionLogger(c.logger, ctx, sessionID)
	start := time.Now()
	sink := &emitterSink{emitter: emitter, sessionID: sessionID, metrics: c.metrics}
	commit := func(s *tutor.State) error {
		return c.store.Put(ctx, sessionID, s)
	}

	emitter.Emit(New(TurnStart, sessionID))

	var outcome *tutor.Outcome
	if resume {
		outcome, err = c.engine.Resume(ctx, st, input, sink, commit)
	} else {
		outcome, err = c.engine.RunTurn(ctx, st, input, sink, commit)
	}
	if err != nil {
		c.emitFailure(emitter, sessionID, err)
		c.recordTurn(st.Stage, "error", start)
		logger.Error("turn failed", "error", err)
		return nil, err
	}

	result := &TurnResult{
		SessionID:   sessionID,
		Suspended:   outcome.Suspended,
		Prompt:      outcome.Prompt,
		InterruptID: outcome.InterruptID,
		Message:     outcome.Message,
		Stage:       outcome.Stage,
		Slide:       st.CurrentSlide(),
		Summary:     st.Summary(),
	}

	if outcome.Suspended {
		emitter.Emit(New(Suspended, sessionID).
			WithData("prompt", outcome.Prompt).
			WithData("interrupt_id", outcome.InterruptID))
		if c.metrics != nil && st.Pending != nil {
			c.metrics.RecordSuspension(st.Pending.Kind)
		}
		c.recordTurn(outcome.Stage, "suspended", start)
	} else {
		emitter.Emit(New(ResponseComplete, sessionID).
			WithData("message", outcome.Message).
			WithData("stage", string(outcome.Stage)).
			WithData("slide", result.Slide).
			WithData("summary", result.Summary))
		c.recordTurn(outcome.Stage, "ok", start)
	}
	emitter.Emit(New(TurnEnd, sessionID))

	logger.Info("turn complete", "stage", outcome.Stage, "suspended", outcome.Suspended,
		"duration", time.Since(start))
	return result, nil
}

// Create provisions a fresh session from the current curriculum and
// returns its id.
func (c *Controller) Create(ctx context.Context) (string, error) {
	id := session.NewID()
	cur := c.courses.Current()
	st := tutor.NewState(cur.Course, cur.Topics)
	if err := c.store.Put(ctx, id, st); err != nil {
		return "", err
	}
	c.trackCreated()
	c.logger.Info("session created", "session", id, "course", cur.Course)
	return id, nil
}

func (c *Controller) trackCreated() {
	n := c.active.Add(1)
	if c.metrics != nil {
		c.metrics.SetActiveSessions(int(n))
	}
}

// loadOrCreate fetches the session state, creating a fresh one from
// the current curriculum on first contact. Resumes never create.
func (c *Controller) loadOrCreate(ctx context.Context, sessionID string, resume bool) (*tutor.State, error) {
	st, err := c.store.Get(ctx, sessionID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}
	if resume {
		return nil, tutor.ErrNoPendingSuspension
	}

	cur := c.courses.Current()
	st = tutor.NewState(cur.Course, cur.Topics)
	if err := c.store.Put(ctx, sessionID, st); err != nil {
		return nil, err
	}

	c.trackCreated()
	c.logger.Info("session created", "session", sessionID, "course", cur.Course)
	return st, nil
}

func (c *Controller) emitFailure(emitter Emitter, sessionID string, err error) {
	msg := tutor.FriendlyError(err)
	var nf *tutor.NodeFailure
	if errors.As(err, &nf) {
		msg = nf.Message
	}
	emitter.Emit(New(ErrorEvent, sessionID).WithData("message", msg))
	emitter.Emit(New(TurnEnd, sessionID))
}

func (c *Controller) recordTurn(stage tutor.Stage, status string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordTurn(string(stage), status, time.Since(start))
	}
}

// Summary returns the progress view for a session.
func (c *Controller) Summary(ctx context.Context, sessionID string) (tutor.Summary, error) {
	st, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return tutor.Summary{}, err
	}
	return st.Summary(), nil
}

// Slides returns all slides built for a session.
func (c *Controller) Slides(ctx context.Context, sessionID string) ([]slide.Slide, error) {
	st, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return st.Slides, nil
}

// Navigate moves the session's slide pointer one step and returns the
// slide now in view. At either end it returns the unchanged current
// slide.
func (c *Controller) Navigate(ctx context.Context, sessionID, direction string) (*slide.Slide, error) {
	if direction != "next" && direction != "previous" {
		return nil, tutor.ErrInvalidDirection
	}

	unlock := c.locker.Lock(sessionID)
	defer unlock()

	st, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if moved := st.NavigateSlide(direction); moved != nil {
		if err := c.store.Put(ctx, sessionID, st); err != nil {
			return nil, err
		}
		return moved, nil
	}
	return st.CurrentSlide(), nil
}

// Clear deletes a session.
func (c *Controller) Clear(ctx context.Context, sessionID string) error {
	unlock := c.locker.Lock(sessionID)
	defer unlock()

	if err := c.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	n := c.active.Add(-1)
	if n < 0 {
		c.active.Store(0)
		n = 0
	}
	if c.metrics != nil {
		c.metrics.SetActiveSessions(int(n))
	}
	return nil
}
