// Package coach orchestrates tutoring sessions: it decides between hints and
// direct guidance, files turns under topics, schedules microchecks, and
// streams model replies while keeping each session's state consistent.
package coach

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/horizon-coach/internal/classifier"
	"github.com/ashureev/horizon-coach/internal/friction"
	"github.com/ashureev/horizon-coach/internal/llm"
	"github.com/ashureev/horizon-coach/internal/microcheck"
	"github.com/ashureev/horizon-coach/internal/session"
	"github.com/ashureev/horizon-coach/internal/store"
	"github.com/ashureev/horizon-coach/internal/telemetry"
	"github.com/ashureev/horizon-coach/internal/topic"
)

const (
	serviceName    = "coach"
	persistTimeout = 10 * time.Second
)

// Options tunes the coaching policy.
type Options struct {
	FrictionThreshold int
	MinWords          int

	MicrocheckEnabled       bool
	MicrocheckFrequency     int
	MicrocheckQuestionCount int
	MicrocheckIdleTimeout   time.Duration

	PriceInputPer1K  float64
	PriceOutputPer1K float64
}

// Deps are the collaborators a Service is constructed with.
type Deps struct {
	Repo       store.Repository
	Model      llm.Streamer
	Classifier classifier.Classifier // defaults to the heuristic classifier
	Telemetry  telemetry.Recorder    // defaults to telemetry.Nop
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string // topic and microcheck ids, defaults to UUIDs
}

// Service is the session orchestrator. Construct one per process with New.
// Operations on one session are strictly ordered; different sessions proceed
// in parallel.
type Service struct {
	repo       store.Repository
	model      llm.Streamer
	classifier classifier.Classifier
	telemetry  telemetry.Recorder
	logger     *slog.Logger
	now        func() time.Time

	opts      Options
	gate      friction.Gate
	assigner  *topic.Assigner
	scheduler *microcheck.Scheduler
	sessions  *registry
}

// New returns a Service.
func New(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	gate := friction.NewGate(opts.FrictionThreshold, opts.MinWords)
	opts.FrictionThreshold, opts.MinWords = gate.Threshold, gate.MinWords
	if deps.Classifier == nil {
		deps.Classifier = classifier.Heuristic{MinWords: gate.MinWords}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.Nop{}
	}

	scheduler := microcheck.NewScheduler(opts.MicrocheckFrequency, opts.MicrocheckQuestionCount, opts.MicrocheckIdleTimeout)
	scheduler.Now = deps.Now
	opts.MicrocheckFrequency, opts.MicrocheckQuestionCount = scheduler.Frequency, scheduler.QuestionCount
	assigner := topic.NewAssigner()
	if deps.NewID != nil {
		scheduler.NewID = deps.NewID
		assigner.NewID = deps.NewID
	}

	return &Service{
		repo:       deps.Repo,
		model:      deps.Model,
		classifier: deps.Classifier,
		telemetry:  deps.Telemetry,
		logger:     deps.Logger,
		now:        deps.Now,
		opts:       opts,
		gate:       gate,
		assigner:   assigner,
		scheduler:  scheduler,
		sessions:   newRegistry(deps.Now),
	}
}

// withSession runs fn while holding the session's lock, hydrating it first.
// When refreshIdle is set the idle-return microcheck trigger runs before fn.
func (s *Service) withSession(ctx context.Context, id string, refreshIdle bool, fn func(*session.Session) error) error {
	if id == "" {
		return ErrMissingSessionID
	}
	e, release, err := s.sessions.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	sess, err := s.hydrate(ctx, e, id)
	if err != nil {
		return err
	}
	if refreshIdle {
		if err := s.refreshIdle(ctx, sess); err != nil {
			return err
		}
	}
	return fn(sess)
}

// hydrate returns the resident session, loading it from the store first if
// needed. A missing record yields a fresh session.
func (s *Service) hydrate(ctx context.Context, e *entry, id string) (*session.Session, error) {
	if e.sess != nil {
		return e.sess, nil
	}
	rec, err := s.repo.LoadSession(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	if rec == nil {
		e.sess = session.New(id, s.gate.Threshold)
		return e.sess, nil
	}
	sess, err := session.FromRecord(rec, s.gate.Threshold)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	e.sess = sess
	return sess, nil
}

// refreshIdle creates a microcheck for a learner returning after the idle
// timeout, persisting it immediately.
func (s *Service) refreshIdle(ctx context.Context, sess *session.Session) error {
	if !s.opts.MicrocheckEnabled || !s.scheduler.IdleDue(sess.LastActivity, s.now(), sess.Pending != nil) {
		return nil
	}
	sess.Pending = s.scheduler.Build(sess.Topics)
	s.logger.Info("idle-return microcheck created", "session_id", sess.ID, "microcheck_id", sess.Pending.ID)
	return s.persist(ctx, sess)
}

// persist writes the snapshot. It never rolls back in-memory state.
func (s *Service) persist(ctx context.Context, sess *session.Session) error {
	if err := s.repo.SaveSession(ctx, sess.Record(s.now())); err != nil {
		s.logger.Error("failed to persist session", "session_id", sess.ID, "error", err)
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// EvictIdle drops in-memory sessions unused for at least ttl.
func (s *Service) EvictIdle(ttl time.Duration) int {
	return s.sessions.evictIdle(ttl)
}

// ResidentSessions reports how many sessions are held in memory.
func (s *Service) ResidentSessions() int {
	return s.sessions.resident()
}
