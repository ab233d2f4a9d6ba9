package coach

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/ashureev/horizon-coach/internal/domain"
	"github.com/ashureev/horizon-coach/internal/friction"
	"github.com/ashureev/horizon-coach/internal/llm"
	"github.com/ashureev/horizon-coach/internal/session"
	"github.com/ashureev/horizon-coach/internal/telemetry"
)

// TurnRequest is one learner message.
type TurnRequest struct {
	SessionID        string
	Text             string
	Context          string
	Metadata         Metadata
	ExplicitGuidance bool
}

// ProcessTurn handles one learner turn and streams the coach's reply.
//
// The session lock is held from the first iteration until the sequence
// ends, so a slow stream delays other calls on the same session only. Errors
// raised before the first token (validation, a pending microcheck, a failed
// load or save) are yielded alone. An upstream failure may follow tokens.
//
// The learner turn is persisted before the model is called. If the consumer
// stops iterating or ctx is cancelled the model call is aborted and no
// assistant turn is recorded.
func (s *Service) ProcessTurn(ctx context.Context, req TurnRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if strings.TrimSpace(req.Text) == "" {
			yield("", ErrEmptyMessage)
			return
		}

		err := s.withSession(ctx, req.SessionID, true, func(sess *session.Session) error {
			if sess.Pending != nil {
				return &PendingMicrocheckError{MicrocheckID: sess.Pending.ID}
			}
			return s.runTurn(ctx, sess, req, yield)
		})
		if err != nil && !errors.Is(err, errConsumerGone) {
			yield("", err)
		}
	}
}

// errConsumerGone marks a turn whose consumer stopped iterating.
var errConsumerGone = errors.New("stream consumer stopped")

func (s *Service) runTurn(ctx context.Context, sess *session.Session, req TurnRequest, yield func(string, error) bool) error {
	start := s.now()

	cls := s.classifier.Classify(ctx, req.Text, sess.Turns)
	tp := s.assigner.Assign(sess.Topics, req.Text)
	next, useGuidance := s.gate.Evaluate(sess.Friction, s.gate.Qualifies(req.Text, cls.Label), req.ExplicitGuidance)

	mode := domain.ModeFriction
	if useGuidance {
		mode = domain.ModeGuidance
	}
	// The prompt choice is per turn; the stored state reverts to friction.
	sess.Friction = friction.EndTurn(next)
	sess.LastPrompt = mode

	prompt := BuildPrompt(req.Text, req.Context, req.Metadata)
	messages := modelMessages(mode, sess.Turns, prompt)

	sess.Append(domain.Turn{
		Role:           domain.RoleLearner,
		Content:        prompt,
		DisplayText:    req.Text,
		CreatedAt:      start,
		Classification: &cls,
		TopicID:        tp.ID,
	})
	if err := s.persist(ctx, sess); err != nil {
		return err
	}

	// A guidance turn consumed a full meter; report the attempts that earned it.
	attempts := sess.Friction.Progress
	if useGuidance {
		attempts = sess.Friction.Threshold
	}
	event := telemetry.Event{
		Timestamp:            start,
		SessionID:            sess.ID,
		Service:              serviceName,
		Prompt:               string(mode),
		GuidanceUsed:         useGuidance,
		FrictionAttempts:     attempts,
		FrictionThreshold:    sess.Friction.Threshold,
		ClassificationLabel:  cls.Label,
		ClassificationSource: cls.Source,
		TopicID:              tp.ID,
	}

	reply, usage, streamErr := s.stream(ctx, messages, yield)

	event.LatencyMs = float64(s.now().Sub(start).Microseconds()) / 1000
	event.ResponseChars = len(reply)
	if usage != nil {
		event.InputTokens = usage.InputTokens
		event.OutputTokens = usage.OutputTokens
		event.TotalTokens = usage.TotalTokens
		event.TotalCost = float64(usage.InputTokens)*s.opts.PriceInputPer1K/1000 +
			float64(usage.OutputTokens)*s.opts.PriceOutputPer1K/1000
	}

	if streamErr != nil {
		event.Outcome = telemetry.OutcomeFailed
		if errors.Is(streamErr, errConsumerGone) || ctx.Err() != nil {
			event.Outcome = telemetry.OutcomeCancelled
			s.logger.Info("turn cancelled before completion", "session_id", sess.ID, "partial_chars", len(reply))
		} else {
			event.Error = streamErr.Error()
			s.logger.Warn("model stream failed", "session_id", sess.ID, "error", streamErr)
		}
		s.telemetry.Record(event)
		return streamErr
	}

	sess.Append(domain.Turn{Role: domain.RoleAssistant, Content: reply, CreatedAt: s.now()})
	if s.opts.MicrocheckEnabled {
		sess.TurnsSinceMicrocheck++
		if sess.Pending == nil && s.scheduler.FrequencyDue(sess.TurnsSinceMicrocheck) {
			sess.Pending = s.scheduler.Build(sess.Topics)
			sess.TurnsSinceMicrocheck = 0
			event.MicrocheckCreated = true
			s.logger.Info("microcheck created", "session_id", sess.ID, "microcheck_id", sess.Pending.ID)
		}
	}
	sess.LastActivity = s.now()

	// The reply is already delivered; save it even if the caller just left.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err := s.persist(saveCtx, sess)
	event.Outcome = telemetry.OutcomeCompleted
	if err != nil {
		event.Outcome = telemetry.OutcomeFailed
		event.Error = err.Error()
	}
	s.telemetry.Record(event)
	return err
}

// stream relays model chunks to yield and returns the full reply.
func (s *Service) stream(ctx context.Context, messages []llm.Message, yield func(string, error) bool) (string, *llm.Usage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		buf   strings.Builder
		usage *llm.Usage
	)
	for chunk, err := range s.model.Stream(ctx, messages) {
		if err != nil {
			if ctx.Err() != nil {
				return buf.String(), usage, ctx.Err()
			}
			return buf.String(), usage, &UpstreamError{Err: err}
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk.Text == "" {
			continue
		}
		buf.WriteString(chunk.Text)
		if !yield(chunk.Text, nil) {
			return buf.String(), usage, errConsumerGone
		}
	}
	if err := ctx.Err(); err != nil {
		return buf.String(), usage, err
	}
	return buf.String(), usage, nil
}
