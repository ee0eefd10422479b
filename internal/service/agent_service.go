package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"redline-be/internal/dto"
	"redline-be/internal/pkg/logger"
	"redline-be/internal/session"
	"redline-be/internal/tracer"
	"redline-be/pkg/agent"
	"redline-be/pkg/doctree"
	"redline-be/pkg/lexical"
	"redline-be/pkg/llm"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidDocumentId = errors.New("document_id is not a valid id")
	ErrAgentFailed       = errors.New("agent failed to answer")
)

// SessionProvider hands out the open session of a document.
type SessionProvider interface {
	Session(ctx context.Context, id uuid.UUID) (*session.Session, error)
}

// FrameSender writes one JSON frame to the agent socket.
type FrameSender func(v interface{}) error

type IAgentService interface {
	Handle(ctx context.Context, userId string, in agent.Inbound, send FrameSender) error
}

type agentService struct {
	sessions    SessionProvider
	llmProvider llm.LLMProvider
	model       string
	temperature float64
	publisher   IPublisherService
	logger      logger.ILogger
}

func NewAgentService(
	sessions SessionProvider,
	llmProvider llm.LLMProvider,
	model string,
	temperature float64,
	publisher IPublisherService,
	log logger.ILogger,
) IAgentService {
	return &agentService{
		sessions:    sessions,
		llmProvider: llmProvider,
		model:       model,
		temperature: temperature,
		publisher:   publisher,
		logger:      log,
	}
}

// Handle answers one inbound message. The answer streams as message frames
// and ends with a final frame carrying the proposal and its diff preview.
// Hello messages only announce the document and get no answer.
func (s *agentService) Handle(ctx context.Context, userId string, in agent.Inbound, send FrameSender) error {
	if in.IsHello() {
		s.logger.Debug("AgentService", "Hello received", map[string]interface{}{"document_id": in.DocumentID, "user_id": userId})
		return nil
	}

	docId, err := uuid.Parse(in.DocumentID)
	if err != nil {
		return ErrInvalidDocumentId
	}

	ctx, span := tracer.Tracer("agent").Start(ctx, "agent.answer", trace.WithAttributes(
		attribute.String("document.id", in.DocumentID),
		attribute.String("llm.provider", s.llmProvider.Name()),
		attribute.Bool("agent.streaming", in.Streaming()),
	))
	defer span.End()

	sess, err := s.sessions.Session(ctx, docId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session")
		return err
	}

	documentText := in.DocumentText
	hasDocumentContent := documentText != ""
	if !hasDocumentContent {
		documentText = sess.DocumentText()
	}
	markText := sess.ActiveMarkText()
	if len(in.ActiveMarkIDs) > 0 {
		markText = sess.MarkText(in.ActiveMarkIDs[0])
	}
	msgs := agent.AddMarkText(agent.BuildMessages(in, documentText), markText)

	askedAt := time.Now()
	if err := send(agent.NewProgressFrame(0)); err != nil {
		return err
	}

	parser := agent.NewStreamParser(func(text string) error {
		if !in.Streaming() {
			return nil
		}
		return send(agent.NewStreamFrame(text, in.ThreadID))
	})

	opts := []llm.Option{llm.WithTemperature(s.temperature)}
	if in.Streaming() {
		err = s.llmProvider.ChatStream(ctx, msgs, parser.Write, opts...)
	} else {
		var answer string
		if answer, err = s.llmProvider.Chat(ctx, msgs, opts...); err == nil {
			err = parser.Write(answer)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm")
		s.logger.Error("AgentService", "LLM call failed", map[string]interface{}{"document_id": docId, "error": err})
		return fmt.Errorf("%w: %w", ErrAgentFailed, err)
	}

	res, err := parser.Close()
	if err != nil {
		return err
	}

	final := agent.NewFinalFrame(res, in.ThreadID)
	if !in.Streaming() {
		final.Message = res.Message
	}
	if res.Changes != "" {
		final.Diff = s.diffPreview(sess, res.Changes)
	}
	span.SetAttributes(attribute.Bool("agent.proposal", res.Changes != ""))

	if err := send(agent.NewProgressFrame(100)); err != nil {
		return err
	}
	if err := send(final); err != nil {
		return err
	}

	s.queueExchange(ctx, dto.AgentExchangeMessage{
		DocumentId:         docId,
		UserId:             userId,
		ThreadId:           in.ThreadID,
		Prompt:             in.Message,
		Answer:             res.Message,
		Justification:      res.Justification,
		Changes:            res.Changes,
		Model:              s.model,
		HasDocumentContent: hasDocumentContent,
		AskedAt:            askedAt,
		AnsweredAt:         time.Now(),
	})
	return nil
}

// diffPreview renders the proposal against the current text. A proposal
// that does not parse gets no preview; the client still receives the raw
// changes.
func (s *agentService) diffPreview(sess *session.Session, raw string) string {
	changes, err := agent.ParseChanges(raw)
	if err != nil {
		s.logger.Warn("AgentService", "Proposal does not parse", map[string]interface{}{"document_id": sess.ID, "error": err})
		return ""
	}

	var parts []lexical.DiffPart
	_ = sess.Tree().Read(func(tx *doctree.Tx) error {
		parts = agent.DiffParts(tx, changes)
		return nil
	})
	diff, err := lexical.BuildDiffState(parts)
	if err != nil {
		s.logger.Warn("AgentService", "Failed to build diff preview", map[string]interface{}{"document_id": sess.ID, "error": err})
		return ""
	}
	return diff
}

func (s *agentService) queueExchange(ctx context.Context, exchange dto.AgentExchangeMessage) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(exchange)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.logger.Warn("AgentService", "Failed to queue agent exchange", map[string]interface{}{"document_id": exchange.DocumentId, "error": err})
	}
}
