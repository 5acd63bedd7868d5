// Package chat answers billing questions through a streaming language model.
//
// The model is reached through the Streamer interface. When the last user
// message reads as a pro-rata question the service computes the figures
// itself and hands them to the model, so quoted amounts never come from the
// model's own arithmetic.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telecalc/internal/clock"
	"telecalc/internal/intent"
	"telecalc/internal/logger"
	"telecalc/internal/money"
	"telecalc/internal/proration"
)

const (
	// MaxMessages caps the conversation history accepted in one request.
	MaxMessages = 30

	// MaxRunes caps the length of a single message.
	MaxRunes = 4000
)

var (
	// ErrInvalidConversation is wrapped by every conversation validation error.
	ErrInvalidConversation = errors.New("invalid conversation")

	// ErrUnavailable is returned when no model is configured.
	ErrUnavailable = errors.New("chat is not configured")
)

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a conversation sent by a client. Lang forces the reply language;
// empty means detect it from the last user message.
type Request struct {
	Messages []Message `json:"messages"`
	Lang     string    `json:"lang,omitempty"`
}

// Streamer sends a conversation to a model and reports the reply as it is
// generated. It returns the full reply text.
type Streamer interface {
	Stream(ctx context.Context, messages []Message, onDelta func(string) error) (string, error)
}

// EventType names the events emitted by Reply.
type EventType string

const (
	EventCalculation EventType = "calculation"
	EventDelta       EventType = "delta"
	EventDone        EventType = "done"
	EventError       EventType = "error"
)

// Event is one unit of a streamed reply.
type Event struct {
	Type        EventType    `json:"-"`
	Content     string       `json:"content,omitempty"`
	Calculation *Calculation `json:"calculation,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Calculation is the proration computed from a chat message.
type Calculation struct {
	Intent intent.Intent     `json:"intent"`
	Result *proration.Result `json:"result"`
	Text   string            `json:"text"`
}

// Config holds the billing defaults used for questions that leave them out.
type Config struct {
	AnchorDay int
	VATRate   float64
	DateStyle proration.DateStyle
}

// Service runs chat replies.
type Service struct {
	streamer  Streamer
	cfg       Config
	clock     clock.Clock
	formatter *proration.Formatter
	log       zerolog.Logger
}

// NewService returns a Service. A nil streamer yields a service whose Reply
// always fails with ErrUnavailable.
func NewService(streamer Streamer, cfg Config, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	rate, err := money.RateFromFloat(cfg.VATRate)
	if err != nil {
		rate = decimal.NewFromFloat(money.DefaultVATRate)
	}
	f := proration.NewFormatter(rate)
	if cfg.DateStyle != "" {
		f.DateStyle = cfg.DateStyle
	}
	return &Service{
		streamer:  streamer,
		cfg:       cfg,
		clock:     clk,
		formatter: f,
		log:       logger.WithComponent("chat"),
	}
}

// Available reports whether a model is configured.
func (s *Service) Available() bool {
	return s.streamer != nil
}

// Reply answers req, passing every event to emit in order: an optional
// calculation, the deltas, then done. An error is returned only if nothing
// was emitted yet; later failures are reported as an error event instead.
func (s *Service) Reply(ctx context.Context, req Request, emit func(Event) error) error {
	const op = "chat.Reply"

	if err := Validate(req.Messages); err != nil {
		return err
	}
	if s.streamer == nil {
		return ErrUnavailable
	}

	last := req.Messages[len(req.Messages)-1].Content
	found, matched := intent.Parse(last)

	lang := found.Lang
	if req.Lang != "" {
		l, err := proration.ParseLanguage(req.Lang)
		if err != nil {
			return err
		}
		lang = l
	}

	started := false
	send := func(e Event) error {
		started = true
		return emit(e)
	}

	messages := make([]Message, 0, len(req.Messages)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: s.systemPrompt(lang)})
	messages = append(messages, req.Messages...)

	if matched {
		calc, err := s.calculate(found, lang)
		if err != nil {
			s.log.Debug().Err(err).Str("date", found.Date).Msg("Chat intent did not produce a calculation")
		} else {
			if err := send(Event{Type: EventCalculation, Calculation: calc}); err != nil {
				return fmt.Errorf("%s: emit calculation: %w", op, err)
			}
			messages = append(messages, Message{Role: RoleSystem, Content: calculationNote(calc.Text, lang)})
		}
	}

	reply, err := s.streamer.Stream(ctx, messages, func(delta string) error {
		return send(Event{Type: EventDelta, Content: delta})
	})
	if err != nil {
		if !started {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.log.Warn().Err(err).Int("reply_chars", utf8.RuneCountInString(reply)).Msg("Chat stream failed after it started")
		if ctx.Err() == nil {
			_ = emit(Event{Type: EventError, Error: errorText(lang)})
		}
		return nil
	}

	if err := send(Event{Type: EventDone, Content: reply}); err != nil {
		return fmt.Errorf("%s: emit done: %w", op, err)
	}
	s.log.Info().
		Int("messages", len(req.Messages)).
		Bool("calculated", matched).
		Str("lang", string(lang)).
		Int("reply_chars", utf8.RuneCountInString(reply)).
		Msg("Chat reply completed")
	return nil
}

func (s *Service) calculate(in intent.Intent, lang proration.Language) (*Calculation, error) {
	res, err := proration.Calculate(in.Request(s.cfg.AnchorDay, s.cfg.VATRate))
	if err != nil {
		return nil, err
	}
	text, err := s.formatter.Format(res, res.MonthlyNet, lang, proration.ViewScript)
	if err != nil {
		return nil, err
	}
	return &Calculation{Intent: in, Result: res, Text: text}, nil
}

// Validate checks a client conversation: 1 to MaxMessages messages from the
// user or assistant, each non-empty and at most MaxRunes long, ending with a
// user message.
func Validate(messages []Message) error {
	if len(messages) == 0 || len(messages) > MaxMessages {
		return proration.NewValidationError("messages", len(messages), ErrInvalidConversation,
			fmt.Sprintf("expected 1 to %d messages", MaxMessages))
	}
	for i, m := range messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return proration.NewValidationError(fmt.Sprintf("messages[%d].role", i), m.Role, ErrInvalidConversation,
				"expected user or assistant")
		}
		if strings.TrimSpace(m.Content) == "" {
			return proration.NewValidationError(fmt.Sprintf("messages[%d].content", i), "", ErrInvalidConversation,
				"content is empty")
		}
		if n := utf8.RuneCountInString(m.Content); n > MaxRunes {
			return proration.NewValidationError(fmt.Sprintf("messages[%d].content", i), n, ErrInvalidConversation,
				fmt.Sprintf("content exceeds %d characters", MaxRunes))
		}
	}
	if messages[len(messages)-1].Role != RoleUser {
		return proration.NewValidationError("messages", len(messages), ErrInvalidConversation,
			"last message must come from the user")
	}
	return nil
}
