package telegraph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/zulandar/signalbox/internal/assemble"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/trace"
)

// commandPrefix triggers operator commands.
const commandPrefix = "!sb"

// Canned replies.
const (
	unavailableReply = "The knowledge base is temporarily unavailable. Please ask again in a minute."
	failureReply     = "Something went wrong while handling that question."
)

// Answerer handles one diagnostic request.
type Answerer interface {
	Handle(ctx context.Context, req intent.Request) (*assemble.Response, *trace.AgentTrace, error)
}

// HealthReporter reports storage provider states.
type HealthReporter interface {
	Status() []storage.ProviderStatus
}

// Router classifies inbound chat messages: operator commands, questions
// addressed to the bot, or chatter to ignore.
type Router struct {
	answerer  Answerer
	health    HealthReporter
	adapter   Adapter
	botUserID string
	newID     func() string
	log       logging.Logger
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Answerer  Answerer
	Health    HealthReporter // optional; enables "!sb health"
	Adapter   Adapter
	BotUserID string
	NewID     func() string // request id generator; defaults to uuid
	Logger    logging.Logger
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Answerer == nil {
		return nil, fmt.Errorf("telegraph: router: answerer is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: router: adapter is required")
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Router{
		answerer:  opts.Answerer,
		health:    opts.Health,
		adapter:   opts.Adapter,
		botUserID: opts.BotUserID,
		newID:     opts.NewID,
		log:       opts.Logger,
	}, nil
}

// Handle routes a single inbound message:
//  1. Bot self-message → ignore
//  2. "!sb ..." → operator command
//  3. Message mentioning the bot → question for the orchestration engine
//  4. Everything else → ignore
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.isSelfMessage(msg) {
		return
	}
	text := strings.TrimSpace(msg.Text)
	r.log.Debug("telegraph recv", "platform", msg.Platform, "channel", msg.ChannelID, "user", msg.UserName, "text", truncate(text, 80))

	if isCommand(text) {
		r.reply(ctx, msg, r.execute(text))
		return
	}
	if !r.isAddressed(text) {
		return
	}
	question := stripMentions(text)
	if question == "" {
		r.reply(ctx, msg, OutboundMessage{Text: helpText()})
		return
	}
	r.answer(ctx, msg, question)
}

func (r *Router) answer(ctx context.Context, msg InboundMessage, question string) {
	req := intent.Request{
		ID:        r.newID(),
		Channel:   msg.Platform,
		UserID:    msg.UserID,
		Payload:   intent.Payload{Kind: intent.KindText, Content: question},
		Timestamp: msg.Timestamp,
	}
	resp, _, err := r.answerer.Handle(ctx, req)
	switch {
	case err == nil:
		r.reply(ctx, msg, OutboundMessage{Events: []FormattedEvent{FormatResponse(resp)}, Text: resp.Answer})
	case ctx.Err() != nil:
		return
	case errors.Is(err, storage.ErrStorageUnavailable):
		r.reply(ctx, msg, OutboundMessage{Text: unavailableReply})
	case errors.Is(err, intent.ErrEmptyPayload):
		r.reply(ctx, msg, OutboundMessage{Text: helpText()})
	default:
		r.log.Error("telegraph: answer failed", "request_id", req.ID, "error", err)
		r.reply(ctx, msg, OutboundMessage{Text: failureReply})
	}
}

// execute runs a "!sb" command and returns the reply.
func (r *Router) execute(text string) OutboundMessage {
	args := parseCommand(text)
	if len(args) == 0 {
		return OutboundMessage{Text: helpText()}
	}
	switch args[0] {
	case "health":
		if r.health == nil {
			return OutboundMessage{Text: "Health reporting is not enabled."}
		}
		return OutboundMessage{Events: []FormattedEvent{FormatHealth(r.health.Status())}}
	case "help":
		return OutboundMessage{Text: helpText()}
	default:
		return OutboundMessage{Text: fmt.Sprintf("Unknown command: `%s`\n\n%s", args[0], helpText())}
	}
}

// reply sends out in the message's thread, starting one on the message
// itself when it was top-level.
func (r *Router) reply(ctx context.Context, msg InboundMessage, out OutboundMessage) {
	out.ChannelID = msg.ChannelID
	out.ThreadID = msg.ThreadID
	if out.ThreadID == "" {
		out.ThreadID = msg.MessageID
	}
	if err := r.adapter.Send(ctx, out); err != nil {
		r.log.Error("telegraph: send reply", "channel", msg.ChannelID, "error", err)
	}
}

func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// isAddressed reports whether text mentions the bot. Without a known bot
// id any mention counts.
func (r *Router) isAddressed(text string) bool {
	if r.botUserID != "" {
		return strings.Contains(text, "<@"+r.botUserID+">") || strings.Contains(text, "<@!"+r.botUserID+">")
	}
	return mentionRe.MatchString(text)
}

// mentionRe matches Slack <@U123>, Discord <@123> / <@!123> and plain @name.
var mentionRe = regexp.MustCompile(`<@!?[A-Za-z0-9]+>|(^|\s)@[\w.-]+`)

func stripMentions(text string) string {
	return strings.Join(strings.Fields(mentionRe.ReplaceAllString(text, " ")), " ")
}

func isCommand(text string) bool {
	return strings.HasPrefix(text, commandPrefix+" ") || text == commandPrefix
}

// parseCommand strips the prefix and splits the remaining text.
func parseCommand(text string) []string {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), commandPrefix))
	if text == "" {
		return nil
	}
	return strings.Fields(text)
}

func helpText() string {
	return "Mention me with an equipment question, e.g. `@signalbox Siemens S7 F0001 fault`.\n" +
		"Include the manufacturer, model and any fault code for the best answer.\n\n" +
		"Commands:\n" +
		"• `!sb health`: storage provider status\n" +
		"• `!sb help`: this message"
}
