package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"estatechat/internal/history"
	"estatechat/internal/model"
	"estatechat/internal/prompt"
	"estatechat/internal/repository"
)

// Fixed user-facing messages. Every turn-level failure maps onto one of
// these and the turn still ends normally.
const (
	MsgRefusal        = "Sorry, I couldn't find a suitable property after several attempts. Please refine your query."
	MsgUnknownQuery   = "Sorry, I couldn't understand your query. Please try rephrasing."
	MsgNoResults      = "No properties found matching your criteria."
	MsgParseError     = "Sorry, I couldn't interpret the response to your request. Please try rephrasing."
	MsgCollaborator   = "Sorry, the assistant is temporarily unavailable. Please try again shortly."
	MsgBackendDown    = "Sorry, the property database is temporarily unavailable. Please try again shortly."
	MsgUnsafeQuery    = "I can only help with finding properties; I can't change the database."
	MsgNoCollection   = "I couldn't tell which kind of property you're looking for. Could you mention whether you want a home, an apartment, or a plot?"
	MsgBadCriteria    = "I couldn't match your criteria to our property records. Could you rephrase them?"
	MsgDefaultGeneral = "Hello!"
)

// defaultIterationCeiling caps fetch attempts within one turn
const defaultIterationCeiling = 5

// turnState is the explicit state of one turn's processing. Transitions
// run in a loop rather than by recursive calls so the iteration ceiling
// stays enforceable and stack-safe.
type turnState int

const (
	stateStart turnState = iota
	stateClassifying
	stateRoutedGeneral
	stateRoutedFetch
	stateRoutedUnknown
	stateResponding
	stateIdle
)

// AuditSink receives one record per classification request/response pair.
// Write-only; the core never reads it back.
type AuditSink interface {
	RecordClassification(sessionID, promptText, response string)
}

// ConversationDeps wires a conversation's collaborators
type ConversationDeps struct {
	Log              *zap.Logger
	Completer        TextCompleter
	Intents          *IntentParser
	Builder          *QueryBuilder
	Executor         *QueryExecutor
	History          history.Store
	Audit            AuditSink
	IterationCeiling int
}

// Conversation is the per-session turn state machine coordinating
// classification, routing, fetch, and response. One instance per session;
// turns are processed strictly sequentially.
type Conversation struct {
	mu        sync.Mutex
	sessionID string
	log       *zap.Logger
	completer TextCompleter
	intents   *IntentParser
	builder   *QueryBuilder
	executor  *QueryExecutor
	history   history.Store
	audit     AuditSink
	ceiling   int

	turnCount int

	// per-turn state, reset on every Start
	state          turnState
	userInput      string
	intent         *model.Intent
	iterationCount int
	entityText     string
	triedFallback  bool
	draftAppended  bool
	reply          string
}

// NewConversation creates the state machine for one session
func NewConversation(sessionID string, deps ConversationDeps) *Conversation {
	ceiling := deps.IterationCeiling
	if ceiling <= 0 {
		ceiling = defaultIterationCeiling
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Conversation{
		sessionID: sessionID,
		log:       log.With(zap.String("session_id", sessionID)),
		completer: deps.Completer,
		intents:   deps.Intents,
		builder:   deps.Builder,
		executor:  deps.Executor,
		history:   deps.History,
		audit:     deps.Audit,
		ceiling:   ceiling,
	}
}

// Respond processes one user turn to completion. The prompt template is
// supplied externally; schema-specific instructions live in that text, not
// here. Taxonomy failures fold into the reply; the error return is
// reserved for history-store faults.
func (c *Conversation) Respond(ctx context.Context, userInput, promptTemplate string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetTurn(userInput)

	for c.state != stateIdle {
		switch c.state {
		case stateStart:
			if err := c.startTurn(ctx); err != nil {
				return "", err
			}
		case stateClassifying:
			c.classify(ctx, promptTemplate)
		case stateRoutedGeneral:
			c.handleGeneral()
		case stateRoutedFetch:
			c.fetchStep(ctx)
		case stateRoutedUnknown:
			c.reply = MsgUnknownQuery
			c.state = stateResponding
		case stateResponding:
			if err := c.finalize(ctx); err != nil {
				return "", err
			}
		}
	}

	return c.reply, nil
}

// History returns the session's conversation history
func (c *Conversation) History(ctx context.Context) ([]model.Turn, error) {
	return c.history.Snapshot(ctx)
}

func (c *Conversation) resetTurn(userInput string) {
	c.state = stateStart
	c.userInput = userInput
	c.intent = nil
	c.iterationCount = 0
	c.entityText = ""
	c.triedFallback = false
	c.draftAppended = false
	c.reply = ""
}

func (c *Conversation) startTurn(ctx context.Context) error {
	c.turnCount++
	if err := c.history.Append(ctx, model.Turn{Role: model.RoleUser, Text: c.userInput}); err != nil {
		return fmt.Errorf("failed to record user turn: %w", err)
	}
	c.state = stateClassifying
	return nil
}

func (c *Conversation) classify(ctx context.Context, promptTemplate string) {
	turns, err := c.history.Snapshot(ctx)
	if err != nil {
		c.log.Error("history snapshot failed", zap.Error(err))
		turns = nil
	}
	// The current user turn is the last entry; the template gets the
	// prior conversation separately from the fresh input.
	prior := turns
	if len(prior) > 0 {
		prior = prior[:len(prior)-1]
	}

	promptText, err := prompt.Render(promptTemplate, map[string]string{
		"user_input": c.userInput,
		"history":    prompt.FormatHistory(prior),
		"turn":       strconv.Itoa(c.turnCount),
	})
	if err != nil {
		var missing *prompt.FieldMissingError
		if errors.As(err, &missing) {
			c.log.Error("prompt template missing field", zap.String("field", missing.Field))
		}
		c.reply = MsgCollaborator
		c.state = stateResponding
		return
	}

	raw, err := c.completer.Complete(ctx, promptText, prior)
	if err != nil {
		c.log.Warn("collaborator call failed", zap.Error(err))
		c.reply = MsgCollaborator
		c.state = stateResponding
		return
	}

	if c.audit != nil {
		c.audit.RecordClassification(c.sessionID, promptText, raw)
	}

	// The raw model output enters history as an assistant draft; the
	// cleaned final reply rewrites it in place when the turn finishes.
	if err := c.history.Append(ctx, model.Turn{Role: model.RoleAssistant, Text: raw}); err == nil {
		c.draftAppended = true
	}

	intent, err := c.intents.Parse(raw)
	if err != nil {
		var malformed *MalformedIntentError
		if errors.As(err, &malformed) {
			c.log.Warn("malformed intent payload",
				zap.String("raw", malformed.Raw))
		}
		c.reply = MsgParseError
		c.state = stateResponding
		return
	}

	c.intent = intent
	switch intent.Kind {
	case model.IntentGeneral:
		c.state = stateRoutedGeneral
	case model.IntentPropertyFetch:
		c.entityText = intent.EntityText()
		if c.entityText == "" {
			c.entityText = c.userInput
			c.triedFallback = true
		}
		c.state = stateRoutedFetch
	default:
		c.state = stateRoutedUnknown
	}
}

func (c *Conversation) handleGeneral() {
	c.reply = c.intent.Response()
	if c.reply == "" {
		c.reply = MsgDefaultGeneral
	}
	c.state = stateResponding
}

// fetchStep runs one property-fetch attempt. The iteration ceiling is
// checked before every attempt; exceeding it ends the turn with the fixed
// refusal regardless of any downstream state.
func (c *Conversation) fetchStep(ctx context.Context) {
	c.iterationCount++
	if c.iterationCount > c.ceiling {
		c.log.Warn("fetch attempts exhausted",
			zap.Int("ceiling", c.ceiling),
			zap.Error(ErrIterationCeilingExceeded))
		c.reply = MsgRefusal
		c.state = stateResponding
		return
	}

	spec, err := c.builder.Build(c.entityText, c.intent.Payload["filter"])
	if err != nil {
		switch {
		case errors.Is(err, ErrNoCollectionResolved) && !c.triedFallback:
			// Retry once against the raw user input; the model's cleaned
			// description may have lost the property-type mention.
			c.triedFallback = true
			c.entityText = c.userInput
			return
		case errors.Is(err, ErrUnsafeOperationRejected):
			c.reply = MsgUnsafeQuery
		case errors.Is(err, ErrInvalidFieldReference):
			c.reply = MsgBadCriteria
		default:
			c.reply = MsgNoCollection
		}
		c.state = stateResponding
		return
	}

	docs, err := c.executor.Execute(ctx, spec)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyResult):
			c.reply = MsgNoResults
		case errors.Is(err, ErrCollectionNotFound):
			c.reply = MsgNoCollection
		case errors.Is(err, repository.ErrBackendUnavailable):
			c.reply = MsgBackendDown
		default:
			c.reply = MsgBackendDown
		}
		c.state = stateResponding
		return
	}

	c.reply = renderDocuments(docs)
	c.state = stateResponding
}

func (c *Conversation) finalize(ctx context.Context) error {
	var err error
	if c.draftAppended {
		err = c.history.ReplaceLastOfRole(ctx, model.RoleAssistant, c.reply)
	} else {
		err = c.history.Append(ctx, model.Turn{Role: model.RoleAssistant, Text: c.reply})
	}
	if err != nil {
		return fmt.Errorf("failed to record assistant turn: %w", err)
	}
	c.state = stateIdle
	return nil
}

// documentSummaryFields is the preferred order for one-line summaries
var documentSummaryFields = []string{
	"title", "location", "sector", "building", "price", "bedrooms",
	"bathrooms", "area_marla", "area_sqft", "plot_number",
}

const maxRenderedDocuments = 10

// renderDocuments formats retrieved records into a readable reply, one
// line per document, each keeping its own field set
func renderDocuments(docs []model.Document) string {
	var b strings.Builder
	if len(docs) == 1 {
		b.WriteString("Found 1 matching property:")
	} else {
		fmt.Fprintf(&b, "Found %d matching properties:", len(docs))
	}

	shown := docs
	if len(shown) > maxRenderedDocuments {
		shown = shown[:maxRenderedDocuments]
	}
	for _, doc := range shown {
		b.WriteString("\n- ")
		b.WriteString(summarizeDocument(doc))
	}
	if len(docs) > maxRenderedDocuments {
		fmt.Fprintf(&b, "\n…and %d more.", len(docs)-maxRenderedDocuments)
	}
	return b.String()
}

func summarizeDocument(doc model.Document) string {
	var parts []string
	seen := map[string]bool{}
	for _, field := range documentSummaryFields {
		if v, ok := doc[field]; ok && v != nil {
			if field == "title" {
				parts = append(parts, fmt.Sprint(v))
			} else {
				parts = append(parts, fmt.Sprintf("%s: %v", field, v))
			}
			seen[field] = true
		}
	}
	if len(parts) == 0 {
		for k, v := range doc {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
			if len(parts) >= 4 {
				break
			}
		}
	}
	return strings.Join(parts, ", ")
}
