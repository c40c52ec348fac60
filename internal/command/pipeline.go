package command

import (
	"encoding/json"

	"github.com/ngee044/realtimechat/internal/apperror"
	"github.com/ngee044/realtimechat/internal/dispatcher"
	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/metrics"
)

// Sender abstracts "send a reply back to whoever issued this command" so
// the pipeline never has to know about the transport layer.
type Sender interface {
	Send(message, id, subID string) error
}

// Pipeline wires a Registry, a Dispatcher, and a RecoveryStore into the
// four parse/execute job variants of spec.md §4.2.
type Pipeline struct {
	registry   *Registry
	dispatcher *dispatcher.Dispatcher
	recovery   RecoveryStore
}

func NewPipeline(registry *Registry, d *dispatcher.Dispatcher, recovery RecoveryStore) *Pipeline {
	if recovery == nil {
		recovery = NewMemoryRecoveryStore()
	}
	return &Pipeline{registry: registry, dispatcher: d, recovery: recovery}
}

// EnqueueClientMessage implements ClientMessageParsing: server <- client,
// no binary part.
func (p *Pipeline) EnqueueClientMessage(id, subID string, raw []byte) apperror.Result {
	return p.enqueueParse("ClientMessageParsing", dispatcher.Normal, id, subID, raw, nil)
}

// EnqueueClientCombinedMessage implements ClientCombinedMessageParsing:
// server <- client, with a binary part.
func (p *Pipeline) EnqueueClientCombinedMessage(id, subID string, raw, binary []byte) apperror.Result {
	return p.enqueueParse("ClientCombinedMessageParsing", dispatcher.Normal, id, subID, raw, binary)
}

// EnqueueServerMessage implements ServerMessageParsing: client <- server,
// no binary part. There is no session id on this side of the wire.
func (p *Pipeline) EnqueueServerMessage(raw []byte) apperror.Result {
	return p.enqueueParse("ServerMessageParsing", dispatcher.Normal, "", "", raw, nil)
}

// EnqueueServerCombinedMessage implements ServerCombinedMessageParsing:
// client <- server, with a binary part.
func (p *Pipeline) EnqueueServerCombinedMessage(raw, binary []byte) apperror.Result {
	return p.enqueueParse("ServerCombinedMessageParsing", dispatcher.Normal, "", "", raw, binary)
}

func (p *Pipeline) enqueueParse(name string, priority dispatcher.Priority, id, subID string, raw, binary []byte) apperror.Result {
	return p.dispatcher.Push(dispatcher.NewJob(priority, name, func(pool *dispatcher.PoolHandle) apperror.Result {
		if id != "" {
			p.recovery.Save(id, raw)
		}

		command, parseResult := parseCommand(raw)
		if !parseResult.OK {
			metrics.CommandDispatchErrorsTotal.WithLabelValues("parse").Inc()
			logging.Errorf("%s[%s,%s]: %s", name, id, subID, parseResult.Message)
			return parseResult
		}

		handler, found := p.registry.Lookup(command)
		if !found {
			metrics.CommandDispatchErrorsTotal.WithLabelValues("not_found").Inc()
			logging.Errorf("%s[%s,%s]: command is not found: %s", name, id, subID, command)
			return apperror.Fail("command is not found")
		}

		ctx := Context{ID: id, SubID: subID, Command: command, Raw: raw, Binary: binary}
		return p.pushExecute(name, id, subID, ctx, handler)
	}))
}

func (p *Pipeline) pushExecute(parsedFrom, id, subID string, ctx Context, handler Handler) apperror.Result {
	executeName := executeNameFor(parsedFrom)
	return p.dispatcher.Push(dispatcher.NewJob(dispatcher.Normal, executeName, func(pool *dispatcher.PoolHandle) apperror.Result {
		if id != "" {
			p.recovery.Save(id, ctx.Raw)
		}

		ok, message := handler(ctx)
		if !ok {
			metrics.CommandDispatchErrorsTotal.WithLabelValues("handler").Inc()
			logging.Errorf("%s[%s,%s]: %s", executeName, id, subID, message)
			return apperror.Fail(message)
		}
		return apperror.Ok()
	}))
}

func executeNameFor(parseName string) string {
	switch parseName {
	case "ClientMessageParsing":
		return "ClientMessageExecute"
	case "ClientCombinedMessageParsing":
		return "ClientCombinedMessageExecute"
	case "ServerMessageParsing":
		return "ServerMessageExecute"
	case "ServerCombinedMessageParsing":
		return "ServerCombinedMessageExecute"
	default:
		return parseName + "Execute"
	}
}

// parseCommand implements the validation spec.md §4.2 requires: the text
// part must decode as a JSON object with a top-level string "command"
// field. The three distinct failure messages match the source's
// ClientCombinedMessageParsing.cpp (the canonical, non-buggy revision —
// see spec.md §9 on the single-message variant's mis-keyed lookup).
func parseCommand(raw []byte) (string, apperror.Result) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		if _, isTypeErr := err.(*json.UnmarshalTypeError); isTypeErr {
			return "", apperror.Fail("Parsed message is not an object")
		}
		return "", apperror.Fail("Failed to parse message")
	}

	value, exists := obj["command"]
	if !exists {
		return "", apperror.Fail("Parsed message does not contain command string")
	}

	command, isString := value.(string)
	if !isString {
		return "", apperror.Fail("Parsed message does not contain command string")
	}

	return command, apperror.Ok()
}
