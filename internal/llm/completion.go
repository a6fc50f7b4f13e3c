package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
	"github.com/openai/openai-go/v2/shared/constant"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    Role
	Content string
}

// Request describes one completion round-trip.
type Request struct {
	Model     string
	Messages  []Message
	JSONMode  bool
	MaxTokens int
	// WebSearch asks search-capable models to ground the answer in live results.
	WebSearch bool
}

// Completion is the text returned by the model together with its token usage.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Completer sends messages to a model and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

const defaultTemperature = 0.7

// Reasoning and search-preview models reject a temperature and expect max_completion_tokens.
var modelsWithoutTemperature = map[string]struct{}{
	"o1-mini":                    {},
	"o1-preview":                 {},
	"o1":                         {},
	"o3-mini":                    {},
	"o3-preview":                 {},
	"o3":                         {},
	"o4-mini":                    {},
	"o4-preview":                 {},
	"o4":                         {},
	"gpt-4o-mini-search-preview": {},
	"gpt-4o-search-preview":      {},
}

// SupportsTemperature reports whether the model accepts a sampling temperature.
func SupportsTemperature(model string) bool {
	_, ok := modelsWithoutTemperature[strings.ToLower(strings.TrimSpace(model))]
	return !ok
}

var _ Completer = (*Client)(nil)

// Complete issues a single chat completion. It performs no retries.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, eris.New("completion model is required")
	}
	if len(req.Messages) == 0 {
		return nil, eris.New("completion requires at least one message")
	}

	params, err := buildParams(model, req)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	fields := logrus.Fields{"model": model, "json_mode": req.JSONMode}

	completion, err := c.chat.New(ctx, params)
	if err != nil {
		c.logError(fields, err, "requesting chat completion")
		return nil, eris.Wrap(err, "requesting chat completion")
	}

	if len(completion.Choices) == 0 {
		err := eris.New("llm completion returned no choices")
		c.logError(fields, err, "processing chat completion")
		return nil, err
	}

	choice := completion.Choices[0]
	if reason := strings.TrimSpace(choice.FinishReason); strings.EqualFold(reason, "content_filter") {
		err := eris.New("llm blocked the request via content filter")
		c.logError(fields, err, "completion blocked")
		return nil, err
	}

	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		err := eris.Errorf("llm refused to generate content: %s", refusal)
		c.logError(fields, err, "completion refused")
		return nil, err
	}

	result := &Completion{
		Text:         choice.Message.Content,
		Model:        model,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}
	result.Cost = c.pricing.Cost(model, result.InputTokens, result.OutputTokens)

	if c.logger != nil {
		c.logger.WithFields(fields).WithFields(logrus.Fields{
			"input_tokens":  result.InputTokens,
			"output_tokens": result.OutputTokens,
			"finish_reason": choice.FinishReason,
		}).Debug("chat completion finished")
	}

	return result, nil
}

func buildParams(model string, req Request) (openai.ChatCompletionNewParams, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, message := range req.Messages {
		switch message.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(message.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(message.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(message.Content))
		default:
			return openai.ChatCompletionNewParams{}, eris.Errorf("unsupported message role %q", message.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}

	temperatureAllowed := SupportsTemperature(model)
	if temperatureAllowed {
		params.Temperature = openai.Float(defaultTemperature)
	}

	if req.MaxTokens > 0 {
		if temperatureAllowed {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		} else {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
		}
	}

	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: constant.ValueOf[constant.JSONObject](),
			},
		}
	}

	if req.WebSearch {
		params.WebSearchOptions = openai.ChatCompletionNewParamsWebSearchOptions{
			SearchContextSize: "medium",
		}
	}

	return params, nil
}

func (c *Client) logError(fields logrus.Fields, err error, message string) {
	if c.logger == nil || err == nil {
		return
	}

	entry := c.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
