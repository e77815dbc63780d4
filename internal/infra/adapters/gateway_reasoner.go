package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/inference-gateway/sdk"
	zap "go.uber.org/zap"

	config "github.com/inference-gateway/desktop-agent/config"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

// GatewayReasoner implements domain.Reasoner over the inference gateway
// chat completions API
type GatewayReasoner struct {
	client   sdk.Client
	provider sdk.Provider
	model    string
	timeout  time.Duration
}

var _ domain.Reasoner = (*GatewayReasoner)(nil)

// NewGatewayClient creates the SDK client from gateway configuration
func NewGatewayClient(cfg config.GatewayConfig) sdk.Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}

	return sdk.NewClient(&sdk.ClientOptions{
		BaseURL:     baseURL,
		APIKey:      cfg.APIKey,
		Timeout:     time.Duration(timeout) * time.Second,
		RetryConfig: retryConfig(cfg.Retry),
	})
}

func retryConfig(cfg config.RetryConfig) *sdk.RetryConfig {
	rc := &sdk.RetryConfig{
		Enabled:              cfg.Enabled,
		MaxAttempts:          cfg.MaxAttempts,
		InitialBackoffSec:    cfg.InitialBackoffSec,
		MaxBackoffSec:        cfg.MaxBackoffSec,
		BackoffMultiplier:    cfg.BackoffMultiplier,
		RetryableStatusCodes: cfg.RetryableStatusCodes,
	}
	if rc.Enabled {
		rc.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("Retrying gateway request",
				"attempt", attempt,
				"error", err.Error(),
				"delay", delay.String())
		}
	}
	return rc
}

// NewGatewayReasoner creates a reasoner for a "provider/model" identifier
func NewGatewayReasoner(client sdk.Client, model string, timeout time.Duration) (*GatewayReasoner, error) {
	provider, name, ok := strings.Cut(model, "/")
	if !ok || provider == "" || name == "" {
		return nil, fmt.Errorf("invalid model format %q, expected 'provider/model'", model)
	}
	return &GatewayReasoner{
		client:   client,
		provider: sdk.Provider(provider),
		model:    name,
		timeout:  timeout,
	}, nil
}

// Next sends the conversation and returns the model's turn
func (g *GatewayReasoner) Next(ctx context.Context, req domain.ReasonerRequest) (*domain.ReasonerResponse, error) {
	messages, err := ToSDKMessages(req.System, req.Messages)
	if err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	client := g.client.WithMiddlewareOptions(&sdk.MiddlewareOptions{
		SkipMCP: true,
	})
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		client = client.WithOptions(&sdk.CreateChatCompletionRequest{MaxTokens: &maxTokens})
	}
	if len(req.Tools) > 0 {
		tools := ToSDKTools(req.Tools)
		client = client.WithTools(&tools)
	}

	start := time.Now()
	response, err := client.GenerateContent(ctx, g.provider, g.model, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	logger.FromContext(ctx).Debug("Gateway response received",
		zap.String("provider", string(g.provider)),
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)))

	return FromSDKResponse(response)
}

const displayExtensionKey = "x-display"

// ToSDKTools converts tool descriptors into function tools. The display
// size travels in the description and under the x-display vendor key of
// the parameters schema, which validators ignore.
func ToSDKTools(descriptors []domain.ToolDescriptor) []sdk.ChatCompletionTool {
	tools := make([]sdk.ChatCompletionTool, 0, len(descriptors))
	for _, d := range descriptors {
		description := d.Description
		params := sdk.FunctionParameters{}
		for k, v := range d.Parameters {
			params[k] = v
		}
		if d.DisplayWidthPx > 0 && d.DisplayHeightPx > 0 {
			params[displayExtensionKey] = map[string]any{
				"display_width_px":  d.DisplayWidthPx,
				"display_height_px": d.DisplayHeightPx,
			}
		}

		tools = append(tools, sdk.ChatCompletionTool{
			Type: sdk.Function,
			Function: sdk.FunctionObject{
				Name:        d.Name,
				Description: &description,
				Parameters:  &params,
			},
		})
	}
	return tools
}

// ToSDKMessages converts the conversation into gateway messages. Tool
// messages expand to one message per result.
func ToSDKMessages(system string, messages []domain.Message) ([]sdk.Message, error) {
	out := make([]sdk.Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, sdk.Message{Role: sdk.System, Content: sdk.NewMessageContent(system)})
	}

	for _, m := range messages {
		switch m.Role {
		case domain.RoleUser:
			msg, err := userMessage(m)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)

		case domain.RoleAssistant:
			msg := sdk.Message{Role: sdk.Assistant, Content: sdk.NewMessageContent(m.Text)}
			if len(m.ToolCalls) > 0 {
				calls := make([]sdk.ChatCompletionMessageToolCall, 0, len(m.ToolCalls))
				for _, c := range m.ToolCalls {
					calls = append(calls, sdk.ChatCompletionMessageToolCall{
						Id:   c.ID,
						Type: sdk.Function,
						Function: sdk.ChatCompletionMessageToolCallFunction{
							Name:      c.Name,
							Arguments: c.Arguments,
						},
					})
				}
				msg.ToolCalls = &calls
			}
			out = append(out, msg)

		case domain.RoleTool:
			for _, r := range m.ToolResults {
				id := r.ToolCallID
				out = append(out, sdk.Message{
					Role:       sdk.Tool,
					Content:    sdk.NewMessageContent(r.Content),
					ToolCallId: &id,
				})
			}

		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func userMessage(m domain.Message) (sdk.Message, error) {
	if len(m.Images) == 0 {
		return sdk.Message{Role: sdk.User, Content: sdk.NewMessageContent(m.Text)}, nil
	}

	parts := make([]sdk.ContentPart, 0, len(m.Images)+1)
	if m.Text != "" {
		textPart, err := sdk.NewTextContentPart(m.Text)
		if err != nil {
			return sdk.Message{}, fmt.Errorf("failed to create text content: %w", err)
		}
		parts = append(parts, textPart)
	}
	for _, img := range m.Images {
		imagePart, err := sdk.NewImageContentPart(img.DataURL(), nil)
		if err != nil {
			return sdk.Message{}, fmt.Errorf("failed to create image content: %w", err)
		}
		parts = append(parts, imagePart)
	}
	return sdk.Message{Role: sdk.User, Content: sdk.NewMessageContent(parts)}, nil
}

// FromSDKResponse extracts text and tool calls from the first choice
func FromSDKResponse(response *sdk.CreateChatCompletionResponse) (*domain.ReasonerResponse, error) {
	if response == nil || len(response.Choices) == 0 {
		return nil, fmt.Errorf("gateway returned no choices")
	}

	choice := response.Choices[0]
	out := &domain.ReasonerResponse{StopReason: domain.StopEndTurn}

	if text, err := choice.Message.Content.AsMessageContent0(); err == nil {
		out.Text = strings.TrimSpace(text)
	}

	if choice.Message.ToolCalls != nil {
		for _, c := range *choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				ID:        c.Id,
				Name:      c.Function.Name,
				Arguments: c.Function.Arguments,
			})
		}
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = domain.StopToolUse
	}
	return out, nil
}
