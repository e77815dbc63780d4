package adapters

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdk "github.com/inference-gateway/sdk"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	config "github.com/inference-gateway/desktop-agent/config"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

const toolCallResponse = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "claude-sonnet-4",
	"choices": [{
		"index": 0,
		"finish_reason": "tool_calls",
		"message": {
			"role": "assistant",
			"content": "Opening Spotlight.",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "computer", "arguments": "{\"action\":\"key\",\"text\":\"cmd+space\"}"}
			}]
		}
	}]
}`

func TestToSDKMessages(t *testing.T) {
	messages := []domain.Message{
		{Role: domain.RoleUser, Text: "Task: open safari", Images: []domain.Image{{MimeType: "image/png", Data: "AAAA"}}},
		{Role: domain.RoleAssistant, Text: "ok", ToolCalls: []domain.ToolCall{
			{ID: "a", Name: "computer", Arguments: `{"action":"screenshot"}`},
			{ID: "b", Name: "computer", Arguments: `{"action":"wait"}`},
		}},
		{Role: domain.RoleTool, ToolResults: []domain.ToolResult{
			{ToolCallID: "a", Content: `{"success":true}`},
			{ToolCallID: "b", Content: `{"success":true}`},
		}},
		{Role: domain.RoleUser, Text: "done?"},
	}

	out, err := ToSDKMessages("system prompt", messages)
	require.NoError(t, err)
	require.Len(t, out, 6)

	assert.Equal(t, sdk.System, out[0].Role)
	assert.Equal(t, sdk.User, out[1].Role)
	assert.Equal(t, sdk.Assistant, out[2].Role)
	require.NotNil(t, out[2].ToolCalls)
	assert.Len(t, *out[2].ToolCalls, 2)
	assert.Equal(t, "a", (*out[2].ToolCalls)[0].Id)

	assert.Equal(t, sdk.Tool, out[3].Role)
	require.NotNil(t, out[3].ToolCallId)
	assert.Equal(t, "a", *out[3].ToolCallId)
	assert.Equal(t, "b", *out[4].ToolCallId)

	text, err := out[5].Content.AsMessageContent0()
	require.NoError(t, err)
	assert.Equal(t, "done?", text)

	raw, err := json.Marshal(out[1])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "data:image/png;base64,AAAA")
}

func TestToSDKMessages_RejectsUnknownRole(t *testing.T) {
	_, err := ToSDKMessages("", []domain.Message{{Role: "narrator"}})
	assert.Error(t, err)
}

func TestToSDKTools_AdvertisesDisplaySize(t *testing.T) {
	tools := ToSDKTools([]domain.ToolDescriptor{{
		Name:            "computer",
		Description:     "control the desktop",
		DisplayWidthPx:  1232,
		DisplayHeightPx: 800,
		Parameters:      map[string]any{"type": "object"},
	}})

	require.Len(t, tools, 1)
	assert.Equal(t, "computer", tools[0].Function.Name)
	require.NotNil(t, tools[0].Function.Parameters)
	params := *tools[0].Function.Parameters
	assert.NotContains(t, params, "display_width_px")
	assert.Equal(t, map[string]any{"display_width_px": 1232, "display_height_px": 800}, params["x-display"])
	assert.Equal(t, "object", params["type"])
}

func TestFromSDKResponse(t *testing.T) {
	var response sdk.CreateChatCompletionResponse
	require.NoError(t, json.Unmarshal([]byte(toolCallResponse), &response))

	out, err := FromSDKResponse(&response)
	require.NoError(t, err)
	assert.Equal(t, "Opening Spotlight.", out.Text)
	assert.Equal(t, domain.StopToolUse, out.StopReason)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, domain.ToolCall{ID: "call_1", Name: "computer", Arguments: `{"action":"key","text":"cmd+space"}`}, out.ToolCalls[0])

	_, err = FromSDKResponse(&sdk.CreateChatCompletionResponse{})
	assert.Error(t, err)
}

func TestNewGatewayReasoner_RequiresProvider(t *testing.T) {
	_, err := NewGatewayReasoner(nil, "claude-sonnet", time.Second)
	assert.Error(t, err)
}

func TestGatewayReasoner_Next(t *testing.T) {
	var (
		gotPath string
		gotBody string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallResponse))
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{URL: server.URL, Timeout: 5})
	reasoner, err := NewGatewayReasoner(client, "anthropic/claude-sonnet-4", 5*time.Second)
	require.NoError(t, err)

	resp, err := reasoner.Next(logger.NopContext(), domain.ReasonerRequest{
		System:    "system",
		Messages:  []domain.Message{{Role: domain.RoleUser, Text: "Task: open spotlight"}},
		Tools:     []domain.ToolDescriptor{{Name: "computer", DisplayWidthPx: 1280, DisplayHeightPx: 800}},
		MaxTokens: 512,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, "/v1/chat/completions"), gotPath)
	assert.Contains(t, gotBody, `"x-display":{`)
	assert.Contains(t, gotBody, `"display_width_px":1280`)
	assert.Contains(t, gotBody, `"claude-sonnet-4"`)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "computer", resp.ToolCalls[0].Name)
}

func TestGatewayReasoner_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewGatewayClient(config.GatewayConfig{URL: server.URL, Timeout: 5})
	reasoner, err := NewGatewayReasoner(client, "openai/gpt-4o", 0)
	require.NoError(t, err)

	_, err = reasoner.Next(context.Background(), domain.ReasonerRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Text: "hi"}},
	})
	assert.Error(t, err)
}
