package groq

import (
	"github.com/koscakluka/ema-persona/core/llms"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type requestBody struct {
	Model               string    `json:"model"`
	Messages            []message `json:"messages"`
	Stream              bool      `json:"stream"`
	Temperature         float64   `json:"temperature"`
	TopP                float64   `json:"top_p"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Content      string  `json:"content,omitempty"`
			FinishReason *string `json:"finish_reason,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func toRequestBody(model string, request llms.Request) requestBody {
	messages := make([]message, 0, len(request.Turns)+1)
	if request.Persona != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: request.Persona})
	}
	for _, turn := range request.Turns {
		role := messageRoleUser
		if turn.Role == llms.RoleModel {
			role = messageRoleAssistant
		}
		messages = append(messages, message{Role: role, Content: turn.Text})
	}

	return requestBody{
		Model:               model,
		Messages:            messages,
		Stream:              true,
		Temperature:         request.Params.Temperature,
		TopP:                request.Params.TopP,
		MaxCompletionTokens: request.Params.MaxOutputTokens,
	}
}
