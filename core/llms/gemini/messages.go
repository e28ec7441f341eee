package gemini

import (
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-persona/core/llms"
)

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role,omitempty" jsonschema:"enum=user,enum=model"`
	Parts []Part `json:"parts"`
}

type SystemInstruction struct {
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature" jsonschema:"minimum=0,maximum=2"`
	MaxOutputTokens int     `json:"maxOutputTokens" jsonschema:"minimum=1"`
	TopP            float64 `json:"topP" jsonschema:"minimum=0,maximum=1"`
}

// GenerateContentRequest is the generateContent request body relayed by the
// chat proxy.
type GenerateContentRequest struct {
	SystemInstruction *SystemInstruction `json:"system_instruction,omitempty"`
	Contents          []Content          `json:"contents"`
	GenerationConfig  GenerationConfig   `json:"generationConfig"`
}

func toRequestBody(request llms.Request) (GenerateContentRequest, error) {
	body := GenerateContentRequest{Contents: toContents(request.Turns)}
	if request.Persona != "" {
		body.SystemInstruction = &SystemInstruction{Parts: []Part{{Text: request.Persona}}}
	}
	if err := copier.Copy(&body.GenerationConfig, &request.Params); err != nil {
		return body, err
	}
	return body, nil
}

func toContents(turns []llms.Turn) []Content {
	contents := make([]Content, 0, len(turns))
	for _, turn := range turns {
		contents = append(contents, Content{
			Role:  toRole(turn.Role),
			Parts: []Part{{Text: turn.Text}},
		})
	}
	return contents
}

func toRole(role llms.Role) string {
	if role == llms.RoleModel {
		return "model"
	}
	return "user"
}
