package service

import (
	"context"
	"fmt"
	"strings"

	"TH_treasure_hunt/internal/model"

	"github.com/goccy/go-json"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const riddleTool = "record_riddles"

var defaultThemes = []string{"History", "Culture", "Nature"}

// RiddleService drafts riddles for hunt creators. With no API key it is disabled.
type RiddleService struct {
	client *openai.Client
}

func NewRiddleService(apiKey string, opts ...option.RequestOption) *RiddleService {
	if apiKey == "" {
		return &RiddleService{client: nil}
	}
	c := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &RiddleService{client: &c}
}

func (s *RiddleService) Enabled() bool {
	return s.client != nil
}

// Generate returns one riddle per location, in order.
func (s *RiddleService) Generate(ctx context.Context, locations, themes []string) ([]model.Riddle, error) {
	if s.client == nil {
		return nil, ErrRiddlesDisabled
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("no locations given")
	}
	if len(themes) == 0 {
		themes = defaultThemes
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"riddles": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"riddle": map[string]string{"type": "string"},
						"hint":   map[string]string{"type": "string"},
					},
					"required":             []string{"riddle", "hint"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"riddles"},
		"additionalProperties": false,
	}

	fn := shared.FunctionDefinitionParam{
		Name:        riddleTool,
		Description: openai.String("Record one treasure hunt riddle with a hint for each location, in order."),
		Strict:      openai.Bool(true),
		Parameters:  schema,
	}

	prompt := fmt.Sprintf(`Write a treasure hunt with %d riddles.
Each riddle leads to one of these locations, in this order: %s.
Weave in these themes: %s.
Never name the location in the riddle. The hint helps without giving the answer away.
Answer by calling %s.`, len(locations), strings.Join(locations, ", "), strings.Join(themes, ", "), riddleTool)

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Function: fn,
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: riddleTool,
				},
			},
		},
	}

	resp, err := s.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("openai: no function call returned")
	}

	return parseRiddles(resp.Choices[0].Message.ToolCalls[0].Function.Arguments, len(locations))
}

func parseRiddles(arguments string, want int) ([]model.Riddle, error) {
	var out struct {
		Riddles []model.Riddle `json:"riddles"`
	}
	if err := json.Unmarshal([]byte(arguments), &out); err != nil {
		return nil, fmt.Errorf("unmarshal riddles: %w", err)
	}
	if len(out.Riddles) != want {
		return nil, fmt.Errorf("openai: got %d riddles for %d locations", len(out.Riddles), want)
	}
	return out.Riddles, nil
}
