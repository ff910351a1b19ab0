package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SessionSummaryInput struct {
	Transcript string `json:"transcript" validate:"required"`
}

type SessionSummaryOutput struct {
	Summary string `json:"summary" validate:"required"`
}

type PostCallReflectionsInput struct {
	SessionThemes  []string `json:"sessionThemes" validate:"required,min=1,dive,required"`
	SessionSummary string   `json:"sessionSummary" validate:"required"`
}

type PostCallReflectionsOutput struct {
	ReflectionPrompts []string `json:"reflectionPrompts" validate:"required,min=3,max=5,dive,required"`
}

const sessionSummaryPrompt = `You are an AI assistant tasked with summarizing an astrology session transcript.
Your goal is to extract the most important information, focusing on:
- Key advice given to the user.
- Any predictions made by the astrologer.
- Major discussion points or themes that emerged during the conversation.

Provide a concise and clear summary in a single paragraph.

Respond with a JSON object of the form {"summary": string} and nothing else.

Transcript:
{{.Transcript}}`

const postCallReflectionsPrompt = `You are an AI assistant designed to help users reflect on their astrology sessions.

Based on the following themes and summary from an astrology session, generate 3-5 personalized, thought-provoking reflection prompts or journal starters. The prompts should help the user process and integrate the insights gained from their call.

Themes: {{range .SessionThemes}}{{.}}; {{end}}
Summary: {{.SessionSummary}}

Ensure the prompts are open-ended and encourage deep personal introspection.

Respond with a JSON object of the form {"reflectionPrompts": [string, ...]} and nothing else.`

type Flows struct {
	client *Client
}

func NewFlows(client *Client) *Flows {
	return &Flows{client: client}
}

// SummarizeSession produces a one-paragraph summary of a session
// transcript.
func (f *Flows) SummarizeSession(ctx context.Context, input SessionSummaryInput) (SessionSummaryOutput, error) {
	var out SessionSummaryOutput
	if err := validate.Struct(input); err != nil {
		return out, fmt.Errorf("%w: invalid input: %v", ErrGeneration, err)
	}

	instruction, err := renderPrompt("sessionSummary", sessionSummaryPrompt, input)
	if err != nil {
		return out, err
	}
	text, err := f.client.Generate(ctx, instruction)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &out); err != nil {
		return out, fmt.Errorf("%w: malformed output: %v", ErrGeneration, err)
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("%w: output schema: %v", ErrGeneration, err)
	}
	return out, nil
}

// GeneratePostCallReflections produces 3-5 journal prompts from session
// themes and a summary.
func (f *Flows) GeneratePostCallReflections(ctx context.Context, input PostCallReflectionsInput) (PostCallReflectionsOutput, error) {
	var out PostCallReflectionsOutput
	if err := validate.Struct(input); err != nil {
		return out, fmt.Errorf("%w: invalid input: %v", ErrGeneration, err)
	}

	instruction, err := renderPrompt("postCallReflections", postCallReflectionsPrompt, input)
	if err != nil {
		return out, err
	}
	text, err := f.client.Generate(ctx, instruction)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &out); err != nil {
		return out, fmt.Errorf("%w: malformed output: %v", ErrGeneration, err)
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("%w: output schema: %v", ErrGeneration, err)
	}
	return out, nil
}
