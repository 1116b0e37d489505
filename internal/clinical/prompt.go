package clinical

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/doctorhouse/internal/llm"
)

const (
	DefaultMaxTokens = 1024
	maxTemperature   = 0.1
)

const systemRole = "You are a medical expert specialized in clinical data extraction. " +
	"Your task is to extract information from clinical histories."

var extractionRules = []string{
	"Personal data fields must NEVER be left empty.",
	"Write the birth date as DD/MM/YYYY.",
	"The current illness must ALWAYS include treatment, required exams and specialist referral.",
	"Include candidate illnesses only when they exist; otherwise write \"" + NoCandidateIllnesses + "\".",
	"List at most two candidate illnesses, ordered by relevance.",
	"When treatment, exams, referral or recommendations are not stated in the text, generate clinically plausible values based on the physical exam and the consultation reason.",
	"Use \"" + GeneralPractitioner + "\" as the specialist referral when no specialist is indicated.",
	"Numeric fields must contain ONLY the numeric value, without units or extra text.",
	"Write \"" + NotAvailable + "\" for any field that is not found in the text.",
	"Follow EXACTLY the structure shown below.",
	"If weight or height are given in non-metric units (pounds, feet, inches), convert them to kilograms and centimeters.",
}

// PromptOptions tunes the completion request. Temperature is clamped to
// [0, 0.1]; a zero MaxTokens means DefaultMaxTokens.
type PromptOptions struct {
	Temperature float64
	MaxTokens   int
}

// ExtractionRequest is the chat payload for one transcript. It is built per
// request and never stored.
type ExtractionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// BuildExtractionRequest wraps the cleaned transcript with the extraction
// policy and the expected record structure.
func BuildExtractionRequest(transcript string, opts PromptOptions) ExtractionRequest {
	temp := opts.Temperature
	if temp < 0 {
		temp = 0
	}
	if temp > maxTemperature {
		temp = maxTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return ExtractionRequest{
		System:      systemPrompt(),
		User:        transcript,
		Temperature: temp,
		MaxTokens:   maxTokens,
	}
}

// ChatRequest converts the payload to a gateway request for model.
func (r ExtractionRequest) ChatRequest(model string) llm.ChatRequest {
	return llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: r.System},
			{Role: llm.RoleUser, Content: r.User},
		},
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString(systemRole)
	b.WriteString("\n\nClinical data extraction policy. Extract every clinical field from the text and return ONLY valid JSON.\n")
	b.WriteString("CRITICAL rules:\n")
	for i, rule := range extractionRules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}
	b.WriteString("\nRequired structure:\n")
	b.WriteString(schemaTemplate)
	return b.String()
}

var schemaTemplate = mustTemplateJSON()

func mustTemplateJSON() string {
	b, err := json.MarshalIndent(Template(), "", "  ")
	if err != nil {
		panic(fmt.Sprintf("clinical: marshal template: %v", err))
	}
	return string(b)
}
