package ai

import (
	"strings"

	"github.com/zhouzirui/luxbus/backend/internal/analysis/busquery"
	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
)

// PromptTemplate holds the fixed parts of the assistant system prompt.
type PromptTemplate struct {
	Role         string
	Capabilities []string
	Guidelines   []string
}

// DefaultPromptTemplate describes the travel assistant persona.
func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{
		Role: "You are a helpful AI travel assistant for a luxury bus tracking application. You have access to real-time bus data and can help users with:",
		Capabilities: []string{
			"Real-time bus tracking and locations",
			"Route planning and recommendations",
			"Traffic updates and delays",
			"Schedule information",
			"Capacity and crowding information",
		},
		Guidelines: []string{
			"Be conversational and helpful",
			"Provide specific, actionable information when possible",
			"Use emojis sparingly and only when they enhance the message",
			"If asked about buses not in the data, explain what information is available",
			"Format responses in a mobile-friendly way with clear sections",
			"Keep responses concise but informative",
			"Always prioritize user safety and accurate travel information",
		},
	}
}

// BuildSystemPrompt embeds the live bus snapshot into the template.
func (t PromptTemplate) BuildSystemPrompt(buses []bus.Bus) string {
	var builder strings.Builder
	builder.WriteString(t.Role)
	builder.WriteString("\n\n")
	for _, item := range t.Capabilities {
		builder.WriteString("- ")
		builder.WriteString(item)
		builder.WriteString("\n")
	}

	builder.WriteString("\nCurrent bus data: ")
	builder.WriteString(busquery.SnapshotContext(buses))

	builder.WriteString("\n\nGuidelines:\n")
	for i, item := range t.Guidelines {
		builder.WriteString("- ")
		builder.WriteString(item)
		if i < len(t.Guidelines)-1 {
			builder.WriteString("\n")
		}
	}
	return builder.String()
}
