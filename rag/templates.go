package rag

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// Built-in template names.
const (
	TemplateAuto            = "auto"
	TemplateContextQuestion = "context_question"
	TemplateQABlock         = "qa_block"
	TemplatePlain           = "plain"
)

// ErrUnknownTemplate is returned when a template name is not registered.
var ErrUnknownTemplate = errors.New("unknown prompt template")

// Prompt templates use f-string placeholders {context} and {question}.
var templates = map[string]string{
	TemplateContextQuestion: "Context: {context}\n\n" +
		"Question: {question}\n\n" +
		"Answer the question based on the provided context.",
	TemplateQABlock: "--- BEGIN CONTEXT ---\n" +
		"{context}\n" +
		"--- END CONTEXT ---\n\n" +
		"--- BEGIN QUESTION ---\n" +
		"{question}\n" +
		"--- END QUESTION ---\n\n" +
		"Please provide a detailed answer based on the context above.",
	TemplatePlain: "{context}\n\n{question}",
}

// TemplateRule picks Template when a model name contains Match, compared
// case-insensitively.
type TemplateRule struct {
	Match    string `yaml:"match" json:"match"`
	Template string `yaml:"template" json:"template"`
}

// DefaultTemplateRules is the auto-selection table used when no rules are
// configured.
var DefaultTemplateRules = []TemplateRule{
	{Match: "claude", Template: TemplateQABlock},
}

// Templates lists the registered template names.
func Templates() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SelectTemplate applies rules in order to model and falls back to
// context_question.
func SelectTemplate(model string, rules []TemplateRule) string {
	lower := strings.ToLower(model)
	for _, rule := range rules {
		if rule.Match != "" && strings.Contains(lower, strings.ToLower(rule.Match)) {
			return rule.Template
		}
	}
	return TemplateContextQuestion
}

func lookupTemplate(name string) (prompts.PromptTemplate, error) {
	text, ok := templates[name]
	if !ok {
		return prompts.PromptTemplate{}, fmt.Errorf("%w %q (available: %s)",
			ErrUnknownTemplate, name, strings.Join(Templates(), ", "))
	}
	return prompts.PromptTemplate{
		Template:       text,
		InputVariables: []string{"context", "question"},
		TemplateFormat: prompts.TemplateFormatFString,
	}, nil
}
