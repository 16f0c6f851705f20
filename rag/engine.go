// Package rag answers questions with retrieval-augmented generation: embed
// the question, pull the nearest documents from a vector store, fill a
// prompt template with their text, and ask the language model.
package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/embedding"
	"github.com/becomeliminal/chat-go-sdk/session"
	"github.com/becomeliminal/chat-go-sdk/vectorstore"
)

const (
	// DefaultTopK is the number of documents retrieved per question.
	DefaultTopK = 3
	// DefaultTextField is the metadata key holding document text.
	DefaultTextField = "text"
	// NoContext replaces an empty retrieval context in the prompt.
	NoContext = "No relevant context found."
)

// Asker generates a reply for a prompt. *session.Session implements it.
type Asker interface {
	Ask(ctx context.Context, prompt string) (*core.Response, error)
	Model() string
}

// Ensure *session.Session can back an Engine.
var _ Asker = (*session.Session)(nil)

// Engine orchestrates retrieval and generation. It holds no mutable state
// of its own; concurrency safety comes from the store and the Asker.
type Engine struct {
	llm      Asker
	embedder embedding.Embedder
	store    vectorstore.Store

	templateName string
	rules        []TemplateRule
	prompt       prompts.PromptTemplate
	topK         int
	strict       bool
	trace        bool
	textField    string
	logger       *log.Logger

	// asks keeps Ask and AskAsync answers in call order.
	asks session.Queue
}

// Option configures an Engine.
type Option func(*Engine)

// WithTemplate selects a template by name, or "auto" to choose one from the
// model name.
func WithTemplate(name string) Option {
	return func(e *Engine) { e.templateName = name }
}

// WithTemplateRules replaces the auto-selection table.
func WithTemplateRules(rules []TemplateRule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithTopK sets how many documents are retrieved.
func WithTopK(k int) Option {
	return func(e *Engine) { e.topK = k }
}

// WithStrictMode logs a warning whenever retrieval finds no usable text.
func WithStrictMode(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithTrace logs each pipeline step.
func WithTrace(trace bool) Option {
	return func(e *Engine) { e.trace = trace }
}

// WithTextField sets the metadata key read for document text.
func WithTextField(field string) Option {
	return func(e *Engine) {
		if field != "" {
			e.textField = field
		}
	}
}

// WithLogger sets the logger for warnings and traces.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine. An unknown template name is an error.
func New(llm Asker, embedder embedding.Embedder, store vectorstore.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		llm:          llm,
		embedder:     embedder,
		store:        store,
		templateName: TemplateAuto,
		rules:        DefaultTemplateRules,
		topK:         DefaultTopK,
		textField:    DefaultTextField,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.templateName == TemplateAuto {
		e.templateName = SelectTemplate(llm.Model(), e.rules)
		e.tracef("Auto-selected prompt template %q for model %q", e.templateName, llm.Model())
	}
	prompt, err := lookupTemplate(e.templateName)
	if err != nil {
		return nil, err
	}
	e.prompt = prompt
	return e, nil
}

// Template returns the name of the template in use.
func (e *Engine) Template() string { return e.templateName }

// TopK returns the retrieval depth.
func (e *Engine) TopK() int { return e.topK }

// Store returns the underlying vector store.
func (e *Engine) Store() vectorstore.Store { return e.store }

// Retrieve runs the retrieval half of the pipeline and returns the filled
// prompt together with the documents it was built from.
func (e *Engine) Retrieve(ctx context.Context, question string) (string, []vectorstore.Result, error) {
	e.tracef("Asking question: %q (top_k=%d)", question, e.topK)

	query, err := embedding.One(ctx, e.embedder, question)
	if err != nil {
		return "", nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := e.store.SimilaritySearch(ctx, query, e.topK)
	if err != nil {
		return "", nil, fmt.Errorf("search store: %w", err)
	}
	e.tracef("Retrieved %d documents", len(results))
	for _, r := range results {
		e.tracef("  %s score=%.4f", r.ID, r.Score)
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		text, _ := r.Metadata[e.textField].(string)
		texts = append(texts, text)
	}
	contextText := strings.Join(texts, "\n\n")
	if strings.TrimSpace(contextText) == "" {
		if e.strict {
			e.logger.Printf("[RAG] Warning: no documents found for the query; proceeding without context")
		}
		contextText = NoContext
	}

	prompt, err := e.prompt.Format(map[string]any{
		"context":  contextText,
		"question": question,
	})
	if err != nil {
		return "", nil, fmt.Errorf("fill %s template: %w", e.templateName, err)
	}
	e.tracef("Augmented prompt:\n%s", prompt)
	return prompt, results, nil
}

// Ask answers question from retrieved context.
func (e *Engine) Ask(ctx context.Context, question string) (*core.Response, error) {
	return e.ask(ctx, e.asks.Reserve(), question)
}

func (e *Engine) ask(ctx context.Context, slot *session.Slot, question string) (*core.Response, error) {
	if err := slot.Wait(ctx); err != nil {
		return nil, err
	}
	defer slot.Release()

	prompt, _, err := e.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	return e.llm.Ask(ctx, prompt)
}

// AskAsync runs Ask on a goroutine and delivers exactly one result.
// Questions issued one after another reach the session in that order.
func (e *Engine) AskAsync(ctx context.Context, question string) <-chan session.Result {
	slot := e.asks.Reserve()
	out := make(chan session.Result, 1)
	go func() {
		resp, err := e.ask(ctx, slot, question)
		out <- session.Result{Response: resp, Err: err}
	}()
	return out
}

// Save writes the vector store to path.
func (e *Engine) Save(path string) error {
	e.tracef("Saving vector store to %q", path)
	return e.store.Save(path)
}

// Load replaces the vector store contents with the file at path.
func (e *Engine) Load(path string) error {
	e.tracef("Loading vector store from %q", path)
	return e.store.Load(path)
}

func (e *Engine) tracef(format string, args ...any) {
	if e.trace {
		e.logger.Printf("[RAG TRACE] "+format, args...)
	}
}
