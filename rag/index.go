package rag

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/becomeliminal/chat-go-sdk/embedding"
	"github.com/becomeliminal/chat-go-sdk/vectorstore"
)

// Document is a piece of text to index. An empty ID gets a random UUID.
type Document struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Index embeds docs in one batch and adds them to the engine's store under
// its text field. It returns the ids used, in input order.
func (e *Engine) Index(ctx context.Context, docs ...Document) ([]string, error) {
	ids, err := IndexDocuments(ctx, e.embedder, e.store, e.textField, docs...)
	if err == nil {
		e.tracef("Indexed %d documents", len(ids))
	}
	return ids, err
}

// IndexDocuments embeds docs in one batch and adds them to store, keeping
// each document's text under textField. On failure it returns the ids
// added so far.
func IndexDocuments(ctx context.Context, embedder embedding.Embedder, store vectorstore.Store, textField string, docs ...Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if textField == "" {
		textField = DefaultTextField
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := embedder.Embed(ctx, texts...)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if err := embedding.CheckCount(texts, vectors); err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta := make(map[string]any, len(d.Metadata)+1)
		maps.Copy(meta, d.Metadata)
		meta[textField] = d.Text

		if err := store.Add(ctx, id, vectors[i], meta); err != nil {
			return ids, fmt.Errorf("add document %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Chunk splits text into pieces of at most size characters, with overlap
// characters shared between neighbours where the text allows. Blank text
// yields no chunks.
func Chunk(text string, size, overlap int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	return chunks, nil
}

// ChunkDocument splits doc into one Document per chunk. Chunk ids are
// "<id>#<n>" and each chunk records its parent under "source".
func ChunkDocument(doc Document, size, overlap int) ([]Document, error) {
	chunks, err := Chunk(doc.Text, size, overlap)
	if err != nil {
		return nil, err
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}

	out := make([]Document, 0, len(chunks))
	for n, text := range chunks {
		meta := make(map[string]any, len(doc.Metadata)+2)
		maps.Copy(meta, doc.Metadata)
		meta["source"] = id
		meta["chunk"] = n
		out = append(out, Document{
			ID:       fmt.Sprintf("%s#%d", id, n),
			Text:     text,
			Metadata: meta,
		})
	}
	return out, nil
}
