package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/rag"
	"github.com/becomeliminal/chat-go-sdk/session"
)

// ListModels lists registered models.
// GET /v1/models
func (s *Server) ListModels(c echo.Context) error {
	models := []session.ModelID{}
	if s.registry != nil {
		models = s.registry.Models()
	}
	out := make([]map[string]string, len(models))
	for i, id := range models {
		out[i] = map[string]string{"provider": id.Provider, "model": id.Model}
	}
	return c.JSON(http.StatusOK, map[string]any{"models": out})
}

// CreateSession starts a conversation.
// POST /v1/sessions
func (s *Server) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	conv, err := s.sessions(req.Model)
	if err != nil {
		return s.fail(c, err)
	}
	if req.SystemPrompt != "" {
		conv.SysPrompt(req.SystemPrompt)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.convs[id] = conv
	s.mu.Unlock()
	s.logger.Printf("[SERVER] Created session %s (%s/%s)", id, conv.Provider(), conv.Model())

	return c.JSON(http.StatusCreated, describe(id, conv, false))
}

// GetSession returns a conversation and its history.
// GET /v1/sessions/:id
func (s *Server) GetSession(c echo.Context) error {
	id := c.Param("id")
	conv, ok := s.conversation(id)
	if !ok {
		return notFound(c)
	}
	return c.JSON(http.StatusOK, describe(id, conv, true))
}

// DeleteSession forgets a conversation. Long-term memory is kept.
// DELETE /v1/sessions/:id
func (s *Server) DeleteSession(c echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.convs[id]
	delete(s.convs, id)
	s.mu.Unlock()
	if !ok {
		return notFound(c)
	}
	return c.NoContent(http.StatusNoContent)
}

// Ask sends a prompt and waits for the whole reply.
// POST /v1/sessions/:id/ask
func (s *Server) Ask(c echo.Context) error {
	conv, ok := s.conversation(c.Param("id"))
	if !ok {
		return notFound(c)
	}
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return badRequest(c, "prompt is required")
	}

	resp, err := conv.Ask(c.Request().Context(), req.Prompt)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, answer(resp))
}

// Reset clears a conversation's history and settings.
// POST /v1/sessions/:id/reset
func (s *Server) Reset(c echo.Context) error {
	id := c.Param("id")
	conv, ok := s.conversation(id)
	if !ok {
		return notFound(c)
	}
	conv.Reset()
	return c.JSON(http.StatusOK, describe(id, conv, false))
}

// AskRAG answers a question from indexed documents within a conversation.
// POST /v1/sessions/:id/rag
func (s *Server) AskRAG(c echo.Context) error {
	if s.engines == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "retrieval is not configured", Code: "not_configured"})
	}
	conv, ok := s.conversation(c.Param("id"))
	if !ok {
		return notFound(c)
	}
	var req RAGAskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return badRequest(c, "question is required")
	}

	engine, err := s.engines(conv)
	if err != nil {
		return s.fail(c, err)
	}
	ctx := c.Request().Context()
	prompt, results, err := engine.Retrieve(ctx, req.Question)
	if err != nil {
		return s.fail(c, err)
	}
	resp, err := conv.Ask(ctx, prompt)
	if err != nil {
		return s.fail(c, err)
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{ID: r.ID, Score: r.Score}
	}
	return c.JSON(http.StatusOK, RAGAskResponse{AskResponse: answer(resp), Sources: sources})
}

// IndexDocuments embeds and stores documents, optionally chunking them.
// POST /v1/documents
func (s *Server) IndexDocuments(c echo.Context) error {
	if s.store == nil || s.embedder == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "retrieval is not configured", Code: "not_configured"})
	}
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return badRequest(c, "documents are required")
	}

	docs := req.Documents
	if req.ChunkSize > 0 {
		docs = nil
		for _, d := range req.Documents {
			chunks, err := rag.ChunkDocument(d, req.ChunkSize, req.Overlap)
			if err != nil {
				return badRequest(c, err.Error())
			}
			docs = append(docs, chunks...)
		}
	}

	ids, err := rag.IndexDocuments(c.Request().Context(), s.embedder, s.store, s.textField, docs...)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, IndexResponse{IDs: ids, Total: s.store.Len()})
}

func describe(id string, conv *session.Session, withHistory bool) SessionInfo {
	info := conv.ModelInfo()
	out := SessionInfo{
		ID:          id,
		Provider:    info.Provider,
		Model:       info.Model,
		State:       conv.State().String(),
		Temperature: info.Temperature,
		MaxTokens:   info.MaxTokens,
	}
	if withHistory {
		out.History = conv.History()
	}
	return out
}

func answer(resp *core.Response) AskResponse {
	return AskResponse{Content: resp.Content, TokensUsed: resp.TokensUsed, Provider: resp.Provider}
}
