package server

import (
	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/rag"
)

// Message types exchanged on the streaming websocket.
const (
	TypeAsk   = "ask"   // client -> server
	TypeReset = "reset" // client -> server
	TypeChunk = "chunk" // server -> client, one per streamed piece
	TypeDone  = "done"  // server -> client, after the last chunk
	TypeError = "error" // server -> client
)

// ClientMessage is a request sent over the websocket.
type ClientMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
}

// ServerMessage is an event sent over the websocket.
type ServerMessage struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id,omitempty"`
	Content    string `json:"content,omitempty"`
	HistoryLen int    `json:"history_len,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// SessionInfo describes a conversation.
type SessionInfo struct {
	ID          string         `json:"session_id"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	State       string         `json:"state"`
	Temperature *float64       `json:"temperature"`
	MaxTokens   *int           `json:"max_tokens"`
	History     []core.Message `json:"history,omitempty"`
}

// AskRequest is the body of the ask endpoints.
type AskRequest struct {
	Prompt string `json:"prompt"`
}

// AskResponse carries a model reply.
type AskResponse struct {
	Content    string `json:"content"`
	TokensUsed *int   `json:"tokens_used"`
	Provider   string `json:"provider"`
}

// RAGAskRequest is the body of POST /v1/sessions/:id/rag.
type RAGAskRequest struct {
	Question string `json:"question"`
}

// RAGAskResponse is a RAG reply plus the documents it drew on.
type RAGAskResponse struct {
	AskResponse
	Sources []Source `json:"sources"`
}

// Source is one retrieved document.
type Source struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// IndexRequest is the body of POST /v1/documents.
type IndexRequest struct {
	Documents []rag.Document `json:"documents"`
	ChunkSize int            `json:"chunk_size,omitempty"`
	Overlap   int            `json:"overlap,omitempty"`
}

// IndexResponse lists the ids that were stored.
type IndexResponse struct {
	IDs   []string `json:"ids"`
	Total int      `json:"total"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
