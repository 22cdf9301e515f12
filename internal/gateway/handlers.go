package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/atendimento-virtual/server/internal/agent/model"
	errx "github.com/atendimento-virtual/server/internal/core/error"
)

const maxBodyBytes = 16 << 10

// Assistant is the orchestration facade served over HTTP.
type Assistant interface {
	Integrated(ctx context.Context, raw []byte) (*model.AssistResult, error)
	Assist(ctx context.Context, raw []byte) (*model.AssistResult, error)
}

type assistResponse struct {
	RequestID string               `json:"requestId"`
	Policy    model.PolicyDecision `json:"politica"`
	Assistant string               `json:"assistant"`
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type turnJSON struct {
	Role    schema.RoleType `json:"role"`
	Content string          `json:"content"`
}

type conversationResponse struct {
	CustomerID string     `json:"idCliente"`
	Turns      int        `json:"turnos"`
	Messages   []turnJSON `json:"mensagens"`
}

func readBody(r *http.Request, w http.ResponseWriter) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := "não foi possível ler o corpo da requisição"
		if errors.As(err, &tooLarge) {
			msg = "corpo da requisição muito grande"
		}
		return nil, errx.Validation([]errx.FieldError{{Field: "(body)", Message: msg}})
	}
	return raw, nil
}

// handleIntegrated serves POST /integrated.
func (g *Gateway) handleIntegrated() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := readBody(r, w)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := g.assistant.Integrated(r.Context(), raw)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleAssistant serves POST /assistant with caller-supplied sentiment.
func (g *Gateway) handleAssistant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := readBody(r, w)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := g.assistant.Assist(r.Context(), raw)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, assistResponse{
			RequestID: res.RequestID,
			Policy:    res.Policy,
			Assistant: res.Assistant,
		})
	}
}

func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: g.config.StoreName})
	}
}

// handleGetConversation returns a customer's stored turns.
func (g *Gateway) handleGetConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		h, err := g.conversations.LoadHistory(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if h.Len() == 0 {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "conversa não encontrada"})
			return
		}

		resp := conversationResponse{CustomerID: id, Turns: h.Len(), Messages: make([]turnJSON, 0, h.Len())}
		for _, m := range h.Messages {
			resp.Messages = append(resp.Messages, turnJSON{Role: m.Role, Content: m.Content})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleDeleteConversation drops a customer's history; the next request reseeds it.
func (g *Gateway) handleDeleteConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		unlock := g.locks.Lock(id)
		defer unlock()

		if err := g.conversations.ClearHistory(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
