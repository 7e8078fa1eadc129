package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chainworks/chain-studio/internal/auth"
	"github.com/chainworks/chain-studio/internal/config"
	"github.com/chainworks/chain-studio/internal/core"
	"github.com/chainworks/chain-studio/internal/store"
)

type APIHandler struct {
	chains    *core.ChainService
	generator *core.GenerationService
	polisher  *core.PromptService
}

func NewAPIHandler(chains *core.ChainService, generator *core.GenerationService, polisher *core.PromptService) *APIHandler {
	return &APIHandler{chains: chains, generator: generator, polisher: polisher}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError emits the uniform {"error": message} envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps service/store errors onto the boundary status codes:
// 404 unknown entity, 400 bad input, 503 misconfiguration, the provider's own
// status for provider failures, 500 everything else.
func writeDomainError(w http.ResponseWriter, err error, logMsg string) {
	var provErr *core.ProviderError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrProviderNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &provErr):
		writeError(w, provErr.StatusCode, provErr.Body)
	default:
		log.Error().Err(err).Msg(logMsg)
		writeError(w, http.StatusInternalServerError, logMsg)
	}
}

// AdminAuthMiddleware rejects mutating requests whose X-Admin-Key header does
// not match the configured secret, before any store or provider access.
func (h *APIHandler) AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.VerifyKey(r.Header.Get("X-Admin-Key"), config.AppConfig.AdminKey) {
			writeError(w, http.StatusUnauthorized, "invalid or missing admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Chain handlers

func (h *APIHandler) ListChainsHandler(w http.ResponseWriter, r *http.Request) {
	chains, err := h.chains.ListChains(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to list chains")
		return
	}
	writeJSON(w, http.StatusOK, chains)
}

type CreateChainRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *APIHandler) CreateChainHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id, err := h.chains.CreateChain(r.Context(), req.Name, req.Description)
	if err != nil {
		writeDomainError(w, err, "failed to create chain")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *APIHandler) UpdateChainHandler(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "chainID")

	var patch store.ChainMetaPatch
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if err := h.chains.UpdateChainMeta(r.Context(), chainID, patch); err != nil {
		writeDomainError(w, err, "failed to update chain")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *APIHandler) DeleteChainHandler(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "chainID")
	if err := h.chains.DeleteChain(r.Context(), chainID); err != nil {
		writeDomainError(w, err, "failed to delete chain")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type CreateVersionRequest struct {
	BasePrompt     string                 `json:"basePrompt"`
	NegativePrompt string                 `json:"negativePrompt"`
	Modules        []store.Module         `json:"modules"`
	Params         store.GenerationParams `json:"params"`
}

func (h *APIHandler) CreateVersionHandler(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "chainID")

	var req CreateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id, version, err := h.chains.CreateVersion(r.Context(), chainID, req.BasePrompt, req.NegativePrompt, req.Modules, req.Params)
	if err != nil {
		writeDomainError(w, err, "failed to create version")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "version": version})
}

// Artist handlers

func (h *APIHandler) ListArtistsHandler(w http.ResponseWriter, r *http.Request) {
	artists, err := h.chains.ListArtists(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to list artists")
		return
	}
	writeJSON(w, http.StatusOK, artists)
}

func (h *APIHandler) SaveArtistHandler(w http.ResponseWriter, r *http.Request) {
	var artist store.Artist
	if err := json.NewDecoder(r.Body).Decode(&artist); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id, err := h.chains.SaveArtist(r.Context(), artist)
	if err != nil {
		writeDomainError(w, err, "failed to save artist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (h *APIHandler) DeleteArtistHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chains.DeleteArtist(r.Context(), chi.URLParam(r, "artistID")); err != nil {
		writeDomainError(w, err, "failed to delete artist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Inspiration handlers

func (h *APIHandler) ListInspirationsHandler(w http.ResponseWriter, r *http.Request) {
	inspirations, err := h.chains.ListInspirations(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to list inspirations")
		return
	}
	writeJSON(w, http.StatusOK, inspirations)
}

func (h *APIHandler) SaveInspirationHandler(w http.ResponseWriter, r *http.Request) {
	var insp store.Inspiration
	if err := json.NewDecoder(r.Body).Decode(&insp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id, err := h.chains.SaveInspiration(r.Context(), insp)
	if err != nil {
		writeDomainError(w, err, "failed to save inspiration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (h *APIHandler) DeleteInspirationHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chains.DeleteInspiration(r.Context(), chi.URLParam(r, "inspirationID")); err != nil {
		writeDomainError(w, err, "failed to delete inspiration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Generation handlers

type GenerateRequest struct {
	Prompt         string                 `json:"prompt"`
	NegativePrompt string                 `json:"negativePrompt"`
	Params         store.GenerationParams `json:"params"`
}

func (h *APIHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	result, err := h.generator.Generate(r.Context(), req.Prompt, req.NegativePrompt, req.Params)
	if err != nil {
		writeDomainError(w, err, "image generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Resolved-Seed", strconv.FormatInt(result.Seed, 10))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Image)
}

type PolishPromptRequest struct {
	Draft string `json:"draft"`
}

func (h *APIHandler) PolishPromptHandler(w http.ResponseWriter, r *http.Request) {
	if h.polisher == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt polishing is not configured")
		return
	}
	var req PolishPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	polished, err := h.polisher.Polish(r.Context(), req.Draft)
	if err != nil {
		writeDomainError(w, err, "prompt polishing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": polished})
}

type VerifyKeyRequest struct {
	Key string `json:"key"`
}

func (h *APIHandler) VerifyKeyHandler(w http.ResponseWriter, r *http.Request) {
	var req VerifyKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !auth.VerifyKey(req.Key, config.AppConfig.AdminKey) {
		writeError(w, http.StatusUnauthorized, "invalid key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
