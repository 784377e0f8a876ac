package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"surveydash/internal/config"
	"surveydash/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
	Apply  func(config.Config)
}

type setTokenReq struct {
	Token string `json:"token"`
}

func (h SecretsHandler) SetToken(w http.ResponseWriter, r *http.Request) {
	var req setTokenReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "token is required")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetAPIToken(cfg, req.Token); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keychain_error", "failed to store token: "+err.Error())
		return
	}
	if h.Apply != nil {
		h.Apply(cfg)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.DeleteAPIToken(cfg); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keychain_error", "failed to delete token: "+err.Error())
		return
	}
	if h.Apply != nil {
		h.Apply(cfg)
	}
	w.WriteHeader(http.StatusNoContent)
}

// TokenStatus reports whether a token resolves, never the token itself.
func (h SecretsHandler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	tok, err := secrets.APIToken(cfg)
	if err != nil && !errors.Is(err, secrets.ErrTokenNotFound) {
		WriteError(w, r, http.StatusInternalServerError, "keychain_error", err.Error())
		return
	}
	writeJSON(w, map[string]any{
		"set":     tok != "",
		"masked":  secrets.Mask(tok),
		"account": secrets.KeyringAccount(cfg),
	})
}
