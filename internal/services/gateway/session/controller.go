package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NordCoder/hbgate/internal/identity"
	"go.uber.org/zap"
)

type Opts struct {
	Logger *zap.Logger
	// Mode is "proxy" or "direct"; APIBase is what clients should call in that mode.
	Mode    string
	APIBase string
}

type Controller struct {
	uc   *Usecase
	log  *zap.Logger
	mode string
	base string
}

func NewController(uc *Usecase, o Opts) *Controller {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{uc: uc, log: log, mode: o.Mode, base: o.APIBase}
}

type sessionResponse struct {
	Token     string             `json:"token"`
	ExpiresAt int64              `json:"expires_at"`
	APIBase   string             `json:"api_base"`
	Mode      string             `json:"mode"`
	User      *identity.Identity `json:"user"`
}

func (c *Controller) Session(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromCtx(r.Context())
	token, cl, err := c.uc.Mint(id)
	if err != nil {
		if errors.Is(err, ErrSessionRequired) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session_required"})
			return
		}
		c.log.Error("mint token", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	c.log.Debug("token minted", zap.Int64("user_id", id.UserID), zap.Int64("exp", cl.ExpiresAt))
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: cl.ExpiresAt,
		APIBase:   c.base,
		Mode:      c.mode,
		User:      id,
	})
}

func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
