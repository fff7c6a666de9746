package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/harrylevesque/pinauth/internal/auth"
	"github.com/harrylevesque/pinauth/internal/models"
	"github.com/harrylevesque/pinauth/internal/storage"
	"github.com/harrylevesque/pinauth/internal/utils"
)

// maxBodyBytes bounds request bodies; PIN payloads are tiny.
const maxBodyBytes = 4 << 10

type Handler struct {
	svc *auth.Service
	log zerolog.Logger
}

type PinRequest struct {
	Account string         `json:"account,omitempty"`
	Pin     models.PinCode `json:"pin"`
}

type ChangeRequest struct {
	Account string         `json:"account,omitempty"`
	OldPin  models.PinCode `json:"old_pin"`
	NewPin  models.PinCode `json:"new_pin"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ValidateRegistration(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Manager().ValidateRegistration(req.Pin); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) ValidateLogin(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Manager().ValidateLogin(req.Pin); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Register(r.Context(), account(req.Account), req.Pin); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, okResponse{OK: true})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Login(r.Context(), account(req.Account), req.Pin); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) Change(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.svc.ChangePin(r.Context(), account(req.Account), req.OldPin, req.NewPin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), account(r.URL.Query().Get("account")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func account(name string) string {
	if name == "" {
		return storage.DefaultAccount
	}
	return name
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.New(http.StatusBadRequest, "invalid_request", "request body is not valid JSON"))
		return false
	}
	return true
}

// codedError maps err to the payload shown to clients. Crypto failures are
// reported without their cause.
func codedError(err error) *utils.CodedError {
	kind := auth.Kind(err)
	switch kind {
	case auth.KindPinCodeIsEmpty:
		return utils.New(http.StatusBadRequest, kind.String(), "PIN code must not be empty")
	case auth.KindPinCodeTooShort:
		return utils.New(http.StatusUnprocessableEntity, kind.String(), err.Error())
	case auth.KindInvalidEncoding:
		return utils.New(http.StatusBadRequest, kind.String(), "PIN code is not valid UTF-8")
	case auth.KindPinCodeMismatch:
		return utils.New(http.StatusUnauthorized, kind.String(), "PIN code does not match")
	case auth.KindLockedOut:
		return utils.New(http.StatusLocked, kind.String(), "too many failed attempts")
	case auth.KindNoPinCode:
		return utils.New(http.StatusNotFound, kind.String(), "no PIN code registered")
	case auth.KindPinCodeExists:
		return utils.New(http.StatusConflict, kind.String(), "PIN code already registered, use /pin/change")
	default:
		return utils.New(http.StatusInternalServerError, auth.KindCrypto.String(), "cannot proceed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ce := codedError(err)
	if ce.Status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", ce.Code).Msg("request failed")
	}
	writeJSON(w, ce.Status, ce)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
