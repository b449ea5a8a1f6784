package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Dan9191/cashflow-risk/internal/models"
	"github.com/Dan9191/cashflow-risk/internal/risk"
	"github.com/Dan9191/cashflow-risk/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxStatementBytes = 10 << 20

// Handler serves the risk API
type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type loginRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Health reports liveness and the live model version
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "API running",
		"model_version": h.svc.ModelVersion(),
	})
}

// Login exchanges client credentials for a JWT token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.svc.IssueToken(req.ClientID, req.ClientSecret)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Predict scores an 11-feature map
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var values map[string]*float64
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be an object of numeric features")
		return
	}
	resp, err := h.svc.Predict(values)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// IngestTransactions stores a JSON array of ledger records
func (h *Handler) IngestTransactions(w http.ResponseWriter, r *http.Request) {
	var raw []models.RawTransaction
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be an array of transactions")
		return
	}
	res, err := h.svc.IngestTransactions(r.Context(), raw)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// IngestStatement imports a camt.053 XML statement for the SME in the path
func (h *Handler) IngestStatement(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStatementBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "statement too large")
		return
	}
	res, err := h.svc.IngestStatement(r.Context(), mux.Vars(r)["id"], body)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// RiskHistory returns the scored monthly history of an SME
func (h *Handler) RiskHistory(w http.ResponseWriter, r *http.Request) {
	smeID := mux.Vars(r)["id"]
	rows, err := h.svc.ScoreSME(r.Context(), smeID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sme_id":        smeID,
		"model_version": rows[len(rows)-1].ModelVersion,
		"history":       rows,
	})
}

// Simulate runs a what-if on the SME's latest month
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req models.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Simulate(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Train retrains the model on all stored transactions
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Train(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Reload publishes the latest persisted model
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	version, err := h.svc.ReloadModel(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model_version": version})
}

// fail maps service errors to HTTP responses
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var se *risk.SchemaError
	switch {
	case errors.As(err, &se):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":            se.Error(),
			"missing_features": se.Missing,
		})
	case errors.Is(err, service.ErrInvalidSimulation), errors.Is(err, service.ErrInvalidStatement):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrSMENotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, risk.ErrInsufficientData), errors.Is(err, risk.ErrEmptyInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, risk.ErrModelNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Errorf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
