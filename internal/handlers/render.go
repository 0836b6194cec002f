package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/middleware"
	"github.com/guildmint/backend/internal/models"
	"github.com/guildmint/backend/internal/services"
)

// callerFromContext pulls the identity and scope the auth middleware stored.
// A miss means the route was mounted outside the auth group.
func callerFromContext(w http.ResponseWriter, r *http.Request) (models.Identity, models.Scope, bool) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return models.Identity{}, models.Scope{}, false
	}
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return models.Identity{}, models.Scope{}, false
	}
	return ident, scope, true
}

// sendLedgerError maps a ledger error kind to its HTTP status. Anything
// outside the known kinds is an internal failure and is not echoed to the
// client.
func sendLedgerError(w http.ResponseWriter, err error) {
	var tooMany *ledger.TooManyCurrenciesError
	var notEnough *ledger.NotEnoughMoneyError
	var missingPerm *ledger.MissingPermissionError

	switch {
	case errors.Is(err, ledger.ErrCurrencyNotFound), errors.Is(err, ledger.ErrNoCurrencies):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrSimilarCurrency), errors.As(err, &tooMany):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, ledger.ErrInvalidIcon), errors.Is(err, ledger.ErrBadAmount), errors.As(err, &notEnough):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.As(err, &missingPerm):
		services.SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
	default:
		log.Printf("[HTTP] Internal error: %v", err)
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}

// decodeBody decodes a single JSON object into dst, rejecting unknown fields,
// trailing content and bodies over 1 MiB. It writes the error response itself
// and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
