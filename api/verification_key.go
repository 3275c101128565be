package api

import (
	"encoding/json"
	"net/http"

	"github.com/vocdoni/zkpoll/log"
)

// setVerificationKey stores a new proof verification key
// POST /verification-key
func (a *API) setVerificationKey(w http.ResponseWriter, r *http.Request) {
	var req VerificationKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(req.VerificationKey) == 0 {
		ErrMalformedBody.With("missing verification key").Write(w)
		return
	}
	if err := a.manager.SetVerificationKey(req.Caller, req.VerificationKey); err != nil {
		pollErrorToAPI(err).Write(w)
		return
	}
	log.Infow("verification key updated", "caller", req.Caller.Hex(), "bytes", len(req.VerificationKey))
	httpWriteOK(w)
}

// verificationKey returns the stored proof verification key
// GET /verification-key
func (a *API) verificationKey(w http.ResponseWriter, r *http.Request) {
	key, err := a.manager.VerificationKey()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if key == nil {
		ErrResourceNotFound.With("no verification key set").Write(w)
		return
	}
	httpWriteJSON(w, VerificationKeyResponse{VerificationKey: key})
}
