package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/zkpoll/log"
	"github.com/vocdoni/zkpoll/types"
)

// newVote submits a vote for a poll
// POST /polls/{pollId}/votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	pollID, err := parsePollID(chi.URLParam(r, PollURLParam))
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(req.Proof) == 0 {
		ErrMalformedBody.With("missing proof").Write(w)
		return
	}

	err = a.manager.Vote(pollID, &types.ProofData{
		Proof:      req.Proof,
		Nullifier:  req.Nullifier,
		VoteOption: req.VoteOption,
	})
	if err != nil {
		pollErrorToAPI(err).Write(w)
		return
	}
	log.Infow("vote accepted", "pollId", pollID, "nullifier", req.Nullifier.String())
	httpWriteOK(w)
}

// nullifierStatus reports whether a nullifier has been consumed for a poll
// GET /polls/{pollId}/nullifiers/{nullifier}
func (a *API) nullifierStatus(w http.ResponseWriter, r *http.Request) {
	pollID, err := parsePollID(chi.URLParam(r, PollURLParam))
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	nullifier, err := types.HexStringToHexBytes(chi.URLParam(r, NullifierURLParam))
	if err != nil {
		ErrMalformedNullifier.WithErr(err).Write(w)
		return
	}
	p, err := a.manager.Poll(pollID)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if p == nil {
		ErrPollNotFound.Write(w)
		return
	}
	used, err := a.manager.IsNullifierUsed(pollID, nullifier)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, NullifierStatusResponse{Used: used})
}
