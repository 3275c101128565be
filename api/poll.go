package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/zkpoll/log"
	"github.com/vocdoni/zkpoll/types"
)

// newPoll creates a new poll from the request definition
// POST /polls
func (a *API) newPoll(w http.ResponseWriter, r *http.Request) {
	var req NewPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.Title == "" {
		ErrMalformedPollDefinition.With("missing title").Write(w)
		return
	}
	if len(req.Options) == 0 {
		ErrMalformedPollDefinition.With("missing options").Write(w)
		return
	}
	if len(req.MerkleRoot) != types.MerkleRootLength {
		ErrMalformedPollDefinition.Withf("merkle root must be %d bytes", types.MerkleRootLength).Write(w)
		return
	}

	pollID, err := a.manager.CreatePoll(req.Creator, req.Title, req.Description,
		req.Options, req.MerkleRoot, req.Duration)
	if err != nil {
		pollErrorToAPI(err).Write(w)
		return
	}
	log.Infow("new poll created", "pollId", pollID, "creator", req.Creator.Hex())
	httpWriteJSON(w, NewPollResponse{PollID: pollID})
}

// listPolls returns the ids of all existing polls
// GET /polls
func (a *API) listPolls(w http.ResponseWriter, _ *http.Request) {
	ids, err := a.manager.ListPolls()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, PollListResponse{Polls: ids})
}

// pollInfo returns the full poll record
// GET /polls/{pollId}
func (a *API) pollInfo(w http.ResponseWriter, r *http.Request) {
	pollID, err := parsePollID(chi.URLParam(r, PollURLParam))
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
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
	httpWriteJSON(w, p)
}

// pollResults returns the tally of a poll
// GET /polls/{pollId}/results
func (a *API) pollResults(w http.ResponseWriter, r *http.Request) {
	pollID, err := parsePollID(chi.URLParam(r, PollURLParam))
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
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
	results, err := a.manager.Results(pollID)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, PollResultsResponse{
		PollID:     pollID,
		Options:    p.Options,
		Results:    results,
		TotalVotes: p.TotalVotes,
		IsActive:   p.IsActive,
	})
}

// endPoll deactivates a poll on behalf of its creator
// POST /polls/{pollId}/end
func (a *API) endPoll(w http.ResponseWriter, r *http.Request) {
	pollID, err := parsePollID(chi.URLParam(r, PollURLParam))
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	var req EndPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := a.manager.EndPoll(req.Caller, pollID); err != nil {
		pollErrorToAPI(err).Write(w)
		return
	}
	log.Infow("poll ended", "pollId", pollID, "caller", req.Caller.Hex())
	httpWriteOK(w)
}
