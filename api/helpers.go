package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vocdoni/zkpoll/log"
	"github.com/vocdoni/zkpoll/poll"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// parsePollID parses the pollId URL parameter as an unsigned 32-bit decimal.
func parsePollID(param string) (uint32, error) {
	id, err := strconv.ParseUint(param, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

// pollErrorToAPI translates the typed errors of poll operations into their
// API counterparts. Unknown errors map to the generic server error.
func pollErrorToAPI(err error) Error {
	switch {
	case errors.Is(err, poll.ErrPollNotFound):
		return ErrPollNotFound
	case errors.Is(err, poll.ErrPollEnded):
		return ErrPollNotAcceptingVotes
	case errors.Is(err, poll.ErrNullifierAlreadyUsed):
		return ErrNullifierAlreadyUsed
	case errors.Is(err, poll.ErrInvalidVoteChoice):
		return ErrInvalidVoteChoice
	case errors.Is(err, poll.ErrInvalidNullifierFormat):
		return ErrInvalidNullifierFormat
	case errors.Is(err, poll.ErrProofDeserialization):
		return ErrMalformedProof
	case errors.Is(err, poll.ErrInvalidProof):
		return ErrInvalidProof
	case errors.Is(err, poll.ErrNotPollCreator):
		return ErrUnauthorized
	case errors.Is(err, poll.ErrArithmeticOverflow):
		return ErrArithmeticOverflow
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
