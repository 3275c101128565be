package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/db/inmemory"
	"github.com/vocdoni/zkpoll/internal/testutil"
	"github.com/vocdoni/zkpoll/poll"
	"github.com/vocdoni/zkpoll/storage"
	"github.com/vocdoni/zkpoll/voteverifier"
	"github.com/vocdoni/zkpoll/web3"
)

// setURLParam is a helper function to set chi URL parameters in tests
func setURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func newTestAPI(t *testing.T) (*API, *web3.SimulatedHeight) {
	t.Helper()
	kv, err := inmemory.New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = kv.Close() })

	heights := web3.NewSimulatedHeight(0)
	verifier := voteverifier.New(voteverifier.StructuralChecker{})
	manager, err := poll.NewWithVerificationKey(storage.New(kv), verifier, heights, []byte("test-vk"))
	qt.Assert(t, err, qt.IsNil)
	return &API{manager: manager}, heights
}

// newBareAPI builds an API whose manager has no verification key stored.
func newBareAPI(t *testing.T) *API {
	t.Helper()
	kv, err := inmemory.New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = kv.Close() })

	verifier := voteverifier.New(voteverifier.StructuralChecker{})
	manager := poll.New(storage.New(kv), verifier, web3.NewSimulatedHeight(0))
	return &API{manager: manager}
}

func createTestPoll(t *testing.T, api *API) uint32 {
	t.Helper()
	c := qt.New(t)

	body, err := json.Marshal(NewPollRequest{
		Title:      "favorite color",
		Options:    []string{"red", "green", "blue"},
		MerkleRoot: testutil.Root(7),
		Duration:   100,
		Creator:    testutil.Address(1),
	})
	c.Assert(err, qt.IsNil)

	req := httptest.NewRequest(http.MethodPost, PollsEndpoint, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	api.newPoll(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rr.Body.String()))

	var resp NewPollResponse
	c.Assert(json.Unmarshal(rr.Body.Bytes(), &resp), qt.IsNil)
	return resp.PollID
}

func TestPollAPI(t *testing.T) {
	c := qt.New(t)
	api, _ := newTestAPI(t)

	t.Run("CreatePoll", func(t *testing.T) {
		pollID := createTestPoll(t, api)
		c.Assert(pollID, qt.Equals, uint32(1))
	})

	t.Run("CreatePollMalformed", func(t *testing.T) {
		body := `{"title":"","options":["a"]}`
		req := httptest.NewRequest(http.MethodPost, PollsEndpoint, bytes.NewReader([]byte(body)))
		rr := httptest.NewRecorder()
		api.newPoll(rr, req)
		c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)
	})

	t.Run("GetPoll", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/polls/1", nil)
		rr := httptest.NewRecorder()
		api.pollInfo(rr, setURLParam(req, PollURLParam, "1"))
		c.Assert(rr.Code, qt.Equals, http.StatusOK)
		c.Assert(rr.Body.String(), qt.Contains, "favorite color")
	})

	t.Run("GetPollNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/polls/999", nil)
		rr := httptest.NewRecorder()
		api.pollInfo(rr, setURLParam(req, PollURLParam, "999"))
		c.Assert(rr.Code, qt.Equals, http.StatusNotFound)
	})

	t.Run("GetPollMalformedID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/polls/abc", nil)
		rr := httptest.NewRecorder()
		api.pollInfo(rr, setURLParam(req, PollURLParam, "abc"))
		c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)
	})

	t.Run("ListPolls", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, PollsEndpoint, nil)
		rr := httptest.NewRecorder()
		api.listPolls(rr, req)
		c.Assert(rr.Code, qt.Equals, http.StatusOK)

		var resp PollListResponse
		c.Assert(json.Unmarshal(rr.Body.Bytes(), &resp), qt.IsNil)
		c.Assert(resp.Polls, qt.DeepEquals, []uint32{1})
	})
}

func TestVoteAPI(t *testing.T) {
	c := qt.New(t)
	api, heights := newTestAPI(t)
	pollID := createTestPoll(t, api)
	pollIDStr := fmt.Sprintf("%d", pollID)

	p, err := api.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)

	vote := func(nullifier []byte, option uint32) *httptest.ResponseRecorder {
		body, err := json.Marshal(VoteRequest{
			Proof:      testutil.ProofFor(p, nullifier, option),
			Nullifier:  nullifier,
			VoteOption: option,
		})
		c.Assert(err, qt.IsNil)
		req := httptest.NewRequest(http.MethodPost, "/polls/"+pollIDStr+"/votes", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		api.newVote(rr, setURLParam(req, PollURLParam, pollIDStr))
		return rr
	}

	t.Run("CastVote", func(t *testing.T) {
		rr := vote(testutil.Nullifier(1), 0)
		c.Assert(rr.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rr.Body.String()))
	})

	t.Run("DoubleVote", func(t *testing.T) {
		rr := vote(testutil.Nullifier(1), 1)
		c.Assert(rr.Code, qt.Equals, http.StatusConflict)
		c.Assert(rr.Body.String(), qt.Contains, "nullifier already used")
	})

	t.Run("OutOfRangeOption", func(t *testing.T) {
		rr := vote(testutil.Nullifier(2), 3)
		c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)
		c.Assert(rr.Body.String(), qt.Contains, "invalid vote choice")
	})

	t.Run("NullifierStatus", func(t *testing.T) {
		nullifier := testutil.Nullifier(1)
		req := httptest.NewRequest(http.MethodGet, "/polls/"+pollIDStr+"/nullifiers/"+nullifier.String(), nil)
		rr := httptest.NewRecorder()
		r := setURLParam(req, PollURLParam, pollIDStr)
		r = setURLParam(r, NullifierURLParam, nullifier.String())
		api.nullifierStatus(rr, r)
		c.Assert(rr.Code, qt.Equals, http.StatusOK)

		var resp NullifierStatusResponse
		c.Assert(json.Unmarshal(rr.Body.Bytes(), &resp), qt.IsNil)
		c.Assert(resp.Used, qt.IsTrue)
	})

	t.Run("Results", func(t *testing.T) {
		rr := vote(testutil.Nullifier(3), 2)
		c.Assert(rr.Code, qt.Equals, http.StatusOK)

		req := httptest.NewRequest(http.MethodGet, "/polls/"+pollIDStr+"/results", nil)
		resrr := httptest.NewRecorder()
		api.pollResults(resrr, setURLParam(req, PollURLParam, pollIDStr))
		c.Assert(resrr.Code, qt.Equals, http.StatusOK)

		var resp PollResultsResponse
		c.Assert(json.Unmarshal(resrr.Body.Bytes(), &resp), qt.IsNil)
		c.Assert(resp.Results, qt.DeepEquals, []uint32{1, 0, 1})
		c.Assert(resp.TotalVotes, qt.Equals, uint32(2))
	})

	t.Run("VoteAfterExpiry", func(t *testing.T) {
		heights.Advance(200)
		rr := vote(testutil.Nullifier(4), 0)
		c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)
		c.Assert(rr.Body.String(), qt.Contains, "not accepting votes")
	})
}

func TestEndPollAPI(t *testing.T) {
	c := qt.New(t)
	api, _ := newTestAPI(t)
	pollID := createTestPoll(t, api)
	pollIDStr := fmt.Sprintf("%d", pollID)

	endPoll := func(req EndPollRequest) *httptest.ResponseRecorder {
		body, err := json.Marshal(req)
		c.Assert(err, qt.IsNil)
		r := httptest.NewRequest(http.MethodPost, "/polls/"+pollIDStr+"/end", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		api.endPoll(rr, setURLParam(r, PollURLParam, pollIDStr))
		return rr
	}

	t.Run("EndPollWrongCaller", func(t *testing.T) {
		rr := endPoll(EndPollRequest{Caller: testutil.Address(9)})
		c.Assert(rr.Code, qt.Equals, http.StatusForbidden)
	})

	t.Run("EndPoll", func(t *testing.T) {
		rr := endPoll(EndPollRequest{Caller: testutil.Address(1)})
		c.Assert(rr.Code, qt.Equals, http.StatusOK)

		p, err := api.manager.Poll(pollID)
		c.Assert(err, qt.IsNil)
		c.Assert(p.IsActive, qt.IsFalse)
	})
}

// newRouterAPI builds an API with the full router and middleware chain, for
// tests that exercise routing instead of calling handlers directly.
func newRouterAPI(t *testing.T) *API {
	t.Helper()
	kv, err := inmemory.New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = kv.Close() })

	verifier := voteverifier.New(voteverifier.StructuralChecker{})
	manager, err := poll.NewWithVerificationKey(storage.New(kv), verifier,
		web3.NewSimulatedHeight(0), []byte("test-vk"))
	qt.Assert(t, err, qt.IsNil)

	a := &API{
		manager:    manager,
		instanceID: uuid.New(),
		startTime:  time.Now(),
	}
	a.initRouter()
	return a
}

func TestRouter(t *testing.T) {
	c := qt.New(t)
	api := newRouterAPI(t)

	serve := func(method, target string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, bytes.NewReader(body))
		rr := httptest.NewRecorder()
		api.Router().ServeHTTP(rr, req)
		return rr
	}

	t.Run("Ping", func(t *testing.T) {
		rr := serve(http.MethodGet, PingEndpoint, nil)
		c.Assert(rr.Code, qt.Equals, http.StatusOK)

		var resp PingResponse
		c.Assert(json.Unmarshal(rr.Body.Bytes(), &resp), qt.IsNil)
		c.Assert(resp.InstanceID, qt.Equals, api.instanceID.String())
	})

	t.Run("CreateAndGetPoll", func(t *testing.T) {
		body, err := json.Marshal(NewPollRequest{
			Title:      "routed poll",
			Options:    []string{"yes", "no"},
			MerkleRoot: testutil.Root(7),
			Duration:   100,
			Creator:    testutil.Address(1),
		})
		c.Assert(err, qt.IsNil)

		rr := serve(http.MethodPost, PollsEndpoint, body)
		c.Assert(rr.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rr.Body.String()))

		var created NewPollResponse
		c.Assert(json.Unmarshal(rr.Body.Bytes(), &created), qt.IsNil)

		// URL parameters are extracted by the router, not injected by the test.
		target := EndpointWithParam(PollEndpoint, PollURLParam, fmt.Sprintf("%d", created.PollID))
		rr = serve(http.MethodGet, target, nil)
		c.Assert(rr.Code, qt.Equals, http.StatusOK)
		c.Assert(rr.Body.String(), qt.Contains, "routed poll")

		target = EndpointWithParam(PollResultsEndpoint, PollURLParam, fmt.Sprintf("%d", created.PollID))
		rr = serve(http.MethodGet, target, nil)
		c.Assert(rr.Code, qt.Equals, http.StatusOK)

		var results PollResultsResponse
		c.Assert(json.Unmarshal(rr.Body.Bytes(), &results), qt.IsNil)
		c.Assert(results.Results, qt.DeepEquals, []uint32{0, 0})
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		rr := serve(http.MethodGet, "/polls/1/unknown", nil)
		c.Assert(rr.Code, qt.Equals, http.StatusNotFound)
	})
}

func TestVerificationKeyAPI(t *testing.T) {
	c := qt.New(t)
	api := newBareAPI(t)

	t.Run("GetMissingKey", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, VerificationKeyEndpoint, nil)
		rr := httptest.NewRecorder()
		api.verificationKey(rr, req)
		c.Assert(rr.Code, qt.Equals, http.StatusNotFound)
	})

	t.Run("SetAndGetKey", func(t *testing.T) {
		body, err := json.Marshal(VerificationKeyRequest{
			VerificationKey: []byte("vk-bytes"),
			Caller:          testutil.Address(1),
		})
		c.Assert(err, qt.IsNil)
		req := httptest.NewRequest(http.MethodPost, VerificationKeyEndpoint, bytes.NewReader(body))
		rr := httptest.NewRecorder()
		api.setVerificationKey(rr, req)
		c.Assert(rr.Code, qt.Equals, http.StatusOK)

		getReq := httptest.NewRequest(http.MethodGet, VerificationKeyEndpoint, nil)
		getRR := httptest.NewRecorder()
		api.verificationKey(getRR, getReq)
		c.Assert(getRR.Code, qt.Equals, http.StatusOK)

		var resp VerificationKeyResponse
		c.Assert(json.Unmarshal(getRR.Body.Bytes(), &resp), qt.IsNil)
		c.Assert([]byte(resp.VerificationKey), qt.DeepEquals, []byte("vk-bytes"))
	})
}
