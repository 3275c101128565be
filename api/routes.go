package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Poll endpoints
	PollURLParam        = "pollId"                                   // URL parameter for poll ID
	PollsEndpoint       = "/polls"                                   // GET: List polls, POST: Create poll
	PollEndpoint        = PollsEndpoint + "/{" + PollURLParam + "}"  // GET: Get poll info
	PollResultsEndpoint = PollEndpoint + "/results"                  // GET: Get poll results
	PollEndEndpoint     = PollEndpoint + "/end"                      // POST: End a poll

	// Vote endpoints
	NullifierURLParam     = "nullifier"                                               // URL parameter for nullifier
	PollVotesEndpoint     = PollEndpoint + "/votes"                                   // POST: Submit a vote
	PollNullifierEndpoint = PollEndpoint + "/nullifiers/{" + NullifierURLParam + "}"  // GET: Check nullifier status

	// Verification key endpoint
	VerificationKeyEndpoint = "/verification-key" // GET: Get the key, POST: Set the key
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
