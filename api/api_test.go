// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blinklabs-io/gavel/chain"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
)

var (
	testTokenAddr    = common.HexToAddress("0x00000000000000000000000000000000000070c3")
	testGovernorAddr = common.HexToAddress("0x0000000000000000000000000000000000009000")
	testHolder       = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testRecipient    = common.HexToAddress("0x0000000000000000000000000000000000000002")
	testAdmin        = common.HexToAddress("0x000000000000000000000000000000000000ad31")
)

type testServer struct {
	clock  *chain.Clock
	ledger *token.Ledger
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock, err := chain.NewClock(chain.ClockConfig{InitialHeight: 1})
	require.NoError(t, err)
	ledger, err := token.NewLedger(token.LedgerConfig{
		Store: token.NewMemoryStore(),
		Clock: clock,
	})
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(testHolder, uint256.NewInt(1000)))
	require.NoError(t, ledger.Mint(testGovernorAddr, uint256.NewInt(100)))
	require.NoError(t, ledger.Delegate(testHolder, testHolder))
	_, err = clock.Advance(1)
	require.NoError(t, err)
	dispatcher := governance.NewDispatcher()
	dispatcher.Register(testTokenAddr, ledger)
	params := governance.DefaultParams()
	params.VotingPeriod = 5
	params.Admin = testAdmin
	params.GovernorAddress = testGovernorAddr
	gov, err := governance.NewGovernor(governance.GovernorConfig{
		Store:       governance.NewMemoryStore(),
		PowerSource: ledger,
		Executor:    dispatcher,
		Params:      params,
	})
	require.NoError(t, err)
	sequencer := governance.NewSequencer(gov)
	a := New(Config{ListenAddress: ":0"}, sequencer, nil)
	server := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		server.Close()
		sequencer.Stop()
	})
	return &testServer{
		clock:  clock,
		ledger: ledger,
		server: server,
	}
}

func (s *testServer) mine(t *testing.T, count uint64) {
	t.Helper()
	_, err := s.clock.Advance(count)
	require.NoError(t, err)
}

func (s *testServer) do(
	t *testing.T,
	method string,
	path string,
	body any,
	dest any,
) int {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(
		t.Context(),
		method,
		s.server.URL+path,
		&reqBody,
	)
	require.NoError(t, err)
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp.StatusCode
}

func (s *testServer) propose(t *testing.T, description string) governance.ProposalID {
	t.Helper()
	payload, err := token.EncodeTransfer(testRecipient, uint256.NewInt(40))
	require.NoError(t, err)
	var resp ProposeResponse
	status := s.do(t, http.MethodPost, "/v1/proposals", ProposeRequest{
		Proposer: testHolder,
		Actions: governance.NewActionRecords([]governance.Action{
			{Target: testTokenAddr, Payload: payload},
		}),
		Description: description,
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp.ID
}

func TestStartStop(t *testing.T) {
	clock, err := chain.NewClock(chain.ClockConfig{InitialHeight: 1})
	require.NoError(t, err)
	ledger, err := token.NewLedger(token.LedgerConfig{
		Store: token.NewMemoryStore(),
		Clock: clock,
	})
	require.NoError(t, err)
	gov, err := governance.NewGovernor(governance.GovernorConfig{
		Store:       governance.NewMemoryStore(),
		PowerSource: ledger,
		Params:      governance.DefaultParams(),
	})
	require.NoError(t, err)
	sequencer := governance.NewSequencer(gov)
	defer sequencer.Stop()
	a := New(Config{ListenAddress: "127.0.0.1:0"}, sequencer, nil)

	require.NoError(t, a.Start(t.Context()))
	a.mu.Lock()
	assert.NotNil(t, a.httpServer)
	a.mu.Unlock()

	// Cleartext HTTP/2 clients are served
	client := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
	resp, err := client.Get("http://" + a.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, resp.ProtoMajor)

	// Starting again should error
	err = a.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	stopCtx, stopCancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx))
	a.mu.Lock()
	assert.Nil(t, a.httpServer)
	a.mu.Unlock()
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	var resp HealthResponse
	status := s.do(t, http.MethodGet, "/health", nil, &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.IsHealthy)
	assert.Equal(t, uint64(2), resp.CurrentBlock)
}

func TestProposalLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := s.propose(t, "pay the recipient")

	var proposal ProposalResponse
	status := s.do(t, http.MethodGet, "/v1/proposals/"+id.Hex(), nil, &proposal)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Pending", proposal.State)
	assert.Equal(t, "Standard", proposal.VotingMode)
	assert.Equal(t, uint64(3), proposal.StartBlock)
	assert.Equal(t, uint64(8), proposal.EndBlock)

	s.mine(t, 2)
	var vote VoteResponse
	status = s.do(
		t,
		http.MethodPost,
		"/v1/proposals/"+id.Hex()+"/votes",
		VoteRequest{Voter: testHolder, Support: "for", Reason: "ship it"},
		&vote,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1000", vote.Weight)

	var receipt ReceiptResponse
	status = s.do(
		t,
		http.MethodGet,
		"/v1/proposals/"+id.Hex()+"/receipts/"+testHolder.Hex(),
		nil,
		&receipt,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "For", receipt.Support)
	assert.Equal(t, "1000", receipt.Weight)
	assert.Equal(t, "ship it", receipt.Reason)

	s.mine(t, 5)
	status = s.do(t, http.MethodGet, "/v1/proposals/"+id.Hex(), nil, &proposal)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Succeeded", proposal.State)
	assert.Equal(t, "1000", proposal.ForVotes)
	assert.Equal(t, "44", proposal.Quorum)

	var state StateResponse
	status = s.do(
		t,
		http.MethodPost,
		"/v1/proposals/"+id.Hex()+"/execute",
		ActionsHashRequest{ActionsHash: id},
		&state,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Executed", state.State)
	balance, err := s.ledger.BalanceOf(testRecipient)
	require.NoError(t, err)
	assert.Equal(t, "40", balance.Dec())

	var errResp ErrorResponse
	status = s.do(
		t,
		http.MethodPost,
		"/v1/proposals/"+id.Hex()+"/execute",
		ActionsHashRequest{ActionsHash: id},
		&errResp,
	)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AlreadyExecuted", errResp.Error)

	var events []EventResponse
	status = s.do(t, http.MethodGet, "/v1/events?from=2", nil, &events)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, events, 2)
	assert.Equal(t, string(governance.VoteCastEventType), events[0].Type)
	assert.Equal(t, string(governance.ProposalExecutedEventType), events[1].Type)
}

func TestRejections(t *testing.T) {
	s := newTestServer(t)
	id := s.propose(t, "rejections")
	var quadratic ProposeResponse
	status := s.do(t, http.MethodPost, "/v1/proposals", ProposeRequest{
		Proposer:    testHolder,
		Description: "quadratic rejections",
		VotingMode:  "quadratic",
	}, &quadratic)
	require.Equal(t, http.StatusCreated, status)
	s.mine(t, 2)
	unknown := common.HexToHash("0x1234")
	testDefs := []struct {
		name           string
		method         string
		path           string
		body           any
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "malformed id",
			method:         http.MethodGet,
			path:           "/v1/proposals/0x1234",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "InvalidRequest",
		},
		{
			name:           "unknown proposal",
			method:         http.MethodGet,
			path:           "/v1/proposals/" + unknown.Hex(),
			expectedStatus: http.StatusNotFound,
			expectedError:  "ProposalNotFound",
		},
		{
			name:   "below threshold",
			method: http.MethodPost,
			path:   "/v1/proposals",
			body: ProposeRequest{
				Proposer:    testRecipient,
				Description: "nobody listens",
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "BelowThreshold",
		},
		{
			name:   "invalid voting mode",
			method: http.MethodPost,
			path:   "/v1/proposals",
			body: ProposeRequest{
				Proposer:   testHolder,
				VotingMode: "ranked",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "InvalidVotingMode",
		},
		{
			name:           "invalid support",
			method:         http.MethodPost,
			path:           "/v1/proposals/" + id.Hex() + "/votes",
			body:           VoteRequest{Voter: testHolder, Support: "7"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "InvalidSupport",
		},
		{
			name:           "quadratic vote on standard proposal",
			method:         http.MethodPost,
			path:           "/v1/proposals/" + id.Hex() + "/votes",
			body:           VoteRequest{Voter: testHolder, Support: "for", Count: 3},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VotingModeMismatch",
		},
		{
			name:           "quadratic vote without count",
			method:         http.MethodPost,
			path:           "/v1/proposals/" + quadratic.ID.Hex() + "/votes",
			body:           VoteRequest{Voter: testHolder, Support: "for"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "InvalidVoteCount",
		},
		{
			name:           "quadratic vote with reason",
			method:         http.MethodPost,
			path:           "/v1/proposals/" + quadratic.ID.Hex() + "/votes",
			body:           VoteRequest{Voter: testHolder, Support: "for", Count: 2, Reason: "why not"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "InvalidRequest",
		},
		{
			name:           "execute while active",
			method:         http.MethodPost,
			path:           "/v1/proposals/" + id.Hex() + "/execute",
			body:           ActionsHashRequest{ActionsHash: id},
			expectedStatus: http.StatusConflict,
			expectedError:  "NotSucceeded",
		},
		{
			name:           "queue without timelock",
			method:         http.MethodPost,
			path:           "/v1/proposals/" + id.Hex() + "/queue",
			body:           ActionsHashRequest{ActionsHash: id},
			expectedStatus: http.StatusConflict,
			expectedError:  "TimelockNotConfigured",
		},
		{
			name:           "cancel by stranger",
			method:         http.MethodPost,
			path:           "/v1/proposals/" + id.Hex() + "/cancel",
			body:           CancelRequest{Caller: testRecipient},
			expectedStatus: http.StatusForbidden,
			expectedError:  "Unauthorized",
		},
		{
			name:           "unknown field",
			method:         http.MethodPost,
			path:           "/v1/proposals/" + id.Hex() + "/cancel",
			body:           map[string]string{"who": "me"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "InvalidRequest",
		},
		{
			name:           "bad event range",
			method:         http.MethodGet,
			path:           "/v1/events?from=first",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "InvalidRequest",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			var errResp ErrorResponse
			status := s.do(t, testDef.method, testDef.path, testDef.body, &errResp)
			assert.Equal(t, testDef.expectedStatus, status)
			assert.Equal(t, testDef.expectedError, errResp.Error)
			assert.Equal(t, testDef.expectedStatus, errResp.StatusCode)
		})
	}
}

func TestDuplicateVote(t *testing.T) {
	s := newTestServer(t)
	id := s.propose(t, "vote twice")
	s.mine(t, 2)
	path := "/v1/proposals/" + id.Hex() + "/votes"
	status := s.do(t, http.MethodPost, path, VoteRequest{Voter: testHolder, Support: "1"}, nil)
	require.Equal(t, http.StatusOK, status)
	var errResp ErrorResponse
	status = s.do(t, http.MethodPost, path, VoteRequest{Voter: testHolder, Support: "0"}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AlreadyVoted", errResp.Error)

	status = s.do(
		t,
		http.MethodGet,
		"/v1/proposals/"+id.Hex()+"/receipts/"+testRecipient.Hex(),
		nil,
		&errResp,
	)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCancelAndList(t *testing.T) {
	s := newTestServer(t)
	first := s.propose(t, "first")
	second := s.propose(t, "second")

	var state StateResponse
	status := s.do(
		t,
		http.MethodPost,
		"/v1/proposals/"+first.Hex()+"/cancel",
		CancelRequest{Caller: testHolder},
		&state,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Canceled", state.State)

	var proposals []ProposalResponse
	req, err := http.NewRequestWithContext(
		t.Context(),
		http.MethodGet,
		s.server.URL+"/v1/proposals?order=desc&count=1",
		nil,
	)
	require.NoError(t, err)
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-Pagination-Count-Total"))
	assert.Equal(t, "2", resp.Header.Get("X-Pagination-Page-Total"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, second, proposals[0].ID)
	assert.Equal(t, "Pending", proposals[0].State)

	status = s.do(t, http.MethodGet, "/v1/proposals?page=2", nil, &proposals)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, proposals)
}

func TestPagingPastTheEnd(t *testing.T) {
	s := newTestServer(t)
	s.propose(t, "only one")

	var proposals []ProposalResponse
	status := s.do(t, http.MethodGet, "/v1/proposals?page=92233720368547760", nil, &proposals)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, proposals)

	// The sequencer must still serve requests afterwards
	status = s.do(t, http.MethodGet, "/v1/proposals", nil, &proposals)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, proposals, 1)

	var events []EventResponse
	status = s.do(t, http.MethodGet, "/v1/events?from=18446744073709551615", nil, &events)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, events)
}

func TestQuadraticVote(t *testing.T) {
	s := newTestServer(t)
	var proposal ProposeResponse
	status := s.do(t, http.MethodPost, "/v1/proposals", ProposeRequest{
		Proposer:    testHolder,
		Description: "square it",
		VotingMode:  "quadratic",
	}, &proposal)
	require.Equal(t, http.StatusCreated, status)
	s.mine(t, 2)

	var vote VoteResponse
	status = s.do(
		t,
		http.MethodPost,
		"/v1/proposals/"+proposal.ID.Hex()+"/votes",
		VoteRequest{Voter: testHolder, Support: "for", Count: 30},
		&vote,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "30", vote.Weight)
}
