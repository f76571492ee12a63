package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owenbrady/predictduel/internal/domain"
)

// fakeNode serves a single scripted JSON-RPC response.
func fakeNode(t *testing.T, handler func(method string, params json.RawMessage) (any, error)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		result, err := handler(req.Method, req.Params)
		if err != nil {
			code, msg := errToWire(err)
			resp["error"] = map[string]any{"code": code, "message": msg}
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestRPCClient_SubmitOperation(t *testing.T) {
	node := fakeNode(t, func(method string, _ json.RawMessage) (any, error) {
		assert.Equal(t, "pd_submitOperation", method)
		return map[string]string{"submission_id": "sub-42"}, nil
	})
	defer node.Close()

	c := NewRPCClient(node.URL, time.Second)
	id, err := c.SubmitOperation(context.Background(), Operation{Kind: OpCancelMarket, IntentID: "i1"})
	require.NoError(t, err)
	assert.Equal(t, "sub-42", id)
}

func TestRPCClient_ProgramErrorMapping(t *testing.T) {
	cases := []error{
		domain.ErrMarketNotExpired,
		domain.ErrAlreadyParticipated,
		domain.ErrDuplicateIndex,
		domain.ErrNotAWinner,
		domain.ErrAlreadyClaimed,
		domain.ErrUnauthorized,
	}
	for _, want := range cases {
		node := fakeNode(t, func(string, json.RawMessage) (any, error) {
			return nil, want
		})
		c := NewRPCClient(node.URL, time.Second)
		_, err := c.SubmitOperation(context.Background(), Operation{Kind: OpPlaceStake})
		assert.ErrorIs(t, err, want, "wire roundtrip must preserve %v", want)
		assert.False(t, Transient(err), "%v must not be classified transient", want)
		node.Close()
	}
}

func TestRPCClient_AlreadyProcessed(t *testing.T) {
	node := fakeNode(t, func(string, json.RawMessage) (any, error) {
		return nil, &Error{Code: CodeAlreadyProcessed, Msg: "intent already processed"}
	})
	defer node.Close()

	c := NewRPCClient(node.URL, time.Second)
	_, err := c.SubmitOperation(context.Background(), Operation{Kind: OpClaimWinnings})
	assert.True(t, AlreadyProcessed(err))
	assert.False(t, Transient(err))
}

func TestRPCClient_StaleSealIsTransient(t *testing.T) {
	node := fakeNode(t, func(string, json.RawMessage) (any, error) {
		return nil, &Error{Code: CodeStaleSeal, Msg: "seal expired"}
	})
	defer node.Close()

	c := NewRPCClient(node.URL, time.Second)
	_, err := c.SubmitOperation(context.Background(), Operation{Kind: OpPlaceStake})
	assert.True(t, Transient(err))
}

func TestRPCClient_GetMarket(t *testing.T) {
	want := domain.Market{
		Question: "Will it ship?",
		Status:   domain.StatusActive,
		Outcome:  domain.OutcomeNone,
		PoolSize: 123,
	}
	node := fakeNode(t, func(method string, params json.RawMessage) (any, error) {
		assert.Equal(t, "pd_getMarket", method)
		var addrs []string
		require.NoError(t, json.Unmarshal(params, &addrs))
		require.Len(t, addrs, 1)
		return want, nil
	})
	defer node.Close()

	c := NewRPCClient(node.URL, time.Second)
	got, err := c.GetMarket(context.Background(), domain.Address{1})
	require.NoError(t, err)
	assert.Equal(t, want.Question, got.Question)
	assert.Equal(t, want.PoolSize, got.PoolSize)
}

func TestRPCClient_AccountNotFound(t *testing.T) {
	node := fakeNode(t, func(string, json.RawMessage) (any, error) {
		return nil, &Error{Code: CodeAccountNotFound, Msg: "no data"}
	})
	defer node.Close()

	c := NewRPCClient(node.URL, time.Second)
	_, err := c.GetMarket(context.Background(), domain.Address{1})
	assert.True(t, NotFound(err))
}

func TestRPCClient_UnreachableEndpointIsTransient(t *testing.T) {
	c := NewRPCClient("http://127.0.0.1:1", 200*time.Millisecond)
	err := c.Health(context.Background())
	assert.True(t, Transient(err))
}

func TestRPCClient_ServerErrorIsTransient(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer node.Close()

	c := NewRPCClient(node.URL, time.Second)
	err := c.Health(context.Background())
	assert.True(t, Transient(err))
}
