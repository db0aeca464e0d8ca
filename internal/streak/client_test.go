package streak

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContract = "0x7410b151dd9aee17b2fa3b24d5ed7dd560632b03"
	testAccount  = "0x00000000000000000000000000000000000000aa"
	testChainID  = 1337
)

var (
	zeroHash  = "0x" + strings.Repeat("0", 64)
	zeroBloom = "0x" + strings.Repeat("0", 512)
)

func word(v int64) string {
	return fmt.Sprintf("%064x", v)
}

func addrWord(addr string) string {
	return strings.Repeat("0", 24) + strings.TrimPrefix(strings.ToLower(addr), "0x")
}

func txHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

// selectorHex is the calldata of a no-argument call to signature
func selectorHex(signature string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(signature))[:4])
}

func eventTopic(signature string) string {
	return crypto.Keccak256Hash([]byte(signature)).Hex()
}

// rpcError is a JSON-RPC error object
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handler func(params []json.RawMessage) (interface{}, *rpcError)

// fakeNode answers JSON-RPC calls from a handler table
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]handler
	calls    []string
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	n := &fakeNode{handlers: map[string]handler{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n.mu.Lock()
		n.calls = append(n.calls, req.Method)
		h, ok := n.handlers[req.Method]
		n.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = rpcError{Code: -32601, Message: "method not found: " + req.Method}
		} else if result, rpcErr := h(req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return n, server
}

func (n *fakeNode) on(method string, h handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) reply(method string, result interface{}) {
	n.on(method, func([]json.RawMessage) (interface{}, *rpcError) { return result, nil })
}

func (n *fakeNode) called(method string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.calls {
		if c == method {
			return true
		}
	}
	return false
}

func newTestClient(t *testing.T, server *httptest.Server, account string) *Client {
	t.Helper()
	return newTestClientWithOptions(t, Options{RPCURL: server.URL, Account: account})
}

func newTestClientWithOptions(t *testing.T, opts Options) *Client {
	t.Helper()
	opts.ContractAddress = testContract
	opts.PollInterval = time.Millisecond
	opts.ReceiptTimeout = time.Second
	c, err := NewClient(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// callArgs is an eth_call or eth_sendTransaction argument object.
// Clients send calldata as "input", "data" or both.
type callArgs struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Input string `json:"input"`
	Data  string `json:"data"`
}

func (a callArgs) calldata() string {
	if a.Input != "" {
		return a.Input
	}
	return a.Data
}

func decodeCall(t *testing.T, raw json.RawMessage) callArgs {
	var args callArgs
	require.NoError(t, json.Unmarshal(raw, &args))
	args.From = strings.ToLower(args.From)
	args.To = strings.ToLower(args.To)
	return args
}

func postLoggedLog(contract, user string, streak int64, tx string) map[string]interface{} {
	return map[string]interface{}{
		"address":         contract,
		"topics":          []string{eventTopic("PostLogged(address,uint256)")},
		"data":            "0x" + addrWord(user) + word(streak),
		"blockNumber":     "0x10",
		"transactionHash": tx,
		"logIndex":        "0x0",
	}
}

func receiptJSON(tx, status string, logs []map[string]interface{}) map[string]interface{} {
	if logs == nil {
		logs = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"transactionHash":   tx,
		"blockNumber":       "0x10",
		"blockHash":         zeroHash,
		"transactionIndex":  "0x0",
		"gasUsed":           "0x5208",
		"cumulativeGasUsed": "0x5208",
		"logsBloom":         zeroBloom,
		"status":            status,
		"logs":              logs,
	}
}

func TestContractABI(t *testing.T) {
	assert.Equal(t, selectorHex("post()"), hexutil.Encode(contractABI.Methods[methodPost].ID))
	assert.Equal(t, selectorHex("users(address)"), hexutil.Encode(contractABI.Methods[methodUsers].ID))
	assert.Equal(t, eventTopic("PostLogged(address,uint256)"), contractABI.Events[eventPostLogged].ID.Hex())

	data, err := contractABI.Pack(methodUsers, common.HexToAddress(testAccount))
	require.NoError(t, err)
	assert.Equal(t, selectorHex("users(address)")+addrWord(testAccount), hexutil.Encode(data))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))

	_, err = NewClient(Options{RPCURL: "http://node", ContractAddress: "nope"})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))

	_, err = NewClient(Options{RPCURL: "http://node", Account: "7410b151dd9aee17b2fa3b24d5ed7dd560632b03"})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err), "address without 0x prefix")

	_, err = NewClient(Options{RPCURL: "http://node", PrivateKey: "0x1234"})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
	assert.NotContains(t, err.Error(), "1234")

	c, err := NewClient(Options{RPCURL: "http://node", Account: strings.ToUpper("0x00000000000000000000000000000000000000AA")})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, testAccount, c.Account())
	assert.Equal(t, common.HexToAddress(DefaultContractAddress), c.contract)
}

func TestNewClient_PrivateKeySetsAccount(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))
	signer := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

	c, err := NewClient(Options{RPCURL: "http://node", PrivateKey: "0x" + keyHex})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, signer, c.Account())

	_, err = NewClient(Options{RPCURL: "http://node", PrivateKey: keyHex, Account: testAccount})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
	assert.NotContains(t, err.Error(), keyHex)
}

func TestRecordPost(t *testing.T) {
	node, server := newFakeNode(t)
	hash := txHash(0xfeed)
	polls := 0

	node.on("eth_sendTransaction", func(params []json.RawMessage) (interface{}, *rpcError) {
		msg := decodeCall(t, params[0])
		assert.Equal(t, testAccount, msg.From)
		assert.Equal(t, testContract, msg.To)
		assert.Equal(t, selectorHex("post()"), msg.calldata())
		return hash, nil
	})
	node.on("eth_getTransactionReceipt", func(params []json.RawMessage) (interface{}, *rpcError) {
		polls++
		if polls < 3 {
			return nil, nil // pending
		}
		return receiptJSON(hash, "0x1", []map[string]interface{}{
			postLoggedLog("0x0000000000000000000000000000000000000bad", testAccount, 99, hash),
			postLoggedLog(testContract, testAccount, 5, hash),
		}), nil
	})

	receipt, err := newTestClient(t, server, testAccount).RecordPost(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, hash, receipt.TxHash)
	assert.Equal(t, uint64(16), receipt.BlockNumber)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
	require.NotNil(t, receipt.StreakCount)
	assert.Equal(t, big.NewInt(5), receipt.StreakCount, "logs from other contracts are ignored")
	assert.Equal(t, 3, polls)
}

func TestRecordPost_SignsLocally(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	node, server := newFakeNode(t)
	node.reply("eth_chainId", hexutil.EncodeUint64(testChainID))
	node.reply("eth_getBlockByNumber", map[string]interface{}{
		"parentHash":       zeroHash,
		"sha3Uncles":       zeroHash,
		"miner":            "0x0000000000000000000000000000000000000000",
		"stateRoot":        zeroHash,
		"transactionsRoot": zeroHash,
		"receiptsRoot":     zeroHash,
		"logsBloom":        zeroBloom,
		"difficulty":       "0x0",
		"number":           "0x10",
		"gasLimit":         "0x1c9c380",
		"gasUsed":          "0x0",
		"timestamp":        "0x65f0a000",
		"extraData":        "0x",
		"mixHash":          zeroHash,
		"nonce":            "0x0000000000000000",
		"baseFeePerGas":    "0x3b9aca00",
	})
	node.reply("eth_gasPrice", "0x3b9aca00")
	node.reply("eth_maxPriorityFeePerGas", "0x3b9aca00")
	node.reply("eth_getCode", "0x6080604052")
	node.reply("eth_estimateGas", "0xb411")
	node.reply("eth_getTransactionCount", "0x7")

	var sent string
	node.on("eth_sendRawTransaction", func(params []json.RawMessage) (interface{}, *rpcError) {
		var raw hexutil.Bytes
		require.NoError(t, json.Unmarshal(params[0], &raw))
		tx := new(types.Transaction)
		require.NoError(t, tx.UnmarshalBinary(raw))

		from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(testChainID)), tx)
		require.NoError(t, err)
		assert.Equal(t, signer, from)
		require.NotNil(t, tx.To())
		assert.Equal(t, common.HexToAddress(testContract), *tx.To())
		assert.Equal(t, selectorHex("post()"), hexutil.Encode(tx.Data()))
		assert.Equal(t, uint64(7), tx.Nonce())

		sent = tx.Hash().Hex()
		return sent, nil
	})
	node.on("eth_getTransactionReceipt", func([]json.RawMessage) (interface{}, *rpcError) {
		return receiptJSON(sent, "0x1", []map[string]interface{}{
			postLoggedLog(testContract, signer.Hex(), 2, sent),
		}), nil
	})

	c := newTestClientWithOptions(t, Options{RPCURL: server.URL, PrivateKey: hex.EncodeToString(crypto.FromECDSA(key))})
	receipt, err := c.RecordPost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sent, receipt.TxHash)
	assert.Equal(t, big.NewInt(2), receipt.StreakCount)
	assert.False(t, node.called("eth_sendTransaction"), "a local key never asks the node to sign")
}

func TestRecordPost_IgnoresOtherUsersEvents(t *testing.T) {
	node, server := newFakeNode(t)
	hash := txHash(1)
	node.reply("eth_sendTransaction", hash)
	node.reply("eth_getTransactionReceipt", receiptJSON(hash, "0x1", []map[string]interface{}{
		postLoggedLog(testContract, "0x00000000000000000000000000000000000000bb", 9, hash),
	}))

	receipt, err := newTestClient(t, server, testAccount).RecordPost(context.Background())
	require.NoError(t, err)
	assert.Nil(t, receipt.StreakCount)
}

func TestRecordPost_Reverted(t *testing.T) {
	node, server := newFakeNode(t)
	hash := txHash(0xdead)
	node.reply("eth_sendTransaction", hash)
	node.reply("eth_getTransactionReceipt", receiptJSON(hash, "0x0", nil))

	receipt, err := newTestClient(t, server, testAccount).RecordPost(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
	require.NotNil(t, receipt)
	assert.False(t, receipt.Success)
}

func TestRecordPost_ReceiptTimeout(t *testing.T) {
	node, server := newFakeNode(t)
	node.reply("eth_sendTransaction", txHash(2))
	node.reply("eth_getTransactionReceipt", nil)

	c := newTestClient(t, server, testAccount)
	c.receiptTimeout = 20 * time.Millisecond

	_, err := c.RecordPost(context.Background())
	assert.Equal(t, apperrors.KindTransientHost, apperrors.KindOf(err), "got %v", err)
}

func TestRecordPost_RequiresAccount(t *testing.T) {
	node, server := newFakeNode(t)
	_, err := newTestClient(t, server, "").RecordPost(context.Background())
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
	assert.Empty(t, node.calls)
}

func TestRecordPost_RPCError(t *testing.T) {
	node, server := newFakeNode(t)
	node.on("eth_sendTransaction", func([]json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "unknown account"}
	})

	_, err := newTestClient(t, server, testAccount).RecordPost(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExternal, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "send post transaction")
	assert.Contains(t, err.Error(), "unknown account")
}

func TestGetStreak(t *testing.T) {
	node, server := newFakeNode(t)
	node.on("eth_call", func(params []json.RawMessage) (interface{}, *rpcError) {
		msg := decodeCall(t, params[0])
		assert.Equal(t, testAccount, msg.From)
		assert.Equal(t, testContract, msg.To)
		assert.Equal(t, selectorHex("getStreak()"), msg.calldata())

		var block string
		require.NoError(t, json.Unmarshal(params[1], &block))
		assert.Equal(t, "latest", block)
		return "0x" + word(7), nil
	})

	streak, err := newTestClient(t, server, testAccount).GetStreak(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), streak)
}

func TestUserState(t *testing.T) {
	node, server := newFakeNode(t)
	posted := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	node.on("eth_call", func(params []json.RawMessage) (interface{}, *rpcError) {
		msg := decodeCall(t, params[0])
		assert.True(t, strings.HasSuffix(msg.calldata(), addrWord(testAccount)))
		return "0x" + word(posted.Unix()) + word(12), nil
	})

	state, err := newTestClient(t, server, "").UserState(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), state.StreakCount)
	assert.True(t, state.LastValidPostTime.Equal(posted))
}

func TestUserState_NeverPosted(t *testing.T) {
	node, server := newFakeNode(t)
	node.reply("eth_call", "0x"+word(0)+word(0))

	state, err := newTestClient(t, server, "").UserState(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Zero(t, state.StreakCount)
	assert.True(t, state.LastValidPostTime.IsZero())
}

func TestUserState_InvalidAddress(t *testing.T) {
	node, server := newFakeNode(t)
	_, err := newTestClient(t, server, "").UserState(context.Background(), "0x1234")
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
	assert.Empty(t, node.calls)
}

func TestCurrentTime(t *testing.T) {
	node, server := newFakeNode(t)
	now := time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC)
	node.on("eth_call", func(params []json.RawMessage) (interface{}, *rpcError) {
		msg := decodeCall(t, params[0])
		assert.Equal(t, selectorHex("currentTime()"), msg.calldata())
		return "0x" + word(now.Unix()), nil
	})

	got, err := newTestClient(t, server, "").CurrentTime(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(now))
}

func TestUserState_ShortReturnData(t *testing.T) {
	for _, data := range []string{"0x", "0x" + word(1)} {
		node, server := newFakeNode(t)
		node.reply("eth_call", data)

		_, err := newTestClient(t, server, "").UserState(context.Background(), testAccount)
		assert.Equal(t, apperrors.KindExternal, apperrors.KindOf(err), "data %s: got %v", data, err)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   apperrors.Kind
	}{
		{http.StatusBadGateway, apperrors.KindTransientHost},
		{http.StatusUnauthorized, apperrors.KindUnauthorized},
		{http.StatusTooManyRequests, apperrors.KindRateLimited},
		{http.StatusBadRequest, apperrors.KindExternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			_, err := newTestClient(t, server, testAccount).GetStreak(context.Background())
			assert.Equal(t, tt.want, apperrors.KindOf(err), "got %v", err)
		})
	}
}
