package streak

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
)

// DefaultContractAddress is the deployed streak contract
const DefaultContractAddress = "0x7410b151dd9aee17b2fa3b24d5ed7dd560632b03"

const (
	defaultPollInterval   = 2 * time.Second
	defaultReceiptTimeout = 2 * time.Minute
)

// Options configures a streak Client
type Options struct {
	RPCURL          string
	ContractAddress string
	// Account is the sender. Without PrivateKey the node must hold its key
	// and sign through eth_sendTransaction.
	Account string
	// PrivateKey is a hex secp256k1 key. When set, transactions are signed
	// locally and Account defaults to the key's address.
	PrivateKey     string
	HTTPClient     *http.Client
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
}

// Client records posts on the streak contract and reads streak state
type Client struct {
	rpc            *gethrpc.Client
	eth            *ethclient.Client
	contract       common.Address
	bound          *bind.BoundContract
	account        common.Address
	hasAccount     bool
	key            *ecdsa.PrivateKey
	pollInterval   time.Duration
	receiptTimeout time.Duration
	logger         *slog.Logger
}

// NewClient validates options and creates a Client. No request is made until
// the first call.
func NewClient(opts Options) (*Client, error) {
	if opts.RPCURL == "" {
		return nil, apperrors.ConfigError("streak rpc url missing: set STREAK_RPC_URL")
	}
	if opts.ContractAddress == "" {
		opts.ContractAddress = DefaultContractAddress
	}
	if !isAddress(opts.ContractAddress) {
		return nil, apperrors.ConfigErrorf("invalid streak contract address %q", opts.ContractAddress)
	}
	contract := common.HexToAddress(opts.ContractAddress)

	c := &Client{contract: contract}
	if opts.Account != "" {
		if !isAddress(opts.Account) {
			return nil, apperrors.ConfigErrorf("invalid streak account %q", opts.Account)
		}
		c.account, c.hasAccount = common.HexToAddress(opts.Account), true
	}
	if opts.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
		if err != nil {
			// the key itself never goes into the message
			return nil, apperrors.ConfigError("invalid streak private key")
		}
		signer := crypto.PubkeyToAddress(key.PublicKey)
		if c.hasAccount && signer != c.account {
			return nil, apperrors.ConfigErrorf("streak private key belongs to %s, not %s",
				strings.ToLower(signer.Hex()), strings.ToLower(c.account.Hex()))
		}
		c.key, c.account, c.hasAccount = key, signer, true
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = defaultReceiptTimeout
	}

	rpcClient, err := gethrpc.DialOptions(context.Background(), opts.RPCURL, gethrpc.WithHTTPClient(opts.HTTPClient))
	if err != nil {
		return nil, apperrors.ConfigErrorf("invalid streak rpc url: %v", err)
	}
	c.rpc = rpcClient
	c.eth = ethclient.NewClient(rpcClient)
	c.bound = bind.NewBoundContract(contract, contractABI, c.eth, c.eth, c.eth)
	c.pollInterval = opts.PollInterval
	c.receiptTimeout = opts.ReceiptTimeout
	c.logger = slog.Default().With("component", "streak", "contract", hexAddress(contract))
	return c, nil
}

// Close releases the node connection
func (c *Client) Close() {
	c.rpc.Close()
}

// Account returns the configured sender address, lowercased
func (c *Client) Account() string {
	if !c.hasAccount {
		return ""
	}
	return hexAddress(c.account)
}

func isAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

func hexAddress(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func (c *Client) requireAccount() error {
	if !c.hasAccount {
		return apperrors.ConfigError("streak account missing: set STREAK_ACCOUNT or STREAK_PRIVATE_KEY")
	}
	return nil
}

// call runs a view method at the latest block and unpacks its outputs
func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindInvalidArgument, "encode %s", method)
	}
	msg := ethereum.CallMsg{To: &c.contract, Data: data}
	if c.hasAccount {
		msg.From = c.account
	}

	out, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, mapError(err, method)
	}
	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindExternal, "decode %s result", method)
	}
	return values, nil
}

func uintOutput(values []interface{}, i int, method string) (*big.Int, error) {
	if i < len(values) {
		if v, ok := values[i].(*big.Int); ok && v != nil {
			return v, nil
		}
	}
	return nil, apperrors.Newf(apperrors.KindExternal, "%s returned no uint256 at position %d", method, i)
}

// sendTxArgs is the eth_sendTransaction payload for a node-held account
type sendTxArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// RecordPost sends post() and waits for the receipt.
// The streak count comes from the PostLogged event when the receipt carries one.
func (c *Client) RecordPost(ctx context.Context) (*models.Receipt, error) {
	if err := c.requireAccount(); err != nil {
		return nil, err
	}

	hash, err := c.sendPost(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindOf(err), "send post transaction")
	}
	c.logger.Info("post transaction sent", "tx", hash.Hex(), "signer", c.signerKind())

	raw, err := c.waitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}

	receipt := &models.Receipt{
		TxHash:  hash.Hex(),
		Success: raw.Status == types.ReceiptStatusSuccessful,
		GasUsed: raw.GasUsed,
	}
	if raw.BlockNumber != nil {
		receipt.BlockNumber = raw.BlockNumber.Uint64()
	}
	if !receipt.Success {
		return receipt, apperrors.Newf(apperrors.KindExternal, "post transaction %s reverted", receipt.TxHash).
			WithContext("block", receipt.BlockNumber)
	}

	if count, ok := c.decodePostLogged(raw.Logs); ok {
		receipt.StreakCount = count
	}
	return receipt, nil
}

func (c *Client) signerKind() string {
	if c.key != nil {
		return "local"
	}
	return "node"
}

// sendPost submits post(), signed with the local key when there is one
func (c *Client) sendPost(ctx context.Context) (common.Hash, error) {
	if c.key != nil {
		chainID, err := c.eth.ChainID(ctx)
		if err != nil {
			return common.Hash{}, mapError(err, "chain id")
		}
		opts, err := bind.NewKeyedTransactorWithChainID(c.key, chainID)
		if err != nil {
			return common.Hash{}, apperrors.Wrap(err, apperrors.KindConfig, "streak signer")
		}
		opts.Context = ctx
		tx, err := c.bound.Transact(opts, methodPost)
		if err != nil {
			return common.Hash{}, mapError(err, methodPost)
		}
		return tx.Hash(), nil
	}

	data, err := contractABI.Pack(methodPost)
	if err != nil {
		return common.Hash{}, apperrors.Wrap(err, apperrors.KindInternal, "encode post")
	}
	var hash common.Hash
	err = c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", sendTxArgs{From: c.account, To: c.contract, Data: data})
	if err != nil {
		return common.Hash{}, mapError(err, methodPost)
	}
	return hash, nil
}

// waitForReceipt polls until the transaction is mined or receiptTimeout passes.
// Transient node errors count as "not yet".
func (c *Client) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !stderrors.Is(err, ethereum.NotFound) {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, c.receiptTimeoutError(hash)
			}
			if mapped := mapError(err, "transaction receipt"); !apperrors.IsRetryable(mapped) {
				return nil, mapped
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, c.receiptTimeoutError(hash)
			}
			return nil, apperrors.Cancelled(ctx.Err())
		}
	}
}

func (c *Client) receiptTimeoutError(hash common.Hash) error {
	return apperrors.Newf(apperrors.KindTransientHost, "no receipt for %s after %s", hash.Hex(), c.receiptTimeout)
}

// decodePostLogged finds this contract's PostLogged event for the sender
func (c *Client) decodePostLogged(logs []*types.Log) (*big.Int, bool) {
	event := contractABI.Events[eventPostLogged]
	for _, l := range logs {
		if l == nil || l.Address != c.contract || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		var ev postLogged
		if err := contractABI.UnpackIntoInterface(&ev, eventPostLogged, l.Data); err != nil {
			c.logger.Debug("undecodable PostLogged event", "tx", l.TxHash.Hex(), "error", err)
			continue
		}
		if c.hasAccount && ev.User != c.account {
			continue
		}
		return ev.StreakCount, true
	}
	return nil, false
}

// GetStreak calls getStreak() as the configured account
func (c *Client) GetStreak(ctx context.Context) (uint64, error) {
	if err := c.requireAccount(); err != nil {
		return 0, err
	}
	values, err := c.call(ctx, methodGetStreak)
	if err != nil {
		return 0, err
	}
	streak, err := uintOutput(values, 0, methodGetStreak)
	if err != nil {
		return 0, err
	}
	return streak.Uint64(), nil
}

// UserState reads users(address) for any address
func (c *Client) UserState(ctx context.Context, address string) (*models.UserStreak, error) {
	if !isAddress(address) {
		return nil, apperrors.InvalidArgument("not a 20-byte hex address: " + address)
	}
	values, err := c.call(ctx, methodUsers, common.HexToAddress(address))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindOf(err), "users(%s)", address)
	}
	lastPost, err := uintOutput(values, 0, methodUsers)
	if err != nil {
		return nil, err
	}
	count, err := uintOutput(values, 1, methodUsers)
	if err != nil {
		return nil, err
	}

	state := &models.UserStreak{StreakCount: count.Uint64()}
	if ts := lastPost.Int64(); ts > 0 {
		state.LastValidPostTime = time.Unix(ts, 0).UTC()
	}
	return state, nil
}

// CurrentTime returns the contract's view of block time
func (c *Client) CurrentTime(ctx context.Context) (time.Time, error) {
	values, err := c.call(ctx, methodCurrentTime)
	if err != nil {
		return time.Time{}, err
	}
	now, err := uintOutput(values, 0, methodCurrentTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(now.Int64(), 0).UTC(), nil
}
