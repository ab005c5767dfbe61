// Package ethereum is implementation of ledger interface over an EVM json-rpc node.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/ledger"
	"github.com/Decentr-net/plutus/internal/retry"
)

var log = logrus.WithField("package", "ethereum")

// gas estimation is multiplied by gasHeadroom/10.
const gasHeadroom = 12

var (
	canClaimMethod   = methodID("canClaim(bytes32,address)")
	xpOfMethod       = methodID("xpOf(bytes32,address)")
	mintRewardMethod = methodID("mintReward(bytes32,address)")
	addXPMethod      = methodID("addXP(bytes32,address,uint256)")

	notConfiguredSelector = hexutil.Encode(methodID("CampaignNotConfigured()"))
)

// Backend is a subset of ethclient.Client used by the ledger.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	ChainID(ctx context.Context) (*big.Int, error)
}

// Config ...
type Config struct {
	Registry       string
	RewardContract string
	PrivateKey     string
	// ChainID is requested from the node when nil.
	ChainID *big.Int
	Retry   retry.Config
}

type client struct {
	b        Backend
	registry common.Address
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	retry    retry.Config

	mu      sync.Mutex
	chainID *big.Int
}

// New returns new instance of ledger.Ledger.
func New(b Backend, cfg Config) (ledger.Ledger, error) {
	if !common.IsHexAddress(cfg.Registry) {
		return nil, fmt.Errorf("%w: registry %q", ledger.ErrInvalidAddress, cfg.Registry)
	}
	if !common.IsHexAddress(cfg.RewardContract) {
		return nil, fmt.Errorf("%w: reward contract %q", ledger.ErrInvalidAddress, cfg.RewardContract)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &client{
		b:        b,
		registry: common.HexToAddress(cfg.Registry),
		contract: common.HexToAddress(cfg.RewardContract),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		retry:    cfg.Retry,
		chainID:  cfg.ChainID,
	}, nil
}

func (c *client) Checksum(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, address)
	}

	return common.HexToAddress(address).Hex(), nil
}

func (c *client) CanClaim(ctx context.Context, campaignID, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, address)
	}

	res, err := c.call(ctx, c.registry, encode(canClaimMethod, campaignKey(campaignID), common.HexToAddress(address)))
	if err != nil {
		return false, fmt.Errorf("failed to call canClaim: %w", err)
	}

	if len(res) < common.HashLength {
		return false, fmt.Errorf("failed to decode canClaim: unexpected length %d", len(res))
	}

	return new(big.Int).SetBytes(res[:common.HashLength]).Sign() != 0, nil
}

func (c *client) GetBalance(ctx context.Context, campaignID, address string) (int64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, address)
	}

	res, err := c.call(ctx, c.registry, encode(xpOfMethod, campaignKey(campaignID), common.HexToAddress(address)))
	if err != nil {
		return 0, fmt.Errorf("failed to call xpOf: %w", err)
	}

	if len(res) < common.HashLength {
		return 0, fmt.Errorf("failed to decode xpOf: unexpected length %d", len(res))
	}

	v := new(big.Int).SetBytes(res[:common.HashLength])
	if !v.IsInt64() {
		return 0, fmt.Errorf("failed to decode xpOf: %s overflows int64", v)
	}

	return v.Int64(), nil
}

func (c *client) DispatchReward(ctx context.Context, campaignID, recipient string) (string, error) {
	if !common.IsHexAddress(recipient) {
		return "", fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, recipient)
	}

	return c.send(ctx, c.contract, encode(mintRewardMethod, campaignKey(campaignID), common.HexToAddress(recipient)))
}

func (c *client) AwardXP(ctx context.Context, campaignID, recipient string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(recipient) {
		return "", fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, recipient)
	}

	return c.send(ctx, c.registry, encode(addXPMethod, campaignKey(campaignID), common.HexToAddress(recipient), amount))
}

func (c *client) Ping(ctx context.Context) error {
	if _, err := c.b.ChainID(ctx); err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	return nil
}

func (c *client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return retry.Do(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		res, err := c.b.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data}, nil)
		if err != nil {
			if isNotConfigured(err) {
				return nil, retry.Permanent(ledger.ErrNotConfigured)
			}
			return nil, err
		}
		return res, nil
	})
}

// send is never retried: a lost response does not mean that the transaction was not broadcast.
func (c *client) send(ctx context.Context, to common.Address, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.retry
	cfg.MaxRetries = 0

	return retry.Do(ctx, cfg, func(ctx context.Context) (string, error) {
		if c.chainID == nil {
			id, err := c.b.ChainID(ctx)
			if err != nil {
				return "", fmt.Errorf("failed to get chain id: %w", err)
			}
			c.chainID = id
		}

		nonce, err := c.b.PendingNonceAt(ctx, c.from)
		if err != nil {
			return "", fmt.Errorf("failed to get nonce: %w", err)
		}

		gasPrice, err := c.b.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get gas price: %w", err)
		}

		gas, err := c.b.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data})
		if err != nil {
			return "", fmt.Errorf("failed to estimate gas: %w", err)
		}
		gas = gas * gasHeadroom / 10

		signed, err := types.SignTx(
			types.NewTransaction(nonce, to, big.NewInt(0), gas, gasPrice, data),
			types.NewEIP155Signer(c.chainID),
			c.key,
		)
		if err != nil {
			return "", fmt.Errorf("failed to sign tx: %w", err)
		}

		if err := c.b.SendTransaction(ctx, signed); err != nil {
			return "", fmt.Errorf("failed to send tx: %w", err)
		}

		log.WithFields(logrus.Fields{
			"to":      to.Hex(),
			"nonce":   nonce,
			"gas":     gas,
			"tx_hash": signed.Hash().Hex(),
		}).Info("transaction sent")

		return signed.Hash().Hex(), nil
	})
}

func isNotConfigured(err error) bool {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok && strings.HasPrefix(strings.ToLower(s), notConfiguredSelector) {
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "not configured")
}

func methodID(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func campaignKey(id string) common.Hash {
	return crypto.Keccak256Hash([]byte(id))
}

func encode(method []byte, key common.Hash, addr common.Address, args ...*big.Int) []byte {
	data := make([]byte, 0, 4+common.HashLength*(2+len(args)))
	data = append(data, method...)
	data = append(data, key.Bytes()...)
	data = append(data, common.LeftPadBytes(addr.Bytes(), common.HashLength)...)
	for _, v := range args {
		data = append(data, common.LeftPadBytes(v.Bytes(), common.HashLength)...)
	}
	return data
}
