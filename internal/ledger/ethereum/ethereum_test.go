package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/plutus/internal/ledger"
	"github.com/Decentr-net/plutus/internal/retry"
)

const (
	testKey      = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testRegistry = "0x1111111111111111111111111111111111111111"
	testContract = "0x2222222222222222222222222222222222222222"
	testUser     = "0x00000000000000000000000000000000000000aa"
)

var testRetry = retry.Config{
	MaxRetries:     2,
	BaseDelay:      time.Millisecond,
	MaxDelay:       time.Millisecond,
	AttemptTimeout: time.Second,
}

type revertError struct {
	data string
}

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorData() interface{} { return e.data }

type fakeBackend struct {
	mu sync.Mutex

	callResult []byte
	callErrs   []error
	calls      []ethereum.CallMsg

	nonce   uint64
	gas     uint64
	chainID *big.Int
	sendErr error
	sent    []*types.Transaction
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
	if len(f.callErrs) > 0 {
		err := f.callErrs[0]
		f.callErrs = f.callErrs[1:]
		return nil, err
	}
	return f.callResult, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, tx)
	return f.sendErr
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	if f.chainID == nil {
		return nil, errors.New("node is down")
	}
	return f.chainID, nil
}

func newTestLedger(t *testing.T, b *fakeBackend) ledger.Ledger {
	l, err := New(b, Config{
		Registry:       testRegistry,
		RewardContract: testContract,
		PrivateKey:     "0x" + testKey,
		Retry:          testRetry,
	})
	require.NoError(t, err)
	return l
}

func word(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), common.HashLength)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(&fakeBackend{}, Config{Registry: "0x1", RewardContract: testContract, PrivateKey: testKey})
	require.True(t, errors.Is(err, ledger.ErrInvalidAddress))

	_, err = New(&fakeBackend{}, Config{Registry: testRegistry, RewardContract: testContract, PrivateKey: "zz"})
	require.Error(t, err)
}

func TestClient_Checksum(t *testing.T) {
	l := newTestLedger(t, &fakeBackend{})

	s, err := l.Checksum("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	require.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", s)

	_, err = l.Checksum("alice")
	require.True(t, errors.Is(err, ledger.ErrInvalidAddress))
}

func TestClient_CanClaim(t *testing.T) {
	tt := []struct {
		name   string
		result []byte
		errs   []error
		want   bool
		err    error
	}{
		{name: "true", result: word(1), want: true},
		{name: "false", result: word(0), want: false},
		{name: "retried", result: word(1), errs: []error{errors.New("eof")}, want: true},
		{name: "not configured selector", errs: []error{revertError{data: notConfiguredSelector}}, err: ledger.ErrNotConfigured},
		{name: "not configured message", errs: []error{errors.New("execution reverted: campaign not configured")}, err: ledger.ErrNotConfigured},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBackend{callResult: tc.result, callErrs: tc.errs}
			l := newTestLedger(t, b)

			ok, err := l.CanClaim(context.Background(), "trend-rewards", testUser)
			if tc.err != nil {
				require.True(t, errors.Is(err, tc.err), err)
				require.Len(t, b.calls, 1)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)

			call := b.calls[len(b.calls)-1]
			assert.Equal(t, common.HexToAddress(testRegistry), *call.To)
			assert.Equal(t, canClaimMethod, call.Data[:4])
			assert.Equal(t, crypto.Keccak256([]byte("trend-rewards")), call.Data[4:36])
			assert.Equal(t, common.LeftPadBytes(common.HexToAddress(testUser).Bytes(), 32), call.Data[36:68])
		})
	}
}

func TestClient_GetBalance(t *testing.T) {
	b := &fakeBackend{callResult: word(250)}
	l := newTestLedger(t, b)

	v, err := l.GetBalance(context.Background(), "trend-rewards", testUser)
	require.NoError(t, err)
	require.EqualValues(t, 250, v)
	require.Equal(t, xpOfMethod, b.calls[0].Data[:4])

	b.callResult = []byte{1}
	_, err = l.GetBalance(context.Background(), "trend-rewards", testUser)
	require.Error(t, err)
}

func TestClient_DispatchReward(t *testing.T) {
	b := &fakeBackend{nonce: 7, gas: 100000, chainID: big.NewInt(84532)}
	l := newTestLedger(t, b)

	hash, err := l.DispatchReward(context.Background(), "trend-rewards", testUser)
	require.NoError(t, err)
	require.Len(t, b.sent, 1)

	tx := b.sent[0]
	assert.Equal(t, tx.Hash().Hex(), hash)
	assert.Equal(t, common.HexToAddress(testContract), *tx.To())
	assert.EqualValues(t, 7, tx.Nonce())
	assert.EqualValues(t, 120000, tx.Gas())
	assert.Equal(t, mintRewardMethod, tx.Data()[:4])

	key, err := crypto.HexToECDSA(testKey)
	require.NoError(t, err)

	from, err := types.Sender(types.NewEIP155Signer(big.NewInt(84532)), tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)
}

func TestClient_AwardXP(t *testing.T) {
	b := &fakeBackend{gas: 50000, chainID: big.NewInt(1)}
	l := newTestLedger(t, b)

	_, err := l.AwardXP(context.Background(), "trend-rewards", testUser, big.NewInt(10))
	require.NoError(t, err)
	require.Len(t, b.sent, 1)

	data := b.sent[0].Data()
	assert.Equal(t, common.HexToAddress(testRegistry), *b.sent[0].To())
	assert.Equal(t, addXPMethod, data[:4])
	assert.Equal(t, word(10), data[68:100])
}

func TestClient_SendIsNotRetried(t *testing.T) {
	b := &fakeBackend{gas: 50000, chainID: big.NewInt(1), sendErr: errors.New("connection reset")}
	l := newTestLedger(t, b)

	_, err := l.DispatchReward(context.Background(), "trend-rewards", testUser)
	require.Error(t, err)
	require.Len(t, b.sent, 1)
}

func TestClient_Ping(t *testing.T) {
	l := newTestLedger(t, &fakeBackend{})
	require.Error(t, l.Ping(context.Background()))

	l = newTestLedger(t, &fakeBackend{chainID: big.NewInt(1)})
	require.NoError(t, l.Ping(context.Background()))
}
