package framework

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Backend is the chain access a deployment needs. Both *ethclient.Client
// and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Framework struct {
	log     *logrus.Entry
	backend Backend
	key     *PrivKey
	chainID *big.Int

	confirmTimeout  time.Duration
	expectedChainID uint64
}

type Option func(*Framework)

// WithConfirmTimeout bounds the wait for a deployment to be mined.
func WithConfirmTimeout(d time.Duration) Option {
	return func(f *Framework) { f.confirmTimeout = d }
}

// WithExpectedChainID makes New fail when the node reports another chain.
func WithExpectedChainID(id uint64) Option {
	return func(f *Framework) { f.expectedChainID = id }
}

func New(ctx context.Context, log *logrus.Entry, backend Backend, key *PrivKey, opts ...Option) (*Framework, error) {
	fr := &Framework{
		log:            log,
		backend:        backend,
		key:            key,
		confirmTimeout: DefaultConfirmTimeout,
	}
	for _, opt := range opts {
		opt(fr)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, &TransactionError{Op: "dial", Err: fmt.Errorf("get chain id: %w", err)}
	}
	if fr.expectedChainID != 0 && chainID.Cmp(new(big.Int).SetUint64(fr.expectedChainID)) != 0 {
		return nil, &ConfigError{
			Field:  "chain_id",
			Reason: fmt.Sprintf("node reports chain %s, expected %d", chainID, fr.expectedChainID),
		}
	}
	fr.chainID = chainID

	return fr, nil
}

// Connect dials the profile's RPC endpoint and returns a Framework signing
// with the profile's first account.
func Connect(ctx context.Context, log *logrus.Entry, profile *NetworkProfile, opts ...Option) (*Framework, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	key, err := profile.Key()
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, profile.RPCURL)
	if err != nil {
		return nil, &TransactionError{Op: "dial", Err: err}
	}

	opts = append([]Option{WithExpectedChainID(profile.ChainID)}, opts...)
	fr, err := New(ctx, log.WithField("network", profile.Name), client, key, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return fr, nil
}

// Close releases the connection to the node.
func (f *Framework) Close() {
	if c, ok := f.backend.(interface{ Close() }); ok {
		c.Close()
	}
}

func (f *Framework) ChainID() *big.Int {
	return new(big.Int).Set(f.chainID)
}

func (f *Framework) Sender() common.Address {
	return f.key.Address()
}

// Balance returns the deployer's balance at the latest block.
func (f *Framework) Balance(ctx context.Context) (*uint256.Int, error) {
	bal, err := f.backend.BalanceAt(ctx, f.key.Address(), nil)
	if err != nil {
		return nil, &TransactionError{Op: "submit", Err: fmt.Errorf("get balance: %w", err)}
	}
	out, overflow := uint256.FromBig(bal)
	if overflow {
		return nil, &TransactionError{Op: "submit", Err: fmt.Errorf("balance %s overflows 256 bits", bal)}
	}
	return out, nil
}

type Contract struct {
	addr common.Address
	abi  *abi.ABI
	tx   *types.Transaction
}

func NewContract(addr common.Address, contractAbi *abi.ABI, tx *types.Transaction) *Contract {
	return &Contract{addr: addr, abi: contractAbi, tx: tx}
}

func (c *Contract) Address() common.Address {
	return c.addr
}

func (c *Contract) Abi() *abi.ABI {
	return c.abi
}

// Transaction returns the deployment transaction.
func (c *Contract) Transaction() *types.Transaction {
	return c.tx
}

// DeployContract resolves name in store and deploys it. The lookup happens
// before any call to the node.
func (f *Framework) DeployContract(ctx context.Context, store *ArtifactStore, name string, params ...interface{}) (*Contract, error) {
	artifact, err := store.Lookup(name)
	if err != nil {
		return nil, err
	}
	return f.Deploy(ctx, artifact, params...)
}

// Deploy submits the artifact's creation transaction and waits until it
// is mined and code exists at the new address. There is no retry: running
// it twice deploys two instances.
func (f *Framework) Deploy(ctx context.Context, artifact *Artifact, params ...interface{}) (*Contract, error) {
	log := f.log.WithField("contract", artifact.ContractName)

	bal, err := f.Balance(ctx)
	if err != nil {
		return nil, err
	}
	log.WithField("deployer", f.key.Address().Hex()).WithField("balance", FormatEther(bal)).Debug("deployer account")
	if bal.IsZero() {
		return nil, &TransactionError{Op: "submit", Err: ErrInsufficientFunds}
	}

	auth, err := bind.NewKeyedTransactorWithChainID(f.key.Priv, f.chainID)
	if err != nil {
		return nil, &TransactionError{Op: "submit", Err: err}
	}
	auth.Context = ctx

	addr, tx, _, err := bind.DeployContract(auth, artifact.Abi, artifact.Bytecode, f.backend, params...)
	if err != nil {
		return nil, &TransactionError{Op: "submit", Err: err}
	}
	log.WithField("tx", tx.Hash().Hex()).WithField("address", addr.Hex()).Info("deployment submitted, waiting for confirmation")

	waitCtx, cancel := context.WithTimeout(ctx, f.confirmTimeout)
	defer cancel()

	deployed, err := bind.WaitDeployed(waitCtx, f.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("not confirmed within %s: %w", f.confirmTimeout, err)
		}
		return nil, &TransactionError{Op: "confirm", TxHash: tx.Hash(), Err: err}
	}

	contractAbi := artifact.Abi
	return NewContract(deployed, &contractAbi, tx), nil
}

var weiPerEther = uint256.NewInt(1_000_000_000_000_000_000)

// FormatEther renders a wei amount in ether with up to 18 decimals.
func FormatEther(wei *uint256.Int) string {
	whole, frac := new(uint256.Int), new(uint256.Int)
	whole.DivMod(wei, weiPerEther, frac)
	if frac.IsZero() {
		return whole.Dec()
	}
	fracStr := frac.Dec()
	fracStr = strings.Repeat("0", 18-len(fracStr)) + fracStr
	return whole.Dec() + "." + strings.TrimRight(fracStr, "0")
}
