package etherman

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

var (
	simulatedChainID = big.NewInt(1337)
	blockGasLimit    = uint64(999999999999999999)

	// Stand-in contracts installed at genesis.
	payoutContractAddress = common.HexToAddress("0x00000000000000000000000000000000000f1a70")
	mintContractAddress   = common.HexToAddress("0x00000000000000000000000000000000000f1a71")
	revertContractAddress = common.HexToAddress("0x00000000000000000000000000000000000f1a72")
)

// payoutEmitterCode is the runtime code of a contract that turns its call
// data (32 byte user word || abi encoded (fiat, amount)) into
// LOG2(data[32:], FiatPayout signature, user).
func payoutEmitterCode() []byte {
	code := []byte{
		0x36,       // CALLDATASIZE
		0x60, 0x00, // PUSH1 0
		0x60, 0x00, // PUSH1 0
		0x37,       // CALLDATACOPY
		0x60, 0x00, // PUSH1 0
		0x35,       // CALLDATALOAD (user)
		0x7f,       // PUSH32 (event signature)
	}
	code = append(code, FiatPayoutSignatureHash.Bytes()...)
	code = append(code,
		0x60, 0x20, // PUSH1 32
		0x36,       // CALLDATASIZE
		0x03,       // SUB (size - 32)
		0x60, 0x20, // PUSH1 32 (offset)
		0xa2,       // LOG2
		0x00,       // STOP
	)
	return code
}

type SimulatedChain struct {
	Backend  *simulated.Backend
	Accounts []*bind.TransactOpts
	Keys     []*ecdsa.PrivateKey

	PayoutContract common.Address // emits FiatPayout
	MintContract   common.Address // accepts any call
	RevertContract common.Address // reverts every call

	Etherman *Etherman

	mu     sync.Mutex
	nonces map[common.Address]uint64
}

func NewSimulatedChain() (*SimulatedChain, error) {
	// create accounts
	nAccount := 5
	accounts := make([]*bind.TransactOpts, nAccount)
	keys := make([]*ecdsa.PrivateKey, nAccount)
	for i := 0; i < nAccount; i++ {
		sk, auth, err := newAuth()
		if err != nil {
			return nil, err
		}
		keys[i] = sk
		accounts[i] = auth
	}

	// allocate funds to accounts
	genesisAlloc := map[common.Address]types.Account{}
	for _, account := range accounts {
		balance, _ := new(big.Int).SetString("100000000000000000000", 10)
		genesisAlloc[account.From] = types.Account{
			Balance: balance,
		}
	}
	genesisAlloc[payoutContractAddress] = types.Account{Code: payoutEmitterCode(), Balance: big.NewInt(0)}
	genesisAlloc[mintContractAddress] = types.Account{Code: []byte{0x00}, Balance: big.NewInt(0)}
	genesisAlloc[revertContractAddress] = types.Account{Code: common.FromHex("0x60006000fd"), Balance: big.NewInt(0)}

	// create simulated backend
	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(blockGasLimit))

	etherman, err := NewEthermanWithClient(&Config{
		PayoutContractAddress: payoutContractAddress,
		MintContractAddress:   mintContractAddress,
	}, backend.Client())
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &SimulatedChain{
		Backend:        backend,
		Accounts:       accounts,
		Keys:           keys,
		PayoutContract: payoutContractAddress,
		MintContract:   mintContractAddress,
		RevertContract: revertContractAddress,
		Etherman:       etherman,
		nonces:         make(map[common.Address]uint64),
	}, nil
}

// EthermanFor returns an etherman sharing the chain but minting on another
// contract.
func (sim *SimulatedChain) EthermanFor(mintContract common.Address) (*Etherman, error) {
	return NewEthermanWithClient(&Config{
		PayoutContractAddress: sim.PayoutContract,
		MintContractAddress:   mintContract,
	}, sim.Backend.Client())
}

// EmitFiatPayout sends a tx to the payout contract that emits one
// FiatPayout event. The tx is mined by the next Commit.
func (sim *SimulatedChain) EmitFiatPayout(from *bind.TransactOpts, user common.Address, fiat string, amount *big.Int) (*types.Transaction, error) {
	data, err := sim.Etherman.bridgeABI.Events[EventFiatPayout].Inputs.NonIndexed().Pack(fiat, amount)
	if err != nil {
		return nil, err
	}
	calldata := append(common.LeftPadBytes(user.Bytes(), 32), data...)

	sim.mu.Lock()
	defer sim.mu.Unlock()

	// The pool updates pending nonces asynchronously, track them here so
	// that several txs can be sent within one block.
	nonce, ok := sim.nonces[from.From]
	if !ok {
		nonce, err = sim.Backend.Client().PendingNonceAt(context.Background(), from.From)
		if err != nil {
			return nil, err
		}
	}

	opts := *from
	opts.GasLimit = 200000
	opts.Nonce = new(big.Int).SetUint64(nonce)
	contract := bind.NewBoundContract(sim.PayoutContract, sim.Etherman.bridgeABI, sim.Backend.Client(), sim.Backend.Client(), sim.Backend.Client())
	tx, err := contract.RawTransact(&opts, calldata)
	if err != nil {
		return nil, err
	}
	sim.nonces[from.From] = nonce + 1

	return tx, nil
}

func (sim *SimulatedChain) Commit() common.Hash {
	return sim.Backend.Commit()
}

// AutoCommit mines a block every interval until ctx is done.
func (sim *SimulatedChain) AutoCommit(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sim.Backend.Commit()
			}
		}
	}()
}

func (sim *SimulatedChain) Close() {
	_ = sim.Backend.Close()
}

func newAuth() (*ecdsa.PrivateKey, *bind.TransactOpts, error) {
	sk, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	auth, err := bind.NewKeyedTransactorWithChainID(sk, simulatedChainID)
	if err != nil {
		return nil, nil, err
	}
	return sk, auth, nil
}
