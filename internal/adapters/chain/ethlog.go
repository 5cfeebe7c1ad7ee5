package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/mirrorcore/internal/ports"
)

var erc1155BalanceOfABI abi.ABI

func init() {
	var err error
	erc1155BalanceOfABI, err = abi.JSON(strings.NewReader(`[{
		"name":"balanceOf","type":"function",
		"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],
		"outputs":[{"name":"","type":"uint256"}]
	}]`))
	if err != nil {
		panic("chain: erc1155 balanceOf abi: " + err.Error())
	}
}

// EthClientSource adapts *ethclient.Client to ports.ChainLogSource and
// ports.OnchainBalanceReader, the same RPC surface the teacher's
// polymarket.TradingClient dials for on-chain balance checks.
type EthClientSource struct {
	rpc       *ethclient.Client
	ctfAddress common.Address
}

// NewEthClientSource dials rpcURL. ctfAddress is the ERC-1155 conditional
// token contract used for TokenBalance.
func NewEthClientSource(rpcURL, ctfAddress string) (*EthClientSource, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain.NewEthClientSource: dial %q: %w", rpcURL, err)
	}
	return &EthClientSource{rpc: rpc, ctfAddress: common.HexToAddress(ctfAddress)}, nil
}

func (s *EthClientSource) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := s.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain.BlockNumber: %w", err)
	}
	return n, nil
}

func (s *EthClientSource) FilterLogs(ctx context.Context, fromBlock, toBlock int64, addresses []string, topic0 string) ([]ports.ChainLog, error) {
	addrs := make([]common.Address, len(addresses))
	for i, a := range addresses {
		addrs[i] = common.HexToAddress(a)
	}
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: addrs,
		Topics:    [][]common.Hash{{common.HexToHash(topic0)}},
	}
	logs, err := s.rpc.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chain.FilterLogs: %w", err)
	}

	out := make([]ports.ChainLog, len(logs))
	for i, lg := range logs {
		topics := make([]string, len(lg.Topics))
		for j, t := range lg.Topics {
			topics[j] = t.Hex()
		}
		out[i] = ports.ChainLog{
			Topics:      topics,
			Data:        lg.Data,
			TxHash:      lg.TxHash.Hex(),
			LogIndex:    int64(lg.Index),
			BlockNumber: int64(lg.BlockNumber),
		}
	}
	return out, nil
}

// TokenBalance reads an ERC-1155 conditional-token balance for a follower
// wallet — the Reconciler's onchain ground-truth check (spec §4.5).
func (s *EthClientSource) TokenBalance(ctx context.Context, ownerAddress, tokenID string) (float64, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return 0, fmt.Errorf("chain.TokenBalance: invalid token id %q", tokenID)
	}
	owner := common.HexToAddress(ownerAddress)

	callData, err := erc1155BalanceOfABI.Pack("balanceOf", owner, id)
	if err != nil {
		return 0, fmt.Errorf("chain.TokenBalance: pack: %w", err)
	}
	result, err := s.rpc.CallContract(ctx, ethereum.CallMsg{To: &s.ctfAddress, Data: callData}, nil)
	if err != nil {
		return 0, fmt.Errorf("chain.TokenBalance: call: %w", err)
	}
	vals, err := erc1155BalanceOfABI.Unpack("balanceOf", result)
	if err != nil {
		return 0, fmt.Errorf("chain.TokenBalance: unpack: %w", err)
	}
	raw := vals[0].(*big.Int)
	return microToFloat(raw), nil
}
