package greeting

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/greeter/internal/chain"
)

const localChain = "local"

var contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// fakeNode answers the JSON-RPC methods the contract binding uses.
type fakeNode struct {
	mu sync.Mutex

	head        uint64
	logs        []types.Log
	callResults map[string][]byte // method selector hex -> return data
	calls       map[string]int    // method selector hex -> eth_call count
	ranges      [][2]uint64       // eth_getLogs windows
	status      uint64            // status of mined receipts
	sent        []*types.Transaction
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		callResults: make(map[string][]byte),
		calls:       make(map[string]int),
		status:      types.ReceiptStatusSuccessful,
	}
}

func selector(method string) string {
	return hexutil.Encode(parsedABI.Methods[method].ID)
}

func (n *fakeNode) setResult(t *testing.T, method string, values ...any) {
	t.Helper()
	out, err := parsedABI.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.callResults[selector(method)] = out
}

func (n *fakeNode) callCount(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[selector(method)]
}

func (n *fakeNode) addLogs(head uint64, logs ...types.Log) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head = head
	n.logs = append(n.logs, logs...)
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	result, err := n.handle(req.Method, req.Params)
	if err != nil {
		resp["error"] = map[string]any{"code": -32000, "message": err.Error()}
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) handle(method string, params []json.RawMessage) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch method {
	case "eth_chainId":
		return hexutil.EncodeBig(big.NewInt(1155)), nil
	case "eth_blockNumber":
		return hexutil.Uint64(n.head), nil
	case "eth_getLogs":
		var arg struct {
			FromBlock hexutil.Uint64 `json:"fromBlock"`
			ToBlock   hexutil.Uint64 `json:"toBlock"`
		}
		if err := json.Unmarshal(params[0], &arg); err != nil {
			return nil, err
		}
		from, to := uint64(arg.FromBlock), uint64(arg.ToBlock)
		n.ranges = append(n.ranges, [2]uint64{from, to})

		out := []types.Log{}
		for _, entry := range n.logs {
			if entry.BlockNumber >= from && entry.BlockNumber <= to {
				out = append(out, entry)
			}
		}
		return out, nil
	case "eth_call":
		var arg struct {
			Input hexutil.Bytes `json:"input"`
		}
		if err := json.Unmarshal(params[0], &arg); err != nil {
			return nil, err
		}
		sel := hexutil.Encode(arg.Input[:4])
		n.calls[sel]++
		out, ok := n.callResults[sel]
		if !ok {
			return nil, fmt.Errorf("execution reverted")
		}
		return hexutil.Bytes(out), nil
	case "eth_getTransactionCount":
		return hexutil.Uint64(0), nil
	case "eth_maxPriorityFeePerGas":
		return hexutil.EncodeBig(big.NewInt(1)), nil
	case "eth_gasPrice":
		return hexutil.EncodeBig(big.NewInt(2)), nil
	case "eth_estimateGas":
		return hexutil.Uint64(30000), nil
	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		if err := json.Unmarshal(params[0], &raw); err != nil {
			return nil, err
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, err
		}
		n.sent = append(n.sent, tx)
		return tx.Hash(), nil
	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := json.Unmarshal(params[0], &hash); err != nil {
			return nil, err
		}
		for _, tx := range n.sent {
			if tx.Hash() == hash {
				return types.Receipt{
					Type:              types.DynamicFeeTxType,
					Status:            n.status,
					CumulativeGasUsed: 30000,
					GasUsed:           30000,
					Logs:              []*types.Log{},
					TxHash:            hash,
					BlockNumber:       big.NewInt(int64(n.head) + 1),
				}, nil
			}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("method %s not supported", method)
}

// newNodeContract binds contractAddr on a chain served by node.
func newNodeContract(t *testing.T, node *fakeNode, opts Options) *Contract {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	client := chain.NewClient()
	client.AddChain(localChain, &chain.ChainConfig{
		Name:           "Local",
		ChainIDInt:     1155,
		RPCURLs:        []string{srv.URL},
		NativeCurrency: "ETH",
	})
	t.Cleanup(client.Close)

	c, err := NewContract(client, localChain, contractAddr, opts)
	require.NoError(t, err)
	return c
}

// logAt builds a GreetingChange log mined at block.
func logAt(t *testing.T, text string, block uint64) types.Log {
	t.Helper()
	entry := greetingLog(t, text, false, big.NewInt(0))
	entry.BlockNumber = block
	entry.TxHash = common.BigToHash(new(big.Int).SetUint64(block + 1))
	entry.Index = 0
	return entry
}

type keySigner struct {
	key *ecdsa.PrivateKey
}

func newKeySigner(t *testing.T) keySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return keySigner{key: key}
}

func (s keySigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s keySigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

type storedReceipt struct {
	chain    string
	greeting string
	receipt  *types.Receipt
}

type fakeRecorder struct {
	got []storedReceipt
}

func (r *fakeRecorder) Upsert(chain, greeting string, receipt *types.Receipt) error {
	r.got = append(r.got, storedReceipt{chain: chain, greeting: greeting, receipt: receipt})
	return nil
}

func signerFrom(tx *types.Transaction) (common.Address, error) {
	return types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
}

func (n *fakeNode) windows() [][2]uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][2]uint64(nil), n.ranges...)
}

func (n *fakeNode) sentTxs() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

func (n *fakeNode) setStatus(status uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
}
