package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/model"
)

const (
	signaturePageSize = 1000
	maxSignaturePages = 3
	transferSample    = 40
	txFetchParallel   = 4
)

// SolanaRPC implements the holder lookups against a Solana JSON-RPC node.
type SolanaRPC struct {
	c         *Client
	requestID atomic.Int64
}

func NewSolanaRPC(pc config.ProviderConfig) *SolanaRPC {
	return &SolanaRPC{c: NewClient(config.SolanaRPC, pc)}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (s *SolanaRPC) call(ctx context.Context, method string, params []interface{}, out any) error {
	req := rpcRequest{JSONRPC: "2.0", ID: s.requestID.Add(1), Method: method, Params: params}
	body, err := s.c.Post(ctx, "", req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", method, err)
	}
	if resp.Error != nil {
		return permanentError{err: fmt.Errorf("%s: %w", method, resp.Error)}
	}
	if out == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

type tokenAmount struct {
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

type parsedAccount struct {
	Data struct {
		Parsed struct {
			Info struct {
				Owner string `json:"owner"`
			} `json:"info"`
		} `json:"parsed"`
	} `json:"data"`
}

func (s *SolanaRPC) TopHolders(ctx context.Context, mint string, limit int) ([]model.Holder, error) {
	var largest struct {
		Value []tokenAmount `json:"value"`
	}
	if err := s.call(ctx, "getTokenLargestAccounts", []interface{}{mint}, &largest); err != nil {
		return nil, err
	}
	if len(largest.Value) == 0 {
		return nil, nil
	}

	var supply struct {
		Value tokenAmount `json:"value"`
	}
	if err := s.call(ctx, "getTokenSupply", []interface{}{mint}, &supply); err != nil {
		return nil, err
	}
	total, _ := decimal.NewFromString(supply.Value.Amount)

	accounts := make([]string, len(largest.Value))
	for i, a := range largest.Value {
		accounts[i] = a.Address
	}
	var infos struct {
		Value []*parsedAccount `json:"value"`
	}
	if err := s.call(ctx, "getMultipleAccounts", []interface{}{accounts, map[string]string{"encoding": "jsonParsed"}}, &infos); err != nil {
		return nil, err
	}

	// Several token accounts can belong to one wallet.
	byOwner := map[string]int{}
	var out []model.Holder
	for i, a := range largest.Value {
		owner := a.Address
		if i < len(infos.Value) && infos.Value[i] != nil && infos.Value[i].Data.Parsed.Info.Owner != "" {
			owner = infos.Value[i].Data.Parsed.Info.Owner
		}
		amt, err := decimal.NewFromString(a.Amount)
		if err != nil {
			continue
		}
		if idx, ok := byOwner[owner]; ok {
			out[idx].Balance = out[idx].Balance.Add(amt)
			continue
		}
		byOwner[owner] = len(out)
		out = append(out, model.Holder{Address: owner, Balance: amt})
	}
	for i := range out {
		if total.IsPositive() {
			out[i].Percentage, _ = out[i].Balance.Div(total).Mul(decimal.NewFromInt(100)).Float64()
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Balance.GreaterThan(out[j].Balance) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type signatureInfo struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

func (s *SolanaRPC) signatures(ctx context.Context, address, before string, limit int) ([]signatureInfo, error) {
	opts := map[string]interface{}{"limit": limit}
	if before != "" {
		opts["before"] = before
	}
	var sigs []signatureInfo
	if err := s.call(ctx, "getSignaturesForAddress", []interface{}{address, opts}, &sigs); err != nil {
		return nil, err
	}
	return sigs, nil
}

// oldestSignature pages backwards through the address history. Wallets with
// more history than the page budget report the oldest signature seen, which
// still bounds their age from below.
func (s *SolanaRPC) oldestSignature(ctx context.Context, address string) (*signatureInfo, error) {
	var oldest *signatureInfo
	before := ""
	for page := 0; page < maxSignaturePages; page++ {
		sigs, err := s.signatures(ctx, address, before, signaturePageSize)
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			break
		}
		last := sigs[len(sigs)-1]
		oldest = &last
		if len(sigs) < signaturePageSize {
			break
		}
		before = last.Signature
	}
	return oldest, nil
}

func (s *SolanaRPC) FirstActivity(ctx context.Context, address string) (time.Time, error) {
	sig, err := s.oldestSignature(ctx, address)
	if err != nil || sig == nil || sig.BlockTime == nil {
		return time.Time{}, err
	}
	return time.Unix(*sig.BlockTime, 0).UTC(), nil
}

type txTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount string `json:"amount"`
	} `json:"uiTokenAmount"`
}

type parsedTransaction struct {
	BlockTime   *int64 `json:"blockTime"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys []struct {
				Pubkey string `json:"pubkey"`
				Signer bool   `json:"signer"`
			} `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
	Meta *struct {
		Err               interface{}      `json:"err"`
		PreBalances       []int64          `json:"preBalances"`
		PostBalances      []int64          `json:"postBalances"`
		PreTokenBalances  []txTokenBalance `json:"preTokenBalances"`
		PostTokenBalances []txTokenBalance `json:"postTokenBalances"`
	} `json:"meta"`
}

func (s *SolanaRPC) transaction(ctx context.Context, sig string) (*parsedTransaction, error) {
	var tx parsedTransaction
	opts := map[string]interface{}{"encoding": "jsonParsed", "maxSupportedTransactionVersion": 0}
	if err := s.call(ctx, "getTransaction", []interface{}{sig, opts}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// FundingSource reads the wallet's oldest transaction and returns the account
// that lost the most lamports in it, falling back to the fee payer.
func (s *SolanaRPC) FundingSource(ctx context.Context, address string) (string, error) {
	sig, err := s.oldestSignature(ctx, address)
	if err != nil || sig == nil {
		return "", err
	}
	tx, err := s.transaction(ctx, sig.Signature)
	if err != nil {
		return "", err
	}
	return funderOf(tx, address), nil
}

func funderOf(tx *parsedTransaction, wallet string) string {
	keys := tx.Transaction.Message.AccountKeys
	if tx.Meta != nil && len(tx.Meta.PreBalances) == len(keys) && len(tx.Meta.PostBalances) == len(keys) {
		best, bestDrop := -1, int64(0)
		for i, k := range keys {
			if k.Pubkey == wallet {
				continue
			}
			if drop := tx.Meta.PreBalances[i] - tx.Meta.PostBalances[i]; drop > bestDrop {
				best, bestDrop = i, drop
			}
		}
		if best >= 0 {
			return keys[best].Pubkey
		}
	}
	if len(keys) > 0 && keys[0].Pubkey != wallet {
		return keys[0].Pubkey
	}
	return ""
}

// RecentTransfers reconstructs transfers of mint from token balance deltas of
// its latest transactions.
func (s *SolanaRPC) RecentTransfers(ctx context.Context, mint string) ([]model.Transfer, error) {
	sigs, err := s.signatures(ctx, mint, "", transferSample)
	if err != nil {
		return nil, err
	}

	perTx := make([][]model.Transfer, len(sigs))
	var fetched, failed atomic.Int32
	var lastErr atomic.Value
	var g errgroup.Group
	g.SetLimit(txFetchParallel)
	for i, sig := range sigs {
		if sig.Err != nil {
			continue
		}
		fetched.Add(1)
		g.Go(func() error {
			tx, err := s.transaction(ctx, sig.Signature)
			if err != nil {
				failed.Add(1)
				lastErr.Store(err)
				return nil
			}
			perTx[i] = transfersOf(tx, mint, sig.Signature)
			return nil
		})
	}
	_ = g.Wait()
	if n := fetched.Load(); n > 0 && failed.Load() == n {
		return nil, fmt.Errorf("all %d transaction lookups failed: %w", n, lastErr.Load().(error))
	}

	var out []model.Transfer
	for _, ts := range perTx {
		out = append(out, ts...)
	}
	return out, nil
}

func transfersOf(tx *parsedTransaction, mint, sig string) []model.Transfer {
	if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
		return nil
	}
	delta := map[string]decimal.Decimal{}
	apply := func(bals []txTokenBalance, sign int64) {
		for _, b := range bals {
			if b.Mint != mint {
				continue
			}
			amt, err := decimal.NewFromString(b.UITokenAmount.Amount)
			if err != nil {
				continue
			}
			owner := b.Owner
			if owner == "" {
				owner = "account#" + strconv.Itoa(b.AccountIndex)
			}
			delta[owner] = delta[owner].Add(amt.Mul(decimal.NewFromInt(sign)))
		}
	}
	apply(tx.Meta.PreTokenBalances, -1)
	apply(tx.Meta.PostTokenBalances, 1)

	type leg struct {
		owner string
		amt   decimal.Decimal
	}
	var senders, receivers []leg
	for owner, d := range delta {
		switch {
		case d.IsNegative():
			senders = append(senders, leg{owner, d.Neg()})
		case d.IsPositive():
			receivers = append(receivers, leg{owner, d})
		}
	}
	if len(senders) == 0 || len(receivers) == 0 {
		return nil
	}
	sort.Slice(senders, func(i, j int) bool { return senders[i].amt.GreaterThan(senders[j].amt) })
	sort.Slice(receivers, func(i, j int) bool { return receivers[i].owner < receivers[j].owner })

	var ts time.Time
	if tx.BlockTime != nil {
		ts = time.Unix(*tx.BlockTime, 0).UTC()
	}
	out := make([]model.Transfer, 0, len(receivers))
	for _, r := range receivers {
		out = append(out, model.Transfer{From: senders[0].owner, To: r.owner, Amount: r.amt, TxHash: sig, Timestamp: ts})
	}
	return out
}
