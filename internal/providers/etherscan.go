package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/model"
)

// Etherscan talks to the multichain (v2) API. It serves the contract
// verification check and, through Explorer, the holder analysis lookups.
type Etherscan struct {
	c      *Client
	apiKey string
}

func NewEtherscan(pc config.ProviderConfig) *Etherscan {
	return &Etherscan{c: NewClient(config.Etherscan, pc), apiKey: pc.APIKey}
}

func (e *Etherscan) Source() checks.Source { return checks.SourceEtherscan }

// Supports needs both an EVM chain and an API key.
func (e *Etherscan) Supports(chain model.Chain) bool {
	return chain.IsEVM() && e.apiKey != ""
}

type etherscanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

var errNoRecords = errors.New("no records")

func (e *Etherscan) call(ctx context.Context, chain model.Chain, q url.Values) (json.RawMessage, error) {
	q.Set("chainid", chain.EVMChainID())
	q.Set("apikey", e.apiKey)
	body, err := e.c.Get(ctx, "", q)
	if err != nil {
		return nil, err
	}
	var env etherscanEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("etherscan: decode: %w", err)
	}
	if env.Status != "1" {
		if strings.HasPrefix(env.Message, "No ") {
			return nil, errNoRecords
		}
		var msg string
		_ = json.Unmarshal(env.Result, &msg)
		if strings.Contains(strings.ToLower(msg), "rate limit") {
			return nil, fmt.Errorf("etherscan: %s", msg)
		}
		return nil, permanent("etherscan: %s: %s", env.Message, msg)
	}
	return env.Result, nil
}

type sourceCode struct {
	SourceCode     string `json:"SourceCode"`
	ContractName   string `json:"ContractName"`
	CompilerVer    string `json:"CompilerVersion"`
	Proxy          string `json:"Proxy"`
	Implementation string `json:"Implementation"`
}

func (e *Etherscan) Fetch(ctx context.Context, token model.Token) (*model.Bundle, error) {
	if !e.Supports(token.Chain) {
		return nil, permanent("etherscan: chain %s not supported", token.Chain)
	}
	res, err := e.call(ctx, token.Chain, url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {token.Chain.NormalizeAddress(token.Address)},
	})
	if err != nil {
		return nil, err
	}
	var src []sourceCode
	if err := json.Unmarshal(res, &src); err != nil {
		return nil, fmt.Errorf("etherscan: decode source: %w", err)
	}

	b := model.NewBundle(checks.SourceEtherscan)
	b.Raw = res
	if len(src) == 0 {
		b.Set(checks.ContractVerified, model.CheckEntry{Outcome: model.Undecidable, Details: "No contract record returned"})
		return b, nil
	}
	s := src[0]
	if s.SourceCode == "" {
		b.Set(checks.ContractVerified, model.CheckEntry{Outcome: model.Failed, Details: "Contract source code is not verified"})
		return b, nil
	}
	details := "Verified as " + s.ContractName
	if s.Proxy == "1" && s.Implementation != "" {
		details += " (proxy to " + s.Implementation + ")"
	}
	b.Set(checks.ContractVerified, model.CheckEntry{
		Outcome: model.Passed,
		Value:   map[string]string{"contract_name": s.ContractName, "compiler": s.CompilerVer},
		Details: details,
	})
	return b, nil
}

// Explorer returns the holder analysis view of Etherscan for one chain.
func (e *Etherscan) Explorer(chain model.Chain) *EVMExplorer {
	return &EVMExplorer{es: e, chain: chain}
}

// EVMExplorer implements the holder lookups on one EVM chain.
type EVMExplorer struct {
	es    *Etherscan
	chain model.Chain
}

type holderRow struct {
	Address  string `json:"TokenHolderAddress"`
	Quantity string `json:"TokenHolderQuantity"`
}

func (x *EVMExplorer) TopHolders(ctx context.Context, token string, limit int) ([]model.Holder, error) {
	token = x.chain.NormalizeAddress(token)
	res, err := x.es.call(ctx, x.chain, url.Values{
		"module":          {"token"},
		"action":          {"tokenholderlist"},
		"contractaddress": {token},
		"page":            {"1"},
		"offset":          {strconv.Itoa(limit)},
	})
	if errors.Is(err, errNoRecords) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenholderlist: %w", err)
	}
	var rows []holderRow
	if err := json.Unmarshal(res, &rows); err != nil {
		return nil, fmt.Errorf("tokenholderlist: decode: %w", err)
	}

	supply := decimal.Zero
	if res, err := x.es.call(ctx, x.chain, url.Values{
		"module":          {"stats"},
		"action":          {"tokensupply"},
		"contractaddress": {token},
	}); err == nil {
		var s string
		if json.Unmarshal(res, &s) == nil {
			supply, _ = decimal.NewFromString(s)
		}
	}

	out := make([]model.Holder, 0, len(rows))
	for _, r := range rows {
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			continue
		}
		h := model.Holder{Address: x.chain.NormalizeAddress(r.Address), Balance: qty}
		if supply.IsPositive() {
			h.Percentage, _ = qty.Div(supply).Mul(decimal.NewFromInt(100)).Float64()
		}
		out = append(out, h)
	}
	return out, nil
}

type etherscanTx struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	TimeStamp string `json:"timeStamp"`
	IsError   string `json:"isError"`
}

func (t etherscanTx) time() time.Time {
	sec, err := strconv.ParseInt(t.TimeStamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// RecentTransfers returns the latest token transfers.
func (x *EVMExplorer) RecentTransfers(ctx context.Context, token string) ([]model.Transfer, error) {
	res, err := x.es.call(ctx, x.chain, url.Values{
		"module":          {"account"},
		"action":          {"tokentx"},
		"contractaddress": {x.chain.NormalizeAddress(token)},
		"page":            {"1"},
		"offset":          {"200"},
		"sort":            {"desc"},
	})
	if errors.Is(err, errNoRecords) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokentx: %w", err)
	}
	var txs []etherscanTx
	if err := json.Unmarshal(res, &txs); err != nil {
		return nil, fmt.Errorf("tokentx: decode: %w", err)
	}
	out := make([]model.Transfer, 0, len(txs))
	for _, t := range txs {
		amt, err := decimal.NewFromString(t.Value)
		if err != nil {
			continue
		}
		out = append(out, model.Transfer{From: t.From, To: t.To, Amount: amt, TxHash: t.Hash, Timestamp: t.time()})
	}
	return out, nil
}

func (x *EVMExplorer) firstTxs(ctx context.Context, address string, n int) ([]etherscanTx, error) {
	res, err := x.es.call(ctx, x.chain, url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {x.chain.NormalizeAddress(address)},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"page":       {"1"},
		"offset":     {strconv.Itoa(n)},
		"sort":       {"asc"},
	})
	if errors.Is(err, errNoRecords) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var txs []etherscanTx
	if err := json.Unmarshal(res, &txs); err != nil {
		return nil, fmt.Errorf("txlist: decode: %w", err)
	}
	return txs, nil
}

// FirstActivity is the timestamp of the wallet's first normal transaction.
// A wallet with none reports the zero time.
func (x *EVMExplorer) FirstActivity(ctx context.Context, address string) (time.Time, error) {
	txs, err := x.firstTxs(ctx, address, 1)
	if err != nil || len(txs) == 0 {
		return time.Time{}, err
	}
	return txs[0].time(), nil
}

// FundingSource is the sender of the first successful incoming transfer
// carrying native value.
func (x *EVMExplorer) FundingSource(ctx context.Context, address string) (string, error) {
	txs, err := x.firstTxs(ctx, address, 20)
	if err != nil {
		return "", err
	}
	addr := x.chain.NormalizeAddress(address)
	for _, t := range txs {
		if t.IsError == "1" || x.chain.NormalizeAddress(t.To) != addr {
			continue
		}
		v, err := decimal.NewFromString(t.Value)
		if err != nil || !v.IsPositive() {
			continue
		}
		return x.chain.NormalizeAddress(t.From), nil
	}
	return "", nil
}
