package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
)

// etherscanServer answers by the "action" query parameter.
func etherscanServer(t *testing.T, byAction map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("apikey"))
		assert.NotEmpty(t, q.Get("chainid"))
		body, ok := byAction[q.Get("action")]
		if !ok {
			body = `{"status":"0","message":"No transactions found","result":[]}`
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEtherscan(url string) *Etherscan {
	pc := testProviderConfig(url)
	pc.APIKey = "test-key"
	return NewEtherscan(pc)
}

func TestEtherscan_ContractVerified(t *testing.T) {
	t.Parallel()

	srv := etherscanServer(t, map[string]string{
		"getsourcecode": `{"status":"1","message":"OK","result":[{"SourceCode":"contract X {}","ContractName":"PepeToken","CompilerVersion":"v0.8.20","Proxy":"0","Implementation":""}]}`,
	})
	e := newTestEtherscan(srv.URL)

	b, err := e.Fetch(context.Background(), model.Token{Chain: model.ChainEthereum, Address: "0xabc"})
	require.NoError(t, err)
	assertCovers(t, b)
	assert.Equal(t, model.Passed, b.Checks[checks.ContractVerified].Outcome)
	assert.Equal(t, "Verified as PepeToken", b.Checks[checks.ContractVerified].Details)
}

func TestEtherscan_ContractNotVerified(t *testing.T) {
	t.Parallel()

	srv := etherscanServer(t, map[string]string{
		"getsourcecode": `{"status":"1","message":"OK","result":[{"SourceCode":"","ContractName":""}]}`,
	})
	e := newTestEtherscan(srv.URL)

	b, err := e.Fetch(context.Background(), model.Token{Chain: model.ChainBSC, Address: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, model.Failed, b.Checks[checks.ContractVerified].Outcome)
}

func TestEtherscan_NeedsKey(t *testing.T) {
	t.Parallel()

	e := NewEtherscan(testProviderConfig("http://unused"))
	assert.False(t, e.Supports(model.ChainEthereum))

	keyed := newTestEtherscan("http://unused")
	assert.True(t, keyed.Supports(model.ChainPolygon))
	assert.False(t, keyed.Supports(model.ChainSolana))
}

func TestEtherscan_ErrorEnvelope(t *testing.T) {
	t.Parallel()

	srv := etherscanServer(t, map[string]string{
		"getsourcecode": `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`,
	})
	e := newTestEtherscan(srv.URL)

	_, err := e.Fetch(context.Background(), model.Token{Chain: model.ChainEthereum, Address: "0xabc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API Key")
	assert.False(t, retryable(err))
}

func TestEVMExplorer(t *testing.T) {
	t.Parallel()

	srv := etherscanServer(t, map[string]string{
		"tokenholderlist": `{"status":"1","message":"OK","result":[
			{"TokenHolderAddress":"0xAAA","TokenHolderQuantity":"600"},
			{"TokenHolderAddress":"0xbbb","TokenHolderQuantity":"150"}]}`,
		"tokensupply": `{"status":"1","message":"OK","result":"1000"}`,
		"tokentx": `{"status":"1","message":"OK","result":[
			{"hash":"0x1","from":"0xaaa","to":"0xbbb","value":"10","timeStamp":"1767225600"}]}`,
		"txlist": `{"status":"1","message":"OK","result":[
			{"hash":"0x9","from":"0xwallet","to":"0xsomeone","value":"0","timeStamp":"1767225600","isError":"0"},
			{"hash":"0xa","from":"0xFunder","to":"0xwallet","value":"5000","timeStamp":"1767229200","isError":"0"}]}`,
	})
	x := newTestEtherscan(srv.URL).Explorer(model.ChainEthereum)
	ctx := context.Background()

	holders, err := x.TopHolders(ctx, "0xtoken", 10)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "0xaaa", holders[0].Address)
	assert.InDelta(t, 60.0, holders[0].Percentage, 0.0001)

	transfers, err := x.RecentTransfers(ctx, "0xtoken")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "10", transfers[0].Amount.String())

	first, err := x.FirstActivity(ctx, "0xWallet")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), first)

	src, err := x.FundingSource(ctx, "0xWallet")
	require.NoError(t, err)
	assert.Equal(t, "0xfunder", src)
}

func TestEVMExplorer_EmptyHistory(t *testing.T) {
	t.Parallel()

	srv := etherscanServer(t, map[string]string{})
	x := newTestEtherscan(srv.URL).Explorer(model.ChainBase)

	first, err := x.FirstActivity(context.Background(), "0xnew")
	require.NoError(t, err)
	assert.True(t, first.IsZero())

	src, err := x.FundingSource(context.Background(), "0xnew")
	require.NoError(t, err)
	assert.Empty(t, src)
}

// rpcServer answers JSON-RPC calls by method name.
func rpcServer(t *testing.T, byMethod map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req rpcRequest
		assert.NoError(t, json.Unmarshal(raw, &req))
		result, ok := byMethod[req.Method]
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSolanaRPC_TopHolders(t *testing.T) {
	t.Parallel()

	srv := rpcServer(t, map[string]string{
		"getTokenLargestAccounts": `{"value":[
			{"address":"acc1","amount":"500","decimals":6},
			{"address":"acc2","amount":"300","decimals":6},
			{"address":"acc3","amount":"100","decimals":6}]}`,
		"getTokenSupply": `{"value":{"amount":"1000","decimals":6}}`,
		"getMultipleAccounts": `{"value":[
			{"data":{"parsed":{"info":{"owner":"OwnerA"}}}},
			{"data":{"parsed":{"info":{"owner":"OwnerB"}}}},
			{"data":{"parsed":{"info":{"owner":"OwnerB"}}}}]}`,
	})
	s := NewSolanaRPC(testProviderConfig(srv.URL))

	holders, err := s.TopHolders(context.Background(), "Mint111", 10)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "OwnerA", holders[0].Address)
	assert.InDelta(t, 50.0, holders[0].Percentage, 0.0001)
	assert.Equal(t, "OwnerB", holders[1].Address)
	assert.Equal(t, "400", holders[1].Balance.String())
}

func TestSolanaRPC_FirstActivityAndFunding(t *testing.T) {
	t.Parallel()

	srv := rpcServer(t, map[string]string{
		"getSignaturesForAddress": `[
			{"signature":"newer","slot":20,"blockTime":1769904000,"err":null},
			{"signature":"oldest","slot":10,"blockTime":1767225600,"err":null}]`,
		"getTransaction": `{
			"blockTime":1767225600,
			"transaction":{"signatures":["oldest"],"message":{"accountKeys":[
				{"pubkey":"FeePayer","signer":true},
				{"pubkey":"Funder","signer":true},
				{"pubkey":"Wallet","signer":false}]}},
			"meta":{"err":null,"preBalances":[1000,900000,0],"postBalances":[995,400000,500000],
				"preTokenBalances":[],"postTokenBalances":[]}}`,
	})
	s := NewSolanaRPC(testProviderConfig(srv.URL))
	ctx := context.Background()

	first, err := s.FirstActivity(ctx, "Wallet")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), first)

	src, err := s.FundingSource(ctx, "Wallet")
	require.NoError(t, err)
	assert.Equal(t, "Funder", src)
}

func TestSolanaRPC_RPCErrorIsPermanent(t *testing.T) {
	t.Parallel()

	srv := rpcServer(t, map[string]string{})
	s := NewSolanaRPC(testProviderConfig(srv.URL))

	_, err := s.TopHolders(context.Background(), "Mint111", 10)
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
	assert.False(t, retryable(err))
}

func TestTransfersOf(t *testing.T) {
	t.Parallel()

	var tx parsedTransaction
	require.NoError(t, json.Unmarshal([]byte(`{
		"blockTime": 1767225600,
		"meta": {
			"err": null,
			"preTokenBalances": [
				{"accountIndex":1,"mint":"Mint111","owner":"X","uiTokenAmount":{"amount":"100"}},
				{"accountIndex":2,"mint":"Mint111","owner":"Y","uiTokenAmount":{"amount":"0"}},
				{"accountIndex":3,"mint":"Other","owner":"Z","uiTokenAmount":{"amount":"7"}}
			],
			"postTokenBalances": [
				{"accountIndex":1,"mint":"Mint111","owner":"X","uiTokenAmount":{"amount":"60"}},
				{"accountIndex":2,"mint":"Mint111","owner":"Y","uiTokenAmount":{"amount":"40"}},
				{"accountIndex":3,"mint":"Other","owner":"Z","uiTokenAmount":{"amount":"0"}}
			]
		}
	}`), &tx))

	got := transfersOf(&tx, "Mint111", "sig1")
	require.Len(t, got, 1)
	assert.Equal(t, "X", got[0].From)
	assert.Equal(t, "Y", got[0].To)
	assert.Equal(t, "40", got[0].Amount.String())
	assert.Equal(t, "sig1", got[0].TxHash)
}

func TestFunderOf_FallsBackToFeePayer(t *testing.T) {
	t.Parallel()

	var tx parsedTransaction
	require.NoError(t, json.Unmarshal([]byte(`{
		"transaction":{"message":{"accountKeys":[{"pubkey":"Payer"},{"pubkey":"Wallet"}]}},
		"meta":{"preBalances":[10],"postBalances":[5]}
	}`), &tx))

	assert.Equal(t, "Payer", funderOf(&tx, "Wallet"))
	assert.Empty(t, funderOf(&tx, "Payer"))
}
