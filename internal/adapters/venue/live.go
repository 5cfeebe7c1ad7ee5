package venue

// Live implements ports.VenueExecutor against the real Polymarket CLOB,
// grounded on internal/adapters/polymarket/{auth,trading,client}.go: the
// same two-level auth (L1 EIP-712 derive-api-key, L2 HMAC-signed requests),
// the same GTC maker-order body, and the same rate-limited retry loop. The
// one structural difference is that PlaceOrder/CancelOrder take a keyRef
// instead of a fixed wallet, since one process can execute for many follower
// wallets — so AuthClient's per-wallet cached credentials become a
// keyRef-keyed cache here.

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/config"
	gomodel "github.com/polymarket/go-order-utils/pkg/model"
	"golang.org/x/time/rate"
)

const (
	clobDomainName    = "ClobAuthDomain"
	clobDomainVersion = "1"
	clobAuthMessage   = "This message attests that I control the given wallet"
	zeroAddress       = "0x0000000000000000000000000000000000000000"
	maxRetries        = 3
)

// Live's signed credentials for one wallet, cached for the process lifetime.
type walletCreds struct {
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	orderBuilder builder.ExchangeOrderBuilder
	apiKey       string
	secret       string
	passphrase   string
}

type apiKeyResponse struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Live places and cancels GTC limit orders on the Polymarket CLOB.
type Live struct {
	httpClient         *http.Client
	clobBase           string
	chainID            int64
	vault              ports.Vault
	passphrase         string
	limiter            *rate.Limiter
	marketMinOrderUSDC float64

	mu    sync.Mutex
	creds map[string]*walletCreds // keyRef -> resolved signer/credentials
}

// NewLive constructs a Live executor. passphrase decrypts every vault key
// this instance resolves — one worker process, one operator passphrase.
func NewLive(clobBase string, chainID int64, vault ports.Vault, passphrase string, marketMinOrderUSDC float64) *Live {
	return &Live{
		httpClient:         &http.Client{Timeout: 15 * time.Second},
		clobBase:           clobBase,
		chainID:            chainID,
		vault:              vault,
		passphrase:         passphrase,
		limiter:            rate.NewLimiter(rate.Limit(5), 10),
		marketMinOrderUSDC: marketMinOrderUSDC,
		creds:              make(map[string]*walletCreds),
	}
}

func (l *Live) MarketMinOrderUSDC() float64 { return l.marketMinOrderUSDC }

func (l *Live) resolve(ctx context.Context, keyRef string) (*walletCreds, error) {
	l.mu.Lock()
	if c, ok := l.creds[keyRef]; ok {
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	secret, err := l.vault.GetSecret(ctx, keyRef, l.passphrase)
	if err != nil {
		return nil, fmt.Errorf("venue.resolve: vault: %w", err)
	}
	key, err := signerFromSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("venue.resolve: signer: %w", err)
	}
	contracts, err := config.GetContracts(l.chainID)
	if err != nil {
		return nil, fmt.Errorf("venue.resolve: contracts: %w", err)
	}
	_ = contracts

	c := &walletCreds{
		privateKey:   key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		orderBuilder: builder.NewExchangeOrderBuilderImpl(big.NewInt(l.chainID), nil),
	}
	if err := l.deriveAPIKey(ctx, c); err != nil {
		return nil, fmt.Errorf("venue.resolve: derive api key: %w", err)
	}

	l.mu.Lock()
	l.creds[keyRef] = c
	l.mu.Unlock()
	return c, nil
}

func (l *Live) deriveAPIKey(ctx context.Context, c *walletCreds) error {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := signClobAuth(c.privateKey, c.address, l.chainID, ts, "0")
	if err != nil {
		return fmt.Errorf("sign l1: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.clobBase+"/auth/derive-api-key", nil)
	if err != nil {
		return err
	}
	req.Header.Set("POLY_ADDRESS", c.address.Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_NONCE", "0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("derive-api-key status %d: %s", resp.StatusCode, body)
	}

	var creds apiKeyResponse
	if err := json.Unmarshal(body, &creds); err != nil {
		return fmt.Errorf("parse creds: %w", err)
	}
	c.apiKey, c.secret, c.passphrase = creds.APIKey, creds.Secret, creds.Passphrase
	return nil
}

// eip712DomainTypeHash/clobAuthTypeHash are fixed EIP-712 type hashes.
var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId)"))
	clobAuthTypeHash     = crypto.Keccak256Hash([]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)"))
)

func clobAuthDomainSeparator(chainID int64) common.Hash {
	var buf []byte
	buf = append(buf, eip712DomainTypeHash.Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainName)).Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainVersion)).Bytes()...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

func signClobAuth(key *ecdsa.PrivateKey, addr common.Address, chainID int64, timestamp, nonce string) (string, error) {
	nonceInt, ok := new(big.Int).SetString(nonce, 10)
	if !ok {
		return "", fmt.Errorf("invalid nonce: %s", nonce)
	}

	var structBuf []byte
	structBuf = append(structBuf, clobAuthTypeHash.Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(addr.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(timestamp)).Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(nonceInt.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(clobAuthMessage)).Bytes()...)
	structHash := crypto.Keccak256Hash(structBuf)

	var rawBuf []byte
	rawBuf = append(rawBuf, 0x19, 0x01)
	rawBuf = append(rawBuf, clobAuthDomainSeparator(chainID).Bytes()...)
	rawBuf = append(rawBuf, structHash.Bytes()...)
	msgHash := crypto.Keccak256Hash(rawBuf)

	sig, err := crypto.Sign(msgHash.Bytes(), key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

func (c *walletCreds) l2Headers(method, path, body string) (map[string]string, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    c.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    c.apiKey,
		"POLY_PASSPHRASE": c.passphrase,
	}, nil
}

func (l *Live) doL2(ctx context.Context, c *walletCreds, method, path string, reqBody, out any) error {
	var bodyStr string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyStr = string(b)
	}
	fullURL := l.clobBase + path

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		headers, err := c.l2Headers(method, path, bodyStr)
		if err != nil {
			return err
		}

		var bodyReader io.Reader
		if bodyStr != "" {
			bodyReader = strings.NewReader(bodyStr)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := l.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			l.backoff(ctx, attempt)
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			if attempt == maxRetries {
				return fmt.Errorf("server error %d: %s", resp.StatusCode, respBody)
			}
			l.backoff(ctx, attempt)
			continue
		case resp.StatusCode >= 400:
			return fmt.Errorf("client error %d: %s", resp.StatusCode, respBody)
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (l *Live) backoff(ctx context.Context, attempt int) {
	d := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
}

// PlaceOrder builds a GTC maker order from req (already tick-aligned and
// quantized by the Executor) and submits it.
func (l *Live) PlaceOrder(ctx context.Context, keyRef string, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	c, err := l.resolve(ctx, keyRef)
	if err != nil {
		return domain.PlacedOrder{}, err
	}

	signed, err := buildSignedOrder(c, req)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("build signed order: %w", err)
	}

	sideStr := "BUY"
	if req.Side == domain.SideSell {
		sideStr = "SELL"
	}
	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       req.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          sideStr,
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     c.apiKey,
		OrderType: "GTC",
	}

	var resp clobOrderResponse
	if err := l.doL2(ctx, c, http.MethodPost, "/order", body, &resp); err != nil {
		return domain.PlacedOrder{}, err
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return domain.PlacedOrder{}, fmt.Errorf("clob error: %s", resp.ErrorMsg)
	}

	filled := resp.Status == "matched"
	return domain.PlacedOrder{ExecutorRef: resp.OrderID, Filled: filled}, nil
}

func (l *Live) CancelOrder(ctx context.Context, executorRef string) (domain.CancelResult, error) {
	l.mu.Lock()
	var any *walletCreds
	for _, c := range l.creds {
		any = c
		break
	}
	l.mu.Unlock()
	if any == nil {
		return domain.CancelResult{}, fmt.Errorf("cancel order: no resolved credentials yet for any wallet")
	}

	if err := l.doL2(ctx, any, http.MethodDelete, "/order/"+executorRef, nil, nil); err != nil {
		return domain.CancelResult{Reason: err.Error()}, nil
	}
	return domain.CancelResult{Canceled: true}, nil
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookResponse struct {
	AssetID string      `json:"asset_id"`
	Bids    []bookLevel `json:"bids"`
	Asks    []bookLevel `json:"asks"`
	Tick    string      `json:"tick_size"`
}

func (l *Live) OrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return domain.OrderBook{}, err
	}
	url := fmt.Sprintf("%s/book?token_id=%s", l.clobBase, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.OrderBook{}, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("get book: %w", err)
	}
	defer resp.Body.Close()
	var raw bookResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.OrderBook{}, fmt.Errorf("decode book: %w", err)
	}

	tick := domain.ParsePrice(raw.Tick)
	if tick <= 0 {
		tick = 0.01
	}
	return domain.OrderBook{
		TokenID:  tokenID,
		TickSize: tick,
		Bids:     mapLevels(raw.Bids),
		Asks:     mapLevels(raw.Asks),
	}, nil
}

func mapLevels(raw []bookLevel) []domain.BookEntry {
	out := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, size := domain.ParsePrice(r.Price), domain.ParsePrice(r.Size)
		if price <= 0 || size <= 0 {
			continue
		}
		out = append(out, domain.BookEntry{Price: price, Size: size})
	}
	return out
}

// buildSignedOrder mirrors auth.go's integer-arithmetic order construction:
// the CLOB verifies makerAmount == price * takerAmount exactly, so float
// notional/price math would get rejected on rounding.
func buildSignedOrder(c *walletCreds, req domain.PlaceOrderRequest) (*gomodel.SignedOrder, error) {
	pricePrecision := detectPricePrecision(req.Price)
	priceInt := int64(math.Round(req.Price * float64(pricePrecision)))
	sharesCents := int64(math.Floor(req.Size * 100))

	amountFactor := int64(1_000_000) / (100 * pricePrecision)
	makerAmount := sharesCents * priceInt * amountFactor
	takerAmount := sharesCents * 10000
	side := gomodel.BUY
	if req.Side == domain.SideSell {
		makerAmount, takerAmount = takerAmount, makerAmount
		side = gomodel.SELL
	}
	if makerAmount <= 0 || takerAmount <= 0 {
		return nil, fmt.Errorf("invalid amounts: maker=%d taker=%d (price=%.4f size=%.4f)", makerAmount, takerAmount, req.Price, req.Size)
	}

	orderData := &gomodel.OrderData{
		Maker:         c.address.Hex(),
		Taker:         zeroAddress,
		TokenId:       req.TokenID,
		MakerAmount:   strconv.FormatInt(makerAmount, 10),
		TakerAmount:   strconv.FormatInt(takerAmount, 10),
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address.Hex(),
		Expiration:    "0",
		Side:          side,
		SignatureType: gomodel.EOA,
	}
	return c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, gomodel.CTFExchange)
}

func detectPricePrecision(price float64) int64 {
	for _, prec := range []int64{100, 1000, 10000} {
		rounded := math.Round(price * float64(prec))
		if math.Abs(rounded/float64(prec)-price) < 1e-10 {
			return prec
		}
	}
	return 100
}
