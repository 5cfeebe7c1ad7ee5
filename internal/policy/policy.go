// Package policy implements the market-policy filter the Pairing/Policy
// pipeline runs before a candidate ever reaches the Sizer: a keyword
// heuristic over a market's category/question/slug that blocks sports-event
// markets outright, and blocks crypto short-term-price markets when the
// question text smells like a timed price bet. Both rule bodies are ported
// unchanged from worker/signal_worker.py's _market_policy_block_reason, down
// to the Korean keyword lists — this is a direct carry-over, not a
// reformalization, per the spec's resolution of the open question around it.
package policy

import (
	"context"
	"strings"
)

// MarketMeta is the subset of Gamma market metadata the policy filter reads.
type MarketMeta struct {
	Category string
	Question string
	Slug     string
}

// MarketMetaProvider supplies MarketMeta for a token ID. It is optional: a
// nil provider (or one returning found=false) simply means the keyword rule
// never fires for that candidate, since there's nothing to check against.
type MarketMetaProvider interface {
	MarketMeta(ctx context.Context, tokenID string) (MarketMeta, bool, error)
}

var cryptoTokens = []string{
	"bitcoin", "btc", "ethereum", "eth", "solana", "sol", "dogecoin", "doge",
	"crypto", "coin", "token", "비트코인", "이더리움", "솔라나", "코인", "암호화폐",
}

var priceWords = []string{
	"price", "$", "usd", "dollar", "dollars", "가격", "달러",
}

var timeWords = []string{
	"today", "tomorrow", "this week", "tonight", "by noon", "by midnight",
	"within", "next hour", "hours", "오늘", "내일", "이번 주", "몇시", "시간 내",
}

// MarketPolicyBlockReason reports the blocked_reason for meta, or ("", false)
// if neither rule fires. Checked in order: sports category first, then the
// crypto/price/time combination.
func MarketPolicyBlockReason(meta MarketMeta) (reason string, blocked bool) {
	category := strings.ToLower(meta.Category)
	if strings.Contains(category, "sport") {
		return "market_policy_filtered:sports_event", true
	}

	text := strings.ToLower(meta.Question + " " + meta.Slug)
	hasCrypto := strings.Contains(category, "crypto") || containsAny(text, cryptoTokens)
	hasPrice := containsAny(text, priceWords)
	hasTime := containsAny(text, timeWords)
	if hasCrypto && hasPrice && hasTime {
		return "market_policy_filtered:crypto_short_term_price", true
	}
	return "", false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
