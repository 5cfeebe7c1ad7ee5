package policy

import "testing"

func TestMarketPolicyBlockReason_Sports(t *testing.T) {
	reason, blocked := MarketPolicyBlockReason(MarketMeta{Category: "Sports"})
	if !blocked || reason != "market_policy_filtered:sports_event" {
		t.Fatalf("got (%q, %v), want sports_event block", reason, blocked)
	}
}

func TestMarketPolicyBlockReason_CryptoShortTermPrice(t *testing.T) {
	reason, blocked := MarketPolicyBlockReason(MarketMeta{
		Category: "Crypto",
		Question: "Will Bitcoin price be above $70,000 today?",
	})
	if !blocked || reason != "market_policy_filtered:crypto_short_term_price" {
		t.Fatalf("got (%q, %v), want crypto_short_term_price block", reason, blocked)
	}
}

func TestMarketPolicyBlockReason_CryptoWithoutTimeWordPasses(t *testing.T) {
	_, blocked := MarketPolicyBlockReason(MarketMeta{
		Category: "Crypto",
		Question: "Will Ethereum reach $10,000 this year?",
	})
	if blocked {
		t.Fatalf("expected no block without a time word")
	}
}

func TestMarketPolicyBlockReason_UnrelatedMarketPasses(t *testing.T) {
	reason, blocked := MarketPolicyBlockReason(MarketMeta{
		Category: "Politics",
		Question: "Will the incumbent win re-election?",
	})
	if blocked || reason != "" {
		t.Fatalf("got (%q, %v), want no block", reason, blocked)
	}
}

func TestMarketPolicyBlockReason_KoreanKeywords(t *testing.T) {
	reason, blocked := MarketPolicyBlockReason(MarketMeta{
		Question: "비트코인 가격이 오늘 상승할까요?",
	})
	if !blocked || reason != "market_policy_filtered:crypto_short_term_price" {
		t.Fatalf("got (%q, %v), want crypto_short_term_price block on Korean keywords", reason, blocked)
	}
}
