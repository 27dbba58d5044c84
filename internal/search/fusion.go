package search

import (
	"sort"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/settings"
)

// rankScore converts a 1-indexed-less position into a linearly decaying
// score in (0, 1]: the first entry scores 1, the last 1/len.
func rankScore(idx, length int) float64 {
	if length < 1 {
		length = 1
	}
	return float64(length-idx) / float64(length)
}

// trustBoost computes the additive boost from an entity's trust attributes
// using the tunable boost settings. Gold supersedes plain verification; the
// badge and quality boosts stack.
func trustBoost(b catalog.BoostAttrs, cfg settings.Settings) float64 {
	var boost float64
	switch b.VerificationStatus {
	case catalog.VerificationGoldVerified:
		boost += cfg.GoldVerifiedBoost
	case catalog.VerificationVerified:
		boost += cfg.VerifiedBoost
	}
	if b.HasBadge(catalog.BadgeTradeAssurance) {
		boost += cfg.TradeAssuranceBoost
	}
	if b.ServiceRating != nil {
		boost += cfg.ServiceRatingMultiplier * (*b.ServiceRating / 5.0)
	}
	if b.ResponseRate != nil {
		boost += cfg.ResponseRateMultiplier * (*b.ResponseRate / 100.0)
	}
	return boost
}

// fuse blends the keyword and semantic rankings into one list. Each source
// contributes weight * rankScore for the entities it ranked; entities in
// both lists sum both contributions. Trust boosts are added last. The
// result is sorted best first with ID as the stable tiebreaker.
func fuse(keyword, semantic []ranked, cfg settings.Settings, boosts map[string]catalog.BoostAttrs) []Result {
	byID := make(map[string]*Result, len(keyword)+len(semantic))

	for idx, r := range keyword {
		res, ok := byID[r.parentID]
		if !ok {
			res = &Result{ParentID: r.parentID}
			byID[r.parentID] = res
		}
		res.KeywordRank = idx + 1
		res.Score += cfg.KeywordWeight * rankScore(idx, len(keyword))
	}
	for idx, r := range semantic {
		res, ok := byID[r.parentID]
		if !ok {
			res = &Result{ParentID: r.parentID}
			byID[r.parentID] = res
		}
		res.SemanticRank = idx + 1
		res.Score += cfg.SemanticWeight * rankScore(idx, len(semantic))
	}

	out := make([]Result, 0, len(byID))
	for id, res := range byID {
		if b, ok := boosts[id]; ok {
			res.Score += trustBoost(b, cfg)
		}
		out = append(out, *res)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ParentID < out[j].ParentID
	})
	return out
}
