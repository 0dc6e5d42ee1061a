// Package rank implements the Rankers (spec §4.G): TF-IDF, BM25, Hybrid,
// and Hybrid2 scoring strategies over the Index/Statistics output, plus the
// deterministic sort that turns scored blocks into a stable ranking.
package rank

import (
	"math"
	"sort"

	"github.com/probe-search/probe/pkg/search"
	"github.com/probe-search/probe/pkg/search/index"
	"github.com/probe-search/probe/pkg/search/lang"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Scorer computes a block's raw score and, optionally, the named
// components that made it up (spec "score_components" is always
// populated).
type Scorer interface {
	Score(bs index.BlockStats, stats index.Stats, terms []string) map[string]float64
}

type tfidfScorer struct{}

func (tfidfScorer) Score(bs index.BlockStats, stats index.Stats, terms []string) map[string]float64 {
	return map[string]float64{"tfidf": tfidfScore(bs, stats, terms)}
}

type bm25Scorer struct{}

func (bm25Scorer) Score(bs index.BlockStats, stats index.Stats, terms []string) map[string]float64 {
	return map[string]float64{"bm25": bm25Score(bs, stats, terms)}
}

type hybridScorer struct {
	minMaxTFIDF, minMaxBM25 minMax
}

func (h hybridScorer) Score(bs index.BlockStats, stats index.Stats, terms []string) map[string]float64 {
	tfidf := h.minMaxTFIDF.normalize(tfidfScore(bs, stats, terms))
	bm25 := h.minMaxBM25.normalize(bm25Score(bs, stats, terms))

	return map[string]float64{
		"tfidf":  tfidf,
		"bm25":   bm25,
		"hybrid": 0.5*tfidf + 0.5*bm25,
	}
}

type hybrid2Scorer struct {
	adapters    map[string]*lang.Adapter
	minMaxTFIDF minMax
	minMaxBM25  minMax
}

func (h hybrid2Scorer) Score(bs index.BlockStats, stats index.Stats, terms []string) map[string]float64 {
	bm25 := h.minMaxBM25.normalize(bm25Score(bs, stats, terms))
	tfidf := h.minMaxTFIDF.normalize(tfidfScore(bs, stats, terms))
	coverage := termCoverage(bs, terms)
	density := hitDensity(bs)
	structural := h.structuralBonus(bs.Block)
	filename := 0.0

	if bs.FilenameHit {
		filename = 1.0
	}

	score := 0.35*bm25 + 0.15*tfidf + 0.20*coverage + 0.10*density + 0.10*structural + 0.10*filename

	return map[string]float64{
		"bm25":             bm25,
		"tfidf":            tfidf,
		"term_coverage":    coverage,
		"hit_density":      density,
		"structural_bonus": structural,
		"filename_bonus":   filename,
		"hybrid2":          score,
	}
}

func (h hybrid2Scorer) structuralBonus(b search.Block) float64 {
	adapter, ok := h.adapters[b.Language]
	if !ok {
		return 0.0
	}

	return adapter.StructuralBonusFor(b.NodeKind)
}

// Rank scores every block in stats with the named reranker and returns the
// results in deterministic order: score descending, then path ascending,
// then start_line ascending (spec §8 determinism property).
func Rank(stats index.Stats, terms []string, reranker search.Reranker, adapters map[string]*lang.Adapter) []search.ScoredBlock {
	scorer := newScorer(reranker, stats, terms, adapters)
	scoreKey := string(reranker)

	out := make([]search.ScoredBlock, 0, len(stats.Blocks))

	for _, bs := range stats.Blocks {
		components := scorer.Score(bs, stats, terms)

		out = append(out, search.ScoredBlock{
			Block:      bs.Block,
			Components: components,
			Score:      components[scoreKey],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}

		if out[i].Block.Path != out[j].Block.Path {
			return out[i].Block.Path < out[j].Block.Path
		}

		return out[i].Block.StartLine < out[j].Block.StartLine
	})

	return out
}

func newScorer(reranker search.Reranker, stats index.Stats, terms []string, adapters map[string]*lang.Adapter) Scorer {
	switch reranker {
	case search.RerankerBM25:
		return bm25Scorer{}
	case search.RerankerTFIDF:
		return tfidfScorer{}
	case search.RerankerHybrid2:
		return hybrid2Scorer{
			adapters:    adapters,
			minMaxTFIDF: computeMinMax(stats, terms, tfidfScore),
			minMaxBM25:  computeMinMax(stats, terms, bm25Score),
		}
	case search.RerankerHybrid:
		fallthrough
	default:
		return hybridScorer{
			minMaxTFIDF: computeMinMax(stats, terms, tfidfScore),
			minMaxBM25:  computeMinMax(stats, terms, bm25Score),
		}
	}
}

func tfidfScore(bs index.BlockStats, stats index.Stats, terms []string) float64 {
	if bs.LengthTokens == 0 {
		return 0.0
	}

	score := 0.0

	for _, term := range terms {
		tf := float64(bs.TermCounts[term]) / float64(bs.LengthTokens)
		idf := math.Log(float64(1+stats.TotalDocs)/float64(1+stats.DocFreq[term])) + 1
		score += tf * idf
	}

	return score
}

func bm25Score(bs index.BlockStats, stats index.Stats, terms []string) float64 {
	score := 0.0
	avgLen := stats.AvgLenTokens

	if avgLen == 0 {
		avgLen = 1
	}

	for _, term := range terms {
		df := stats.DocFreq[term]
		idf := math.Log(1 + (float64(stats.TotalDocs)-float64(df)+0.5)/(float64(df)+0.5))

		tf := float64(bs.TermCounts[term])
		denom := tf + bm25K1*(1-bm25B+bm25B*float64(bs.LengthTokens)/avgLen)

		if denom == 0 {
			continue
		}

		score += idf * (tf * (bm25K1 + 1)) / denom
	}

	return score
}

func termCoverage(bs index.BlockStats, terms []string) float64 {
	if len(terms) == 0 {
		return 0.0
	}

	matched := 0

	for _, t := range terms {
		if bs.TermCounts[t] > 0 {
			matched++
		}
	}

	return float64(matched) / float64(len(terms))
}

func hitDensity(bs index.BlockStats) float64 {
	lines := bs.Block.EndLine - bs.Block.StartLine + 1
	if lines <= 0 {
		return 0.0
	}

	hits := len(bs.Block.HitLines())

	density := float64(hits) / float64(lines)
	if density > 1 {
		density = 1
	}

	return density
}

type minMax struct {
	min, max float64
}

func (m minMax) normalize(v float64) float64 {
	if m.max <= m.min {
		return 0.0
	}

	return (v - m.min) / (m.max - m.min)
}

func computeMinMax(stats index.Stats, terms []string, score func(index.BlockStats, index.Stats, []string) float64) minMax {
	if len(stats.Blocks) == 0 {
		return minMax{}
	}

	mm := minMax{min: math.Inf(1), max: math.Inf(-1)}

	for _, bs := range stats.Blocks {
		v := score(bs, stats, terms)
		if v < mm.min {
			mm.min = v
		}

		if v > mm.max {
			mm.max = v
		}
	}

	return mm
}
