package reconcile

import (
	"github.com/TFMV/recon/pkg/core"
	"golang.org/x/sync/errgroup"
)

// minShardSize keeps small comparisons on a single goroutine.
const minShardSize = 512

// commonPair is a source/target record pair sharing a key.
type commonPair struct {
	key    Key
	source core.Record
	target core.Record
}

// partitions are the three disjoint key sets of a comparison.
type partitions struct {
	common  []commonPair
	missing []Key
	extra   []Key
}

// partition splits the keys of both indices into common, source-only and target-only
// sets. Common and missing keys follow source order, extra keys follow target order.
func partition(source, target *KeyIndex) partitions {
	var p partitions
	for i, enc := range source.encoded {
		key := source.keys[i]
		if tgt, ok := target.lookupEncoded(enc); ok {
			src, _ := source.lookupEncoded(enc)
			p.common = append(p.common, commonPair{key: key, source: src, target: tgt})
			continue
		}
		p.missing = append(p.missing, key)
	}
	for i, enc := range target.encoded {
		if _, ok := source.rows[enc]; !ok {
			p.extra = append(p.extra, target.keys[i])
		}
	}
	return p
}

// matchOutcome holds the comparison of a run of common pairs.
type matchOutcome struct {
	matched     int
	mismatched  int
	details     []MismatchDetail
	matchedKeys []Key
}

func (m *matchOutcome) merge(other matchOutcome) {
	m.matched += other.matched
	m.mismatched += other.mismatched
	m.details = append(m.details, other.details...)
	m.matchedKeys = append(m.matchedKeys, other.matchedKeys...)
}

// compareShard compares each pair with its own comparator.
func compareShard(pairs []commonPair, cfg core.ComparisonConfig, columns []string) matchOutcome {
	cmp := newValueComparator(cfg, columns)
	var out matchOutcome
	for _, pair := range pairs {
		details := cmp.compare(pair.key, pair.source, pair.target)
		if len(details) == 0 {
			out.matched++
			out.matchedKeys = append(out.matchedKeys, pair.key)
			continue
		}
		out.mismatched++
		out.details = append(out.details, details...)
	}
	return out
}

// matchCommon runs the value comparator over all common pairs. With more than one
// worker the pairs are split into contiguous shards whose outcomes are written to
// their own slot and concatenated in shard order, so the output equals a sequential run.
func matchCommon(pairs []commonPair, cfg core.ComparisonConfig, columns []string, workers int) matchOutcome {
	shards := shardCount(len(pairs), workers)
	if shards <= 1 {
		return compareShard(pairs, cfg, columns)
	}

	outcomes := make([]matchOutcome, shards)
	size := (len(pairs) + shards - 1) / shards

	var g errgroup.Group
	for i := 0; i < shards; i++ {
		start := i * size
		end := min(start+size, len(pairs))
		if start >= end {
			continue
		}
		g.Go(func() error {
			outcomes[i] = compareShard(pairs[start:end], cfg, columns)
			return nil
		})
	}
	// Shards never fail; Wait only joins them.
	_ = g.Wait()

	var out matchOutcome
	for _, o := range outcomes {
		out.merge(o)
	}
	return out
}

func shardCount(pairs, workers int) int {
	if workers <= 1 || pairs < 2*minShardSize {
		return 1
	}
	return min(workers, pairs/minShardSize)
}
