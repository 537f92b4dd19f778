package assess

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/internal/scorer"
)

// Ranker defaults.
const (
	DefaultShortlist   = 8
	DefaultTopN        = 5
	DefaultConcurrency = 4
)

// RankOptions bounds the ranking work.
type RankOptions struct {
	Shortlist   int
	TopN        int
	Concurrency int
}

func (o RankOptions) withDefaults() RankOptions {
	if o.Shortlist <= 0 {
		o.Shortlist = DefaultShortlist
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// BaselineFunc fetches the crime baseline at a candidate's location.
type BaselineFunc func(ctx context.Context, loc model.LatLng) (float64, error)

// Rank scores the first opts.Shortlist candidates against the shared
// lighting score, drops closed ones and orders the rest: open before
// unknown, then vibe score descending, ties in input order. Baselines are
// fetched concurrently; any failure aborts the ranking. The input slice is
// not modified.
func Rank(ctx context.Context, candidates []model.PlaceCandidate, lighting int, opts RankOptions, baseline BaselineFunc) ([]model.PlaceCandidate, error) {
	opts = opts.withDefaults()

	shortlist := candidates
	if len(shortlist) > opts.Shortlist {
		shortlist = shortlist[:opts.Shortlist]
	}
	scored := make([]model.PlaceCandidate, len(shortlist))
	copy(scored, shortlist)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range scored {
		g.Go(func() error {
			csi, err := baseline(gctx, scored[i].Location)
			if err != nil {
				return err
			}
			vibe := scorer.VibeScore(csi, float64(lighting))
			return scored[i].Enrich(vibe, scorer.RiskLevelFor(vibe))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "assess: rank")
	}

	kept := slices.DeleteFunc(scored, func(c model.PlaceCandidate) bool {
		return c.OpenAtTime == model.OpenClosed
	})
	slices.SortStableFunc(kept, compareCandidates)

	if len(kept) > opts.TopN {
		kept = kept[:opts.TopN]
	}
	return kept, nil
}

// compareCandidates orders open before unknown, then by vibe descending.
func compareCandidates(a, b model.PlaceCandidate) int {
	if ao, bo := a.OpenAtTime == model.OpenYes, b.OpenAtTime == model.OpenYes; ao != bo {
		if ao {
			return -1
		}
		return 1
	}
	return b.Vibe() - a.Vibe()
}
