package replay

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/RealDaniG/QFS-sub007/pkg/merkle"
)

// Batch is the outcome of independent sessions run together. Root commits
// to every session digest.
type Batch struct {
	Results []*Result    `json:"results"`
	Root    string       `json:"root"`
	Tree    *merkle.Tree `json:"-"`
}

// OK reports whether every session is OK.
func (b *Batch) OK() bool {
	for _, r := range b.Results {
		if !r.OK() {
			return false
		}
	}
	return true
}

// RunAll runs scripts concurrently, at most limit at a time (limit <= 0
// means no limit). Each script owns its LogContext, so sessions never share
// state. Results are ordered by session name, which must be unique.
func (r *Runner) RunAll(ctx context.Context, scripts []*Script, limit int) (*Batch, error) {
	seen := make(map[string]bool, len(scripts))
	for _, s := range scripts {
		if err := r.Validate(s); err != nil {
			return nil, err
		}
		if seen[s.Session] {
			return nil, fmt.Errorf("%w: duplicate session %q", ErrInvalidScript, s.Session)
		}
		seen[s.Session] = true
	}

	results := make([]*Result, len(scripts))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range scripts {
		g.Go(func() error {
			res, err := r.Run(gctx, s)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Session < results[j].Session })
	digests := make(map[string]string, len(results))
	for _, res := range results {
		digests[res.Session] = res.Digest
	}
	tree, err := merkle.BuildTree(digests)
	if err != nil {
		return nil, fmt.Errorf("batch merkle tree: %w", err)
	}
	return &Batch{Results: results, Root: tree.Root, Tree: tree}, nil
}
