package compose

import (
	"context"

	"golang.org/x/sync/errgroup"

	"worklens/internal/catalog"
)

// collectParallelism bounds how many files are read at once.
const collectParallelism = 8

// Collect reads workspace files concurrently under the caps and returns them
// in the order the paths were given. Reads are confined to root; unreadable
// or escaping entries are skipped. The collection completes in full before
// composition proceeds, so a partial context is never generated. The first
// context cancellation aborts the remaining reads.
func Collect(ctx context.Context, root string, paths []string, caps Caps) ([]catalog.SourceFile, error) {
	caps = caps.normalized()
	wfs, err := NewWorkspaceFS(root)
	if err != nil {
		return nil, err
	}
	if len(paths) > caps.MaxFiles {
		paths = paths[:caps.MaxFiles]
	}

	results := make([]catalog.SourceFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(collectParallelism)

	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := wfs.ReadFile(p)
			if err != nil {
				return nil // unreadable or escaping entries are omitted, not fatal
			}
			results[i] = catalog.SourceFile{
				Path:    p,
				Content: truncateRunes(string(b), caps.MaxFileChars),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]catalog.SourceFile, 0, len(results))
	for _, f := range results {
		if f.Path != "" {
			out = append(out, f)
		}
	}
	return out, nil
}
