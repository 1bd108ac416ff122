package transform

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/source"
)

// Failure is a record that could not be transformed.
type Failure struct {
	SourceID string
	Err      error
}

// TransformAll maps vacancies in parallel. Drafts keep input order;
// records that fail are reported instead of aborting the batch.
func (m *Mapper) TransformAll(ctx context.Context, vacancies []*source.Vacancy, workers int) ([]*domain.JobDraft, []Failure, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	drafts := make([]*domain.JobDraft, len(vacancies))
	errs := make([]error, len(vacancies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range vacancies {
		if gctx.Err() != nil {
			break
		}
		i, v := i, v
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			drafts[i], errs[i] = m.Transform(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	out := make([]*domain.JobDraft, 0, len(drafts))
	var failures []Failure
	for i, d := range drafts {
		if errs[i] != nil {
			id := ""
			if vacancies[i] != nil {
				id = vacancies[i].SourceID
			}
			failures = append(failures, Failure{SourceID: id, Err: errs[i]})
			continue
		}
		out = append(out, d)
	}
	return out, failures, nil
}
