package main

import (
	"context"
	"errors"
	"testing"

	"freshrss_filter/internal/model"
	"freshrss_filter/internal/pipeline"
)

type ctxSource struct {
	ctxErr   error
	fetchErr error
}

func (s *ctxSource) FetchUnread(ctx context.Context) ([]model.Item, error) {
	s.ctxErr = ctx.Err()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return nil, nil
}

func (s *ctxSource) MarkRead(context.Context, model.ItemID) error { return nil }
func (s *ctxSource) SoftDelete(context.Context, model.ItemID) error { return nil }

func TestRunOnceIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &ctxSource{}
	proc := pipeline.New(pipeline.Deps{Source: src}, pipeline.Options{})
	if err := runOnce(ctx, proc); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if src.ctxErr != nil {
		t.Errorf("fetch saw ctx err %v, want nil", src.ctxErr)
	}
}

func TestRunOnceReturnsFetchError(t *testing.T) {
	boom := errors.New("boom")
	proc := pipeline.New(pipeline.Deps{Source: &ctxSource{fetchErr: boom}}, pipeline.Options{})

	err := runOnce(context.Background(), proc)
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != pipeline.StageFetch {
		t.Fatalf("runOnce err = %v, want fetch StageError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("runOnce err = %v, want wrapping %v", err, boom)
	}
}
