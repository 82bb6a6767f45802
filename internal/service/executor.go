package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"estatechat/internal/model"
	"estatechat/internal/schema"
)

// QueryExecutor resolves the target collection and runs a validated
// QuerySpec against the document store, normalizing the three outcomes:
// data, explicit no-match, and execution failure.
type QueryExecutor struct {
	store       DocumentStore
	defaultHint string
	log         *zap.Logger
}

// NewQueryExecutor creates an executor. defaultHint is the externally
// supplied fallback collection; an explicit collection in the spec always
// wins over it.
func NewQueryExecutor(store DocumentStore, defaultHint string, log *zap.Logger) *QueryExecutor {
	return &QueryExecutor{store: store, defaultHint: defaultHint, log: log}
}

// Execute runs the spec. Returned errors: ErrCollectionNotFound when no
// target can be resolved, ErrEmptyResult when the query matched nothing
// (a normal terminal outcome), or a backend failure, which is reported and
// never silently retried.
func (e *QueryExecutor) Execute(ctx context.Context, spec *model.QuerySpec) ([]model.Document, error) {
	primary, err := e.resolveCollection(spec)
	if err != nil {
		return nil, err
	}

	var filter map[string]any
	if len(spec.Stages) > 0 {
		filter = spec.Stages[0].Filter
	}

	var docs []model.Document
	switch spec.Mode {
	case model.ModeUnion:
		docs, err = e.store.UnionFind(ctx, primary, filter, schema.MetadataFields, spec.Secondaries())
	default:
		docs, err = e.store.Find(ctx, primary, filter, schema.MetadataFields)
	}
	if err != nil {
		e.log.Error("query execution failed",
			zap.String("collection", primary),
			zap.String("mode", string(spec.Mode)),
			zap.Error(err))
		return nil, err
	}

	if len(docs) == 0 {
		return nil, ErrEmptyResult
	}

	e.log.Debug("query executed",
		zap.String("collection", primary),
		zap.String("mode", string(spec.Mode)),
		zap.Int("documents", len(docs)))
	return docs, nil
}

// resolveCollection applies the precedence: explicit collection in the
// spec, then external default hint, then the first union-stage reference.
// Guessing is not allowed.
func (e *QueryExecutor) resolveCollection(spec *model.QuerySpec) (string, error) {
	if spec.Primary != "" {
		return spec.Primary, nil
	}
	if e.defaultHint != "" {
		return e.defaultHint, nil
	}
	for _, stage := range spec.Stages {
		if stage.Collection != "" {
			return stage.Collection, nil
		}
	}
	return "", fmt.Errorf("%w: no explicit collection, hint, or union reference", ErrCollectionNotFound)
}
