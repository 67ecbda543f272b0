package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"docsmith/internal/store"
)

// ErrInvalidBatchAction reports an action outside the supported set.
var ErrInvalidBatchAction = errors.New("invalid batch action")

// BatchRequest applies one action to several documents. Data carries
// action parameters; for the flag actions a missing value means true.
type BatchRequest struct {
	Action      string         `json:"action"`
	DocumentIDs []uuid.UUID    `json:"document_ids"`
	Data        map[string]any `json:"data,omitempty"`
}

// BatchItemResult reports one document's outcome inside a batch.
type BatchItemResult struct {
	ID    uuid.UUID `json:"id"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

// BatchAction applies the requested action to each document in turn.
// Failures are isolated per item: one document failing (most commonly
// because it belongs to someone else) never aborts the rest.
func (o *Orchestrator) BatchAction(ctx context.Context, userID string, req BatchRequest) ([]BatchItemResult, error) {
	var apply func(ctx context.Context, id uuid.UUID) error
	switch req.Action {
	case "favorite":
		updates := map[string]any{"is_favorite": dataFlag(req.Data, "favorite", true)}
		apply = func(ctx context.Context, id uuid.UUID) error {
			return o.store.UpdateDocument(ctx, id, userID, updates)
		}
	case "unfavorite":
		apply = func(ctx context.Context, id uuid.UUID) error {
			return o.store.UpdateDocument(ctx, id, userID, map[string]any{"is_favorite": false})
		}
	case "archive":
		updates := map[string]any{"is_archived": dataFlag(req.Data, "archived", true)}
		apply = func(ctx context.Context, id uuid.UUID) error {
			return o.store.UpdateDocument(ctx, id, userID, updates)
		}
	case "unarchive":
		apply = func(ctx context.Context, id uuid.UUID) error {
			return o.store.UpdateDocument(ctx, id, userID, map[string]any{"is_archived": false})
		}
	case "delete":
		apply = func(ctx context.Context, id uuid.UUID) error {
			return o.store.DeleteDocument(ctx, id, userID)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBatchAction, req.Action)
	}

	results := make([]BatchItemResult, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		res := BatchItemResult{ID: id, OK: true}
		if err := apply(ctx, id); err != nil {
			res.OK = false
			if errors.Is(err, store.ErrNotFound) {
				res.Error = "document not found"
			} else {
				res.Error = err.Error()
			}
			o.log.Warn("batch item failed", "action", req.Action, "document_id", id, "error", err)
		}
		results = append(results, res)
	}
	return results, nil
}

func dataFlag(data map[string]any, key string, fallback bool) bool {
	if data == nil {
		return fallback
	}
	if v, ok := data[key].(bool); ok {
		return v
	}
	return fallback
}
