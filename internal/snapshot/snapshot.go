// Package snapshot reads and writes the five logical stores as one AppState.
//
// Each store is reached through an explicit Handle rather than global state,
// so the engine only ever sees plain records.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rcliao/state-sync/internal/model"
	"github.com/rcliao/state-sync/internal/store"
)

// Handle loads and saves the record of one logical store.
type Handle[T any] interface {
	Load(ctx context.Context) (T, error)
	Save(ctx context.Context, record T) error
}

// Handles bundles one handle per store identifier.
type Handles struct {
	Chat   Handle[model.ChatState]
	Access Handle[model.Record]
	Config Handle[model.Record]
	Mask   Handle[model.MaskState]
	Prompt Handle[model.PromptState]
}

// ReadAll captures a fresh snapshot of every store.
func ReadAll(ctx context.Context, h Handles) (model.AppState, error) {
	var s model.AppState
	var err error

	if s.Chat, err = h.Chat.Load(ctx); err != nil {
		return s, fmt.Errorf("read %s: %w", model.StoreChat, err)
	}
	if s.Access, err = h.Access.Load(ctx); err != nil {
		return s, fmt.Errorf("read %s: %w", model.StoreAccess, err)
	}
	if s.Config, err = h.Config.Load(ctx); err != nil {
		return s, fmt.Errorf("read %s: %w", model.StoreConfig, err)
	}
	if s.Mask, err = h.Mask.Load(ctx); err != nil {
		return s, fmt.Errorf("read %s: %w", model.StoreMask, err)
	}
	if s.Prompt, err = h.Prompt.Load(ctx); err != nil {
		return s, fmt.Errorf("read %s: %w", model.StorePrompt, err)
	}

	s.Normalize()
	return s, nil
}

// WriteAll applies each store's record store by store. Stores written
// before a failing one keep their new value.
func WriteAll(ctx context.Context, h Handles, s model.AppState) error {
	s.Normalize()

	if err := h.Chat.Save(ctx, s.Chat); err != nil {
		return fmt.Errorf("write %s: %w", model.StoreChat, err)
	}
	if err := h.Access.Save(ctx, s.Access); err != nil {
		return fmt.Errorf("write %s: %w", model.StoreAccess, err)
	}
	if err := h.Config.Save(ctx, s.Config); err != nil {
		return fmt.Errorf("write %s: %w", model.StoreConfig, err)
	}
	if err := h.Mask.Save(ctx, s.Mask); err != nil {
		return fmt.Errorf("write %s: %w", model.StoreMask, err)
	}
	if err := h.Prompt.Save(ctx, s.Prompt); err != nil {
		return fmt.Errorf("write %s: %w", model.StorePrompt, err)
	}
	return nil
}

// FromStore returns handles backed by a local Store.
func FromStore(s store.Store) Handles {
	return Handles{
		Chat:   &storeHandle[model.ChatState]{s: s, key: model.StoreChat},
		Access: &storeHandle[model.Record]{s: s, key: model.StoreAccess},
		Config: &storeHandle[model.Record]{s: s, key: model.StoreConfig},
		Mask:   &storeHandle[model.MaskState]{s: s, key: model.StoreMask},
		Prompt: &storeHandle[model.PromptState]{s: s, key: model.StorePrompt},
	}
}

// storeHandle keeps one record JSON-encoded under its store key.
type storeHandle[T any] struct {
	s   store.Store
	key model.StoreKey
}

func (h *storeHandle[T]) Load(ctx context.Context) (T, error) {
	var record T
	data, err := h.s.GetRecord(ctx, h.key)
	if errors.Is(err, store.ErrNotFound) {
		return record, nil
	}
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

func (h *storeHandle[T]) Save(ctx context.Context, record T) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return h.s.PutRecord(ctx, h.key, data)
}
