package sync

import (
	"context"
	"errors"

	"github.com/uroborus2s/campus-sync/internal/models"
)

// nameIndex caches deterministic-name lookups for one batch run so a large
// term does not re-query the store per node. The store's uniqueness
// constraint stays the source of truth: a lost create race surfaces as
// ErrAlreadyExists and resolves to the winner's node.
type nameIndex struct {
	store models.TaskStore
	cache map[string]*models.TaskNode
}

func newNameIndex(store models.TaskStore) *nameIndex {
	return &nameIndex{
		store: store,
		cache: make(map[string]*models.TaskNode),
	}
}

// preload fills the cache with the existing descendants of root, making a
// resumed run's lookups memory-only.
func (idx *nameIndex) preload(ctx context.Context, rootID string) error {
	nodes, err := idx.store.ListDescendants(ctx, rootID)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		idx.cache[node.Name] = node
	}
	return nil
}

// findOrCreate returns the node with the input's name, creating it when
// absent. The created flag tells the caller whether a job must be enqueued;
// pre-existing nodes already had theirs.
func (idx *nameIndex) findOrCreate(ctx context.Context, in models.TaskInput) (node *models.TaskNode, created bool, err error) {
	if node, ok := idx.cache[in.Name]; ok {
		return node, false, nil
	}

	node, err = idx.store.GetTaskByName(ctx, in.Name)
	if err == nil {
		idx.cache[in.Name] = node
		return node, false, nil
	}
	if !models.IsNotFound(err) {
		return nil, false, err
	}

	node, err = idx.store.CreateTask(ctx, in)
	if errors.Is(err, models.ErrAlreadyExists) {
		// Lost a concurrent create; the existing node wins.
		node, err = idx.store.GetTaskByName(ctx, in.Name)
		if err != nil {
			return nil, false, err
		}
		idx.cache[in.Name] = node
		return node, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	idx.cache[in.Name] = node
	return node, true, nil
}
