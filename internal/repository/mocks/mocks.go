package mocks

import (
	"context"

	"github.com/rpggio/blossom/internal/domain/activity"
	"github.com/rpggio/blossom/internal/repository"
	"github.com/stretchr/testify/mock"
)

// WorldState is a mock for repository.WorldState.
type WorldState struct {
	mock.Mock
}

func (m *WorldState) Get(ctx context.Context, partition, key string) (repository.VersionedValue, error) {
	args := m.Called(ctx, partition, key)
	if v, ok := args.Get(0).(repository.VersionedValue); ok {
		return v, args.Error(1)
	}
	return repository.VersionedValue{}, args.Error(1)
}

func (m *WorldState) GetRange(ctx context.Context, partition, start, end string) ([]repository.KV, error) {
	args := m.Called(ctx, partition, start, end)
	if list, ok := args.Get(0).([]repository.KV); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorldState) History(ctx context.Context, partition, key string) ([]repository.KeyModification, error) {
	args := m.Called(ctx, partition, key)
	if list, ok := args.Get(0).([]repository.KeyModification); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorldState) Commit(ctx context.Context, batch repository.CommitBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
