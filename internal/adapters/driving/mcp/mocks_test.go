package mcp

import (
	"context"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driving"
)

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	report *domain.RunReport
	err    error

	lastArchive  string
	lastSettings domain.RunSettings
	planned      bool
}

func (m *mockIndexService) Index(
	_ context.Context,
	archive string,
	settings domain.RunSettings,
	_ domain.ProgressObserver,
) (*domain.RunReport, error) {
	m.lastArchive = archive
	m.lastSettings = settings
	return m.report, m.err
}

func (m *mockIndexService) Plan(
	_ context.Context,
	archive string,
	settings domain.RunSettings,
	_ domain.ProgressObserver,
) (*domain.RunReport, error) {
	m.lastArchive = archive
	m.lastSettings = settings
	m.planned = true
	return m.report, m.err
}

// mockCollectionService is a mock implementation of driving.CollectionService.
type mockCollectionService struct {
	collections []domain.CollectionInfo
	local       *driving.LocalCollectionInfo
	err         error

	lastRemote domain.RemoteSettings
	lastDir    string
}

func (m *mockCollectionService) List(_ context.Context, remote domain.RemoteSettings) ([]domain.CollectionInfo, error) {
	m.lastRemote = remote
	return m.collections, m.err
}

func (m *mockCollectionService) Delete(_ context.Context, _ domain.RemoteSettings, _ string) error {
	return m.err
}

func (m *mockCollectionService) DeleteAll(_ context.Context, _ domain.RemoteSettings) ([]string, error) {
	return nil, m.err
}

func (m *mockCollectionService) LocalInfo(_ context.Context, dir, _ string) (*driving.LocalCollectionInfo, error) {
	m.lastDir = dir
	return m.local, m.err
}
