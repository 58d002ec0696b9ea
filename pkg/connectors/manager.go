// Package connectors keeps the bot adapters of a process by id.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/renflow/pkg/connectors/onebot"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/google/uuid"
)

const (
	TypeNapcat = "napcat"
	TypeOneBot = onebot.TypeOneBot
)

var (
	ErrAdapterNotFound        = errors.New("adapter not found")
	ErrDuplicateAdapter       = errors.New("adapter already exists")
	ErrUnsupportedAdapterType = errors.New("unsupported adapter type")
)

type factory func(id string, opts protocol.AdapterOptions, logger *slog.Logger) protocol.BotAdapter

var factories = map[string]factory{
	TypeNapcat: func(id string, opts protocol.AdapterOptions, logger *slog.Logger) protocol.BotAdapter {
		return onebot.New(id, opts, logger, onebot.WithType(TypeNapcat))
	},
	TypeOneBot: func(id string, opts protocol.AdapterOptions, logger *slog.Logger) protocol.BotAdapter {
		return onebot.New(id, opts, logger)
	},
}

// Manager registers adapters and routes API calls to them.
type Manager struct {
	mu       sync.RWMutex
	adapters map[string]protocol.BotAdapter
	logger   *slog.Logger
}

var _ nodes.BotLookup = (*Manager)(nil)

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		adapters: make(map[string]protocol.BotAdapter),
		logger:   logger.With("module", "connector_manager"),
	}
}

// Register stores adapter under id, replacing any previous entry.
func (m *Manager) Register(id string, adapter protocol.BotAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adapters[id] = adapter
}

func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.adapters, id)
}

func (m *Manager) Get(id string) (protocol.BotAdapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.adapters[id]

	return a, ok
}

// All returns the registered adapters ordered by id.
func (m *Manager) All() []protocol.BotAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.adapters))
	for id := range m.adapters {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	out := make([]protocol.BotAdapter, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.adapters[id])
	}

	return out
}

// CallAdapterAPI sends req through the adapter registered as id without
// waiting for a response.
func (m *Manager) CallAdapterAPI(ctx context.Context, id string, req *models.APIRequest) error {
	adapter, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAdapterNotFound, id)
	}

	return adapter.Send(ctx, req)
}

// CreateBotAdapter builds and registers an adapter of the given type. An
// empty id is replaced by a generated "bot-xxxxxx" one.
func (m *Manager) CreateBotAdapter(adapterType string, opts protocol.AdapterOptions, id string) (protocol.BotAdapter, error) {
	if id == "" {
		id = "bot-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.adapters[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAdapter, id)
	}

	create, ok := factories[adapterType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAdapterType, adapterType)
	}

	adapter := create(id, opts, m.logger)
	m.adapters[id] = adapter

	m.logger.Info("Created bot adapter", "adapter_id", id, "type", adapterType)

	return adapter, nil
}

// SupportedAdapterTypes lists the types CreateBotAdapter accepts.
func SupportedAdapterTypes() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}
