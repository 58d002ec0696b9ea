// Package bundle loads workflows and bot connections from disk.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes/custom"
	"github.com/dukex/renflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/zip"
)

const (
	// BotsConfigEntry is the archive entry listing the bots to connect.
	BotsConfigEntry = "bots.config"

	// NodesDir holds custom node definitions, one JSON file each.
	NodesDir = "nodes/"
)

var (
	ErrMissingBotsConfig = errors.New("bundle is missing " + BotsConfigEntry)
	ErrUnsupportedBundle = errors.New("unsupported bundle extension")
)

var validate = validator.New()

// Bundle is what a file on disk contributes to a process.
type Bundle struct {
	Bots      []models.BotConfig
	Workflows []*models.CompiledWorkflow
	Nodes     []custom.Definition
}

// NodeRegistrar accepts custom node definitions.
type NodeRegistrar interface {
	RegisterCustomNode(def custom.Definition) error
}

// RegisterNodes adds the bundle's custom nodes to r. It stops at the first
// definition r refuses.
func (b *Bundle) RegisterNodes(r NodeRegistrar) error {
	for _, def := range b.Nodes {
		if err := r.RegisterCustomNode(def); err != nil {
			return fmt.Errorf("custom node %s: %w", def.ID, err)
		}
	}

	return nil
}

// Load reads a single workflow from a .json file, or a set of workflows plus
// bots.config from a .renflow, .rfw or .zip archive.
func Load(file string, logger *slog.Logger) (*Bundle, error) {
	logger = logger.With("module", "bundle", "path", file)

	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		wf, err := workflow.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		fillID(wf, file)

		return &Bundle{Workflows: []*models.CompiledWorkflow{wf}}, nil
	case ".renflow", ".rfw", ".zip":
		return loadArchive(file, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBundle, file)
	}
}

func loadArchive(file string, logger *slog.Logger) (*Bundle, error) {
	r, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer r.Close()

	var botsFile *zip.File

	for _, f := range r.File {
		if f.Name == BotsConfigEntry {
			botsFile = f
			break
		}
	}

	if botsFile == nil {
		return nil, ErrMissingBotsConfig
	}

	bots, err := readBots(botsFile)
	if err != nil {
		return nil, err
	}

	b := &Bundle{Bots: bots}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".json") {
			continue
		}

		if strings.HasPrefix(f.Name, NodesDir) {
			def, err := readNode(f)
			if err != nil {
				logger.Warn("Skipping custom node", "entry", f.Name, "error", err)
				continue
			}

			b.Nodes = append(b.Nodes, def)

			continue
		}

		data, err := readEntry(f)
		if err != nil {
			logger.Warn("Skipping unreadable workflow", "entry", f.Name, "error", err)
			continue
		}

		wf, err := workflow.Decode(data)
		if err != nil {
			logger.Warn("Skipping undecodable workflow", "entry", f.Name, "error", err)
			continue
		}

		fillID(wf, f.Name)
		b.Workflows = append(b.Workflows, wf)
	}

	logger.Info("Loaded bundle", "workflows", len(b.Workflows), "bots", len(b.Bots), "nodes", len(b.Nodes))

	return b, nil
}

func readBots(f *zip.File) ([]models.BotConfig, error) {
	data, err := readEntry(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", BotsConfigEntry, err)
	}

	var bots []models.BotConfig
	if err := json.Unmarshal(data, &bots); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", BotsConfigEntry, err)
	}

	for i := range bots {
		if err := validate.Struct(bots[i]); err != nil {
			return nil, fmt.Errorf("invalid bot %d in %s: %w", i, BotsConfigEntry, err)
		}
	}

	return bots, nil
}

func readNode(f *zip.File) (custom.Definition, error) {
	var def custom.Definition

	data, err := readEntry(f)
	if err != nil {
		return def, err
	}

	if err := json.Unmarshal(data, &def); err != nil {
		return def, err
	}

	return def, validate.Struct(def)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// fillID names an id-less workflow after the file it came from.
func fillID(wf *models.CompiledWorkflow, name string) {
	if wf.ID != "" {
		return
	}

	base := path.Base(filepath.ToSlash(name))
	wf.ID = strings.TrimSuffix(base, path.Ext(base))
}
