package factory

import (
	"fmt"
	"log"
	"sort"

	"FlowRank/internal/config"
	"FlowRank/internal/model"
)

// SourceFactory creates the record source described by the config.
type SourceFactory func(cfg *config.Config) (model.Source, error)

// WriterFactory creates one report writer from its definition.
type WriterFactory func(cfg *config.Config, def config.WriterDef) (model.Writer, error)

var (
	sources = make(map[string]SourceFactory)
	writers = make(map[string]WriterFactory)
)

// RegisterSource registers a new source type with its factory function.
func RegisterSource(name string, factory SourceFactory) {
	if _, exists := sources[name]; exists {
		panic(fmt.Sprintf("source type '%s' already registered", name))
	}
	sources[name] = factory
}

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := writers[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	writers[name] = factory
}

// NewSource creates the source selected by cfg.Source.Type.
func NewSource(cfg *config.Config) (model.Source, error) {
	factory, ok := sources[cfg.Source.Type]
	if !ok {
		return nil, fmt.Errorf("unknown source type: '%s'", cfg.Source.Type)
	}
	src, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating source type '%s': %w", cfg.Source.Type, err)
	}
	return src, nil
}

// NewWriters creates every enabled writer. Writers that are unknown or fail to
// initialise are logged and skipped so one unreachable backend does not lose
// the whole report.
func NewWriters(cfg *config.Config) []model.Writer {
	var out []model.Writer
	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		factory, ok := writers[def.Type]
		if !ok {
			log.Printf("Warning: unknown writer type '%s' in config, skipping.", def.Type)
			continue
		}
		w, err := factory(cfg, def)
		if err != nil {
			log.Printf("Warning: failed to create writer type '%s': %v, skipping.", def.Type, err)
			continue
		}
		out = append(out, w)
	}
	return out
}

// SourceTypes lists the registered source types.
func SourceTypes() []string {
	return sortedKeys(sources)
}

// WriterTypes lists the registered writer types.
func WriterTypes() []string {
	return sortedKeys(writers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
