package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML scalars like "30s" or "24h" via time.ParseDuration.
// Bare integers are treated as seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}

	*d = Duration(parsed)

	return nil
}

// decodeFile decodes a YAML document into out. With strict set, unknown
// keys are an error; otherwise the caller is expected to have decoded into
// a permissive structure or to tolerate a warning upstream.
func decodeFile(path string, out interface{}, strict bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(strict)

	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty document, defaults apply
		}

		if strict {
			return fmt.Errorf("%w: %s: %v", ErrUnknownKeys, path, err)
		}

		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

// sourcesDoc is the top-level shape of sources.yaml.
type sourcesDoc struct {
	Sources []SourceConfig `yaml:"sources"`
}

func loadSources(path string, strict bool) ([]SourceConfig, error) {
	var doc sourcesDoc
	if err := decodeFile(path, &doc, strict); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(doc.Sources))

	for _, src := range doc.Sources {
		if src.ID == "" || src.URL == "" {
			return nil, fmt.Errorf("%w: source %q", ErrMissingSourceURL, src.ID)
		}

		if src.Kind != "rss" && src.Kind != "api" {
			return nil, fmt.Errorf("%w: source %q has kind %q", ErrInvalidSourceKind, src.ID, src.Kind)
		}

		if _, dup := seen[src.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSourceID, src.ID)
		}

		seen[src.ID] = struct{}{}
	}

	return doc.Sources, nil
}

func loadPipeline(path string) (Pipeline, error) {
	// Two-pass decode: strict_config is read first so it can govern the
	// strictness of its own document.
	var probe struct {
		StrictConfig bool `yaml:"strict_config"`
	}

	if err := decodeFile(path, &probe, false); err != nil {
		return Pipeline{}, err
	}

	var p Pipeline
	if err := decodeFile(path, &p, probe.StrictConfig); err != nil {
		return Pipeline{}, err
	}

	p.applyDefaults()

	if err := p.validate(); err != nil {
		return Pipeline{}, err
	}

	return p, nil
}
