package memdoc

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 📦 Format is a serialization format for documents.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks a format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", errors.Errorf("unsupported document extension %q", filepath.Ext(path))
}

// Parse decodes a document. Unknown YAML fields are rejected.
func Parse(data []byte, format Format, opts Options) (*Document, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, errors.Errorf("decoding yaml document: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, errors.Errorf("decoding json document: %w", err)
		}
	default:
		return nil, errors.Errorf("unsupported document format %q", format)
	}
	return New(&f, opts)
}

// 📂 Open reads a document from path.
func Open(ctx context.Context, path string, opts Options) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading document: %w", err)
	}
	d, err := Parse(data, format, opts)
	if err != nil {
		return nil, errors.Errorf("parsing %s: %w", path, err)
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Int("pages", len(d.file.Pages)).Int("nodes", len(d.index)).Msg("opened document")
	return d, nil
}

// Marshal encodes the document in format.
func (d *Document) Marshal(format Format) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d.file); err != nil {
			return nil, errors.Errorf("encoding yaml document: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Errorf("encoding yaml document: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		out, err := json.MarshalIndent(d.file, "", "  ")
		if err != nil {
			return nil, errors.Errorf("encoding json document: %w", err)
		}
		return append(out, '\n'), nil
	}
	return nil, errors.Errorf("unsupported document format %q", format)
}

// 💾 Save writes the document to path, choosing the format by extension.
func (d *Document) Save(ctx context.Context, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := d.Marshal(format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Errorf("writing document: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("saved document")
	return nil
}
