package commands

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/walteh/fillswap/cmd/fillswap/opts"
	"github.com/walteh/fillswap/pkg/host"
	"github.com/walteh/fillswap/pkg/host/memdoc"
	"github.com/walteh/fillswap/pkg/model"
	"github.com/walteh/fillswap/pkg/source"
	"gitlab.com/tozd/go/errors"
)

// 📄 docFlags are shared by every command that reads a document
type docFlags struct {
	path  string
	scope string
}

func (f *docFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "doc", "", "document file (.yaml, .yml or .json)")
	cmd.Flags().StringVarP(&f.scope, "scope", "s", "", "where to look for layers: selection, page or document (default from config)")
	_ = cmd.MarkFlagRequired("doc")
}

func (f *docFlags) open(ctx context.Context) (*memdoc.Document, error) {
	doc, err := memdoc.Open(ctx, f.path, memdoc.Options{})
	if err != nil {
		return nil, errors.Errorf("opening document: %w", err)
	}
	return doc, nil
}

// snapshot traverses the flag scope, falling back to the configured one.
func (f *docFlags) snapshot(ctx context.Context, o *opts.RootOpts, doc host.Traverser) (model.CandidateSet, error) {
	scope := o.Config.Scope
	if f.scope != "" {
		scope = model.Scope(f.scope)
		if !scope.Valid() {
			return model.CandidateSet{}, errors.Errorf("unknown scope %q", f.scope)
		}
	}
	return host.Snapshot(ctx, doc, scope, time.Now())
}

func loadSources(ctx context.Context, o *opts.RootOpts, dir string) ([]model.SourceItem, error) {
	sources, err := source.Load(ctx, dir, o.Config.SourceOptions())
	if err != nil {
		return nil, errors.Errorf("loading images: %w", err)
	}
	return sources, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Errorf("encoding output: %w", err)
	}
	return nil
}
