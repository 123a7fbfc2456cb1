// Package memdoc is an in-memory scene graph that implements host.Document. Documents
// are read from and written back to YAML or JSON files, which makes it the host used by
// the command line and by tests.
package memdoc

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/host"
	"github.com/walteh/fillswap/pkg/model"
	"gitlab.com/tozd/go/errors"
)

const pathSeparator = " > "

// node types that never carry a fill list
var nonFillable = map[string]struct{}{
	"GROUP":  {},
	"SLICE":  {},
	"PAGE":   {},
	"WIDGET": {},
}

// 🧱 Node is one scene node.
type Node struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Type       string       `json:"type" yaml:"type"`
	Hidden     bool         `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	MixedFills bool         `json:"mixedFills,omitempty" yaml:"mixed_fills,omitempty"`
	Fills      []host.Paint `json:"fills,omitempty" yaml:"fills,omitempty"`
	Children   []*Node      `json:"children,omitempty" yaml:"children,omitempty"`

	parent *Node
	page   *Page
}

// Fillable reports whether n can hold a fill list.
func (n *Node) Fillable() bool {
	_, no := nonFillable[strings.ToUpper(n.Type)]
	return !no
}

// 📄 Page is a top-level canvas.
type Page struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`

	loaded bool
}

// 🗂️ File is the serialized form of a document.
type File struct {
	Name        string   `json:"name" yaml:"name"`
	CurrentPage string   `json:"currentPage,omitempty" yaml:"current_page,omitempty"`
	Selection   []string `json:"selection,omitempty" yaml:"selection,omitempty"`
	Pages       []*Page  `json:"pages" yaml:"pages"`
}

// 📚 Document is a loaded scene graph. It is safe for concurrent use.
type Document struct {
	mu      sync.Mutex
	file    *File
	current *Page
	index   map[string]*Node
	images  map[string][]byte
	opts    Options
}

// Options tune a Document.
type Options struct {
	// MaxImageEdge is the largest width or height RegisterImage accepts. Zero uses DefaultMaxImageEdge.
	MaxImageEdge int
}

// New indexes f and returns a document over it. f is owned by the document afterwards.
func New(f *File, opts Options) (*Document, error) {
	if f == nil {
		return nil, errors.New("document is nil")
	}
	if len(f.Pages) == 0 {
		return nil, errors.New("document has no pages")
	}
	if opts.MaxImageEdge <= 0 {
		opts.MaxImageEdge = DefaultMaxImageEdge
	}

	d := &Document{
		file:   f,
		index:  map[string]*Node{},
		images: map[string][]byte{},
		opts:   opts,
	}

	pageIDs := map[string]struct{}{}
	for _, p := range f.Pages {
		if p == nil {
			return nil, errors.New("document has a nil page")
		}
		if _, dup := pageIDs[p.ID]; dup {
			return nil, errors.Errorf("duplicate page id %q", p.ID)
		}
		pageIDs[p.ID] = struct{}{}
		if err := d.indexChildren(p, nil, p.Children); err != nil {
			return nil, err
		}
		if p.ID == f.CurrentPage {
			d.current = p
		}
	}

	if d.current == nil {
		if f.CurrentPage != "" {
			return nil, errors.Errorf("current page %q not found", f.CurrentPage)
		}
		d.current = f.Pages[0]
		f.CurrentPage = d.current.ID
	}
	d.current.loaded = true

	for _, id := range f.Selection {
		n, ok := d.index[id]
		if !ok {
			return nil, errors.Errorf("selected node %q not found", id)
		}
		if n.page != d.current {
			return nil, errors.Errorf("selected node %q is not on the current page", id)
		}
	}

	return d, nil
}

func (d *Document) indexChildren(page *Page, parent *Node, children []*Node) error {
	for _, n := range children {
		if n == nil {
			return errors.Errorf("nil node on page %q", page.ID)
		}
		if n.ID == "" {
			return errors.Errorf("node %q on page %q has no id", n.Name, page.ID)
		}
		if _, dup := d.index[n.ID]; dup {
			return errors.Errorf("duplicate node id %q", n.ID)
		}
		n.parent = parent
		n.page = page
		d.index[n.ID] = n
		if err := d.indexChildren(page, n, n.Children); err != nil {
			return err
		}
	}
	return nil
}

// File returns the underlying serialized form.
func (d *Document) File() *File {
	return d.file
}

// Image returns the bytes registered under hash.
func (d *Document) Image(hash string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.images[hash]
	return b, ok
}

// ImageCount returns how many distinct images have been registered.
func (d *Document) ImageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.images)
}

// LoadedPages returns the ids of pages that have been loaded, in document order.
func (d *Document) LoadedPages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []string{}
	for _, p := range d.file.Pages {
		if p.loaded {
			out = append(out, p.ID)
		}
	}
	return out
}

// 🌳 ListSelected collects the selected nodes and all of their descendants.
func (d *Document) ListSelected(ctx context.Context) ([]model.CandidateItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	items := []model.CandidateItem{}
	for _, id := range d.file.Selection {
		items = collect(d.index[id], false, items)
	}
	return items, nil
}

// ListPage collects every node on the current page, skipping hidden children of instances.
func (d *Document) ListPage(ctx context.Context) ([]model.CandidateItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	items := []model.CandidateItem{}
	for _, n := range d.current.Children {
		items = collect(n, true, items)
	}
	return items, nil
}

// ListDocument loads each page in turn and collects every node on it, skipping hidden
// children of instances.
func (d *Document) ListDocument(ctx context.Context) ([]model.CandidateItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	items := []model.CandidateItem{}
	for _, p := range d.file.Pages {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("loading page %q: %w", p.ID, err)
		}
		if !p.loaded {
			zerolog.Ctx(ctx).Debug().Str("page", p.ID).Msg("loading page")
			p.loaded = true
		}
		for _, n := range p.Children {
			items = collect(n, true, items)
		}
	}
	return items, nil
}

func collect(n *Node, skipHiddenInstanceChildren bool, items []model.CandidateItem) []model.CandidateItem {
	if n.Fillable() {
		items = append(items, model.NewCandidateItem(n.ID, n.Name, n.Type, !n.MixedFills && host.HasImage(n.Fills), parentPath(n)))
	}
	instance := strings.EqualFold(n.Type, "INSTANCE")
	for _, c := range n.Children {
		if skipHiddenInstanceChildren && instance && c.Hidden {
			continue
		}
		items = collect(c, skipHiddenInstanceChildren, items)
	}
	return items
}

func parentPath(n *Node) string {
	parts := []string{}
	for p := n.parent; p != nil; p = p.parent {
		parts = append(parts, p.Name)
	}
	parts = append(parts, n.page.Name)
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, pathSeparator)
}

type target struct {
	node *Node
}

func (t target) ID() string   { return t.node.ID }
func (t target) Name() string { return t.node.Name }

// 🔎 Lookup resolves a live node by id on any page.
func (d *Document) Lookup(ctx context.Context, id string) (host.Target, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return target{node: n}, true
}

func (d *Document) resolve(t host.Target) (*Node, error) {
	tt, ok := t.(target)
	if !ok {
		return nil, errors.Errorf("target %T does not belong to this document", t)
	}
	if d.index[tt.node.ID] != tt.node {
		return nil, errors.Errorf("node %q no longer exists", tt.node.ID)
	}
	if !tt.node.Fillable() {
		return nil, errors.Errorf("node %q of type %s cannot hold fills", tt.node.ID, tt.node.Type)
	}
	return tt.node, nil
}

// GetFills returns a deep copy of the target's fill list.
func (d *Document) GetFills(ctx context.Context, t host.Target) ([]host.Paint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.resolve(t)
	if err != nil {
		return nil, err
	}
	if n.MixedFills {
		return nil, errors.Errorf("reading fills of %q: %w", n.ID, host.ErrMixedFills)
	}
	out := host.ClonePaints(n.Fills)
	if out == nil {
		out = []host.Paint{}
	}
	return out, nil
}

// SetFills replaces the target's fill list with a deep copy of fills.
func (d *Document) SetFills(ctx context.Context, t host.Target, fills []host.Paint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.resolve(t)
	if err != nil {
		return err
	}
	n.Fills = host.ClonePaints(fills)
	if n.Fills == nil {
		n.Fills = []host.Paint{}
	}
	n.MixedFills = false
	return nil
}

// Remove deletes the node with id and its subtree.
func (d *Document) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.index[id]
	if !ok {
		return false
	}

	siblings := &n.page.Children
	if n.parent != nil {
		siblings = &n.parent.Children
	}
	for i, c := range *siblings {
		if c == n {
			*siblings = append((*siblings)[:i:i], (*siblings)[i+1:]...)
			break
		}
	}

	var unindex func(*Node)
	unindex = func(x *Node) {
		delete(d.index, x.ID)
		for _, c := range x.Children {
			unindex(c)
		}
	}
	unindex(n)

	sel := d.file.Selection[:0]
	for _, s := range d.file.Selection {
		if _, still := d.index[s]; still {
			sel = append(sel, s)
		}
	}
	d.file.Selection = sel
	return true
}

// Select replaces the current selection.
func (d *Document) Select(ids ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		n, ok := d.index[id]
		if !ok {
			return errors.Errorf("node %q not found", id)
		}
		if n.page != d.current {
			return errors.Errorf("node %q is not on the current page", id)
		}
	}
	d.file.Selection = append([]string(nil), ids...)
	return nil
}
