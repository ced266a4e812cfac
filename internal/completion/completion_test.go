package completion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/unified-markup-lsp/internal/document"
	"github.com/woxQAQ/unified-markup-lsp/internal/project"
	"github.com/woxQAQ/unified-markup-lsp/internal/syntax"
	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

const testURI = uri.URI("file:///work/Pages/Index.mkup")

type fakeDirectives struct {
	candidates []markup.Candidate
	calls      int
}

func (f *fakeDirectives) Complete(*syntax.Tree, int) []markup.Candidate {
	f.calls++
	return f.candidates
}

type fakeSemantic struct {
	items []protocol.CompletionItem
	calls int
}

func (f *fakeSemantic) Complete(int, *document.Snapshot) []protocol.CompletionItem {
	f.calls++
	return f.items
}

type fakeRenderer map[string]string

func (f fakeRenderer) Render(d markup.Description) (string, bool) {
	var key string
	switch v := d.(type) {
	case markup.ElementDescription:
		key = v.Component
	case markup.AttributeDescription:
		key = v.Component + "." + v.Attribute
	}
	text, ok := f[key]
	return text, ok
}

type fakeSnapshots struct {
	snap *document.Snapshot
	err  error
}

func (f fakeSnapshots) Resolve(context.Context, document.ID) (*document.Snapshot, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.snap, f.snap != nil, nil
}

func supportedSnapshot(text string) *document.Snapshot {
	return document.NewSnapshot(testURI, "markup", 1, text, nil)
}

func unsupportedSnapshot() *document.Snapshot {
	return document.NewSnapshot(testURI, "markup", 1, "@page \"/\"\n<Button />", syntax.NewAnalyzer(1))
}

func pageCandidate() markup.Candidate {
	return markup.Candidate{
		Kind:        markup.KindDirective,
		DisplayText: "page",
		InsertText:  "page",
		Description: "Page directive",
	}
}

func attributeItem(component, attribute string) protocol.CompletionItem {
	return protocol.CompletionItem{
		Label:  attribute,
		Kind:   protocol.CompletionItemKindProperty,
		Detail: "string",
		Data:   markup.Encode(markup.AttributeDescription{Component: component, Attribute: attribute, Type: "string"}),
	}
}

func elementItem(component string) protocol.CompletionItem {
	return protocol.CompletionItem{
		Label: component,
		Kind:  protocol.CompletionItemKindClass,
		Data:  markup.Encode(markup.ElementDescription{Component: component, Namespace: "Ui"}),
	}
}

func TestAggregateUnsupportedDocument(t *testing.T) {
	directives := &fakeDirectives{candidates: []markup.Candidate{pageCandidate()}}
	semantic := &fakeSemantic{items: []protocol.CompletionItem{elementItem("Button")}}
	agg := NewAggregator(directives, semantic, zaptest.NewLogger(t))

	for _, offset := range []int{0, 3, 12} {
		list, err := agg.Aggregate(context.Background(), unsupportedSnapshot(), offset)
		require.NoError(t, err)
		require.NotNil(t, list)
		assert.False(t, list.IsIncomplete)
		assert.NotNil(t, list.Items)
		assert.Empty(t, list.Items)
	}
	assert.Zero(t, directives.calls)
	assert.Zero(t, semantic.calls)
}

func TestAggregateSingleDirective(t *testing.T) {
	agg := NewAggregator(
		&fakeDirectives{candidates: []markup.Candidate{pageCandidate()}},
		&fakeSemantic{},
		zap.NewNop(),
	)

	list, err := agg.Aggregate(context.Background(), supportedSnapshot("@"), 1)
	require.NoError(t, err)
	assert.False(t, list.IsIncomplete)
	require.Len(t, list.Items, 1)

	item := list.Items[0]
	assert.Equal(t, "page", item.Label)
	assert.Equal(t, "page", item.InsertText)
	assert.Equal(t, "Page directive", item.Detail)
	assert.Equal(t, "Page directive", item.Documentation)
	assert.Equal(t, "page", item.FilterText)
	assert.Equal(t, "page", item.SortText)
	assert.Equal(t, protocol.CompletionItemKindStruct, item.Kind)

	d, ok := markup.Decode(item.Data)
	require.True(t, ok)
	assert.Equal(t, markup.DirectiveDescription{Directive: "page", Summary: "Page directive"}, d)
}

func TestAggregateDropsNonDirectiveCandidates(t *testing.T) {
	agg := NewAggregator(&fakeDirectives{candidates: []markup.Candidate{
		{Kind: markup.KindKeyword, DisplayText: "if", InsertText: "if"},
		pageCandidate(),
		{Kind: markup.KindComponentElement, DisplayText: "Button"},
	}}, &fakeSemantic{}, zap.NewNop())

	list, err := agg.Aggregate(context.Background(), supportedSnapshot("@"), 1)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "page", list.Items[0].Label)
}

func TestAggregatePreservesOrder(t *testing.T) {
	directives := []markup.Candidate{
		{Kind: markup.KindDirective, DisplayText: "using", InsertText: "using"},
		{Kind: markup.KindDirective, DisplayText: "page", InsertText: "page"},
		{Kind: markup.KindDirective, DisplayText: "code", InsertText: "code"},
	}
	semantic := []protocol.CompletionItem{elementItem("Card"), elementItem("Button"), attributeItem("Card", "Title")}
	agg := NewAggregator(&fakeDirectives{candidates: directives}, &fakeSemantic{items: semantic}, zap.NewNop())

	list, err := agg.Aggregate(context.Background(), supportedSnapshot("@"), 1)
	require.NoError(t, err)

	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	assert.Equal(t, []string{"using", "page", "code", "Card", "Button", "Title"}, labels)
	assert.Equal(t, semantic, list.Items[3:])
}

func TestAggregateKeepsDuplicateLabels(t *testing.T) {
	agg := NewAggregator(
		&fakeDirectives{candidates: []markup.Candidate{{Kind: markup.KindDirective, DisplayText: "Button", InsertText: "Button"}}},
		&fakeSemantic{items: []protocol.CompletionItem{elementItem("Button")}},
		zap.NewNop(),
	)

	list, err := agg.Aggregate(context.Background(), supportedSnapshot("@"), 1)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, list.Items[0].Label, list.Items[1].Label)
}

func TestAggregateEmptyProviders(t *testing.T) {
	agg := NewAggregator(&fakeDirectives{}, &fakeSemantic{}, zap.NewNop())

	list, err := agg.Aggregate(context.Background(), supportedSnapshot("text"), 2)
	require.NoError(t, err)
	assert.False(t, list.IsIncomplete)
	assert.Empty(t, list.Items)
}

func TestAggregateEmptyDescriptionHasNoDocumentation(t *testing.T) {
	agg := NewAggregator(&fakeDirectives{candidates: []markup.Candidate{
		{Kind: markup.KindDirective, DisplayText: "rendermode", InsertText: "rendermode"},
	}}, &fakeSemantic{}, zap.NewNop())

	list, err := agg.Aggregate(context.Background(), supportedSnapshot("@"), 1)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Nil(t, list.Items[0].Documentation)
}

func TestAggregateCancelled(t *testing.T) {
	directives := &fakeDirectives{candidates: []markup.Candidate{pageCandidate()}}
	semantic := &fakeSemantic{}
	agg := NewAggregator(directives, semantic, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	list, err := agg.Aggregate(ctx, supportedSnapshot("@"), 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, list)
	assert.Zero(t, directives.calls)
	assert.Zero(t, semantic.calls)
}

func TestCanResolve(t *testing.T) {
	resolver := NewResolver(fakeRenderer{}, protocol.Markdown)

	list, err := NewAggregator(
		&fakeDirectives{candidates: []markup.Candidate{pageCandidate()}},
		&fakeSemantic{},
		zap.NewNop(),
	).Aggregate(context.Background(), supportedSnapshot("@"), 1)
	require.NoError(t, err)
	for _, item := range list.Items {
		assert.False(t, resolver.CanResolve(item), item.Label)
	}

	assert.True(t, resolver.CanResolve(elementItem("Button")))
	assert.True(t, resolver.CanResolve(attributeItem("Foo", "Bar")))
	assert.False(t, resolver.CanResolve(protocol.CompletionItem{Label: "plain"}))
	assert.False(t, resolver.CanResolve(protocol.CompletionItem{Label: "junk", Data: "not json"}))
}

func TestResolveAttribute(t *testing.T) {
	resolver := NewResolver(fakeRenderer{"Foo.Bar": "Bar of Foo"}, protocol.Markdown)
	item := attributeItem("Foo", "Bar")

	resolved := resolver.Resolve(item)

	assert.Equal(t, protocol.MarkupContent{Kind: protocol.Markdown, Value: "Bar of Foo"}, resolved.Documentation)
	resolved.Documentation = nil
	assert.Equal(t, item, resolved)
}

func TestResolveRoundTrippedPayload(t *testing.T) {
	resolver := NewResolver(fakeRenderer{"Foo.Bar": "Bar of Foo"}, protocol.PlainText)
	item := attributeItem("Foo", "Bar")
	item.Data = map[string]any{"kind": "componentAttribute", "component": "Foo", "attribute": "Bar"}

	resolved := resolver.Resolve(item)
	assert.Equal(t, protocol.MarkupContent{Kind: protocol.PlainText, Value: "Bar of Foo"}, resolved.Documentation)
}

func TestResolveIdempotent(t *testing.T) {
	resolver := NewResolver(fakeRenderer{"Button": "**Ui.Button**"}, protocol.Markdown)

	once := resolver.Resolve(elementItem("Button"))
	twice := resolver.Resolve(once)
	assert.Equal(t, once, twice)
}

func TestResolveWithoutDocumentation(t *testing.T) {
	resolver := NewResolver(fakeRenderer{}, protocol.Markdown)

	item := elementItem("Card")
	assert.Equal(t, item, resolver.Resolve(item))

	directive := protocol.CompletionItem{
		Label:         "page",
		Documentation: "Page directive",
		Data:          markup.Encode(markup.DirectiveDescription{Directive: "page"}),
	}
	assert.Equal(t, directive, resolver.Resolve(directive))
}

func TestCapabilities(t *testing.T) {
	caps := NewCapabilities(DocumentFilter{Language: "markup", Pattern: "**/*.mkup"})

	server := caps.ServerCapability()
	assert.Equal(t, []string{"@", "<"}, server.TriggerCharacters)
	assert.True(t, server.ResolveProvider)

	reg := caps.Registration()
	assert.Equal(t, MethodCompletion, reg.Method)
	assert.NotEmpty(t, reg.ID)

	opts, ok := reg.RegisterOptions.(RegistrationOptions)
	require.True(t, ok)
	assert.Equal(t, []DocumentFilter{{Language: "markup", Pattern: "**/*.mkup"}}, opts.DocumentSelector)
	assert.ElementsMatch(t, []string{"@", "<"}, opts.TriggerCharacters)
	assert.True(t, opts.ResolveProvider)

	opts.TriggerCharacters[0] = "#"
	assert.Equal(t, []string{"@", "<"}, caps.Options().TriggerCharacters)
}

func TestDocumentFilterMatches(t *testing.T) {
	tests := []struct {
		name     string
		filter   DocumentFilter
		language string
		file     string
		want     bool
	}{
		{"language and pattern", DocumentFilter{Language: "markup", Pattern: "**/*.mkup"}, "markup", "/work/a.mkup", true},
		{"wrong language", DocumentFilter{Language: "markup", Pattern: "**/*.mkup"}, "html", "/work/a.mkup", false},
		{"wrong extension", DocumentFilter{Language: "markup", Pattern: "**/*.mkup"}, "markup", "/work/a.txt", false},
		{"pattern only", DocumentFilter{Pattern: "*.mkup"}, "anything", "/a/b/c.mkup", true},
		{"language only", DocumentFilter{Language: "markup"}, "markup", "untitled:Untitled-1", true},
		{"empty filter", DocumentFilter{}, "", "/x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.language, tt.file))
		})
	}
}

func newService(snapshots SnapshotSource, directives DirectiveProvider, semantic SemanticProvider, opts ...ServiceOption) *Service {
	return NewService(
		snapshots,
		NewAggregator(directives, semantic, zap.NewNop()),
		NewResolver(fakeRenderer{"Foo.Bar": "Bar of Foo"}, protocol.Markdown),
		opts...,
	)
}

func TestServiceNotFound(t *testing.T) {
	svc := newService(fakeSnapshots{}, &fakeDirectives{candidates: []markup.Candidate{pageCandidate()}}, &fakeSemantic{})

	list, err := svc.Complete(context.Background(), "file:///work/Unopened.mkup", markup.Position{})
	require.NoError(t, err)
	assert.False(t, list.IsIncomplete)
	assert.Empty(t, list.Items)
}

func TestServiceLookupFailure(t *testing.T) {
	svc := newService(fakeSnapshots{err: project.ErrOwnerStopped}, &fakeDirectives{}, &fakeSemantic{})

	list, err := svc.Complete(context.Background(), testURI, markup.Position{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestServiceLookupCancelled(t *testing.T) {
	svc := newService(fakeSnapshots{err: context.Canceled}, &fakeDirectives{}, &fakeSemantic{})

	list, err := svc.Complete(context.Background(), testURI, markup.Position{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, list)
}

func TestServiceSelector(t *testing.T) {
	directives := &fakeDirectives{candidates: []markup.Candidate{pageCandidate()}}
	snap := document.NewSnapshot("file:///work/notes.txt", "plaintext", 1, "@", nil)
	svc := newService(fakeSnapshots{snap: snap}, directives, &fakeSemantic{},
		WithCapabilities(NewCapabilities(DocumentFilter{Language: "markup", Pattern: "**/*.mkup"})))

	list, err := svc.Complete(context.Background(), snap.URI(), markup.Position{Character: 1})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.Zero(t, directives.calls)
}

type offsetRecorder struct {
	offset int
}

func (r *offsetRecorder) Complete(_ *syntax.Tree, offset int) []markup.Candidate {
	r.offset = offset
	return nil
}

func TestServiceMapsPosition(t *testing.T) {
	rec := &offsetRecorder{offset: -1}
	snap := supportedSnapshot("é\n  @pa")
	svc := newService(fakeSnapshots{snap: snap}, rec, &fakeSemantic{})

	_, err := svc.Complete(context.Background(), testURI, markup.Position{Line: 1, Character: 3})
	require.NoError(t, err)
	// "é\n" is three bytes.
	assert.Equal(t, 6, rec.offset)
}

func TestServiceResolve(t *testing.T) {
	svc := newService(fakeSnapshots{}, &fakeDirectives{}, &fakeSemantic{})

	item, err := svc.Resolve(context.Background(), attributeItem("Foo", "Bar"))
	require.NoError(t, err)
	assert.Equal(t, protocol.MarkupContent{Kind: protocol.Markdown, Value: "Bar of Foo"}, item.Documentation)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Resolve(ctx, attributeItem("Foo", "Bar"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceOverOwner(t *testing.T) {
	owner := project.NewOwner(8, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go owner.Run(ctx)

	proj := project.New(owner, nil, zap.NewNop())
	require.NoError(t, proj.Open(ctx, testURI, "markup", 1, "@"))

	svc := newService(proj, &fakeDirectives{candidates: []markup.Candidate{pageCandidate()}}, &fakeSemantic{})

	list, err := svc.Complete(ctx, testURI, markup.Position{Line: 0, Character: 1})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "page", list.Items[0].Label)

	list, err = svc.Complete(ctx, "file:///work/Other.mkup", markup.Position{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestConcurrentResolveDoesNotNeedOwner(t *testing.T) {
	// The owner is never started; any owner hop would block until the
	// deadline.
	owner := project.NewOwner(1, zap.NewNop())
	proj := project.New(owner, nil, zap.NewNop())
	svc := newService(proj, &fakeDirectives{}, &fakeSemantic{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 32
	var wg sync.WaitGroup
	results := make([]protocol.CompletionItem, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Resolve(ctx, attributeItem("Foo", "Bar"))
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, protocol.MarkupContent{Kind: protocol.Markdown, Value: "Bar of Foo"}, results[i].Documentation)
	}
	assert.NoError(t, ctx.Err())
}
