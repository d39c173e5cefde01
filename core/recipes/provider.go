package recipes

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/plan"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/store"
)

// RecipesFilename is the file consulted in a key's parent directory for
// recipe definitions: a YAML mapping of filename to Recipe.
const RecipesFilename = "recipes.yaml"

// Provider produces a plan that materializes a key, or fails KeyNotFound
// when no recipe covers it.
type Provider interface {
	RecipePlan(ctx context.Context, key query.Key) (plan.Sequence, error)
}

// TrivialProvider knows no recipes; every RecipePlan fails KeyNotFound.
// Use it for stores without recipe materialization.
type TrivialProvider struct{}

var _ Provider = TrivialProvider{}

func (TrivialProvider) RecipePlan(_ context.Context, key query.Key) (plan.Sequence, error) {
	return nil, lqerror.Errorf(lqerror.KindKeyNotFound, "no recipe for key %q", key.String())
}

// FileProvider reads recipe definitions from YAML files on disk: the
// recipes for a key live in "<root>/<parent-of-key>/recipes.yaml", keyed by
// the key's filename.
type FileProvider struct {
	root     string
	registry *command.Registry
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider returns a FileProvider rooted at dir, building plans
// against registry.
func NewFileProvider(dir string, registry *command.Registry) *FileProvider {
	return &FileProvider{root: dir, registry: registry}
}

func (p *FileProvider) RecipePlan(_ context.Context, key query.Key) (plan.Sequence, error) {
	if key.IsEmpty() {
		return nil, lqerror.New(lqerror.KindKeyNotFound, "no recipe for the empty key")
	}
	path := filepath.Join(append([]string{p.root}, keyNames(key.Parent())...)...)
	path = filepath.Join(path, RecipesFilename)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, lqerror.Errorf(lqerror.KindKeyNotFound, "no recipe file for key %q", key.String())
	}
	if err != nil {
		return nil, lqerror.NewWithCause(lqerror.KindKeyReadError, "read recipe file "+path, err)
	}
	return planFromRecipesDocument(raw, key, p.registry)
}

// StoreProvider reads recipe definitions from a store entry: the recipes
// for a key live at "<parent-of-key>/recipes.yaml" in the backing store.
type StoreProvider struct {
	store    store.Store
	registry *command.Registry
}

var _ Provider = (*StoreProvider)(nil)

// NewStoreProvider returns a StoreProvider reading recipe files through s,
// building plans against registry.
func NewStoreProvider(s store.Store, registry *command.Registry) *StoreProvider {
	return &StoreProvider{store: s, registry: registry}
}

func (p *StoreProvider) RecipePlan(ctx context.Context, key query.Key) (plan.Sequence, error) {
	if key.IsEmpty() {
		return nil, lqerror.New(lqerror.KindKeyNotFound, "no recipe for the empty key")
	}
	recipesKey := key.Parent().Join(query.NewKey(RecipesFilename))
	raw, err := p.store.GetBytes(ctx, recipesKey)
	if err != nil {
		if lqerror.Of(err, lqerror.KindKeyNotFound) || lqerror.Of(err, lqerror.KindKeyNotSupported) {
			return nil, lqerror.Errorf(lqerror.KindKeyNotFound, "no recipe entry for key %q", key.String())
		}
		return nil, err
	}
	return planFromRecipesDocument(raw, key, p.registry)
}

// planFromRecipesDocument decodes a recipes.yaml document and converts the
// recipe matching key's filename to a plan.
func planFromRecipesDocument(raw []byte, key query.Key, registry *command.Registry) (plan.Sequence, error) {
	var doc map[string]*Recipe
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, lqerror.NewWithCause(lqerror.KindSerializationError, "decode recipes document", err)
	}
	recipe, ok := doc[key.Filename()]
	if !ok || recipe == nil {
		return nil, lqerror.Errorf(lqerror.KindKeyNotFound, "no recipe for key %q", key.String())
	}
	return recipe.ToPlan(registry)
}

func keyNames(k query.Key) []string {
	names := make([]string, len(k))
	for i, n := range k {
		names[i] = n.Name
	}
	return names
}
