// Package weaviate implements index.Backend on a Weaviate class. Vectors
// are supplied by the caller; the class has no vectorizer.
package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"dexfren/backend/internal/document"
	"dexfren/backend/internal/index"
	"dexfren/backend/internal/vector"
)

// filterPaths maps metadata keys onto filterable class properties.
var filterPaths = map[string]string{
	document.KeySource:    "source",
	document.KeyType:      "type",
	document.KeyNamespace: "namespace",
	document.KeyCategory:  "category",
}

type Store struct {
	client *weaviate.Client
	ready  atomic.Bool
	// fresh is set when EnsureSchema had to create the class. An empty class
	// created at startup is not a built index.
	fresh atomic.Bool
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// Schema operations, so the store itself satisfies vector.SchemaClient.

func (s *Store) ClassExists(ctx context.Context, className string) (bool, error) {
	return s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (s *Store) CreateClass(ctx context.Context, class *models.Class) error {
	return s.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (s *Store) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return s.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (s *Store) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return s.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

func (s *Store) DeleteClass(ctx context.Context, className string) error {
	return s.client.Schema().ClassDeleter().WithClassName(className).Do(ctx)
}

// EnsureSchema migrates an existing class forward without dropping data.
// A class it has to create stays uninitialized until Reset.
func (s *Store) EnsureSchema(ctx context.Context) error {
	existed, err := s.ClassExists(ctx, vector.ClassName)
	if err != nil {
		return err
	}
	if err := vector.EnsureSchema(ctx, s); err != nil {
		return err
	}
	s.fresh.Store(!existed)
	s.ready.Store(existed)
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	if err := vector.ResetSchema(ctx, s); err != nil {
		return fmt.Errorf("reset %s: %w", vector.ClassName, err)
	}
	s.fresh.Store(false)
	s.ready.Store(true)
	return nil
}

func (s *Store) checkReady(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	if s.fresh.Load() {
		return index.ErrNotInitialized
	}
	exists, err := s.ClassExists(ctx, vector.ClassName)
	if err != nil {
		return err
	}
	if !exists {
		return index.ErrNotInitialized
	}
	s.ready.Store(true)
	return nil
}

func (s *Store) Insert(ctx context.Context, records []index.Record) error {
	if err := s.checkReady(ctx); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		props, err := properties(r.Document)
		if err != nil {
			return err
		}
		objects = append(objects, &models.Object{
			Class:      vector.ClassName,
			Properties: props,
			Vector:     r.Vector,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, obj := range resp {
		if obj.Result == nil || obj.Result.Errors == nil {
			continue
		}
		for _, item := range obj.Result.Errors.Error {
			errs = append(errs, errors.New(item.Message))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("batch insert: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	if err := s.checkReady(ctx); err != nil {
		return err
	}
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"source"}).
			WithOperator(filters.Equal).
			WithValueText(source)).
		Do(ctx)
	return err
}

func (s *Store) Search(ctx context.Context, vec []float32, k int, filter index.Filter) ([]index.Hit, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}

	get := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)).
		WithLimit(k).
		WithFields(
			graphql.Field{Name: "content"},
			graphql.Field{Name: "metadata"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		)

	if !filter.IsZero() {
		path, ok := filterPaths[filter.Field]
		if !ok {
			return nil, fmt.Errorf("unsupported filter field %q", filter.Field)
		}
		get = get.WithWhere(filters.Where().
			WithPath([]string{path}).
			WithOperator(filters.Equal).
			WithValueText(filter.Value))
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, graphqlError(res.Errors)
	}

	var hits []index.Hit
	data, _ := res.Data["Get"].(map[string]interface{})
	objects, _ := data[vector.ClassName].([]interface{})
	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		hit, err := decodeHit(props)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkReady(ctx); err != nil {
		return 0, err
	}
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, graphqlError(res.Errors)
	}

	agg, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := agg[vector.ClassName].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func properties(d document.Document) (map[string]interface{}, error) {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata of %s: %w", d.Source(), err)
	}
	props := map[string]interface{}{
		"content":   d.Content,
		"source":    d.Source(),
		"type":      d.Type(),
		"namespace": d.Namespace(),
		"title":     d.Title(),
		"metadata":  string(meta),
	}
	if c, ok := d.Metadata[document.KeyCategory].(string); ok {
		props["category"] = c
	}
	if idx := d.ChunkIndex(); idx >= 0 {
		props["chunkIndex"] = idx
	}
	return props, nil
}

func decodeHit(props map[string]interface{}) (index.Hit, error) {
	var hit index.Hit
	hit.Document.Content, _ = props["content"].(string)
	if raw, ok := props["metadata"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &hit.Document.Metadata); err != nil {
			return hit, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if hit.Document.Metadata == nil {
		hit.Document.Metadata = map[string]any{}
	}
	if additional, ok := props["_additional"].(map[string]interface{}); ok {
		if d, ok := additional["distance"].(float64); ok {
			hit.Distance = float32(d)
		}
	}
	return hit, nil
}

func graphqlError(errs []*models.GraphQLError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("graphql error: %s", strings.Join(msgs, "; "))
}
