package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// ClassName is the Weaviate class holding every knowledge chunk. Content
// families are told apart by the namespace property.
const ClassName = "KnowledgeChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
	DeleteClass(ctx context.Context, className string) error
}

// Properties of the KnowledgeChunk class. Filterable identifiers use field
// tokenization so equality matches the whole value.
func Properties() []*models.Property {
	exact := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text"}, Tokenization: "field"}
	}
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		exact("source"),
		exact("type"),
		exact("namespace"),
		exact("category"),
		{Name: "chunkIndex", DataType: []string{"int"}},
		{Name: "title", DataType: []string{"text"}},
		// Full metadata as JSON, returned verbatim on search.
		{Name: "metadata", DataType: []string{"text"}, IndexFilterable: boolPtr(false), IndexSearchable: boolPtr(false)},
	}
}

func boolPtr(b bool) *bool { return &b }

// EnsureSchema creates the class if missing, or adds any missing properties.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := Properties()
	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "A chunk of DexKit documentation, tutorial or platform content",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}

// ResetSchema drops the class with all its objects and recreates it empty.
func ResetSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}
	if exists {
		if err := client.DeleteClass(ctx, ClassName); err != nil {
			return err
		}
	}
	return EnsureSchema(ctx, client)
}
