package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"pagesmith/internal/domain/entity"
)

// UpdateStatus targets "build.status" and "build.updated_at" with $set;
// the stored document must use exactly those field names.
func TestBuildDocFieldNames(t *testing.T) {
	build := entity.NewBuild("user@example.com", "task-1", 1, "n-1", "brief", "url")
	build.UpdatedAt = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	data, err := bson.Marshal(buildDoc{Key: build.Key(), Build: build})
	require.NoError(t, err)

	var raw bson.Raw = data
	assert.Equal(t, build.Key(), raw.Lookup("key").StringValue())

	inner := raw.Lookup("build")
	require.Equal(t, bson.TypeEmbeddedDocument, inner.Type)
	doc := inner.Document()

	assert.Equal(t, build.ID, doc.Lookup("id").StringValue())
	assert.Equal(t, string(entity.BuildStatusPending), doc.Lookup("status").StringValue())

	updated := doc.Lookup("updated_at")
	require.Equal(t, bson.TypeDateTime, updated.Type)
	assert.Equal(t, build.UpdatedAt, updated.Time().UTC())

	created := doc.Lookup("created_at")
	require.Equal(t, bson.TypeDateTime, created.Type)
}
