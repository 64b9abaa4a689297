package mongodb

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/metrics"
)

type MongoSiteFileRepo struct {
	col *mongo.Collection
}

func NewMongoSiteFileRepo(db *mongo.Database) repository.SiteFileRepository {
	col := db.Collection("site_files")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "buildid", Value: 1}}},
	})

	return &MongoSiteFileRepo{
		col: col,
	}
}

func (r *MongoSiteFileRepo) SaveFiles(ctx context.Context, files []*entity.SiteFile) error {
	if len(files) == 0 {
		return nil
	}

	metrics.IncDBFileOp("put")

	docs := make([]interface{}, len(files))
	for i, f := range files {
		docs[i] = f
	}

	_, err := r.col.InsertMany(ctx, docs)
	if err != nil {
		metrics.IncError("mongo_site_file_repo", "save_error")
		return err
	}
	return nil
}

func (r *MongoSiteFileRepo) GetFilesByBuildID(ctx context.Context, buildID string) ([]*entity.SiteFile, error) {
	metrics.IncDBFileOp("get")

	files, err := r.findFiles(ctx, bson.M{"buildid": buildID})
	if err != nil {
		metrics.IncError("mongo_site_file_repo", "get_by_buildid_error")
		return nil, err
	}
	return files, nil
}

func (r *MongoSiteFileRepo) ListBuilds(ctx context.Context) ([]string, error) {
	metrics.IncDBFileOp("list")

	values, err := r.col.Distinct(ctx, "buildid", bson.D{})
	if err != nil {
		metrics.IncError("mongo_site_file_repo", "list_error")
		return nil, err
	}

	builds := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			builds = append(builds, s)
		}
	}
	return builds, nil
}

func (r *MongoSiteFileRepo) DeleteBuild(ctx context.Context, buildID string) error {
	metrics.IncDBFileOp("delete")

	_, err := r.col.DeleteMany(ctx, bson.M{"buildid": buildID})
	if err != nil {
		metrics.IncError("mongo_site_file_repo", "delete_error")
		return err
	}
	return nil
}

func (r *MongoSiteFileRepo) findFiles(ctx context.Context, filter bson.M) ([]*entity.SiteFile, error) {
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var result []*entity.SiteFile
	for cur.Next(ctx) {
		var doc entity.SiteFile
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, &doc)
	}
	return result, cur.Err()
}
