package mongodb

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/metrics"
)

type MongoBuildRepo struct {
	buildsCol *mongo.Collection
}

func NewMongoBuildRepo(db *mongo.Database) repository.BuildRepository {
	col := db.Collection("builds")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "status", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
	})

	return &MongoBuildRepo{
		buildsCol: col,
	}
}

// buildDoc wraps the entity with the dedupe key so duplicates can be found
// with a single indexed lookup.
type buildDoc struct {
	Key   string        `bson:"key"`
	Build *entity.Build `bson:"build"`
}

func (r *MongoBuildRepo) Create(ctx context.Context, build *entity.Build) error {
	metrics.IncBuildsAccepted()

	build.CreatedAt = time.Now()
	build.UpdatedAt = time.Now()
	_, err := r.buildsCol.InsertOne(ctx, buildDoc{Key: build.Key(), Build: build})
	if err != nil {
		metrics.IncError("mongo_build_repo", "create_error")
		return err
	}
	return nil
}

func (r *MongoBuildRepo) GetByID(ctx context.Context, id string) (*entity.Build, error) {
	metrics.IncDBFileOp("get")

	var doc buildDoc
	err := r.buildsCol.FindOne(ctx, bson.M{"build.id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		metrics.IncError("mongo_build_repo", "get_error")
		return nil, err
	}
	return doc.Build, nil
}

func (r *MongoBuildRepo) GetByKey(ctx context.Context, key string) (*entity.Build, error) {
	metrics.IncDBFileOp("get")

	var doc buildDoc
	err := r.buildsCol.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		metrics.IncError("mongo_build_repo", "get_by_key_error")
		return nil, err
	}
	return doc.Build, nil
}

func (r *MongoBuildRepo) List(ctx context.Context) ([]*entity.Build, error) {
	metrics.IncDBFileOp("list")
	return r.findBuilds(ctx, bson.D{})
}

func (r *MongoBuildRepo) ListByStatus(ctx context.Context, status entity.BuildStatus) ([]*entity.Build, error) {
	metrics.IncDBFileOp("list")
	return r.findBuilds(ctx, bson.M{"build.status": status})
}

func (r *MongoBuildRepo) Update(ctx context.Context, build *entity.Build) error {
	metrics.IncDBFileOp("put")

	build.UpdatedAt = time.Now()
	res, err := r.buildsCol.ReplaceOne(ctx, bson.M{"build.id": build.ID}, buildDoc{Key: build.Key(), Build: build})
	if err != nil {
		metrics.IncError("mongo_build_repo", "update_error")
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoBuildRepo) UpdateStatus(ctx context.Context, id string, status entity.BuildStatus) error {
	metrics.IncDBFileOp("put")

	filter := bson.M{"build.id": id}
	update := bson.M{
		"$set": bson.M{
			"build.status":     status,
			"build.updated_at": time.Now(),
		},
	}
	res, err := r.buildsCol.UpdateOne(ctx, filter, update)
	if err != nil {
		metrics.IncError("mongo_build_repo", "update_status_error")
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoBuildRepo) Delete(ctx context.Context, id string) error {
	metrics.IncDBFileOp("delete")

	res, err := r.buildsCol.DeleteOne(ctx, bson.M{"build.id": id})
	if err != nil {
		metrics.IncError("mongo_build_repo", "delete_error")
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoBuildRepo) CountByStatus(ctx context.Context, status entity.BuildStatus) (int, error) {
	metrics.IncDBFileOp("count")

	count, err := r.buildsCol.CountDocuments(ctx, bson.M{"build.status": status})
	if err != nil {
		metrics.IncError("mongo_build_repo", "count_by_status_error")
		return 0, err
	}
	return int(count), nil
}

func (r *MongoBuildRepo) findBuilds(ctx context.Context, filter interface{}) ([]*entity.Build, error) {
	cur, err := r.buildsCol.Find(ctx, filter)
	if err != nil {
		metrics.IncError("mongo_build_repo", "find_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var builds []*entity.Build
	for cur.Next(ctx) {
		var doc buildDoc
		if err := cur.Decode(&doc); err != nil {
			metrics.IncError("mongo_build_repo", "decode_error")
			return nil, err
		}
		builds = append(builds, doc.Build)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_build_repo", "cursor_error")
	}
	return builds, cur.Err()
}
