package mongo

import (
	"context"
	"errors"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const progressCollectionName = "progress"

type mongoProgressRepository struct {
	collection *mongo.Collection
}

func NewMongoProgressRepository(db *mongo.Database) repository.ProgressRepository {
	return &mongoProgressRepository{collection: db.Collection(progressCollectionName)}
}

func (r *mongoProgressRepository) GetBySubjectAndPlan(ctx context.Context, subjectID, planID primitive.ObjectID) (*domain.Progress, error) {
	var p domain.Progress
	err := r.collection.FindOne(ctx, bson.M{"subjectId": subjectID, "planId": planID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create relies on the unique (subjectId, planId) index so that two
// concurrent starts produce exactly one document.
func (r *mongoProgressRepository) Create(ctx context.Context, p *domain.Progress) error {
	if p.ID == primitive.NilObjectID {
		p.ID = primitive.NewObjectID()
	}
	if p.CompletedWorkouts == nil {
		p.CompletedWorkouts = []domain.CompletedWorkout{}
	}
	if _, err := r.collection.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// appendFilter matches the record only at the expected version and only
// when the day is not yet in the log.
func appendFilter(id primitive.ObjectID, version int64, day int) bson.M {
	return bson.M{
		"_id":                         id,
		"version":                     version,
		"completedWorkouts.dayNumber": bson.M{"$ne": day},
	}
}

func (r *mongoProgressRepository) AppendCompletion(ctx context.Context, id primitive.ObjectID, version int64, entry domain.CompletedWorkout, currentDay int) error {
	update := bson.M{
		"$push": bson.M{"completedWorkouts": entry},
		"$set": bson.M{
			"currentDay":     currentDay,
			"lastUnlockTime": entry.CompletedDate,
		},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, appendFilter(id, version, entry.DayNumber), update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *mongoProgressRepository) ResetTimer(ctx context.Context, subjectID, planID primitive.ObjectID) error {
	update := bson.M{
		"$set": bson.M{"lastUnlockTime": nil},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"subjectId": subjectID, "planId": planID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoProgressRepository) ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Progress, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []domain.Progress{}
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func EnsureProgressIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subjectId", Value: 1}, {Key: "planId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "planId", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
