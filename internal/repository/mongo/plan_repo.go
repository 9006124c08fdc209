package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	catalogPlanCollectionName = "plans"
	trainerPlanCollectionName = "trainer_plans"
)

// mongoPlanRepository implements repository.PlanRepository for one plan kind.
type mongoPlanRepository struct {
	collection *mongo.Collection
	kind       domain.PlanKind
}

// NewMongoPlanRepository creates a plan repository. Catalog and trainer plans
// live in separate collections.
func NewMongoPlanRepository(db *mongo.Database, kind domain.PlanKind) repository.PlanRepository {
	name := catalogPlanCollectionName
	if kind == domain.PlanKindTrainer {
		name = trainerPlanCollectionName
	}
	return &mongoPlanRepository{collection: db.Collection(name), kind: kind}
}

// Create inserts a new plan.
func (r *mongoPlanRepository) Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error) {
	if plan.Title == "" || !plan.Duration.Valid() {
		return primitive.NilObjectID, errors.New("plan requires a title and a valid duration")
	}
	if r.kind == domain.PlanKindTrainer && plan.TrainerID == nil {
		return primitive.NilObjectID, errors.New("trainer plan requires trainerId")
	}
	plan.ID = primitive.NewObjectID()
	plan.Kind = r.kind
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, plan); err != nil {
		return primitive.NilObjectID, err
	}
	return plan.ID, nil
}

// GetByID retrieves a single plan by its ID.
func (r *mongoPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func planFilter(f repository.PlanFilter) bson.M {
	filter := bson.M{}
	if f.TrainerID != nil {
		filter["trainerId"] = *f.TrainerID
	}
	if f.StudentID != nil {
		// Matches when the array contains the id
		filter["students"] = *f.StudentID
	}
	return filter
}

// List returns plans matching the filter, newest first.
func (r *mongoPlanRepository) List(ctx context.Context, f repository.PlanFilter) ([]domain.Plan, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, planFilter(f), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	plans := []domain.Plan{}
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *mongoPlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	if plan.ID == primitive.NilObjectID {
		return errors.New("plan ID is required for update")
	}
	filter := bson.M{"_id": plan.ID}
	if plan.TrainerID != nil {
		filter["trainerId"] = *plan.TrainerID
	}
	// Kind, TrainerID and CreatedAt are never changed by an update.
	updateDoc := bson.M{
		"$set": bson.M{
			"title":       plan.Title,
			"subtitle":    plan.Subtitle,
			"description": plan.Description,
			"isPro":       plan.IsPro,
			"duration":    plan.Duration,
			"weeks":       plan.Weeks,
			"students":    plan.Students,
			"updatedAt":   time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoPlanRepository) Delete(ctx context.Context, planID, trainerID primitive.ObjectID) error {
	if planID == primitive.NilObjectID || trainerID == primitive.NilObjectID {
		return errors.New("plan ID and trainer ID are required for deletion")
	}

	// Filter ensures that the plan exists AND belongs to the specified trainer.
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": planID, "trainerId": trainerID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoPlanRepository) SetCoverKey(ctx context.Context, id primitive.ObjectID, key string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"coverKey": key, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "students", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
