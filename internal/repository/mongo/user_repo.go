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

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return user.ID, nil
}

// GetByEmail retrieves a user by their email address.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *mongoUserRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"role": role}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []domain.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *mongoUserRepository) SetRole(ctx context.Context, id primitive.ObjectID, role domain.Role) error {
	update := bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()}}
	if role != domain.RolePremium {
		update["$unset"] = bson.M{"premiumExpireDate": ""}
	}
	return r.updateOne(ctx, bson.M{"_id": id}, update)
}

// SetPremium applies the free -> premium transition.
func (r *mongoUserRepository) SetPremium(ctx context.Context, id primitive.ObjectID, expireAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"role":              domain.RolePremium,
		"premiumExpireDate": expireAt.UTC(),
		"updatedAt":         time.Now().UTC(),
	}}
	return r.updateOne(ctx, bson.M{"_id": id}, update)
}

// expiredPremiumFilter matches premium users whose expiry is missing or past.
// A null comparison in Mongo also matches a missing field.
func expiredPremiumFilter(now time.Time) bson.M {
	return bson.M{
		"role": domain.RolePremium,
		"$or": bson.A{
			bson.M{"premiumExpireDate": nil},
			bson.M{"premiumExpireDate": bson.M{"$lt": now.UTC()}},
		},
	}
}

func downgradeUpdate(now time.Time) bson.M {
	return bson.M{
		"$set":   bson.M{"role": domain.RoleFree, "updatedAt": now.UTC()},
		"$unset": bson.M{"premiumExpireDate": ""},
	}
}

func (r *mongoUserRepository) DowngradeExpired(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	filter := expiredPremiumFilter(now)
	filter["_id"] = id
	result, err := r.collection.UpdateOne(ctx, filter, downgradeUpdate(now))
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoUserRepository) DowngradeAllExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.UpdateMany(ctx, expiredPremiumFilter(now), downgradeUpdate(now))
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// SetTrainer sets the assigned trainer of a user.
func (r *mongoUserRepository) SetTrainer(ctx context.Context, userID, trainerID primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"trainerId": trainerID, "updatedAt": time.Now().UTC()}}
	return r.updateOne(ctx, bson.M{"_id": userID}, update)
}

func (r *mongoUserRepository) SetUnreadNotification(ctx context.Context, id primitive.ObjectID, unread bool) error {
	update := bson.M{"$set": bson.M{"hasUnreadNotification": unread}}
	return r.updateOne(ctx, bson.M{"_id": id}, update)
}

func (r *mongoUserRepository) SetAvatarKey(ctx context.Context, id primitive.ObjectID, key string) error {
	update := bson.M{"$set": bson.M{"avatarKey": key, "updatedAt": time.Now().UTC()}}
	return r.updateOne(ctx, bson.M{"_id": id}, update)
}

func (r *mongoUserRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	// ModifiedCount might be 0 if the values were already set, which is okay.
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureUserIndexes creates necessary indexes for the users collection.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Sweep and trainer lookup both filter on role first
			Keys: bson.D{{Key: "role", Value: 1}, {Key: "premiumExpireDate", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
