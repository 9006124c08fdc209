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
	bookingCollectionName = "bookings"
	// One guard document per (owner, date). Bumping it inside a transaction
	// makes concurrent bookings for the same day write-conflict.
	bookingLockCollectionName = "booking_locks"
)

type mongoBookingRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	locks      *mongo.Collection
}

func NewMongoBookingRepository(db *mongo.Database) repository.BookingRepository {
	return &mongoBookingRepository{
		client:     db.Client(),
		collection: db.Collection(bookingCollectionName),
		locks:      db.Collection(bookingLockCollectionName),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, b *domain.Booking) (primitive.ObjectID, error) {
	b.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = domain.BookingPending
	}
	if _, err := r.collection.InsertOne(ctx, b); err != nil {
		return primitive.NilObjectID, err
	}
	return b.ID, nil
}

func (r *mongoBookingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Booking, error) {
	var b domain.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func bookingFilter(f repository.BookingFilter) bson.M {
	filter := bson.M{}
	if f.TrainerID != nil {
		filter["ptId"] = *f.TrainerID
	}
	if f.StudentID != nil {
		filter["studentId"] = *f.StudentID
	}
	if f.From != nil || f.To != nil {
		date := bson.M{}
		if f.From != nil {
			date["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			date["$lte"] = f.To.UTC()
		}
		filter["date"] = date
	}
	if f.ExcludeID != nil {
		filter["_id"] = bson.M{"$ne": *f.ExcludeID}
	}
	return filter
}

// List returns bookings ordered by date then start time.
func (r *mongoBookingRepository) List(ctx context.Context, f repository.BookingFilter) ([]domain.Booking, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "startTime", Value: 1}})
	cursor, err := r.collection.Find(ctx, bookingFilter(f), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	bookings := []domain.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	update := bson.M{"$set": bson.M{
		"studentId": b.StudentID,
		"date":      b.Date.UTC(),
		"startTime": b.StartTime,
		"endTime":   b.EndTime,
		"status":    b.Status,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": b.ID, "ptId": b.TrainerID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.BookingStatus) error {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrDeleteFailed
	}
	return nil
}

func lockKey(owner string, id primitive.ObjectID, date time.Time) string {
	return owner + ":" + id.Hex() + ":" + date.UTC().Format("2006-01-02")
}

// WithScheduleLock runs fn inside a transaction that first bumps the guard
// documents of the trainer's day and the student's day. Two transactions
// touching the same guard conflict and the driver retries the loser, so the
// overlap check inside fn always sees committed bookings.
func (r *mongoBookingRepository) WithScheduleLock(ctx context.Context, trainerID, studentID primitive.ObjectID, date time.Time, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	keys := []string{lockKey("pt", trainerID, date), lockKey("student", studentID, date)}
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, k := range keys {
			_, err := r.locks.UpdateOne(sc,
				bson.M{"_id": k},
				bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"touchedAt": time.Now().UTC()}},
				options.Update().SetUpsert(true))
			if err != nil {
				return nil, err
			}
		}
		return nil, fn(sc)
	})
	return err
}

func EnsureBookingIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ptId", Value: 1}, {Key: "date", Value: 1}, {Key: "startTime", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "date", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
