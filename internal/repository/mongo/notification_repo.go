package mongo

import (
	"context"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const notificationCollectionName = "notifications"

type mongoNotificationRepository struct {
	collection *mongo.Collection
}

func NewMongoNotificationRepository(db *mongo.Database) repository.NotificationRepository {
	return &mongoNotificationRepository{collection: db.Collection(notificationCollectionName)}
}

func (r *mongoNotificationRepository) Create(ctx context.Context, n *domain.Notification) (primitive.ObjectID, error) {
	n.ID = primitive.NewObjectID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		return primitive.NilObjectID, err
	}
	return n.ID, nil
}

// ListUnread returns the recipient's unread notifications, newest first.
func (r *mongoNotificationRepository) ListUnread(ctx context.Context, recipient primitive.ObjectID) ([]domain.Notification, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"recipient": recipient, "read": false}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	list := []domain.Notification{}
	if err = cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *mongoNotificationRepository) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"recipient": recipient, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func EnsureNotificationIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "read", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}
