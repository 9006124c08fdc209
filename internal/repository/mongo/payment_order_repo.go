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

const paymentOrderCollectionName = "payment_orders"

type mongoPaymentOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoPaymentOrderRepository(db *mongo.Database) repository.PaymentOrderRepository {
	return &mongoPaymentOrderRepository{collection: db.Collection(paymentOrderCollectionName)}
}

func (r *mongoPaymentOrderRepository) Create(ctx context.Context, o *domain.PaymentOrder) (primitive.ObjectID, error) {
	if o.TxnRef == "" {
		return primitive.NilObjectID, errors.New("payment order requires txnRef")
	}
	o.ID = primitive.NewObjectID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return o.ID, nil
}

func (r *mongoPaymentOrderRepository) GetByTxnRef(ctx context.Context, txnRef string) (*domain.PaymentOrder, error) {
	var o domain.PaymentOrder
	err := r.collection.FindOne(ctx, bson.M{"txnRef": txnRef}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *mongoPaymentOrderRepository) Transition(ctx context.Context, txnRef string, from, to domain.PaymentOrderStatus, responseCode string, at time.Time) error {
	set := bson.M{"status": to, "responseCode": responseCode, "processedAt": at.UTC()}
	update := bson.M{"$set": set}
	if to == domain.OrderPending {
		delete(set, "processedAt")
		update["$unset"] = bson.M{"processedAt": ""}
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"txnRef": txnRef, "status": from}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

func EnsurePaymentOrderIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "txnRef", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
