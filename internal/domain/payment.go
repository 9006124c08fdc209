package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentOrderStatus string

const (
	OrderPending PaymentOrderStatus = "pending"
	OrderPaid    PaymentOrderStatus = "paid"
	OrderFailed  PaymentOrderStatus = "failed"
)

// PaymentOrder correlates a gateway transaction reference with the user and
// the premium duration it pays for. Created when the payment URL is issued.
type PaymentOrder struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TxnRef         string             `bson:"txnRef" json:"txnRef"` // Unique
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	DurationMonths int                `bson:"durationMonths" json:"durationMonths"`
	Amount         int64              `bson:"amount" json:"amount"` // VND
	Status         PaymentOrderStatus `bson:"status" json:"status"`
	ResponseCode   string             `bson:"responseCode,omitempty" json:"responseCode,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	ProcessedAt    *time.Time         `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}

// PremiumStatus is the premium view of a user after expiry normalization.
type PremiumStatus struct {
	Role              Role       `json:"role"`
	PremiumExpireDate *time.Time `json:"premiumExpireDate"`
	DaysRemaining     int        `json:"daysRemaining"`
}
