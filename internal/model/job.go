package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStatus is the lifecycle state of a background generation job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// GenerationJob tracks a queued bulk generation. Generated is the resume cursor:
// it is advanced in the same transaction that inserts each batch.
type GenerationJob struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CouponBookID primitive.ObjectID `bson:"coupon_book_id" json:"couponBookId"`
	Quantity     int                `bson:"quantity" json:"quantity"`
	BatchSize    int                `bson:"batch_size" json:"batchSize"`
	Generated    int                `bson:"generated" json:"generated"`
	Status       JobStatus          `bson:"status" json:"status"`
	Error        string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Remaining is the number of codes still to be generated
func (j *GenerationJob) Remaining() int {
	if r := j.Quantity - j.Generated; r > 0 {
		return r
	}
	return 0
}

// GenerationMessage is the payload published to the generation queue
type GenerationMessage struct {
	JobID        primitive.ObjectID `json:"jobId"`
	CouponBookID primitive.ObjectID `json:"couponBookId"`
	Quantity     int                `json:"quantity"`
	BatchSize    int                `json:"batchSize"`
}
