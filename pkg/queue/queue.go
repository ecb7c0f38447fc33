// Package queue hands purchase jobs from the marketplace watcher to the
// purchase worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/parcrypto/starshop/pkg/models"
)

// PurchaseQueue accepts purchase jobs for asynchronous execution.
type PurchaseQueue interface {
	Enqueue(ctx context.Context, job *models.PurchaseJob) error
}

// SQSAPI is the subset of the SQS client the queue uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSQueue implements the PurchaseQueue interface using AWS SQS.
type SQSQueue struct {
	Client   SQSAPI
	QueueURL string
}

// NewSQSQueue creates a new SQSQueue.
func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{
		Client:   client,
		QueueURL: queueURL,
	}
}

// Make sure we conform to the interface
var _ PurchaseQueue = (*SQSQueue)(nil)

// Enqueue sends the purchase job to an SQS queue for later processing.
func (q *SQSQueue) Enqueue(ctx context.Context, job *models.PurchaseJob) error {
	// Marshal the job to JSON.
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase job for SQS: %w", err)
	}

	// Send the message to SQS.
	_, err = q.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.QueueURL),
		MessageBody: aws.String(string(body)),
	})

	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	return nil
}
