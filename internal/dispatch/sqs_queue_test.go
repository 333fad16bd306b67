package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	sent      []*sqs.SendMessageInput
	received  *sqs.ReceiveMessageInput
	deleted   []string
	messages  []types.Message
	sendError error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendError != nil {
		return nil, f.sendError
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = in
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue_RoundTrip(t *testing.T) {
	client := &fakeSQS{messages: []types.Message{{
		MessageId:     aws.String("m-1"),
		Body:          aws.String(`{"id":"j1","kind":"turn"}`),
		ReceiptHandle: aws.String("r-1"),
	}}}
	q := newSQSQueue(client, "https://sqs.local/queue")
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "payload"))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "https://sqs.local/queue", aws.ToString(client.sent[0].QueueUrl))
	assert.Equal(t, "payload", aws.ToString(client.sent[0].MessageBody))

	msgs, err := q.Receive(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(5), client.received.MaxNumberOfMessages)
	assert.Equal(t, int32(2), client.received.WaitTimeSeconds)
	require.Len(t, msgs, 1)
	assert.Equal(t, Message{ID: "m-1", Body: `{"id":"j1","kind":"turn"}`, ReceiptHandle: "r-1"}, msgs[0])

	require.NoError(t, q.Delete(ctx, "r-1"))
	require.NoError(t, q.Delete(ctx, ""))
	assert.Equal(t, []string{"r-1"}, client.deleted)
}

func TestSQSQueue_SendError(t *testing.T) {
	q := newSQSQueue(&fakeSQS{sendError: errors.New("throttled")}, "url")
	err := q.Send(context.Background(), "payload")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestMemoryQueue_ReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(2)
	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Nil(t, msgs)

	require.NoError(t, q.Send(context.Background(), "a"))
	require.NoError(t, q.Send(context.Background(), "b"))
	msgs, err = q.Receive(context.Background(), 5, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "b", msgs[1].Body)
}

func TestMemoryQueue_SendBlocksWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Send(context.Background(), "a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Send(ctx, "b"), context.Canceled)
}
