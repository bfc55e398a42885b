package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"
)

type stubSQS struct {
	in  *sqs.SendMessageInput
	err error
}

func (s *stubSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.in = in
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSSender_Send(t *testing.T) {
	stub := &stubSQS{}
	s := &SQSSender{client: stub, queueURL: "https://sqs.local/q"}

	id, err := s.Send(context.Background(), "payment.completed", "vendor-1", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
	require.Equal(t, "https://sqs.local/q", aws.ToString(stub.in.QueueUrl))
	require.Equal(t, `{"a":1}`, aws.ToString(stub.in.MessageBody))
	require.Equal(t, "payment.completed", aws.ToString(stub.in.MessageAttributes["event_type"].StringValue))
	require.Equal(t, "vendor-1", aws.ToString(stub.in.MessageAttributes["group_key"].StringValue))
}

func TestSQSSender_SendError(t *testing.T) {
	s := &SQSSender{client: &stubSQS{err: errors.New("boom")}, queueURL: "q"}
	_, err := s.Send(context.Background(), "payout.failed", "", nil)
	require.ErrorContains(t, err, "sqs send payout.failed")
}
