package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisher_Send(t *testing.T) {
	q := &fakeSQS{}
	p := NewPublisher(q, "https://sqs.local/queue")

	err := p.Send(context.Background(), `{"vcJti":"jti-1"}`, map[string]string{"vc_jti": "jti-1", "journey_id": ""})
	require.NoError(t, err)
	require.Len(t, q.inputs, 1)

	in := q.inputs[0]
	require.Equal(t, "https://sqs.local/queue", *in.QueueUrl)
	require.Equal(t, `{"vcJti":"jti-1"}`, *in.MessageBody)
	require.Contains(t, in.MessageAttributes, "vc_jti")
	require.NotContains(t, in.MessageAttributes, "journey_id")
	require.Equal(t, "jti-1", *in.MessageAttributes["vc_jti"].StringValue)
}

func TestPublisher_SendError(t *testing.T) {
	p := NewPublisher(&fakeSQS{err: errors.New("boom")}, "q")
	err := p.Send(context.Background(), "{}", nil)
	require.ErrorContains(t, err, "send message")
}
