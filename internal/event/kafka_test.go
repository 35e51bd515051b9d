package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	evt := LockEvent{
		Name:     "report",
		Key:      "lock:app:report",
		Result:   ResultExecuted,
		Host:     "node-1",
		StartAt:  1704067200000,
		Duration: 120,
	}
	testCases := []struct {
		name    string
		mock    func(p *mocks.SyncProducer)
		wantErr bool
	}{
		{
			name: "发送成功",
			mock: func(p *mocks.SyncProducer) {
				p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
					var actual LockEvent
					require.NoError(t, json.Unmarshal(val, &actual))
					assert.Equal(t, evt, actual)
					return nil
				})
			},
		},
		{
			name: "发送失败",
			mock: func(p *mocks.SyncProducer) {
				p.ExpectSendMessageAndFail(errors.New("mock kafka error"))
			},
			wantErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			producer := mocks.NewSyncProducer(t, nil)
			tc.mock(producer)
			publisher := NewKafkaPublisher(producer, "schedlock_events")
			err := publisher.Publish(context.Background(), evt)
			assert.Equal(t, tc.wantErr, err != nil)
			require.NoError(t, producer.Close())
		})
	}
}

func TestLockEvent(t *testing.T) {
	evt := LockEvent{StartAt: 1704067200000}
	assert.True(t, evt.Success())
	assert.Equal(t, int64(1704067200000), evt.StartTime().UnixMilli())
	evt.Error = "boom"
	assert.False(t, evt.Success())
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), evt))
}
