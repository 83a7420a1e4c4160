package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published []any
	err       error
}

func (f *fakePublisher) PublishJSON(ctx context.Context, v any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, v)
	return nil
}

type recorder struct {
	got []Notification
	err error
}

func (r *recorder) Notify(ctx context.Context, n Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func sample() Notification {
	return Notification{
		JobID:     "job-1",
		Status:    "failed",
		Title:     "Job Failed",
		Message:   "Job has failed. OCR confidence too low",
		Timestamp: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), sample()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Job Failed", entry["msg"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.Equal(t, "Job has failed. OCR confidence too low", entry["message"])
}

func TestAMQPNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAMQPNotifier(pub)

	require.NoError(t, n.Notify(context.Background(), sample()))
	require.Len(t, pub.published, 1)

	body, err := json.Marshal(pub.published[0])
	require.NoError(t, err)
	decoded, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, sample(), decoded)

	pub.err = errors.New("not connected to RabbitMQ")
	err = n.Notify(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish notification")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"job_id":"job-1","title":"Job Completed"}`},
		{name: "missing job id", body: `{"title":"Job Completed"}`, wantErr: true},
		{name: "not json", body: `Job Completed`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	failing := &recorder{err: errors.New("sink down")}
	last := &recorder{}

	err := Multi{ok, failing, last}.Notify(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Len(t, ok.got, 1)
	assert.Len(t, last.got, 1)

	assert.NoError(t, Multi{ok}.Notify(context.Background(), sample()))
}
