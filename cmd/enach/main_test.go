package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/testutil/fakebackend"
	"github.com/cuongbtq/enach-client/shared/logger"
)

type env struct {
	backend *fakebackend.Backend
	dir     string
	config  string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	backend := fakebackend.New(t)
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")

	yaml := fmt.Sprintf(`api:
  base_url: %s
auth:
  token_file: %s
database:
  path: %s
poller:
  interval: 10ms
  initial_backoff: 1ms
  max_backoff: 5ms
  skip_network_check: true
logging:
  level: error
`, backend.URL(), filepath.Join(dir, "token.json"), filepath.Join(dir, "work.db"))
	require.NoError(t, os.WriteFile(config, []byte(yaml), 0o600))

	return &env{backend: backend, dir: dir, config: config}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	c := &cli{}
	root := c.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.config}, args...))

	err := root.ExecuteContext(context.Background())
	c.close()
	return out.String(), err
}

func (e *env) login(t *testing.T) {
	t.Helper()
	_, err := e.run(t, "login", "-u", fakebackend.Username, "-p", fakebackend.Password)
	require.NoError(t, err)
}

func (e *env) file(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("image bytes"), 0o600))
	return path
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "login", "-u", fakebackend.Username, "-p", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect username or password")

	t.Setenv(passwordEnv, fakebackend.Password)
	out, err := e.run(t, "login", "-u", fakebackend.Username)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as demo")

	data, err := os.ReadFile(filepath.Join(e.dir, "token.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), fakebackend.Token)

	out, err = e.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = e.run(t, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not authenticated")
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:  healthy")
	assert.Contains(t, out, "database")

	e.backend.Close()
	_, err = e.run(t, "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Network error")
}

func TestCreateWatchAndUnwatch(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	out, err := e.run(t, "create",
		"--cheque", e.file(t, "cheque.jpg"),
		"--form", e.file(t, "form.pdf"),
		"--customer-id", "CUST-7",
		"--customer-name", "Ravi Kumar",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:    pending")
	assert.Contains(t, out, "Customer:  Ravi Kumar (CUST-7)")
	assert.Contains(t, out, "enach-agent")

	jobID := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(out, "\n", 2)[0], "Job:"))
	require.NotEmpty(t, jobID)
	assert.ElementsMatch(t,
		[]string{"cheque_image", "enach_form", "customer_identifier", "customer_name"},
		e.backend.Uploads(jobID),
	)
	// the CLI only records the watch; no status checks ran here
	assert.Zero(t, e.backend.StatusCalls(jobID))

	out, err = e.run(t, "watches")
	require.NoError(t, err)
	assert.Contains(t, out, jobID)
	assert.Contains(t, out, "scheduled")

	out, err = e.run(t, "unwatch", jobID)
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped watching")

	out, err = e.run(t, "watches")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs are being watched.")
}

func TestCreateRequiresCheque(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	_, err := e.run(t, "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "cheque" not set`)
}

func TestStatusAndList(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.backend.AddJob("job-a", "", "processing")
	e.backend.AddJob("job-b", "Blurry cheque", "failed")

	out, err := e.run(t, "status", "job-b")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:    failed")
	assert.Contains(t, out, "Error:     Blurry cheque")

	out, err = e.run(t, "status", "job-a", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"job_id": "job-a"`)
	assert.Contains(t, out, `"status": "processing"`)

	_, err = e.run(t, "status", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Job not found")

	out, err = e.run(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "JOB ID")
	assert.Contains(t, lines[1], "job-b")
	assert.Contains(t, lines[2], "job-a")

	out, err = e.run(t, "list", "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs found.")
}

func TestValidate(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.backend.AddJob("job-v", "", "validation_required")

	out, err := e.run(t, "validate", "job-v", "--correct", "amount=1197:1179", "--correct", "ifsc_code=HDFC0000123", "--approve")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:  validated")
	assert.Contains(t, out, "updated amount")
	assert.Contains(t, out, "updated ifsc_code")

	_, err = e.run(t, "validate", "job-v", "--correct", "amount")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected field=value")
}

func TestDownload(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.backend.AddJob("job-d", "", "completed")

	output := filepath.Join(e.dir, "form.pdf")
	out, err := e.run(t, "download", "job-d", "-o", output, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("(%d bytes)", len(fakebackend.FormPDF)))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, fakebackend.FormPDF, data)

	missing := filepath.Join(e.dir, "missing.pdf")
	_, err = e.run(t, "download", "nope", "-o", missing, "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Form not generated")
	assert.NoFileExists(t, missing)
}

func TestWatchFollow(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.backend.AddJob("job-f", "", "pending", "processing", "completed")

	out, err := e.run(t, "watch", "job-f", "--follow")
	require.NoError(t, err)
	assert.Contains(t, out, "Job job-f: succeeded")
	assert.Equal(t, 3, e.backend.StatusCalls("job-f"))

	out, err = e.run(t, "watches")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs are being watched.")
}

func TestParseCorrection(t *testing.T) {
	tests := []struct {
		input   string
		want    domain.FieldCorrection
		wantErr bool
	}{
		{input: "amount=1179", want: domain.FieldCorrection{FieldName: "amount", CorrectedValue: "1179"}},
		{input: "amount=1197:1179", want: domain.FieldCorrection{FieldName: "amount", OriginalValue: "1197", CorrectedValue: "1179"}},
		{input: " ifsc_code =HDFC0000123", want: domain.FieldCorrection{FieldName: "ifsc_code", CorrectedValue: "HDFC0000123"}},
		{input: "amount", wantErr: true},
		{input: "=1179", wantErr: true},
		{input: "amount=1197:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseCorrection(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeAcknowledger struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = append(f.nacked, tag)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func TestTailNotifications(t *testing.T) {
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(`{"job_id":"job-1","status":"completed","title":"e-NACH Processing Complete","message":"done","timestamp":"2026-01-02T03:04:05Z"}`),
	}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`not json`)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"status":"completed"}`)}
	close(deliveries)

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, tailNotifications(ctx, deliveries, &out, logger.NewNop()))

	assert.Contains(t, out.String(), "job-1  e-NACH Processing Complete: done")
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2, 3}, ack.nacked)
}

func TestNotificationsTailRequiresRabbitMQ(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "notifications", "tail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq is not enabled")
}
