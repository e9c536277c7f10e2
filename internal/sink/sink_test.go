package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachdehooge/flood-dashboard/internal/config"
	"github.com/Zachdehooge/flood-dashboard/internal/dashboard"
)

type memoryOutput struct {
	topics []string
	msgs   [][]byte
	err    error
	closed bool
}

func (m *memoryOutput) WriteMessage(_ context.Context, topic string, msg []byte) error {
	if m.err != nil {
		return m.err
	}
	m.topics = append(m.topics, topic)
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memoryOutput) Close() error {
	m.closed = true
	return nil
}

func snapshot() dashboard.Snapshot {
	return dashboard.Snapshot{ActiveID: "chennai_adyar", Banner: "Prediction server unreachable", Sequence: 3}
}

func TestPublisherFansOut(t *testing.T) {
	good := &memoryOutput{}
	bad := &memoryOutput{err: errors.New("broker down")}
	other := &memoryOutput{}
	p := NewPublisher(good, bad, other)

	err := p.Publish(context.Background(), dashboard.TopicStatus, snapshot())
	assert.Error(t, err)

	require.Len(t, good.msgs, 1)
	require.Len(t, other.msgs, 1)
	assert.Equal(t, dashboard.TopicStatus, good.topics[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(good.msgs[0], &decoded))
	assert.Equal(t, "chennai_adyar", decoded["activeId"])
	assert.EqualValues(t, 3, decoded["sequence"])

	require.NoError(t, p.Close())
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
	assert.Equal(t, 0, p.Len())
}

func TestFileOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f, err := NewFileOutput(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, f.WriteMessage(ctx, "flood.status", []byte(`{"n":1}`)))
	require.NoError(t, f.WriteMessage(ctx, "flood.status", []byte(`{"n":2}`)))

	data, err := os.ReadFile(f.Path("flood.status"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(data))

	_, err = os.Stat(f.Path("flood.status") + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestKafkaOutput(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{}` {
			return errors.New("unexpected value " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewKafkaOutputWithProducer(producer)
	ctx := context.Background()
	assert.NoError(t, k.WriteMessage(ctx, "flood.suggestions", []byte(`{}`)))
	assert.ErrorIs(t, k.WriteMessage(ctx, "flood.suggestions", []byte(`{}`)), sarama.ErrOutOfBrokers)
	require.NoError(t, k.Close())
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	closed        bool
}

func (c *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPOutput(t *testing.T) {
	ch := &fakeChannel{}
	a := &AMQPOutput{ch: ch, exchange: "flood"}

	require.NoError(t, a.WriteMessage(context.Background(), "flood.status", []byte(`{"x":1}`)))
	assert.Equal(t, "flood", ch.exchange)
	assert.Equal(t, "flood.status", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, []byte(`{"x":1}`), ch.msg.Body)

	require.NoError(t, a.Close())
	assert.True(t, ch.closed)
}

type fakeExecer struct {
	sql  []string
	args [][]any
}

func (e *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = append(e.sql, sql)
	e.args = append(e.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestPostgresOutput(t *testing.T) {
	db := &fakeExecer{}
	p := &PostgresOutput{db: db, table: "risk_snapshots"}
	ctx := context.Background()

	require.NoError(t, p.EnsureSchema(ctx))
	require.NoError(t, p.WriteMessage(ctx, "flood.status", []byte(`{"a":1}`)))

	require.Len(t, db.sql, 2)
	assert.Contains(t, db.sql[0], `CREATE TABLE IF NOT EXISTS "risk_snapshots"`)
	assert.Contains(t, db.sql[1], `INSERT INTO "risk_snapshots" (topic, payload)`)
	assert.Equal(t, []any{"flood.status", `{"a":1}`}, db.args[1])
	assert.NoError(t, p.Close())
}

type fakeS3 struct {
	bucket, key string
	body        string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = *in.Bucket
	f.key = *in.Key
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Output(t *testing.T) {
	client := &fakeS3{}
	at := time.Unix(0, 1700000000000000000)
	o := &S3Output{client: client, bucket: "flood-bucket", prefix: "snapshots", now: func() time.Time { return at }}

	require.NoError(t, o.WriteMessage(context.Background(), "flood.status", []byte(`{}`)))
	assert.Equal(t, "flood-bucket", client.bucket)
	assert.Equal(t, "snapshots/flood.status/1700000000000000000.json", client.key)
	assert.Equal(t, `{}`, client.body)
	assert.True(t, strings.HasSuffix(o.Key("t", at), ".json"))
}

func TestOpenFileOnly(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(context.Background(), config.SinksConfig{File: config.FileSinkConfig{Dir: dir}})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	require.NoError(t, p.Publish(context.Background(), dashboard.TopicStatus, snapshot()))
	_, err = os.Stat(filepath.Join(dir, "flood.status.json"))
	assert.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestOpenNothingConfigured(t *testing.T) {
	p, err := Open(context.Background(), config.SinksConfig{})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
	assert.NoError(t, p.Publish(context.Background(), dashboard.TopicStatus, snapshot()))
}
