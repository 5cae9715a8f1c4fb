package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"sensorcast/internal/config"
	"sensorcast/internal/logging"
	"sensorcast/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// payloadField is the stream entry field holding the JSON reading
const payloadField = "data"

// Publisher appends readings to the ingestion stream
type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher creates a publisher that appends readings to stream
func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// Publish validates r and adds it to the stream, returning the entry id
func (p *Publisher) Publish(ctx context.Context, r models.Reading) (string, error) {
	if err := Validate(r); err != nil {
		return "", err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", errors.Wrap(err, "encode reading")
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{payloadField: string(data)},
	}).Result()
	if err != nil {
		return "", errors.Wrapf(err, "publish to %s", p.stream)
	}
	return id, nil
}

// Consumer reads the ingestion stream as a member of a consumer group and
// stores every entry through an Ingestor.
type Consumer struct {
	client   *redis.Client
	ingestor *Ingestor
	stream   string
	group    string
	name     string

	// Count and Block tune each XREADGROUP call
	Count int64
	Block time.Duration

	log logrus.FieldLogger
}

// NewConsumer creates a group consumer for cfg.Stream. An empty cfg.Consumer
// gets a random name.
func NewConsumer(client *redis.Client, ingestor *Ingestor, cfg config.RedisConfig) *Consumer {
	name := cfg.Consumer
	if name == "" {
		name = "consumer-" + uuid.NewString()
	}
	return &Consumer{
		client:   client,
		ingestor: ingestor,
		stream:   cfg.Stream,
		group:    cfg.Group,
		name:     name,
		Count:    10,
		Block:    5 * time.Second,
		log: logging.Component("consumer").WithFields(logrus.Fields{
			"stream":   cfg.Stream,
			"consumer": name,
		}),
	}
}

// Name is the consumer name inside the group
func (c *Consumer) Name() string {
	return c.name
}

// EnsureGroup creates the stream and group when missing
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return errors.Wrapf(err, "create consumer group %s", c.group)
	}
	return nil
}

// Run consumes until ctx is done. Entries this consumer left pending on a
// previous run are retried first. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.log.Info("reading from stream")

	// an id replays this consumer's pending entries after it, ">" reads new ones
	start := "0"
	for {
		if ctx.Err() != nil {
			c.log.Info("consumer stopped")
			return nil
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, start},
			Count:    c.Count,
			Block:    c.Block,
		}).Result()

		if ctx.Err() != nil {
			c.log.Info("consumer stopped")
			return nil
		}
		if err != nil && err != redis.Nil {
			c.log.WithError(err).Warn("error reading from stream")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		read := 0
		for _, s := range streams {
			for _, m := range s.Messages {
				read++
				if start != ">" {
					start = m.ID
				}
				if c.handle(ctx, m) {
					if err := c.client.XAck(ctx, c.stream, c.group, m.ID).Err(); err != nil {
						c.log.WithError(err).WithField("id", m.ID).Warn("failed to ack entry")
					}
				}
			}
		}
		if read == 0 {
			start = ">"
		}
	}
}

// handle stores one entry and reports whether it should be acked. Entries
// that can never be stored are acked and dropped; store failures are left
// pending.
func (c *Consumer) handle(ctx context.Context, m redis.XMessage) bool {
	log := c.log.WithField("id", m.ID)

	raw, ok := m.Values[payloadField].(string)
	if !ok {
		log.Warn("dropping entry without data field")
		return true
	}

	var r models.Reading
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		log.WithError(err).Warn("dropping malformed entry")
		return true
	}

	id, err := c.ingestor.store(ctx, SourceStream, r)
	switch {
	case errors.Is(err, ErrInvalidReading):
		log.WithError(err).Warn("dropping invalid reading")
		return true
	case err != nil:
		log.WithError(err).Error("failed to store reading")
		return false
	}

	log.WithField("reading_id", id).Debug("stored reading from stream")
	return true
}
