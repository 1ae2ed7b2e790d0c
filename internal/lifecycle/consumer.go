package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads lifecycle events from a Kafka consumer group.
type Consumer struct {
	config  Config
	handler Handler
	log     *zap.SugaredLogger
	group   sarama.ConsumerGroup

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  chan struct{}
}

func NewConsumer(cfg Config, handler Handler, log *zap.SugaredLogger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	// Account events must never be skipped, start from the oldest retained
	// event on first launch.
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return newConsumer(cfg, handler, log, group), nil
}

func newConsumer(cfg Config, handler Handler, log *zap.SugaredLogger, group sarama.ConsumerGroup) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:  cfg,
		handler: handler,
		log:     log,
		group:   group,
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
	}
}

// Start consumes in the background and returns once the first session is set
// up or ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Infow("starting lifecycle consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	ready := c.ready
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			h := &groupHandler{consumer: c, ready: ready}
			if err := c.group.Consume(c.ctx, []string{c.config.Topic}, h); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.Errorw("lifecycle consumer error", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			ready = make(chan struct{})
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				c.log.Errorw("lifecycle consumer group error", "error", err)
			}
		}
	}()

	select {
	case <-c.ready:
		c.log.Info("lifecycle consumer ready")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) Stop() error {
	c.log.Info("stopping lifecycle consumer")
	c.cancel()
	c.wg.Wait()
	return c.group.Close()
}

type groupHandler struct {
	consumer *Consumer
	ready    chan struct{}
	once     sync.Once
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks every processed or unprocessable message. A retryable
// failure ends the claim without marking so that the message is consumed
// again by the next session.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := h.consumer.log
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			ev, err := Dispatch(session.Context(), h.consumer.handler, msg.Value)
			switch {
			case err == nil:
				log.Infow("applied lifecycle event", "type", ev.Type, "player", ev.PlayerID, "offset", msg.Offset)
			case errors.Is(err, ErrMalformed):
				log.Warnw("dropping lifecycle event", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			default:
				log.Errorw("unable to apply lifecycle event", "type", ev.Type, "player", ev.PlayerID, "error", err)
				return err
			}

			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
