package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/stock-watchlist/internal/database"
	"github.com/trogers1052/stock-watchlist/internal/logging"
	"github.com/trogers1052/stock-watchlist/internal/models"
)

// CatalogRepository defines the catalog writes driven by stock events
type CatalogRepository interface {
	SaveStock(ctx context.Context, s *models.Stock) error
	DeleteStockByCode(ctx context.Context, code string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// CatalogConsumer keeps the stocks table in step with the stock service's
// STOCK_ADDED, STOCK_UPDATED and STOCK_REMOVED events
type CatalogConsumer struct {
	reader messageReader
	repo   CatalogRepository
	logger *slog.Logger
}

// NewCatalogConsumer creates a new Kafka consumer for catalog events
func NewCatalogConsumer(brokers []string, topic, groupID string, repo CatalogRepository, logger *slog.Logger) *CatalogConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &CatalogConsumer{
		reader: reader,
		repo:   repo,
		logger: logging.OrDefault(logger),
	}
}

// Start consumes messages until ctx is cancelled
func (c *CatalogConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting catalog consumer", "topic", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("catalog consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.logger.Warn("failed to read message", "error", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error("failed to process catalog event",
					"partition", msg.Partition, "offset", msg.Offset, "error", err)
			}
		}
	}
}

func (c *CatalogConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.StockEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal stock event: %w", err)
	}

	switch event.EventType {
	case models.EventStockAdded, models.EventStockUpdated:
		stock, err := stockFromEvent(event)
		if err != nil {
			return err
		}
		if err := c.repo.SaveStock(ctx, stock); err != nil {
			return fmt.Errorf("failed to save stock %s: %w", stock.StockCode, err)
		}
		c.logger.Info("catalog stock saved", "event", event.EventType, "code", stock.StockCode, "id", stock.ID)

	case models.EventStockRemoved:
		code := strings.ToUpper(strings.TrimSpace(event.Symbol))
		if code == "" {
			return errors.New("stock removed event has no symbol")
		}
		err := c.repo.DeleteStockByCode(ctx, code)
		if errors.Is(err, database.ErrNotFound) {
			c.logger.Debug("removed stock not in catalog", "code", code)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete stock %s: %w", code, err)
		}
		c.logger.Info("catalog stock removed", "code", code)

	default:
		c.logger.Debug("ignoring event type", "event", event.EventType)
	}

	return nil
}

func stockFromEvent(event models.StockEvent) (*models.Stock, error) {
	code := event.Symbol
	name := ""
	var logo *string
	if event.Stock != nil {
		if event.Stock.Symbol != "" {
			code = event.Stock.Symbol
		}
		name = strings.TrimSpace(event.Stock.Name)
		if event.Stock.LogoURL != "" {
			l := event.Stock.LogoURL
			logo = &l
		}
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%s event has no symbol", event.EventType)
	}
	if name == "" {
		name = code
	}

	return &models.Stock{StockName: name, StockCode: code, LogoURL: logo}, nil
}

// Close closes the Kafka consumer
func (c *CatalogConsumer) Close() error {
	return c.reader.Close()
}
