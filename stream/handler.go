// Package stream provides DynamoDB Streams handlers that keep entity caches
// coherent and deliver decoded changes.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/espalier/cache"
	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/mapping"
	"github.com/jacentio/espalier/store"
)

// Change is one entity change observed on a stream.
type Change struct {
	// EventID is the stream record identifier.
	EventID string

	// EventName is INSERT, MODIFY or REMOVE.
	EventName string

	// Collection is the changed item's collection (table name without prefix).
	Collection string

	// ID is the changed item's identifier.
	ID document.Value

	// Deleted is set for REMOVE events and for MODIFY events that newly set the TTL.
	Deleted bool

	// Image is the new image, nil for deletions or streams without new images.
	Image *document.Document

	// Entity is Image decoded into the type registered for Collection, as a
	// pointer. Nil when Image is nil or no type is registered.
	Entity any
}

// Callback receives decoded changes. Returning an error fails the batch.
type Callback func(ctx context.Context, c Change) error

// Option configures a Handler.
type Option func(*Handler)

// WithCallback delivers every INSERT, MODIFY and REMOVE to cb.
func WithCallback(cb Callback) Option {
	return func(h *Handler) { h.onChange = cb }
}

// WithStoreConfig reads the identifier attribute and table prefix from cfg.
// It must match the Store writing the tables.
func WithStoreConfig(cfg store.Config) Option {
	return func(h *Handler) {
		if cfg.IDAttribute != "" {
			h.idAttribute = cfg.IDAttribute
		}
		h.tablePrefix = cfg.TablePrefix
	}
}

// Handler processes DynamoDB stream events.
type Handler struct {
	mapper      *mapping.Mapper
	cache       cache.Cache
	logger      *slog.Logger
	onChange    Callback
	idAttribute string
	tablePrefix string
}

// NewHandler creates a new stream handler. Changed items are evicted from c
// when it is non-nil.
func NewHandler(m *mapping.Mapper, c cache.Cache, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		mapper:      m,
		cache:       c,
		logger:      logger,
		idAttribute: "id",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes a batch of stream records in order.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) Handle(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	switch record.EventName {
	case "INSERT", "MODIFY", "REMOVE":
	default:
		return nil
	}

	collection := strings.TrimPrefix(TableFromARN(record.EventSourceArn), h.tablePrefix)
	idAttr, ok := record.Change.Keys[h.idAttribute]
	if !ok {
		return fmt.Errorf("record %s: key has no %q attribute", record.EventID, h.idAttribute)
	}
	id, err := document.FromAttributeValue(convertAttribute(idAttr))
	if err != nil {
		return fmt.Errorf("record %s: %w", record.EventID, err)
	}

	deleted := record.EventName == "REMOVE"
	if record.EventName == "MODIFY" {
		// Soft delete: TTL newly set (was absent/0, now present)
		oldTTL := getNumberAttr(record.Change.OldImage, store.TTLAttribute)
		newTTL := getNumberAttr(record.Change.NewImage, store.TTLAttribute)
		deleted = oldTTL == 0 && newTTL != 0
	}

	if record.EventName != "INSERT" && h.cache != nil {
		h.cache.Delete(cache.KeyOf(collection, id))
		h.logger.Debug("evicted cached entity",
			"collection", collection,
			"id", id.Key(),
			"event", record.EventName,
		)
	}

	if h.onChange == nil {
		return nil
	}

	change := Change{
		EventID:    record.EventID,
		EventName:  record.EventName,
		Collection: collection,
		ID:         id,
		Deleted:    deleted,
	}
	if !deleted && len(record.Change.NewImage) > 0 {
		if change.Image, err = ConvertImage(record.Change.NewImage); err != nil {
			return fmt.Errorf("record %s: new image: %w", record.EventID, err)
		}
		if change.Entity, err = h.decode(ctx, collection, change.Image); err != nil {
			return fmt.Errorf("record %s: decode %s: %w", record.EventID, collection, err)
		}
	}
	return h.onChange(ctx, change)
}

// decode decodes doc into a new instance of the type registered for collection.
func (h *Handler) decode(ctx context.Context, collection string, doc *document.Document) (any, error) {
	if h.mapper == nil {
		return nil, nil
	}
	t, ok := h.mapper.TypeForCollection(collection)
	if !ok {
		return nil, nil
	}
	ptr := reflect.New(t)
	if err := h.mapper.Decode(ctx, doc, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Interface(), nil
}

// TableFromARN returns the table name of a stream or table ARN
// (arn:aws:dynamodb:region:account:table/NAME/stream/LABEL).
func TableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
