package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/pkg/config"
)

// MessageWriter subconjunto de *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CorrectionPublisher publica cada corrección de auditoría como un mensaje JSON con clave el código,
// así las correcciones de un mismo lote caen en la misma partición y conservan el orden.
type CorrectionPublisher struct {
	writer MessageWriter
	source string
}

// NewCorrectionPublisher crea el writer sincrónico hacia el tópico de auditoría.
func NewCorrectionPublisher(cfg config.KafkaConfig, source string) *CorrectionPublisher {
	return NewCorrectionPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}, source)
}

// NewCorrectionPublisherWithWriter permite inyectar el writer (tests).
func NewCorrectionPublisherWithWriter(w MessageWriter, source string) *CorrectionPublisher {
	return &CorrectionPublisher{writer: w, source: source}
}

// Publish envía las correcciones en un solo lote.
func (p *CorrectionPublisher) Publish(ctx context.Context, corrections []inventory.Correction) error {
	if len(corrections) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(corrections))
	for _, c := range corrections {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal correction: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(c.Code),
			Value: data,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
				{Key: "source", Value: []byte(p.source)},
				{Key: "check", Value: []byte(c.Check)},
			},
			Time: c.At,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publicar %d correcciones: %w", len(msgs), err)
	}
	return nil
}

// Close cierra el writer.
func (p *CorrectionPublisher) Close() error {
	return p.writer.Close()
}
