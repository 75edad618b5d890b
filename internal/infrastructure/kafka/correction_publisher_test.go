package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/infrastructure/kafka"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestCorrectionPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := kafka.NewCorrectionPublisherWithWriter(w, "lot-ledger")
	at := time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), []inventory.Correction{
		{Check: inventory.CheckBalance, Code: "PH/ACME/AB1234/20250701/001", WarehouseID: "wh-ph",
			Target: inventory.TargetBalance, Before: "pallets=7", After: "pallets=8", At: at},
		{Check: inventory.CheckArchive, Code: "PH/INITECH/AB1234/20250701/001", WarehouseID: "wh-ph",
			Target: inventory.TargetBalance, Before: "active", After: "archived", At: at},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "PH/ACME/AB1234/20250701/001", string(w.msgs[0].Key))
	assert.Equal(t, at, w.msgs[0].Time)
	var got inventory.Correction
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "pallets=8", got.After)
	assert.Contains(t, w.msgs[1].Headers, kafkago.Header{Key: "check", Value: []byte(inventory.CheckArchive)})
}

func TestCorrectionPublisher_SinCorreccionesNoEscribe(t *testing.T) {
	w := &fakeWriter{err: errors.New("no debería llamarse")}
	p := kafka.NewCorrectionPublisherWithWriter(w, "lot-ledger")
	assert.NoError(t, p.Publish(context.Background(), nil))
}

func TestCorrectionPublisher_ErrorDelBroker(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker no disponible")}
	p := kafka.NewCorrectionPublisherWithWriter(w, "lot-ledger")
	err := p.Publish(context.Background(), []inventory.Correction{{Code: "x"}})
	assert.ErrorContains(t, err, "broker no disponible")
}
