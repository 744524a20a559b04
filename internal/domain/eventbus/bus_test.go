package eventbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/domain/eventbus"
)

func TestPrinterStateChanged_DeliversOnlyToMatchingPrinterID(t *testing.T) {
	bus := eventbus.New()
	chA := bus.SubscribePrinterStateChanged(1)
	chB := bus.SubscribePrinterStateChanged(2)
	defer bus.UnsubscribePrinterStateChanged(1, chA)
	defer bus.UnsubscribePrinterStateChanged(2, chB)

	bus.PublishPrinterStateChanged(eventbus.PrinterStateChanged{PrinterID: 1})

	select {
	case e := <-chA:
		assert.Equal(t, int64(1), e.PrinterID)
	default:
		t.Fatal("expected event on subscriber for printer 1")
	}

	select {
	case <-chB:
		t.Fatal("printer 2 subscriber should not receive printer 1's event")
	default:
	}
}

func TestNormalTopic_NeverBlocksWhenSubscriberBufferIsFull(t *testing.T) {
	bus := eventbus.New()
	ch := bus.SubscribePrinterConnected(5)
	defer bus.UnsubscribePrinterConnected(5, ch)

	// normalBufferSize is 16; publish past capacity and confirm the bus
	// never blocks (non-blocking drop, not backpressure).
	for i := 0; i < 64; i++ {
		bus.PublishPrinterConnected(eventbus.PrinterConnected{PrinterID: 5})
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			assert.LessOrEqual(t, drained, 16)
			return
		}
	}
}

func TestJobTopics_AreGlobalNotEntityKeyed(t *testing.T) {
	bus := eventbus.New()
	ch := bus.SubscribeJobFailed()
	defer bus.UnsubscribeJobFailed(ch)

	bus.PublishJobFailed(eventbus.JobFailed{JobID: 42, PrinterID: 9, FailReason: "clog"})

	require.Len(t, ch, 1)
	e := <-ch
	assert.Equal(t, int64(42), e.JobID)
}

func TestUnsubscribe_StopsFurtherDeliveryAndClosesChannel(t *testing.T) {
	bus := eventbus.New()
	ch := bus.SubscribePrinterError(3)

	bus.UnsubscribePrinterError(3, ch)
	bus.PublishPrinterError(eventbus.PrinterError{PrinterID: 3})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestTotalSubscriberCount_TracksActiveSubscriptions(t *testing.T) {
	bus := eventbus.New()
	assert.Equal(t, 0, bus.TotalSubscriberCount())

	ch1 := bus.SubscribePrinterConnected(1)
	ch2 := bus.SubscribeJobCompleted()
	assert.Equal(t, 2, bus.TotalSubscriberCount())

	bus.UnsubscribePrinterConnected(1, ch1)
	bus.UnsubscribeJobCompleted(ch2)
	assert.Equal(t, 0, bus.TotalSubscriberCount())
}
