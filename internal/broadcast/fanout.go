package broadcast

import (
	"context"
	"time"

	"github.com/ngee044/realtimechat/internal/apperror"
	"github.com/ngee044/realtimechat/internal/dispatcher"
	"github.com/ngee044/realtimechat/internal/logging"
	"github.com/ngee044/realtimechat/internal/metrics"
)

// DefaultPollInterval is check_global_message's 100 ms tick, per spec.md §4.6.
const DefaultPollInterval = 100 * time.Millisecond

// Sender is "send to every connected session", the fan-out behaviour the
// transport exposes for an empty (id, sub_id).
type Sender interface {
	SendAll(raw []byte) error
}

// FanoutLoop is the gateway half of the broadcast slot: a self-rescheduling
// high-priority job that polls the slot, fans out whatever it finds, and
// clears the slot behind it.
type FanoutLoop struct {
	kv      KV
	sender  Sender
	slotKey string
}

func NewFanoutLoop(kv KV, sender Sender, slotKey string) *FanoutLoop {
	if slotKey == "" {
		slotKey = DefaultSlotKey
	}
	return &FanoutLoop{kv: kv, sender: sender, slotKey: slotKey}
}

// Start registers check_global_message on d as a High-priority Ticker at
// DefaultPollInterval. It returns immediately; the loop runs until d stops.
func (f *FanoutLoop) Start(d *dispatcher.Dispatcher) {
	d.Ticker(dispatcher.High, "check_global_message", DefaultPollInterval, f.tick)
}

func (f *FanoutLoop) tick() apperror.Result {
	ctx := context.Background()

	raw, err := f.kv.Get(ctx, f.slotKey)
	if err != nil {
		logging.Errorf("check_global_message: failed to read slot: %v", err)
		return apperror.FailErr(err)
	}
	if raw == "" {
		return apperror.Ok()
	}

	msg, err := ParseSlotMessage([]byte(raw))
	if err != nil {
		logging.Errorf("check_global_message: %v", err)
		_ = f.kv.Set(ctx, f.slotKey, "", 0)
		return apperror.FailErr(err)
	}

	outgoing, err := encodeOutgoing(msg)
	if err != nil {
		logging.Errorf("check_global_message: failed to encode outgoing message: %v", err)
		return apperror.FailErr(err)
	}

	if err := f.sender.SendAll(outgoing); err != nil {
		logging.Errorf("check_global_message: failed to fan out: %v", err)
		return apperror.FailErr(err)
	}
	metrics.BroadcastFanoutTotal.Inc()

	if err := f.kv.Set(ctx, f.slotKey, "", 0); err != nil {
		logging.Errorf("check_global_message: failed to clear slot: %v", err)
		return apperror.FailErr(err)
	}

	return apperror.Ok()
}
