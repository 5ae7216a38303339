// Package control decides relay transitions from readings and thresholds.
package control

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qzhari/envmon-server/internal/device"
	"github.com/qzhari/envmon-server/internal/protocol"
	"github.com/qzhari/envmon-server/internal/store"
)

// EventPublisher publishes relay events to the event stream.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// CommandPublisher pushes configuration commands down to the device.
type CommandPublisher interface {
	PublishCommand(payload []byte) error
}

// Evaluator is the relay state machine. It consumes new readings and
// operator updates, mutates the configuration record through its manager,
// and announces transitions on the event stream and the device command
// channel. Both publishers may be nil.
type Evaluator struct {
	state    *device.Manager
	events   EventPublisher
	commands CommandPublisher
}

// NewEvaluator creates an evaluator over the given config state.
func NewEvaluator(state *device.Manager, events EventPublisher, commands CommandPublisher) *Evaluator {
	return &Evaluator{
		state:    state,
		events:   events,
		commands: commands,
	}
}

// OnReading folds a new reading into the configuration record and, in
// automatic mode, re-evaluates the relay. Latest-value fields always update;
// manual mode only suppresses the actuation.
func (e *Evaluator) OnReading(ctx context.Context, r store.Reading) (device.Config, error) {
	var transitioned bool
	snap, err := e.state.Mutate(ctx, func(c *device.Config) {
		c.Temperature = r.Temperature
		c.Humidity = r.Humidity
		c.CO2 = r.CO2
		if c.ManualRelayControl {
			return
		}
		transitioned = evaluate(c)
	})
	if err != nil {
		return snap, err
	}

	if transitioned {
		e.announce(ctx, snap)
	}
	return snap, nil
}

// OnConfigUpdate applies an operator update. A threshold update switches the
// record back to automatic mode and re-evaluates immediately; an explicit
// relay toggle takes manual control. When a request carries both, the relay
// toggle is applied last and manual mode wins.
func (e *Evaluator) OnConfigUpdate(ctx context.Context, u device.Update) (device.Config, error) {
	if err := u.Validate(); err != nil {
		return device.Config{}, err
	}

	if u.HasThresholds() && u.RelayState == nil && u.ManualRelayControl == nil {
		auto := false
		u.ManualRelayControl = &auto
	}
	if u.RelayState != nil && u.ManualRelayControl == nil {
		manual := true
		u.ManualRelayControl = &manual
	}

	var transitioned bool
	snap, err := e.state.Mutate(ctx, func(c *device.Config) {
		before := c.RelayState
		c.Merge(u)
		if !c.ManualRelayControl {
			transitioned = evaluate(c)
		} else {
			transitioned = c.RelayState != before
		}
	})
	if err != nil {
		return snap, err
	}

	if transitioned {
		e.announce(ctx, snap)
	} else {
		// Still push threshold changes down to the device.
		e.sendCommand(snap)
	}
	return snap, nil
}

// evaluate applies the transition rule in place and reports whether the
// relay changed state. Caller holds the config lock.
func evaluate(c *device.Config) bool {
	exceeded := exceededThresholds(c)
	want := len(exceeded) > 0

	if want && !c.RelayState {
		c.RelayState = true
		c.Notification = "Relay switched ON: " + strings.Join(exceeded, "; ")
		return true
	}
	if !want && c.RelayState {
		c.RelayState = false
		c.Notification = "Relay switched OFF: all readings back within thresholds"
		return true
	}
	return false
}

// exceededThresholds lists each quantity above its set threshold. An unset
// threshold never fires.
func exceededThresholds(c *device.Config) []string {
	var exceeded []string
	if c.TempThreshold != nil && c.Temperature > *c.TempThreshold {
		exceeded = append(exceeded,
			fmt.Sprintf("temperature %.2f exceeds threshold %.2f", c.Temperature, *c.TempThreshold))
	}
	if c.HumiThreshold != nil && c.Humidity > *c.HumiThreshold {
		exceeded = append(exceeded,
			fmt.Sprintf("humidity %.2f exceeds threshold %.2f", c.Humidity, *c.HumiThreshold))
	}
	if c.CO2Threshold != nil && c.CO2 > *c.CO2Threshold {
		exceeded = append(exceeded,
			fmt.Sprintf("co2 %.2f exceeds threshold %.2f", c.CO2, *c.CO2Threshold))
	}
	return exceeded
}

// announce publishes the transition to the event stream and actuates the
// device. Publish failures are logged, not fatal: pollers still observe the
// new state through the config snapshot.
func (e *Evaluator) announce(ctx context.Context, snap device.Config) {
	eventType := protocol.RelayTypeOff
	if snap.RelayState {
		eventType = protocol.RelayTypeOn
	}
	fmt.Printf("Relay transition: %s (%s)\n", eventType, snap.Notification)

	if e.events != nil {
		event := &protocol.RelayEvent{
			EventID:     uuid.NewString(),
			Type:        eventType,
			RelayState:  snap.RelayState,
			Message:     snap.Notification,
			Temperature: snap.Temperature,
			Humidity:    snap.Humidity,
			CO2:         snap.CO2,
			OccurredAt:  time.Now(),
		}
		data, err := protocol.EncodeRelayEvent(event)
		if err == nil {
			err = e.events.Publish(ctx, eventType, data)
		}
		if err != nil {
			fmt.Printf("Failed to publish relay event: %v\n", err)
		}
	}

	e.sendCommand(snap)
}

// sendCommand mirrors relay state and thresholds to the device.
func (e *Evaluator) sendCommand(snap device.Config) {
	if e.commands == nil {
		return
	}
	relay := snap.RelayState
	manual := snap.ManualRelayControl
	cmd := &protocol.ConfigCommand{
		RelayState:         &relay,
		ManualRelayControl: &manual,
		TempThreshold:      snap.TempThreshold,
		HumiThreshold:      snap.HumiThreshold,
		CO2Threshold:       snap.CO2Threshold,
	}
	data, err := protocol.EncodeConfigCommand(cmd)
	if err == nil {
		err = e.commands.PublishCommand(data)
	}
	if err != nil {
		fmt.Printf("Failed to publish config command: %v\n", err)
	}
}
