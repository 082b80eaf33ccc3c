package thermal

import (
	"fmt"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
)

// SetAllFanSpeeds commands speed on every fan (C4.6). It counts successes,
// warns (but does not fail) when a fan reports absent via a false return, and
// aborts immediately - logging and surfacing the failure - if any fan panics
// while being commanded. An empty fan list fails the tick.
func SetAllFanSpeeds(log *nhlog.Logger, fans []Fan, speed float64) error {
	if len(fans) == 0 {
		if log != nil {
			log.Error("No fans available to set speed")
		}
		return fmt.Errorf("no fans available to set speed")
	}

	successCount := 0
	for i, fan := range fans {
		present, setErr := setOneFanSpeed(fan, speed)
		if setErr != nil {
			if log != nil {
				log.Error("Exception setting speed %.1f%% for fan %d: %v", speed, i, setErr)
			}
			return setErr
		}
		if present {
			successCount++
		} else if log != nil {
			log.Warning("Failed to set speed %.1f%% for fan %d (fan may not be present)", speed, i)
		}
	}

	if log != nil {
		log.Info("Applied speed %.1f%% to %d/%d fans", speed, successCount, len(fans))
	}
	return nil
}

// setOneFanSpeed calls fan.SetSpeed, converting any panic raised by the
// underlying driver into an error (the Go analogue of the original driver
// catching and re-raising a thrown exception per fan).
func setOneFanSpeed(fan Fan, speed float64) (present bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	present = fan.SetSpeed(speed)
	return present, nil
}
