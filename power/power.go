// Package power describes the deep sleep collaborator that the mode
// controller hands the device to once every task has wound down.
package power

import (
	"context"
	"fmt"
	"strings"
)

// WakeSource is an input line that wakes the device from sleep when it
// reaches the given level.
type WakeSource struct {
	// Name identifies the line, such as "button".
	Name string
	// High wakes on a high level when true and on a low level otherwise.
	High bool
}

func (w WakeSource) String() string {
	level := "low"
	if w.High {
		level = "high"
	}
	return w.Name + "=" + level
}

// Sleeper puts the device into its lowest power state. On hardware Sleep
// never returns on success; the device reboots when woken. Simulated
// sleepers return nil once a wake source fires.
//
// Sleep must only be called after the owners of the wake lines have released
// them.
type Sleeper interface {
	Sleep(ctx context.Context, wake ...WakeSource) error
}

// SleeperFunc adapts a function to a Sleeper.
type SleeperFunc func(ctx context.Context, wake ...WakeSource) error

func (f SleeperFunc) Sleep(ctx context.Context, wake ...WakeSource) error {
	return f(ctx, wake...)
}

// FormatWakeSources formats wake sources for logging.
func FormatWakeSources(wake []WakeSource) string {
	names := make([]string, len(wake))
	for i, w := range wake {
		names[i] = w.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(names, " "))
}
