package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TimePlatform fires at a fixed wall-clock time each day, or at a
// repeating interval.
//
// Config:
//
//	platform: time
//	at: "07:30:00"        # daily at 07:30, hub-local time
//
// or:
//
//	platform: time
//	every: 15m            # repeating interval
//
// Exactly one of "at" and "every" must be set.
type TimePlatform struct{}

// Validate implements Platform.
func (TimePlatform) Validate(cfg Config) error {
	_, hasAt := cfg["at"]
	_, hasEvery := cfg["every"]
	if hasAt == hasEvery {
		return fmt.Errorf("%w: exactly one of \"at\" or \"every\" is required", ErrInvalidConfig)
	}

	if hasAt {
		at, err := reqString(cfg, "at")
		if err != nil {
			return err
		}
		if _, err := time.Parse("15:04:05", at); err != nil {
			return fmt.Errorf("%w: \"at\" must be HH:MM:SS: %v", ErrInvalidConfig, err)
		}
		return nil
	}

	every, err := optDuration(cfg, "every")
	if err != nil {
		return err
	}
	if every == 0 {
		return fmt.Errorf("%w: \"every\" must be a positive duration", ErrInvalidConfig)
	}
	return nil
}

// Attach implements Platform.
func (p TimePlatform) Attach(ctx context.Context, _ Environment, cfg Config, fire Callback) (DetachFunc, error) {
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}

	done := make(chan struct{})

	if at := optString(cfg, "at"); at != "" {
		go runDaily(ctx, done, at, fire)
	} else {
		every, _ := optDuration(cfg, "every")
		go runInterval(ctx, done, every, fire)
	}

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}, nil
}

// runDaily fires once per day at the given HH:MM:SS local time.
func runDaily(ctx context.Context, done <-chan struct{}, at string, fire Callback) {
	target, _ := time.Parse("15:04:05", at)

	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(),
			target.Hour(), target.Minute(), target.Second(), 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			fire(ctx, map[string]any{
				"platform":    "time",
				"description": fmt.Sprintf("time %s", at),
				"now":         next.Format(time.RFC3339),
			})
		case <-done:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// runInterval fires on a fixed ticker.
func runInterval(ctx context.Context, done <-chan struct{}, every time.Duration, fire Callback) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case t := <-ticker.C:
			fire(ctx, map[string]any{
				"platform":    "time",
				"description": fmt.Sprintf("every %s", every),
				"now":         t.Format(time.RFC3339),
			})
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
