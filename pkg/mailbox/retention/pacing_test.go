package retention

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewPacerFactory(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PacingConfig
		want    []time.Duration
		wantErr bool
	}{
		{
			name: "default is fixed",
			cfg:  PacingConfig{Interval: time.Second},
			want: []time.Duration{time.Second, time.Second, time.Second},
		},
		{
			name: "exponential capped",
			cfg:  PacingConfig{Strategy: "exponential", Interval: time.Second, MaxInterval: 2 * time.Second},
			want: []time.Duration{time.Second, 1500 * time.Millisecond, 2 * time.Second, 2 * time.Second},
		},
		{
			name:    "unknown",
			cfg:     PacingConfig{Strategy: "jittered"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewPacerFactory(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPacerFactory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			p, ok := factory().(*BackoffPacer)
			if !ok {
				t.Fatal("factory should produce a *BackoffPacer")
			}
			for i, want := range tt.want {
				if got := p.b.NextBackOff(); got != want {
					t.Errorf("delay %d = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestNewPacerFactory_FreshPacerPerCall(t *testing.T) {
	factory, err := NewPacerFactory(PacingConfig{Strategy: "exponential", Interval: time.Second})
	if err != nil {
		t.Fatalf("NewPacerFactory() failed: %v", err)
	}

	first := factory().(*BackoffPacer)
	first.b.NextBackOff()
	first.b.NextBackOff()

	second := factory().(*BackoffPacer)
	if got := second.b.NextBackOff(); got != time.Second {
		t.Errorf("second pacer starts at %v, want %v", got, time.Second)
	}
}

func TestBackoffPacer_Wait(t *testing.T) {
	if err := NewFixedPacer(0).Wait(context.Background()); err != nil {
		t.Errorf("zero interval Wait() = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewFixedPacer(time.Hour).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Wait() = %v, want context.Canceled", err)
	}

	start := time.Now()
	if err := NewFixedPacer(10 * time.Millisecond).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Wait() returned after %v, want at least 10ms", elapsed)
	}
}

func TestRetryFetch(t *testing.T) {
	errList := errors.New("list failed")

	calls := 0
	err := retryFetch(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errList
	})
	if !errors.Is(err, errList) {
		t.Errorf("retryFetch() = %v, want %v", err, errList)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}

	calls = 0
	err = retryFetch(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errList
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retryFetch() = %v after %d calls, want success after 2", err, calls)
	}
}
