package calendar

import (
	"testing"
	"time"

	"taskflow-api/core/config"
	"taskflow-api/modules/calendar/service"
)

func TestLockTTLCoversPassTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SyncConfig
		want time.Duration
	}{
		{"defaults", config.SyncConfig{}, service.DefaultPassTimeout},
		{"shorter lock raised", config.SyncConfig{LockTTLMinutes: 5, PassTimeoutMinutes: 10}, 10 * time.Minute},
		{"longer lock kept", config.SyncConfig{LockTTLMinutes: 30, PassTimeoutMinutes: 10}, 30 * time.Minute},
		{"lock raised to default pass timeout", config.SyncConfig{LockTTLMinutes: 1}, service.DefaultPassTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lockTTL(tt.cfg)
			if got != tt.want {
				t.Errorf("lockTTL = %v, want %v", got, tt.want)
			}
			if got < passTimeout(tt.cfg) {
				t.Errorf("lockTTL %v shorter than pass timeout %v", got, passTimeout(tt.cfg))
			}
		})
	}
}

func TestDefaultLockTTLNotShorterThanPassTimeout(t *testing.T) {
	if service.DefaultLockTTL < service.DefaultPassTimeout {
		t.Errorf("DefaultLockTTL %v < DefaultPassTimeout %v", service.DefaultLockTTL, service.DefaultPassTimeout)
	}
}
