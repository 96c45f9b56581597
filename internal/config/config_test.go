package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "DB_NAME", "OTP_MAX_ATTEMPTS", "GEOFENCE_RADIUS_METERS", "AMQP_ENABLED", "EXPIRY_SWEEP_SCHEDULE", "JWT_SECRET", "AMQP_REQUEUE_DELAY"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "fleet", cfg.Database.DBName)
	assert.Equal(t, 5, cfg.Verification.OTPMaxAttempts)
	assert.Equal(t, 200.0, cfg.Verification.GeofenceRadiusMeters)
	assert.Equal(t, 15*time.Second, cfg.Verification.GeofenceTimeout)
	assert.False(t, cfg.Broker.Enabled)
	assert.Equal(t, time.Second, cfg.Broker.RequeueDelay)
	assert.Equal(t, "@every 1h", cfg.Worker.ExpirySweepSchedule)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("GEOFENCE_RADIUS_METERS", "75.5")
	t.Setenv("GEOFENCE_TIMEOUT", "2s")
	t.Setenv("AMQP_ENABLED", "true")
	t.Setenv("SESSION_TTL", "30m")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Verification.OTPMaxAttempts)
	assert.Equal(t, 75.5, cfg.Verification.GeofenceRadiusMeters)
	assert.Equal(t, 2*time.Second, cfg.Verification.GeofenceTimeout)
	assert.True(t, cfg.Broker.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("OTP_MAX_ATTEMPTS", "many")
	t.Setenv("GEOFENCE_TIMEOUT", "soon")
	t.Setenv("AMQP_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 5, cfg.Verification.OTPMaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Verification.GeofenceTimeout)
	assert.False(t, cfg.Broker.Enabled)
}
