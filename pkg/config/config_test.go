package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.Swaps.ReasonMinLength)
	assert.Equal(t, 10, cfg.Swaps.DefaultPageSize)
	assert.Equal(t, 100, cfg.Swaps.MaxPageSize)
	assert.Equal(t, 100, cfg.Swaps.BatchMax)
	assert.Equal(t, 5*time.Minute, cfg.Courses.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", " Memory ")
	v.Set("SWAP_REASON_MIN_LENGTH", 20)
	v.Set("SWAP_BATCH_MAX", -1)
	v.Set("COURSE_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg := fromViper(v)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 20, cfg.Swaps.ReasonMinLength)
	assert.Equal(t, 100, cfg.Swaps.BatchMax)
	assert.Equal(t, 5*time.Minute, cfg.Courses.CacheTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}
