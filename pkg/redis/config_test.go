package redis

import (
	"testing"
	"time"

	"github.com/Alijeyrad/wellness_intake/config"
)

func TestFromCentralConfig(t *testing.T) {
	tests := []struct {
		name string
		in   config.RedisConfig
		want Config
	}{
		{
			name: "defaults fill unset values",
			in:   config.RedisConfig{Addr: "redis:6379"},
			want: Config{
				Addr:                "redis:6379",
				PoolSize:            10,
				MinIdleConns:        2,
				DialTimeoutSeconds:  5,
				ReadTimeoutSeconds:  3,
				WriteTimeoutSeconds: 3,
			},
		},
		{
			name: "explicit values win",
			in: config.RedisConfig{
				Addr:                "redis:6379",
				DB:                  2,
				PoolSize:            50,
				MinIdleConns:        5,
				DialTimeoutSeconds:  1,
				ReadTimeoutSeconds:  1,
				WriteTimeoutSeconds: 1,
			},
			want: Config{
				Addr:                "redis:6379",
				DB:                  2,
				PoolSize:            50,
				MinIdleConns:        5,
				DialTimeoutSeconds:  1,
				ReadTimeoutSeconds:  1,
				WriteTimeoutSeconds: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromCentralConfig(tt.in); got != tt.want {
				t.Errorf("FromCentralConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTimeoutFallbacks(t *testing.T) {
	var c Config
	if c.DialTimeout() != 5*time.Second {
		t.Errorf("DialTimeout() = %s", c.DialTimeout())
	}
	if c.ReadTimeout() != 3*time.Second {
		t.Errorf("ReadTimeout() = %s", c.ReadTimeout())
	}
	if c.WriteTimeout() != 3*time.Second {
		t.Errorf("WriteTimeout() = %s", c.WriteTimeout())
	}
}

func TestNewRedisRequiresAddr(t *testing.T) {
	if _, err := NewRedis(Config{}); err == nil {
		t.Fatal("NewRedis() expected error for empty addr")
	}
}
