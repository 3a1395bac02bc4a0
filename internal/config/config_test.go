package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "crs",
				Password: "secret",
				Name:     "component_requests",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=crs password=secret dbname=component_requests sslmode=require",
		},
		{
			name: "disable ssl mode",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				User:     "admin",
				Password: "pass",
				Name:     "mydb",
				SSLMode:  "disable",
			},
			want: "host=db.example.com port=5433 user=admin password=pass dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ServerConfig.GetAddress
// ---------------------------------------------------------------------------

func TestGetAddress(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"localhost", 3000, "localhost:3000"},
		{"", 9000, ":9000"},
	}
	for _, tt := range tests {
		cfg := ServerConfig{Host: tt.host, Port: tt.port}
		if got := cfg.GetAddress(); got != tt.want {
			t.Errorf("GetAddress(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

// validConfig returns a config that passes Validate; tests mutate one field at a time.
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, MaxBodyBytes: 10 << 20},
		Database: DatabaseConfig{
			Driver: DriverPostgres,
			Host:   "localhost",
			Name:   "component_requests",
			User:   "crs",
		},
		Sequence: SequenceConfig{Backend: SequencePostgres, RedisKey: "crs:seq"},
		Security: SecurityConfig{
			RateLimiting: RateLimitingConfig{
				Enabled:                     true,
				RequestsPerMinute:           200,
				Burst:                       50,
				CredentialRequestsPerMinute: 10,
				CredentialBurst:             5,
			},
		},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{Metrics: MetricsConfig{Enabled: true, PrometheusPort: 9090}},
		Jobs:      JobsConfig{APIKeyExpiryInterval: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid postgres config", mutate: func(c *Config) {}},
		{
			name: "valid memory config",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Driver: DriverMemory}
				c.Sequence.Backend = SequenceMemory
			},
		},
		{
			name: "valid redis sequence",
			mutate: func(c *Config) {
				c.Sequence.Backend = SequenceRedis
				c.Redis.Address = "localhost:6379"
			},
		},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "invalid server port"},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "negative body limit", mutate: func(c *Config) { c.Server.MaxBodyBytes = -1 }, wantErr: "max_body_bytes"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "invalid database driver"},
		{name: "postgres without host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: "database.host is required"},
		{name: "postgres without name", mutate: func(c *Config) { c.Database.Name = "" }, wantErr: "database.name is required"},
		{name: "postgres without user", mutate: func(c *Config) { c.Database.User = "" }, wantErr: "database.user is required"},
		{
			name: "postgres sequence on memory driver",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Driver: DriverMemory}
			},
			wantErr: "requires database.driver postgres",
		},
		{
			name:    "memory sequence on postgres driver",
			mutate:  func(c *Config) { c.Sequence.Backend = SequenceMemory },
			wantErr: "requires database.driver memory",
		},
		{
			name:    "redis sequence without redis",
			mutate:  func(c *Config) { c.Sequence.Backend = SequenceRedis },
			wantErr: "requires redis.url or redis.address",
		},
		{
			name: "redis sequence without key",
			mutate: func(c *Config) {
				c.Sequence.Backend = SequenceRedis
				c.Sequence.RedisKey = ""
				c.Redis.URL = "redis://localhost:6379/0"
			},
			wantErr: "sequence.redis_key is required",
		},
		{name: "unknown sequence backend", mutate: func(c *Config) { c.Sequence.Backend = "etcd" }, wantErr: "invalid sequence backend"},
		{
			name:    "zero burst with rate limiting",
			mutate:  func(c *Config) { c.Security.RateLimiting.Burst = 0 },
			wantErr: "must be positive",
		},
		{
			name: "zero burst without rate limiting",
			mutate: func(c *Config) {
				c.Security.RateLimiting.Enabled = false
				c.Security.RateLimiting.Burst = 0
			},
		},
		{
			name:    "tls without cert",
			mutate:  func(c *Config) { c.Security.TLS = TLSConfig{Enabled: true, KeyFile: "k.pem"} },
			wantErr: "cert_file is required",
		},
		{
			name:    "tls without key",
			mutate:  func(c *Config) { c.Security.TLS = TLSConfig{Enabled: true, CertFile: "c.pem"} },
			wantErr: "key_file is required",
		},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: "invalid logging level"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "invalid logging format"},
		{
			name:    "metrics port clash",
			mutate:  func(c *Config) { c.Telemetry.Metrics.PrometheusPort = 8080 },
			wantErr: "must differ from server.port",
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *Config) { c.Telemetry.Metrics.PrometheusPort = 0 },
			wantErr: "invalid prometheus port",
		},
		{
			name: "metrics disabled ignores port",
			mutate: func(c *Config) {
				c.Telemetry.Metrics = MetricsConfig{Enabled: false}
			},
		},
		{
			name:    "negative expiry interval",
			mutate:  func(c *Config) { c.Jobs.APIKeyExpiryInterval = -time.Second },
			wantErr: "api_key_expiry_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRedisEnabled(t *testing.T) {
	if (&RedisConfig{}).Enabled() {
		t.Error("empty RedisConfig should not be enabled")
	}
	if !(&RedisConfig{Address: "localhost:6379"}).Enabled() {
		t.Error("RedisConfig with address should be enabled")
	}
	if !(&RedisConfig{URL: "redis://localhost:6379"}).Enabled() {
		t.Error("RedisConfig with URL should be enabled")
	}
}

// ---------------------------------------------------------------------------
// expandEnv
// ---------------------------------------------------------------------------

func TestExpandEnv(t *testing.T) {
	t.Run("expands ${VAR} syntax", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_SECRET", "super-secret")
		if got := expandEnv("${CONFIG_TEST_SECRET}"); got != "super-secret" {
			t.Errorf("expandEnv() = %q, want %q", got, "super-secret")
		}
	})

	t.Run("plain string passthrough", func(t *testing.T) {
		if got := expandEnv("no-vars-here"); got != "no-vars-here" {
			t.Errorf("expandEnv() = %q, want %q", got, "no-vars-here")
		}
	})

	t.Run("unset variable expands to empty string", func(t *testing.T) {
		os.Unsetenv("CONFIG_TEST_DEFINITELY_UNSET_12345")
		if got := expandEnv("${CONFIG_TEST_DEFINITELY_UNSET_12345}"); got != "" {
			t.Errorf("expandEnv() = %q, want empty string", got)
		}
	})
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
database:
  host: "dbhost"
  name: "testdb"
  user: "testuser"
logging:
  level: "debug"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" {
		t.Errorf("Server.Host = %q, want testhost", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.Host != "dbhost" {
		t.Errorf("Database.Host = %q, want dbhost", cfg.Database.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	const content = `
database:
  driver: "memory"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes != 10<<20 {
		t.Errorf("Server.MaxBodyBytes = %d, want %d", cfg.Server.MaxBodyBytes, 10<<20)
	}
	if cfg.Sequence.Backend != SequenceMemory {
		t.Errorf("Sequence.Backend = %q, want it to follow the memory driver", cfg.Sequence.Backend)
	}
	if cfg.Security.RateLimiting.RequestsPerMinute != 200 || cfg.Security.RateLimiting.Burst != 50 {
		t.Errorf("rate limiting = %+v, want 200/50", cfg.Security.RateLimiting)
	}
	if cfg.Jobs.APIKeyExpiryInterval != time.Hour {
		t.Errorf("Jobs.APIKeyExpiryInterval = %v, want 1h", cfg.Jobs.APIKeyExpiryInterval)
	}
	if len(cfg.Security.CORS.AllowedOrigins) != 1 || cfg.Security.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("CORS.AllowedOrigins = %v, want [*]", cfg.Security.CORS.AllowedOrigins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRS_SERVER_PORT", "7070")
	t.Setenv("CRS_DATABASE_DRIVER", "memory")
	t.Setenv("CRS_LOGGING_FORMAT", "text")

	cfg, err := Load(writeTempConfig(t, "server:\n  port: 9999\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("Database.Driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASS", "mysecret")
	const content = `
database:
  host: "localhost"
  name: "db"
  user: "u"
  password: "${TEST_DB_PASS}"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	_, err := Load(writeTempConfig(t, "logging:\n  level: loud\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() error = %v, want invalid configuration", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTempConfig(t, "server: [unclosed\n"))
	if err == nil {
		t.Error("Load() with malformed YAML should fail")
	}
}
