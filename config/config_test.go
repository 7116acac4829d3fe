// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/keel/config/key"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	Environment string `config:"environment"`
	HTTP        struct {
		Port            uint          `config:"port"`
		ShutdownTimeout time.Duration `config:"shutdown_timeout"`
	} `config:"http"`
	Logging struct {
		Level slog.Level `config:"level"`
	} `config:"logging"`
	Baseline struct {
		SuppressPrefixes []string `config:"suppress_request_log_path_prefixes"`
		IncludeTraceID   bool     `config:"include_trace_id"`
	} `config:"baseline"`
}

type errReader struct {
	err error
}

func (r errReader) Read(_ []byte) (int, error) {
	return 0, r.err
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestRead(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a source fails to apply", func(t *testing.T) {
			srcErr := errors.New("failed to apply")

			_, err := Read(SourceFunc(func(Store) error { return srcErr }))
			if !assert.ErrorIs(t, err, srcErr) {
				return
			}
		})

		t.Run("if the yaml is invalid", func(t *testing.T) {
			_, err := Read(FromYaml(strings.NewReader("http: [")))

			var ierr InvalidYamlError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.NotEmpty(t, ierr.Error()) {
				return
			}
		})

		t.Run("if the yaml reader fails", func(t *testing.T) {
			readErr := errors.New("read failed")

			_, err := Read(FromYaml(errReader{err: readErr}))
			if !assert.ErrorIs(t, err, readErr) {
				return
			}
		})

		t.Run("if a nested key is set below a scalar", func(t *testing.T) {
			_, err := Read(
				Map{"http": "not a map"},
				Map{"http": map[string]any{"port": 80}},
			)

			var ierr UnexpectedKeyValueTypeError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Equal(t, "http", ierr.Key) {
				return
			}
		})
	})

	t.Run("will close the yaml reader", func(t *testing.T) {
		t.Run("if it implements io.Closer", func(t *testing.T) {
			r := &trackingCloser{Reader: strings.NewReader("environment: dev")}

			_, err := Read(FromYaml(r))
			if !assert.Nil(t, err) {
				return
			}
			if !assert.True(t, r.closed) {
				return
			}
		})
	})
}

func TestManager_Unmarshal(t *testing.T) {
	t.Run("will let later sources override earlier ones", func(t *testing.T) {
		yamlSrc := FromYaml(strings.NewReader(`
environment: production
http:
  port: 8080
  shutdown_timeout: 15s
`))
		env := Env{
			prefix: "KEEL_",
			environ: func() []string {
				return []string{
					"KEEL_HTTP__PORT=9090",
					"KEEL_ENVIRONMENT=development",
					"OTHER_HTTP__PORT=1",
					"KEEL_=ignored",
				}
			},
		}

		m, err := Read(yamlSrc, env)
		if !assert.Nil(t, err) {
			return
		}

		var cfg testConfig
		err = m.Unmarshal(&cfg)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "development", cfg.Environment) {
			return
		}
		if !assert.Equal(t, uint(9090), cfg.HTTP.Port) {
			return
		}
		if !assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout) {
			return
		}
	})

	t.Run("will coerce string values", func(t *testing.T) {
		m, err := Read(Map{
			"LOGGING": map[string]any{
				"Level": "WARN",
			},
			"baseline": map[string]any{
				"suppress_request_log_path_prefixes": "/health, /metrics",
				"include_trace_id":                   "false",
			},
		})
		if !assert.Nil(t, err) {
			return
		}

		var cfg testConfig
		cfg.Baseline.IncludeTraceID = true
		err = m.Unmarshal(&cfg)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, slog.LevelWarn, cfg.Logging.Level) {
			return
		}
		if !assert.Equal(t, []string{"/health", "/metrics"}, cfg.Baseline.SuppressPrefixes) {
			return
		}
		if !assert.False(t, cfg.Baseline.IncludeTraceID) {
			return
		}
	})

	t.Run("will keep defaults for unset keys", func(t *testing.T) {
		m, err := Read()
		if !assert.Nil(t, err) {
			return
		}

		cfg := testConfig{Environment: "production"}
		err = m.Unmarshal(&cfg)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "production", cfg.Environment) {
			return
		}
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a duration can not be parsed", func(t *testing.T) {
			m, err := Read(Map{"http": map[string]any{"shutdown_timeout": "soon"}})
			if !assert.Nil(t, err) {
				return
			}

			var cfg testConfig
			err = m.Unmarshal(&cfg)
			if !assert.ErrorContains(t, err, "invalid duration") {
				return
			}
		})
	})

	t.Run("will read values from viper", func(t *testing.T) {
		v := viper.New()
		v.Set("http.port", 7070)
		v.Set("environment", "local")

		m, err := Read(FromViper(v))
		if !assert.Nil(t, err) {
			return
		}

		var cfg testConfig
		err = m.Unmarshal(&cfg)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, uint(7070), cfg.HTTP.Port) {
			return
		}
		if !assert.Equal(t, "local", cfg.Environment) {
			return
		}
	})
}

func TestInMemoryStore_Set(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if an unknown key.Keyer is used", func(t *testing.T) {
			store := make(inMemoryStore)
			err := store.Set(myKeyer("hello"), "world")

			var ierr UnknownKeyerError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.NotEmpty(t, ierr.Error()) {
				return
			}
		})

		t.Run("if an empty key.Chain is used", func(t *testing.T) {
			store := make(inMemoryStore)
			err := store.Set(key.Chain{}, "world")

			var ierr EmptyKeyChainError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.NotEmpty(t, ierr.Error()) {
				return
			}
		})
	})

	t.Run("will fold keys to lower case", func(t *testing.T) {
		store := make(inMemoryStore)
		err := store.Set(key.Chain{key.Name("HTTP"), key.Name("Port")}, 80)
		if !assert.Nil(t, err) {
			return
		}

		sub, ok := store["http"].(map[string]any)
		if !assert.True(t, ok) {
			return
		}
		if !assert.Equal(t, 80, sub["port"]) {
			return
		}
	})
}

type myKeyer string

func (myKeyer) Key() string {
	return "my key"
}
