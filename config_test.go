package joinql_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/joinql"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "joinql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := joinql.LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, joinql.DefaultDialect, cfg.Dialect)
	assert.Equal(t, joinql.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, joinql.DefaultSlowBuildThreshold, cfg.SlowBuildThreshold)

	d, err := cfg.ResolveDialect()
	require.NoError(t, err)
	assert.Equal(t, joinql.JPA, d)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
dialect: eclipselink
model: model.yaml
log_level: debug
slow_build_threshold: 5ms
`)

	cfg, err := joinql.LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "eclipselink", cfg.Dialect)
	assert.Equal(t, "model.yaml", cfg.Model)
	assert.Equal(t, 5*time.Millisecond, cfg.SlowBuildThreshold)

	t.Setenv("JOINQL_DIALECT", "hibernate")
	cfg, err = joinql.LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "hibernate", cfg.Dialect)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dialect", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--dialect", "datanucleus", "--log-level", "warn"}))

	cfg, err = joinql.LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "datanucleus", cfg.Dialect)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigUnsetFlagsKeepLowerLayers(t *testing.T) {
	path := writeConfig(t, "dialect: eclipselink\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dialect", "jpa", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := joinql.LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "eclipselink", cfg.Dialect)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := joinql.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "missing.yaml")
}

func TestConfigDialectOverrides(t *testing.T) {
	path := writeConfig(t, `
dialect: jpa
placeholder: question
treat_filter: where
capabilities:
  entity_join: true
`)
	t.Setenv("JOINQL_CAPABILITIES__SINGLE_VALUED_ASSOCIATION_ID", "true")

	cfg, err := joinql.LoadConfig(path, nil)
	require.NoError(t, err)
	d, err := cfg.ResolveDialect()
	require.NoError(t, err)

	assert.Equal(t, "jpa", d.Name())
	assert.Equal(t, sq.Question, d.PlaceholderFormat())
	caps := d.Capabilities()
	assert.True(t, caps.EntityJoin)
	assert.True(t, caps.SingleValuedAssociationIDExpressions)
	assert.True(t, caps.TreatJoin, "preset capabilities are kept")
	assert.Equal(t, joinql.TreatFilterWhere, caps.TreatFilter)
}

func TestConfigDialectErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown dialect", "dialect: toplink\n"},
		{"unknown placeholder", "placeholder: percent\n"},
		{"unknown treat filter", "treat_filter: having\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := joinql.LoadConfig(writeConfig(t, tt.content), nil)
			require.NoError(t, err)
			_, err = cfg.ResolveDialect()
			assert.Error(t, err)
		})
	}
}

func TestConfigLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := &joinql.Config{LogLevel: "off"}
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)
	assert.Nil(t, logger)

	cfg = &joinql.Config{LogLevel: "debug", LogFormat: "json"}
	logger, err = cfg.Logger(&buf)
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	cfg = &joinql.Config{LogLevel: "loud"}
	_, err = cfg.Logger(&buf)
	assert.ErrorContains(t, err, "invalid log level")

	cfg = &joinql.Config{LogLevel: "info", LogFormat: "xml"}
	_, err = cfg.Logger(&buf)
	assert.ErrorContains(t, err, "unknown log format")
}

func TestConfigBuilderOptions(t *testing.T) {
	var buf bytes.Buffer
	cfg := &joinql.Config{LogLevel: "debug", LogBuilds: true, SlowBuildThreshold: time.Hour}

	opts, err := cfg.BuilderOptions(&buf)
	require.NoError(t, err)
	cb := newBuilder(joinql.JPA, opts...).From("Document", "d")
	mustBuild(t, cb)
	assert.Contains(t, buf.String(), "query built")
	assert.NotContains(t, buf.String(), "slow build")

	for _, bad := range []*joinql.Config{
		{LogLevel: "loud"},
		{LogLevel: "info", LogFormat: "xml"},
	} {
		_, err := bad.BuilderOptions(&buf)
		assert.Error(t, err)
	}
}
