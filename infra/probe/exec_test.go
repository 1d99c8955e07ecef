package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecProbe_Stdout(t *testing.T) {
	p := New(Config{Command: "echo 512"}, nil)
	out, err := p.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "512\n", out)
}

func TestExecProbe_Dir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adc.txt"), []byte("377"), 0o644))
	p := New(Config{Command: "cat adc.txt", Dir: dir}, nil)
	out, err := p.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "377", out)
}

func TestExecProbe_NonZeroExit(t *testing.T) {
	p := New(Config{Command: "echo partial; exit 3"}, nil)
	_, err := p.Measure(context.Background())
	assert.ErrorContains(t, err, "exit status 3")
}

func TestExecProbe_Stderr(t *testing.T) {
	p := New(Config{Command: "echo 400; echo 'i2c timeout' >&2"}, nil)
	_, err := p.Measure(context.Background())
	assert.ErrorIs(t, err, ErrStderr)
	assert.ErrorContains(t, err, "i2c timeout")
}

func TestExecProbe_Timeout(t *testing.T) {
	p := New(Config{Command: "sleep 5", TimeoutSeconds: 1}, nil)
	_, err := p.Measure(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "python adc.py", c.Command)
	require.NoError(t, c.Validate())
	assert.Error(t, Config{Command: "  "}.Validate())
}
