package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settings = `
name = "svc"

[server]
port = 8080
timeout = "1500ms"
price = "19.990"

[server.tls]
enabled = true
`

func writeSettings(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(settings), 0o644))
	return path
}

func TestRunValue(t *testing.T) {
	path := writeSettings(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-f", path, "name"}, "svc"},
		{[]string{"-f", path, "server.port", "-t", "int"}, "8080"},
		{[]string{"-f", path, "server.timeout", "-t", "duration"}, "1.5s"},
		{[]string{"-f", path, "server.price", "--type", "decimal"}, "19.99"},
		{[]string{"-f", path, "server.tls.enabled", "-t", "bool"}, "true"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args[2:], " "), func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			require.Equal(t, 0, code, stderr.String())
			assert.Equal(t, tt.want+"\n", stdout.String())
		})
	}
}

func TestRunGroup(t *testing.T) {
	path := writeSettings(t)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"-f", path, "server"}, &stdout, &stderr), stderr.String())
	assert.Equal(t, "port\nprice\ntimeout\ntls\n", stdout.String())

	stdout.Reset()
	require.Equal(t, 0, run([]string{"-f", path, "--json", "server"}, &stdout, &stderr), stderr.String())
	var tree map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &tree))
	assert.Equal(t, map[string]any{"enabled": "true"}, tree["tls"])

	stdout.Reset()
	require.Equal(t, 0, run([]string{"-f", path}, &stdout, &stderr), stderr.String())
	assert.Equal(t, "name\nserver\n", stdout.String())
}

func TestRunEnvironment(t *testing.T) {
	t.Setenv("NESTCONF_CLI_Server__Port", "9090")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-e", "NESTCONF_CLI_", "-s", "/", "Server/Port", "-t", "uint"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "9090\n", stdout.String())
}

func TestRunFailures(t *testing.T) {
	path := writeSettings(t)

	tests := []struct {
		name string
		args []string
		code int
		log  string
	}{
		{"missing", []string{"-f", path, "server.host"}, 1, "setting not found"},
		{"malformed", []string{"-f", path, "name", "-t", "int"}, 1, "conversion failed"},
		{"unknown type", []string{"-f", path, "name", "-t", "color"}, 2, "unknown type"},
		{"bad flag", []string{"--nope"}, 2, "unknown flag: --nope"},
		{"missing flag value", []string{"-t"}, 2, "invalid arguments"},
		{"both sources", []string{"-f", path, "-e", "X_"}, 1, "mutually exclusive"},
		{"missing file", []string{"-f", filepath.Join(t.TempDir(), "none.toml")}, 1, "failed to load settings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.code, run(tt.args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
			assert.Contains(t, stderr.String(), tt.log)
		})
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--env-prefix")
	assert.NotContains(t, stderr.String(), "invalid arguments")
}

func TestRunVerbose(t *testing.T) {
	path := writeSettings(t)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"-v", "-f", path, "server"}, &stdout, &stderr))
	assert.Equal(t, "port\nprice\ntimeout\ntls\n", stdout.String())
	assert.Contains(t, stderr.String(), "settings loaded")
	assert.Contains(t, stderr.String(), "derived settings group")
	assert.Contains(t, stderr.String(), "prefix=server")

	stdout.Reset()
	stderr.Reset()
	require.Equal(t, 0, run([]string{"-f", path, "server"}, &stdout, &stderr))
	assert.Empty(t, stderr.String())
}
