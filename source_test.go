package nestconf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlDoc = `
name = "svc"
debug = true

[server]
host = "0.0.0.0"
port = 8080
origins = ["https://a.example", "https://b.example"]

[server.tls]
enabled = false

[[backends]]
host = "b1"
weight = 3

[[backends]]
host = "b2"
weight = 1
`

const yamlDoc = `
name: svc
server:
  host: 0.0.0.0
  port: 8080
  origins:
    - https://a.example
    - https://b.example
  tls:
    enabled: false
backends:
  - host: b1
    weight: 3
  - host: b2
    weight: 1
`

const jsonDoc = `{
  "name": "svc",
  "server": {
    "host": "0.0.0.0",
    "port": 8080,
    "ratio": 1.50,
    "origins": ["https://a.example", "https://b.example"],
    "tls": {"enabled": false}
  },
  "backends": [
    {"host": "b1", "weight": 3},
    {"host": "b2", "weight": 1}
  ],
  "empty": null
}`

func TestFromTOML(t *testing.T) {
	got, err := FromTOML([]byte(tomlDoc), "")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"name":               "svc",
		"debug":              "true",
		"server.host":        "0.0.0.0",
		"server.port":        "8080",
		"server.origins":     "https://a.example,https://b.example",
		"server.tls.enabled": "false",
		"backends.0.host":    "b1",
		"backends.0.weight":  "3",
		"backends.1.host":    "b2",
		"backends.1.weight":  "1",
	}, got)

	_, err = FromTOML([]byte("name = "), "")
	assert.Error(t, err)
}

func TestFromYAML(t *testing.T) {
	got, err := FromYAML([]byte(yamlDoc), "/")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"name":               "svc",
		"server/host":        "0.0.0.0",
		"server/port":        "8080",
		"server/origins":     "https://a.example,https://b.example",
		"server/tls/enabled": "false",
		"backends/0/host":    "b1",
		"backends/0/weight":  "3",
		"backends/1/host":    "b2",
		"backends/1/weight":  "1",
	}, got)

	_, err = FromYAML([]byte("server: [unclosed"), "")
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	got, err := FromJSON([]byte(jsonDoc), "")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"name":               "svc",
		"server.host":        "0.0.0.0",
		"server.port":        "8080",
		"server.ratio":       "1.50",
		"server.origins":     "https://a.example,https://b.example",
		"server.tls.enabled": "false",
		"backends.0.host":    "b1",
		"backends.0.weight":  "3",
		"backends.1.host":    "b2",
		"backends.1.weight":  "1",
		"empty":              "",
	}, got)

	_, err = FromJSON([]byte(`{"a": `), "")
	assert.Error(t, err)
	_, err = FromJSON([]byte(`[1, 2]`), "")
	assert.Error(t, err)
}

func TestNestedArraysFlattenAlike(t *testing.T) {
	fromJSON, err := FromJSON([]byte(`{"m": [[1, 2], [3]], "n": [{"a": [4, 5]}, 6]}`), "")
	require.NoError(t, err)
	fromYAML, err := FromYAML([]byte("m: [[1, 2], [3]]\nn:\n  - a: [4, 5]\n  - 6\n"), "")
	require.NoError(t, err)

	want := map[string]string{
		"m.0":   "1,2",
		"m.1":   "3",
		"n.0.a": "4,5",
		"n.1":   "6",
	}
	assert.Equal(t, want, fromJSON)
	assert.Equal(t, want, fromYAML)
}

func TestFromEnviron(t *testing.T) {
	t.Setenv("NESTCONF_TEST_Server__Port", "8080")
	t.Setenv("NESTCONF_TEST_Name", "svc")
	t.Setenv("NESTCONF_TEST_", "ignored")
	t.Setenv("OTHER_Server__Port", "1")

	got := FromEnviron("NESTCONF_TEST_", "")
	assert.Equal(t, map[string]string{
		"Server.Port": "8080",
		"Name":        "svc",
	}, got)

	port, ok, err := Lookup[int](New(got), "Server.Port")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 8080, port)
}

func TestFromDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `# This is a comment
APP_NAME=myapp
Server__Port=3000
Server__TLS__Enabled=true
QUOTED="hello world"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := FromDotenv(path, "/")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"APP_NAME":           "myapp",
		"Server/Port":        "3000",
		"Server/TLS/Enabled": "true",
		"QUOTED":             "hello world",
	}, got)

	_, exists := os.LookupEnv("APP_NAME")
	assert.False(t, exists, "dotenv must not touch the process environment")

	_, err = FromDotenv(filepath.Join(dir, "missing.env"), "")
	assert.Error(t, err)
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader([]byte(yamlDoc))))
	v.Set("Extra.Key", "x")

	got := FromViper(v, "")
	assert.Equal(t, "0.0.0.0", got["server.host"])
	assert.Equal(t, "8080", got["server.port"])
	assert.Equal(t, "false", got["server.tls.enabled"])
	assert.Equal(t, "https://a.example,https://b.example", got["server.origins"])
	assert.Equal(t, "x", got["extra.key"], "viper lower-cases keys")

	slash := FromViper(v, "/")
	assert.Equal(t, "8080", slash["server/port"])
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"app.toml": tomlDoc,
		"app.yaml": yamlDoc,
		"app.yml":  yamlDoc,
		"app.json": jsonDoc,
		"app.env":  "server__port=8080\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	for name := range files {
		t.Run(name, func(t *testing.T) {
			got, err := FromFile(filepath.Join(dir, name), "")
			require.NoError(t, err)
			assert.Equal(t, "8080", got["server.port"])
		})
	}

	_, err := FromFile(filepath.Join(dir, "app.ini"), "")
	assert.Error(t, err)

	_, err = FromFile(filepath.Join(dir, "missing.toml"), "")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	_, err = FromFile(filepath.Join(dir, "bad.json"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestSourceToScope(t *testing.T) {
	entries, err := FromTOML([]byte(tomlDoc), "")
	require.NoError(t, err)

	type Backend struct {
		Host   string `key:"host"`
		Weight int    `key:"weight"`
	}
	type Config struct {
		Name   string `key:"name"`
		Server struct {
			Port    int      `key:"port"`
			Origins []string `key:"origins"`
			TLS     struct {
				Enabled bool `key:"enabled" default:"true"`
			} `key:"tls"`
		} `key:"server"`
	}

	root := New(entries)
	var cfg Config
	require.NoError(t, Bind(root, &cfg))
	assert.Equal(t, "svc", cfg.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.Origins)
	assert.False(t, cfg.Server.TLS.Enabled)

	backends, ok := root.Scope("backends")
	require.True(t, ok)
	assert.Equal(t, []string{"0", "1"}, backends.Keys())

	var first Backend
	b0, ok := backends.Scope("0")
	require.True(t, ok)
	require.NoError(t, Bind(b0, &first))
	assert.Equal(t, Backend{Host: "b1", Weight: 3}, first)
}
