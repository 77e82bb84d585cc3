package proxy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igreels/pkg/logger"
	"igreels/pkg/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    models.ProxyConfig
		wantErr bool
	}{
		{name: "full", raw: "http://10.0.0.1:8080", want: models.ProxyConfig{Scheme: "http", Host: "10.0.0.1", Port: 8080}},
		{name: "bare host port", raw: " proxy.local:3128 ", want: models.ProxyConfig{Scheme: "http", Host: "proxy.local", Port: 3128}},
		{name: "socks default port", raw: "SOCKS5://proxy.local", want: models.ProxyConfig{Scheme: "socks5", Host: "proxy.local", Port: 1080}},
		{name: "credentials dropped", raw: "http://user:pw@10.0.0.1:8080", want: models.ProxyConfig{Scheme: "http", Host: "10.0.0.1", Port: 8080, AuthUnsupported: true}},
		{name: "empty", raw: "", wantErr: true},
		{name: "bad scheme", raw: "ftp://x:1", wantErr: true},
		{name: "bad port", raw: "http://x:99999", wantErr: true},
		{name: "no host", raw: "http://:8080", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "http://redacted@h:1", Redact("http://u:p@h:1"))
	assert.Equal(t, "http://h:1", Redact("http://h:1"))
}

func TestRotatorRoundRobin(t *testing.T) {
	a := models.ProxyConfig{Scheme: "http", Host: "a", Port: 1}
	b := models.ProxyConfig{Scheme: "http", Host: "b", Port: 2}
	r := NewRotator([]models.ProxyConfig{a, b})

	var got []string
	for i := 0; i < 3; i++ {
		p, ok := r.Next()
		require.True(t, ok)
		got = append(got, p.Host)
	}
	assert.Equal(t, []string{"a", "b", "a"}, got)

	r.MarkFailed(b)
	assert.Equal(t, 1, r.Healthy())
	for i := 0; i < 3; i++ {
		p, ok := r.Next()
		require.True(t, ok)
		assert.Equal(t, "a", p.Host)
	}

	r.MarkFailed(a)
	_, ok := r.Next()
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "# office\nhttp://a:1\n\nnot a proxy://\nhttp://a:1\nsocks5://u:p@b:1080\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	log := logger.NewTestLogger()
	r, err := LoadFile(path, log)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Len(t, log.GetMessagesByLevel("WARN"), 2)

	first, _ := r.Next()
	second, _ := r.Next()
	assert.Equal(t, "a", first.Host)
	assert.True(t, second.AuthUnsupported)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("# nothing\n"), 0644))
	_, err = LoadFile(path, nil)
	assert.Error(t, err)
}
