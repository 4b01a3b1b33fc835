package proxy

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/facet/internal/geo"
)

type memRepo struct {
	items map[string]Binding
}

func newMemRepo() *memRepo { return &memRepo{items: map[string]Binding{}} }

func (m *memRepo) Get(name string) (Binding, error) {
	b, ok := m.items[name]
	if !ok {
		return Binding{}, ErrNotFound
	}
	return b, nil
}

func (m *memRepo) List() ([]Binding, error) {
	var out []Binding
	for _, k := range slices.Sorted(maps.Keys(m.items)) {
		out = append(out, m.items[k])
	}
	return out, nil
}

func (m *memRepo) Put(b Binding) error {
	m.items[b.Name] = b
	return nil
}

func (m *memRepo) Rename(oldName string, b Binding) error {
	if _, ok := m.items[oldName]; !ok {
		return ErrNotFound
	}
	delete(m.items, oldName)
	m.items[b.Name] = b
	return nil
}

func (m *memRepo) Delete(name string) error {
	if _, ok := m.items[name]; !ok {
		return ErrNotFound
	}
	delete(m.items, name)
	return nil
}

// fakeHosts resolves only IP literals, like a resolver with no DNS answer.
type fakeHosts struct{}

func (fakeHosts) ProxyIP(_ context.Context, server string) (string, error) {
	host := geo.HostOf(server)
	if strings.Count(host, ".") == 3 && !strings.ContainsAny(host, "abcdefghijklmnopqrstuvwxyz") {
		return host, nil
	}
	return "", geo.ErrResolutionFailed
}

type fakeGeo map[string]*geo.Info

func (f fakeGeo) Resolve(_ context.Context, ip string) (*geo.Info, error) {
	if info, ok := f[ip]; ok {
		return info, nil
	}
	return nil, geo.ErrResolutionFailed
}

var (
	hanoi  = &geo.Info{TimezoneID: "Asia/Ho_Chi_Minh", Latitude: 21.02, Longitude: 105.84, HasLocation: true, CountryCode: "VN", Locale: "vi-VN"}
	paris  = &geo.Info{TimezoneID: "Europe/Paris", Latitude: 48.85, Longitude: 2.35, HasLocation: true, CountryCode: "FR", Locale: "fr-FR"}
	berlin = &geo.Info{TimezoneID: "Europe/Berlin", CountryCode: "DE", Locale: "de-DE"}
)

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, fakeHosts{}, fakeGeo{"1.1.1.1": hanoi, "2.2.2.2": paris, "3.3.3.3": berlin}), repo
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"1.2.3.4:8080":          "http://1.2.3.4:8080",
		" 1.2.3.4:8080 ":        "http://1.2.3.4:8080",
		"https://1.2.3.4:443":   "https://1.2.3.4:443",
		"socks5://1.2.3.4:1080": "socks5://1.2.3.4:1080",
		"socks4://1.2.3.4:1080": "socks4://1.2.3.4:1080",
		"":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestCheck(t *testing.T) {
	valid := []string{"http://1.2.3.4:8080", "https://proxy.io:443", "socks5://u:p@1.2.3.4:1080", "HTTP://1.2.3.4:80"}
	for _, s := range valid {
		assert.NoError(t, Check(s), s)
	}

	invalid := []string{"socks4://1.2.3.4:1080", "ftp://1.2.3.4:21", "http://:8080", "http://1.2.3.4", "http://1.2.3.4:99999", "%zz"}
	for _, s := range invalid {
		assert.ErrorIs(t, Check(s), ErrFormatInvalid, s)
	}
}

func TestParseShorthand(t *testing.T) {
	server, user, pass, err := ParseShorthand("1.2.3.4:8080")
	require.NoError(t, err)
	assert.Equal(t, "http://1.2.3.4:8080", server)
	assert.Empty(t, user)
	assert.Empty(t, pass)

	server, user, pass, err = ParseShorthand("1.2.3.4:8080:alice:s3cret")
	require.NoError(t, err)
	assert.Equal(t, "http://1.2.3.4:8080", server)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "s3cret", pass)

	for _, bad := range []string{"1.2.3.4", "1.2.3.4:8080:alice", ":8080", "1.2.3.4:port", "a:1:b:c:d"} {
		_, _, _, err := ParseShorthand(bad)
		assert.ErrorIs(t, err, ErrFormatInvalid, bad)
	}
}

func TestAddResolvesGeo(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	b, err := svc.Add(ctx, Binding{Name: "vn", Server: "1.1.1.1:3128", Username: "u", Password: "p"})
	require.NoError(t, err)

	assert.Equal(t, "http://1.1.1.1:3128", b.Server)
	assert.Equal(t, "Asia/Ho_Chi_Minh", b.TimezoneID)
	require.NotNil(t, b.Latitude)
	assert.InDelta(t, 21.02, *b.Latitude, 1e-9)
	assert.Equal(t, "vi-VN", b.Locale)
	assert.Equal(t, b, repo.items["vn"])
	assert.True(t, b.HasCredentials())
	assert.Equal(t, hanoi, b.Geo())
}

func TestAddWithoutGeo(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Add(context.Background(), Binding{Name: "unknown", Server: "9.9.9.9:80"})
	require.NoError(t, err)
	assert.Nil(t, b.Geo())
	assert.Nil(t, b.Latitude)
}

func TestAddWithoutLocation(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Add(context.Background(), Binding{Name: "de", Server: "3.3.3.3:80"})
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", b.TimezoneID)
	assert.Nil(t, b.Latitude)
	assert.Nil(t, b.Longitude)
	assert.Equal(t, berlin, b.Geo())
}

func TestAddRejectsDuplicatesAndEmpty(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Add(ctx, Binding{Name: "a", Server: "1.1.1.1:80"})
	require.NoError(t, err)

	_, err = svc.Add(ctx, Binding{Name: "a", Server: "2.2.2.2:80"})
	assert.ErrorIs(t, err, ErrExists)

	_, err = svc.Add(ctx, Binding{Name: "  ", Server: "2.2.2.2:80"})
	assert.Error(t, err)

	_, err = svc.Add(ctx, Binding{Name: "b"})
	assert.Error(t, err)
}

func TestAddKeepsUnsupportedScheme(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Add(context.Background(), Binding{Name: "s4", Server: "socks4://1.1.1.1:1080"})
	require.NoError(t, err)
	assert.ErrorIs(t, Check(b.Server), ErrFormatInvalid)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	str := func(s string) *string { return &s }

	t.Run("server change re-resolves geo", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Add(ctx, Binding{Name: "p", Server: "1.1.1.1:80"})
		require.NoError(t, err)

		b, err := svc.Update(ctx, "p", Update{Server: str("2.2.2.2:80")})
		require.NoError(t, err)
		assert.Equal(t, "Europe/Paris", b.TimezoneID)
		assert.Equal(t, "fr-FR", b.Locale)
	})

	t.Run("server without ip clears geo", func(t *testing.T) {
		svc, repo := newTestService()
		_, err := svc.Add(ctx, Binding{Name: "p", Server: "1.1.1.1:80"})
		require.NoError(t, err)

		b, err := svc.Update(ctx, "p", Update{Server: str("proxy.example.com:80")})
		require.NoError(t, err)
		assert.Nil(t, b.Geo())
		assert.Empty(t, repo.items["p"].TimezoneID)
		assert.Nil(t, repo.items["p"].Latitude)
	})

	t.Run("same server keeps geo", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Add(ctx, Binding{Name: "p", Server: "1.1.1.1:80"})
		require.NoError(t, err)

		b, err := svc.Update(ctx, "p", Update{Server: str("http://1.1.1.1:80"), Password: str("new")})
		require.NoError(t, err)
		assert.Equal(t, "Asia/Ho_Chi_Minh", b.TimezoneID)
		assert.Equal(t, "new", b.Password)
	})

	t.Run("rename", func(t *testing.T) {
		svc, repo := newTestService()
		_, err := svc.Add(ctx, Binding{Name: "p", Server: "1.1.1.1:80"})
		require.NoError(t, err)
		_, err = svc.Add(ctx, Binding{Name: "q", Server: "2.2.2.2:80"})
		require.NoError(t, err)

		_, err = svc.Update(ctx, "p", Update{Name: str("q")})
		assert.ErrorIs(t, err, ErrExists)

		b, err := svc.Update(ctx, "p", Update{Name: str("r")})
		require.NoError(t, err)
		assert.Equal(t, "r", b.Name)
		assert.NotContains(t, repo.items, "p")
		assert.Contains(t, repo.items, "r")
	})

	t.Run("missing", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Update(ctx, "nope", Update{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Add(ctx, Binding{Name: "p", Server: "1.1.1.1:80"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "p"))

	_, err = svc.Get("p")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, svc.Delete(ctx, "p"), ErrNotFound)
}
