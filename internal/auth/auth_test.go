package auth

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticToken(t *testing.T) {
	token, err := StaticToken("abc").AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = StaticToken("").AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFileToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")

	t.Run("reads and trims", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("  tok-1\n"), 0600))
		token, err := FileToken{Path: path}.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	})

	t.Run("picks up rotation", func(t *testing.T) {
		src := FileToken{Path: path}
		require.NoError(t, os.WriteFile(path, []byte("first"), 0600))
		first, err := src.AccessToken(context.Background())
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("second"), 0600))
		second, err := src.AccessToken(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "first", first)
		assert.Equal(t, "second", second)
	})

	t.Run("empty file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("\n"), 0600))
		_, err := FileToken{Path: path}.AccessToken(context.Background())
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := FileToken{Path: filepath.Join(dir, "nope")}.AccessToken(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := FileToken{}.AccessToken(context.Background())
		assert.Error(t, err)
	})
}

func TestEnvToken(t *testing.T) {
	t.Setenv("LIMOO_TEST_TOKEN", "env-tok")
	token, err := EnvToken("LIMOO_TEST_TOKEN").AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-tok", token)

	_, err = EnvToken("LIMOO_TEST_TOKEN_UNSET").AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestCookieHeader(t *testing.T) {
	assert.Equal(t, "ACCESSTOKEN=xyz", CookieHeader("xyz"))
}

func TestSetCookie(t *testing.T) {
	header := http.Header{}
	require.NoError(t, SetCookie(context.Background(), StaticToken("xyz"), header))
	assert.Equal(t, "ACCESSTOKEN=xyz", header.Get("Cookie"))

	err := SetCookie(context.Background(), StaticToken(""), http.Header{})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenSourceFunc(t *testing.T) {
	calls := 0
	src := TokenSourceFunc(func(context.Context) (string, error) {
		calls++
		return "fn", nil
	})
	token, err := src.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fn", token)
	assert.Equal(t, 1, calls)
}
