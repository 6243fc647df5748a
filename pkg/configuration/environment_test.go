package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "FUNCTREE_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "functionality")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	_ = os.Unsetenv("FUNCTREE_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("FUNCTREE_TEST_ENV_LOAD"))
}

func TestLoadEnv_NoFiles(t *testing.T) {
	tmp := t.TempDir()
	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n")

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(tmp))

	n, err := LoadEnv([]string{".env.missing"})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestTreeOptions_Validate(t *testing.T) {
	cases := []struct {
		name    string
		in      TreeOptions
		want    TreeOptions
		wantErr bool
	}{
		{
			name: "defaults when empty",
			in:   TreeOptions{},
			want: TreeOptions{TxIsolation: "serializable", Cache: "disabled"},
		},
		{
			name: "normalizes case",
			in:   TreeOptions{TxIsolation: " Repeatable_Read ", Cache: "REDIS", CacheTTL: time.Minute},
			want: TreeOptions{TxIsolation: "repeatable_read", Cache: "redis", CacheTTL: time.Minute},
		},
		{name: "unknown isolation", in: TreeOptions{TxIsolation: "read_committed"}, wantErr: true},
		{name: "unknown cache", in: TreeOptions{Cache: "memcached"}, wantErr: true},
		{name: "negative ttl", in: TreeOptions{CacheTTL: -time.Second}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.in
			err := opts.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, opts)
		})
	}
}

func TestConfiguration_ValidateRLS(t *testing.T) {
	c := &Configuration{RLSEnforce: "ENFORCE", Database: DatabaseOptions{User: "app"}}
	require.NoError(t, c.validateRLS())
	require.Equal(t, "enforce", c.RLSEnforce)

	c = &Configuration{RLSEnforce: "enforce", Database: DatabaseOptions{User: "postgres"}}
	require.Error(t, c.validateRLS())

	c = &Configuration{RLSEnforce: "sometimes"}
	require.Error(t, c.validateRLS())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
