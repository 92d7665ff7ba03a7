package scanexec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recontor/recontor/pkg/storage"
)

func TestBuildArgs(t *testing.T) {
	base := Params{
		ScanID:    "scan-1",
		Domain:    "example.com",
		OutputDir: "/tmp/out",
	}

	tests := []struct {
		name       string
		mode       storage.ScanMode
		targetList string
		want       []string
		wantErr    bool
	}{
		{
			name: "passive",
			mode: storage.ModePassive,
			want: []string{"-o", "/tmp/out", "-d", "example.com", "--passive"},
		},
		{
			name: "subdomain",
			mode: storage.ModeSubdomain,
			want: []string{"-o", "/tmp/out", "-d", "example.com", "--subdomains"},
		},
		{
			name:       "web",
			mode:       storage.ModeWeb,
			targetList: "/tmp/out/targets.txt",
			want:       []string{"-o", "/tmp/out", "-l", "/tmp/out/targets.txt", "--web"},
		},
		{
			name:    "web without target list",
			mode:    storage.ModeWeb,
			wantErr: true,
		},
		{
			name: "full",
			mode: storage.ModeFull,
			want: []string{"-o", "/tmp/out", "-d", "example.com", "--all"},
		},
		{
			name: "all is an alias for full",
			mode: storage.ModeAll,
			want: []string{"-o", "/tmp/out", "-d", "example.com", "--all"},
		},
		{
			name:    "unknown mode",
			mode:    storage.ScanMode("bogus"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			p.Mode = tt.mode

			args, err := BuildArgs(p, tt.targetList)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, args)
		})
	}
}

func TestWriteTargetList(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteTargetList(dir, "example.com")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "targets.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "example.com\n", string(data))
}
