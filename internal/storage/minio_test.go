package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanEndpoint(t *testing.T) {
	cases := map[string]struct {
		in      string
		want    string
		wantErr bool
	}{
		"host and port":        {in: "minio.local:9000", want: "minio.local:9000"},
		"http url":             {in: "http://minio.local:9000", want: "minio.local:9000"},
		"https url":            {in: "https://minio.local:9000", want: "minio.local:9000"},
		"trailing slash":       {in: "https://minio.local:9000/", want: "minio.local:9000"},
		"empty":                {in: "", wantErr: true},
		"path without scheme":  {in: "minio.local:9000/data", wantErr: true},
		"url with path":        {in: "https://minio.local:9000/data", wantErr: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := cleanEndpoint(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
