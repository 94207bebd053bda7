package main

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/aligator/fatvol"
	"github.com/spf13/afero"
)

func TestRun(t *testing.T) {
	host := afero.NewMemMapFs()
	if err := afero.WriteFile(host, "blank.img", make([]byte, 64*512), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		image   string
		wantErr error
	}{
		{name: "missing image", image: "missing.img", wantErr: os.ErrNotExist},
		{name: "no partition table", image: "blank.img", wantErr: fatvol.ErrNoPartition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(host, tt.image, &out); !errors.Is(err, tt.wantErr) {
				t.Errorf("run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
