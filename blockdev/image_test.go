package blockdev

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestImage(t *testing.T, sectors int, flag int) (*Image, []byte) {
	t.Helper()

	content := make([]byte, sectors*SectorSize)
	fillPattern(content)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "disk.img", content, 0644))

	f, err := fs.OpenFile("disk.img", flag, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	img, err := NewImage(f)
	require.NoError(t, err)
	return img, content
}

func TestImage_Identify(t *testing.T) {
	img, _ := newTestImage(t, 2048, os.O_RDONLY)

	g, err := img.Identify()
	require.NoError(t, err)
	require.Equal(t, Geometry{
		Cylinders:       2,
		Heads:           16,
		SectorsPerTrack: 63,
		TotalSectors:    2048,
		NativeLBA:       true,
		Model:           "disk.img",
	}, g)
}

func TestImage_ReadSectors(t *testing.T) {
	img, content := newTestImage(t, 16, os.O_RDONLY)

	tests := []struct {
		name    string
		lba     uint32
		count   uint16
		bufSize int
		wantErr error
	}{
		{name: "first sector", lba: 0, count: 1, bufSize: SectorSize},
		{name: "last sectors", lba: 14, count: 2, bufSize: 2 * SectorSize},
		{name: "larger buffer", lba: 3, count: 1, bufSize: 3 * SectorSize},
		{name: "beyond the end", lba: 15, count: 2, bufSize: 2 * SectorSize, wantErr: ErrAddressRange},
		{name: "buffer too small", lba: 0, count: 2, bufSize: SectorSize, wantErr: ErrShortBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]byte, tt.bufSize)
			err := img.ReadSectors(tt.lba, tt.count, out)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			start := int(tt.lba) * SectorSize
			size := int(tt.count) * SectorSize
			require.True(t, bytes.Equal(content[start:start+size], out[:size]))
		})
	}
}

func TestImage_WriteSectors(t *testing.T) {
	img, _ := newTestImage(t, 8, os.O_RDWR)

	in := bytes.Repeat([]byte{0xAB}, SectorSize)
	require.NoError(t, img.WriteSectors(5, 1, in))

	out := make([]byte, SectorSize)
	require.NoError(t, img.ReadSectors(5, 1, out))
	require.Equal(t, in, out)
}

func TestImageReaderAt_ReadOnly(t *testing.T) {
	content := make([]byte, 4*SectorSize+100)
	img := NewImageReaderAt(bytes.NewReader(content), int64(len(content)))

	g, err := img.Identify()
	require.NoError(t, err)
	require.EqualValues(t, 4, g.TotalSectors)

	err = img.WriteSectors(0, 1, make([]byte, SectorSize))
	require.ErrorIs(t, err, ErrReadOnly)
}
