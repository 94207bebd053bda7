package fatvol

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aligator/fatvol/checkpoint"
)

// ErrNotDir is returned if a path component is not a directory.
var ErrNotDir = errors.New("not a directory")

// Lookup resolves the slash separated path p relative to the root directory.
// Names are matched case-insensitively against the long and the short name.
// The root itself is returned as a directory entry without a name.
func (v *Volume) Lookup(p string) (Entry, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.lookupLocked(p)
}

func (v *Volume) lookupLocked(p string) (Entry, error) {
	current := Entry{
		Cluster: v.params.RootCluster,
		Attr:    AttrDirectory,
	}

	clean := strings.Trim(path.Clean("/"+p), "/")
	if clean == "" {
		return current, nil
	}

	dir := ""
	for _, name := range strings.Split(clean, "/") {
		if !current.IsDir() {
			return Entry{}, checkpoint.Errorf(ErrNotDir, "%q", strings.TrimSuffix(dir, pathSeparator))
		}

		entries, err := v.readDirLocked(current.Cluster)
		if err != nil {
			return Entry{}, err
		}

		found := false
		for _, e := range entries {
			if strings.EqualFold(e.Name, name) || strings.EqualFold(e.ShortName, name) {
				current = e
				current.Path = dir
				found = true
				break
			}
		}
		if !found {
			return Entry{}, checkpoint.Errorf(os.ErrNotExist, "%q not found in %q", name, "/"+dir)
		}
		dir += current.Name + pathSeparator
	}

	if current.IsDir() && current.Cluster == 0 {
		// ".." style references to the root.
		current.Cluster = v.params.RootCluster
	}
	return current, nil
}

// readFileAt reads up to readSize bytes at offset of the file starting at cluster with the given size.
// It returns io.EOF together with the data if the file ended before readSize bytes were read.
func (v *Volume) readFileAt(cluster ClusterNumber, fileSize int64, offset int64, readSize int64) ([]byte, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	if offset < 0 || readSize < 0 {
		return nil, checkpoint.Errorf(ErrReadCluster, "invalid offset %d or size %d", offset, readSize)
	}
	if offset >= fileSize {
		return nil, io.EOF
	}

	eof := false
	if offset+readSize > fileSize {
		readSize = fileSize - offset
		eof = true
	}

	clusterSize := v.clusterSize()
	skip := offset / clusterSize
	inCluster := offset % clusterSize

	data := make([]byte, 0, readSize)
	buf := make([]byte, clusterSize)

	var index int64
	err := v.walkChain(cluster, func(c ClusterNumber) (bool, error) {
		if index < skip {
			index++
			return false, nil
		}
		index++

		if err := v.readCluster(c, buf); err != nil {
			return true, err
		}

		chunk := buf[inCluster:]
		inCluster = 0
		if remaining := readSize - int64(len(data)); int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		data = append(data, chunk...)
		return int64(len(data)) == readSize, nil
	})
	if err != nil {
		return data, err
	}

	if int64(len(data)) < readSize {
		return data, checkpoint.Errorf(ErrCorruptChain, "chain of cluster %d ends after %d of %d bytes", cluster, offset+int64(len(data)), fileSize)
	}
	if eof {
		return data, io.EOF
	}
	return data, nil
}
