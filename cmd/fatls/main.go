// fatls lists the files of a FAT16 or FAT32 partition in a disk image.
//
//  fatls [flags] IMAGE
//
// Without flags every file is printed with its ordinal, path, first cluster and size.
// --tree prints the directory tree instead, --cat writes a single file to stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aligator/fatvol"
	"github.com/aligator/fatvol/blockdev"
	"github.com/golang/glog"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

var (
	partition = pflag.IntP("partition", "p", 0, "partition table slot 1-4 to mount, 0 mounts the first non-empty one")
	maxDepth  = pflag.Int("max-depth", fatvol.DefaultMaxDepth, "maximum directory nesting to follow")
	tree      = pflag.Bool("tree", false, "print the directory tree")
	cat       = pflag.String("cat", "", "write the file at this path to stdout")
)

func main() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] IMAGE\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	defer glog.Flush()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	if err := run(afero.NewOsFs(), pflag.Arg(0), os.Stdout); err != nil {
		glog.Flush()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(host afero.Fs, image string, out io.Writer) error {
	f, err := host.Open(image)
	if err != nil {
		return err
	}
	defer f.Close()

	dev, err := blockdev.NewImage(f)
	if err != nil {
		return err
	}

	vol, err := fatvol.MountWithOptions(dev, fatvol.Options{
		Partition: *partition,
		MaxDepth:  *maxDepth,
	})
	if err != nil {
		return err
	}
	glog.V(1).Infof("mounted %q, label %q", image, vol.Label())

	fs := fatvol.NewFs(vol)

	switch {
	case *cat != "":
		data, err := afero.ReadFile(fs, *cat)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err

	case *tree:
		return afero.Walk(fs, "", func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if p == "" {
				fmt.Fprintf(out, "/ (%s)\n", vol.Label())
				return nil
			}
			suffix := ""
			if info.IsDir() {
				suffix = "/"
			}
			fmt.Fprintf(out, "%s%s  %d  %s\n", path.Clean("/"+p), suffix, info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
			return nil
		})
	}

	for ordinal := 0; ordinal <= 0xFFFF; ordinal++ {
		e, ok, err := vol.GetEntry(vol.Root(), uint16(ordinal))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Fprintf(out, "%5d  %-40s  cluster %-8d  %d\n", ordinal, e.Path+e.Name, e.Cluster, e.Size)
	}
	return nil
}
