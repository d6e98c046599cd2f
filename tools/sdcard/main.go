// Package sdcard creates and inspects the VHD images backing the emulated
// SummerCart64 SD card.
package sdcard

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/partition/mbr"

	"github.com/clktmr/mupen64/carts/vhd"
)

const usageString = `SD card image utility.

Usage:

	%s <command> [arguments]

The commands are:

	create [-size MiB] <image> [files...]	create a FAT32 formatted fixed VHD
	info <image>				print the VHD footer
`

var (
	flags = flag.NewFlagSet("sdcard", flag.ExitOnError)

	size = flags.Int("size", 256, "size of the card in MiB")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "sdcard")
	flags.PrintDefaults()
}

// First sector of the partition, aligned like SD cards formatted by
// cameras and PCs.
const partitionStart = 2048

const sectorSize = vhd.SectorSize

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() < 2 {
		flags.Usage()
		os.Exit(1)
	}

	switch flags.Arg(0) {
	case "create":
		sub := flag.NewFlagSet("create", flag.ExitOnError)
		mib := sub.Int("size", *size, "size of the card in MiB")
		sub.Parse(flags.Args()[1:])
		if sub.NArg() < 1 {
			flags.Usage()
			os.Exit(1)
		}
		if err := Create(sub.Arg(0), int64(*mib)<<20, sub.Args()[1:]); err != nil {
			log.Fatalln(err)
		}
	case "info":
		f, err := os.Open(flags.Arg(1))
		if err != nil {
			log.Fatalln(err)
		}
		defer f.Close()
		footer, err := vhd.ReadFooter(f)
		if err != nil {
			log.Fatalln(err)
		}
		if err := footer.Validate(); err != nil {
			log.Println(err)
		}
		fmt.Println(footer)
		fmt.Printf("sectors: %d\ncreated: %v\n", footer.Sectors(), footer.Created())
	default:
		fmt.Fprintf(flags.Output(), "unknown command: %s\n", flags.Arg(0))
		flags.Usage()
		os.Exit(1)
	}
}

// Create writes a fixed VHD of the given size to image, containing a single
// FAT32 partition with files copied to its root directory.
func Create(image string, size int64, files []string) error {
	size -= size % sectorSize
	if size <= partitionStart*sectorSize {
		return fmt.Errorf("sdcard: size %d too small", size)
	}

	d, err := diskfs.Create(image, size, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return fmt.Errorf("sdcard: %w", err)
	}
	err = format(d, size, files)
	if cerr := d.File.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(image)
		return err
	}

	footer, err := vhd.NewFixed(uint64(size), time.Now()).MarshalBinary()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(image, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("sdcard: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteAt(footer, size); err != nil {
		return fmt.Errorf("sdcard: %w", err)
	}
	return f.Close()
}

func format(d *disk.Disk, size int64, files []string) error {
	table := &mbr.Table{
		LogicalSectorSize:  sectorSize,
		PhysicalSectorSize: sectorSize,
		Partitions: []*mbr.Partition{{
			Type:  mbr.Fat32LBA,
			Start: partitionStart,
			Size:  uint32(size/sectorSize - partitionStart),
		}},
	}
	if err := d.Partition(table); err != nil {
		return fmt.Errorf("sdcard: partition: %w", err)
	}
	fs, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   1,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: "SC64",
	})
	if err != nil {
		return fmt.Errorf("sdcard: format: %w", err)
	}
	for _, name := range files {
		if err := copyFile(fs, name); err != nil {
			return fmt.Errorf("sdcard: %s: %w", name, err)
		}
	}
	return nil
}

func copyFile(fs filesystem.FileSystem, name string) error {
	src, err := os.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := fs.OpenFile(path.Join("/", filepath.Base(name)), os.O_CREATE|os.O_RDWR)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
