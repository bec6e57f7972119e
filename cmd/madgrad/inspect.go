package main

import (
	"errors"
	"flag"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/born-ml/madgrad/internal/serialization"
)

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: madgrad inspect <checkpoint.mdgr>")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	header, checksum, err := serialization.ReadHeader(f)
	if err != nil {
		return err
	}

	fmt.Printf("File:       %s\n", fs.Arg(0))
	fmt.Printf("Format:     v%d (written by %s)\n", header.FormatVersion, header.Version)
	fmt.Printf("Created:    %s\n", header.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Optimizer:  %s\n", header.OptimizerType)
	fmt.Printf("Step:       %d\n", header.Step)
	fmt.Printf("Checksum:   %x\n", checksum)

	for i, group := range header.Groups {
		fmt.Printf("\nGroup %d:\n", i)
		for _, key := range slices.Sorted(maps.Keys(group)) {
			fmt.Printf("  %-15s %v\n", key, group[key])
		}
	}

	fmt.Printf("\nTensors (%d):\n", len(header.Tensors))
	for _, meta := range header.Tensors {
		fmt.Printf("  %-20s shape=%v size=%d\n", meta.Name, meta.Shape, meta.Size)
	}
	return nil
}
