// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	car "github.com/corona-x/car"
)

var extractOverwrite bool

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <archive.car> <destination-directory>",
		Short: "Extract a CAR archive's entries onto the filesystem",
		Args:  cobra.ExactArgs(2),
		RunE:  runExtract,
	}
	cmd.Flags().BoolVar(&extractOverwrite, "overwrite", false, "replace non-empty existing files instead of failing")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	x := car.NewExtractor(car.OSAdapter{}, nil)
	err := x.Extract(car.ExtractParams{
		ArchivePath: args[0],
		Destination: args[1],
		Verbose:     verbose,
		Overwrite:   extractOverwrite,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "extracted %s into %s\n", args[0], args[1])
	return nil
}
