// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "car",
		Short: "Build, inspect, and extract Corona-X CAR archives",
		Long:  "car builds, inspects, and extracts the CAR family of sealed archive formats (S1, S2, BootX, SystemImage).",
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print a line per entry processed")

	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newListCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
