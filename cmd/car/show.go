// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/spf13/cobra"

	car "github.com/corona-x/car"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <archive.car>",
		Short: "Print a CAR archive's header fields",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := car.Open(args[0], nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Verify(); err != nil {
		return err
	}

	return a.RenderHeader(os.Stdout)
}
