// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/spf13/cobra"

	car "github.com/corona-x/car"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive.car>",
		Short: "List a CAR archive's entries",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := car.Open(args[0], nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Verify(); err != nil {
		return err
	}

	return a.RenderList(os.Stdout)
}
