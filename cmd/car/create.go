// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	car "github.com/corona-x/car"
)

var (
	createSubtype     string
	createArch        string
	createBootID      uint32
	createKernelLdr   string
	createKernel      string
	createBootCfg     string
	createSystemType  string
	createBuildType   string
	createRevision    string
	createMajor       uint8
	createBuildID     uint64
	createPartInfo    string
	createBootArchive string
	createContinue    bool
)

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <root-directory> <output.car>",
		Short: "Build a CAR archive from a directory tree",
		Args:  cobra.ExactArgs(2),
		RunE:  runCreate,
	}

	cmd.Flags().StringVar(&createSubtype, "subtype", "s1", "archive subtype: s1, s2, bootx, systemimage")
	cmd.Flags().BoolVar(&createContinue, "continue-on-enumeration-error", false, "drop unreadable subtrees instead of aborting the walk")

	cmd.Flags().StringVar(&createArch, "arch", "x86_64", "bootx: target architecture (x86_64, ARMv8)")
	cmd.Flags().Uint32Var(&createBootID, "boot-id", 0, "bootx: boot identifier")
	cmd.Flags().StringVar(&createKernelLdr, "kernel-loader", "", "bootx: archive-relative path to the kernel loader")
	cmd.Flags().StringVar(&createKernel, "kernel", "", "bootx: archive-relative path to the kernel")
	cmd.Flags().StringVar(&createBootCfg, "boot-config", "", "bootx: archive-relative path to the boot config")

	cmd.Flags().StringVar(&createSystemType, "system-type", "Corona-X", "systemimage: Corona-X or CorOS")
	cmd.Flags().StringVar(&createBuildType, "build-type", "release", "systemimage: debug, development, release, stable")
	cmd.Flags().StringVar(&createRevision, "revision", "A", "systemimage: revision letter A-Z")
	cmd.Flags().Uint8Var(&createMajor, "major-version", 1, "systemimage: major version number")
	cmd.Flags().Uint64Var(&createBuildID, "build-id", 0, "systemimage: build identifier")
	cmd.Flags().StringVar(&createPartInfo, "partition-info", "", "systemimage: archive-relative path to the partition-info file")
	cmd.Flags().StringVar(&createBootArchive, "boot-archive", "", "systemimage: archive-relative path to the boot archive")

	return cmd
}

func parseSubtype(s string) (car.Subtype, error) {
	switch s {
	case "s1", "S1":
		return car.Subtype1, nil
	case "s2", "S2":
		return car.Subtype2, nil
	case "bootx", "BootX", "bootX":
		return car.SubtypeBootX, nil
	case "systemimage", "SystemImage":
		return car.SubtypeSystemImage, nil
	default:
		return car.SubtypeInvalid, fmt.Errorf("unknown subtype %q", s)
	}
}

func parseProcessor(s string) (car.Processor, error) {
	switch s {
	case "x86_64":
		return car.ProcessorX86_64, nil
	case "ARMv8":
		return car.ProcessorARMv8, nil
	default:
		return 0, fmt.Errorf("unknown architecture %q", s)
	}
}

func parseSystemType(s string) (car.SystemType, error) {
	switch s {
	case "Corona-X":
		return car.SystemTypeCoronaX, nil
	case "CorOS":
		return car.SystemTypeCorOS, nil
	default:
		return 0, fmt.Errorf("unknown system type %q", s)
	}
}

func parseBuildType(s string) (car.BuildType, error) {
	switch s {
	case "debug":
		return car.BuildTypeDebug, nil
	case "development":
		return car.BuildTypeDevelopment, nil
	case "release":
		return car.BuildTypeRelease, nil
	case "stable":
		return car.BuildTypeStable, nil
	default:
		return 0, fmt.Errorf("unknown build type %q", s)
	}
}

// roleAbsPath joins a root directory with a user-supplied path relative
// to it, matching the absolute-path form dirmodel.go's Walk assigns to
// every Entry.AbsPath, so role resolution can compare byte-for-byte.
func roleAbsPath(root, rel string) string {
	if rel == "" {
		return ""
	}
	return path.Join(root, strings.TrimLeft(rel, "/"))
}

func runCreate(cmd *cobra.Command, args []string) error {
	subtype, err := parseSubtype(createSubtype)
	if err != nil {
		return err
	}

	params := car.CreateParams{
		RootDirectory: args[0],
		OutputPath:    args[1],
		Subtype:       subtype,
		Verbose:       verbose,
		Modifiers:     &car.CreateDataModifiers{},
	}
	if createContinue {
		params.Policy = car.AlwaysContinue
	}

	root := strings.TrimRight(args[0], "/")

	if subtype == car.SubtypeBootX {
		arch, err := parseProcessor(createArch)
		if err != nil {
			return err
		}
		params.Architecture = arch
		params.BootID = createBootID
		params.KernelLoaderPath = roleAbsPath(root, createKernelLdr)
		params.KernelPath = roleAbsPath(root, createKernel)
		params.BootConfigPath = roleAbsPath(root, createBootCfg)
	}

	if subtype == car.SubtypeSystemImage {
		sysType, err := parseSystemType(createSystemType)
		if err != nil {
			return err
		}
		buildType, err := parseBuildType(createBuildType)
		if err != nil {
			return err
		}
		if len(createRevision) != 1 {
			return fmt.Errorf("revision must be a single letter A-Z, got %q", createRevision)
		}
		rev, ok := car.RevisionValue(createRevision[0])
		if !ok {
			return fmt.Errorf("revision must be a single letter A-Z, got %q", createRevision)
		}
		params.SystemVersion = car.SystemVersionInternal{
			SystemType:   uint8(sysType),
			BuildType:    uint8(buildType),
			Revision:     rev,
			MajorVersion: createMajor,
			BuildID:      createBuildID,
		}
		params.PartitionInfoPath = createPartInfo
		params.BootArchivePath = roleAbsPath(root, createBootArchive)
	}

	w := car.NewWriter(car.OSAdapter{}, nil)
	if err := w.Create(params); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %s (%s)\n", args[1], subtype)
	return nil
}
