package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chettrick/zz80asm/pkg/config"
	"github.com/chettrick/zz80asm/pkg/driver"
	"github.com/chettrick/zz80asm/pkg/emit"
	"github.com/chettrick/zz80asm/pkg/logging"
)

func main() {
	var (
		exitCode   int
		defines    []string
		formatFlag string
		listFlag   string
		listGiven  bool
		objFlag    string
		sortFlag   string
		verbose    bool
		noFill     bool
	)

	rootCmd := &cobra.Command{
		Use:   "zz80asm [source...]",
		Short: "Two-pass Z80 assembler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := emit.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			sort := config.SortNone
			switch sortFlag {
			case "", "0":
			case "a":
				sort = config.SortByName
			case "n":
				sort = config.SortByValue
			default:
				return fmt.Errorf("unknown -s value %q, want a or n", sortFlag)
			}

			sources := make([]string, len(args))
			for i, a := range args {
				if filepath.Ext(a) == "" {
					a += ".asm"
				}
				sources[i] = a
			}

			obj := objFlag
			if obj == "" {
				obj = withExt(sources[0], format.Ext())
			}

			listPath := ""
			if listGiven {
				listPath = listFlag
				if listPath == "" {
					listPath = withExt(sources[0], ".lst")
				}
			}

			objFile, err := os.Create(obj)
			if err != nil {
				return err
			}
			defer objFile.Close()

			var listFile *os.File
			if listPath != "" {
				listFile, err = os.Create(listPath)
				if err != nil {
					return err
				}
				defer listFile.Close()
			}

			opts := config.Options{
				Sources:     sources,
				Format:      format,
				ObjFile:     obj,
				ListFile:    listPath,
				ListEnabled: listPath != "",
				SortSymbols: sort,
				Verbose:     verbose,
				NoFill:      noFill,
				Defines:     defines,
			}

			log := logging.New(cmd.ErrOrStderr(), verbose)
			ctx := driver.New(opts, log)
			errCount, runErr := ctx.Run(objFile, listFile)
			if (runErr != nil || errCount > 0) && ctx.Pass() == 1 {
				// A pass-1 failure of any kind leaves no object file
				// behind; pass-2 errors keep the (zero-substituted)
				// output and only set the exit code.
				objFile.Close()
				os.Remove(obj)
			}
			if runErr != nil {
				return runErr
			}
			exitCode = errCount
			if exitCode > 255 {
				exitCode = 255
			}
			return nil
		},
	}

	rootCmd.Flags().StringArrayVarP(&defines, "define", "d", nil, "pre-define a symbol to 0")
	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", "", "object format: b (raw), m (mostek), h (Intel HEX, default)")
	rootCmd.Flags().StringVarP(&listFlag, "list", "l", "", "listing file path (enables listing; default derives from the first source)")
	rootCmd.Flags().Lookup("list").NoOptDefVal = ""
	rootCmd.Flags().StringVarP(&objFlag, "output", "o", "", "object file path")
	rootCmd.Flags().StringVarP(&sortFlag, "sort", "s", "", "sort the listing's symbol table: a (name) or n (address)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose progress output")
	rootCmd.Flags().BoolVarP(&noFill, "no-fill", "x", false, "disable DEFS's default 0xFF fill")

	rootCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		listGiven = cmd.Flags().Changed("list")
		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// withExt replaces src's extension with ext.
func withExt(src, ext string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ext
}
