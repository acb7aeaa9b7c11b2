// regindex init --index <path> --dl <url> [--api <url>]
// regindex add --index <path> --index-url <url> --crate <file> [--manifest-path <path>] [--upload <dir>] [--force]
// regindex add --index <path> --record <file> [--force]
// regindex metadata --index-url <url> --crate <file> [--manifest-path <path>]
// regindex yank --index <path> --package <name> --version <version>
// regindex unyank --index <path> --package <name> --version <version>
// regindex list --index <path> [--package <name>] [--version <requirement>] [--purl]
// regindex validate --index <path> [--crates <dir> | --download] [--metrics-file <file>]

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"regindex/commands"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "regindex",
		Short: "Manage a package registry index",
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a TOML config file with default settings")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a new index",
		Args:  cobra.NoArgs,
		RunE:  commands.IndexInit,
	}
	initCmd.Flags().String("index", "", "Path to the index")
	initCmd.Flags().String("dl", "", "Download URL template such as https://example.com/api/v1/crates/{crate}/{version}/download; "+
		"without {crate}/{version} markers, /{crate}/{version}/download is appended")
	initCmd.Flags().String("api", "", "URL of the API host such as https://example.com")

	var addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a package to the index",
		Args:  cobra.NoArgs,
		RunE:  commands.IndexAdd,
	}
	addCmd.Flags().String("index", "", "Path to the index")
	addCmd.Flags().String("index-url", "", "Public URL of the index")
	addCmd.Flags().String("manifest-path", "", "Path to the package manifest; defaults to the one inside the archive")
	addCmd.Flags().String("crate", "", "Path to the .crate file")
	addCmd.Flags().String("record", "", "Path to a file holding a ready-made index record")
	addCmd.Flags().String("upload", "", "Copy the archive into this directory; {crate} and {version} are expanded")
	addCmd.Flags().BoolP("force", "f", false, "Replace the entry for this version if it already exists")

	var metadataCmd = &cobra.Command{
		Use:   "metadata",
		Short: "Print the index record for a package",
		Args:  cobra.NoArgs,
		RunE:  commands.IndexMetadata,
	}
	metadataCmd.Flags().String("index-url", "", "Public URL of the index")
	metadataCmd.Flags().String("manifest-path", "", "Path to the package manifest; defaults to the one inside the archive")
	metadataCmd.Flags().String("crate", "", "Path to the .crate file")

	var yankCmd = &cobra.Command{
		Use:   "yank",
		Short: "Yank a package version",
		Args:  cobra.NoArgs,
		RunE:  commands.IndexYank,
	}
	var unyankCmd = &cobra.Command{
		Use:   "unyank",
		Short: "Un-yank a package version",
		Args:  cobra.NoArgs,
		RunE:  commands.IndexUnyank,
	}
	for _, cmd := range []*cobra.Command{yankCmd, unyankCmd} {
		cmd.Flags().String("index", "", "Path to the index")
		cmd.Flags().StringP("package", "p", "", "Name of the package")
		cmd.Flags().String("version", "", "Version of the package")
	}

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List entries in the index",
		Args:  cobra.NoArgs,
		RunE:  commands.IndexList,
	}
	listCmd.Flags().String("index", "", "Path to the index")
	listCmd.Flags().StringP("package", "p", "", "Name of the package to search for")
	listCmd.Flags().String("version", "", "Version requirement to search for")
	listCmd.Flags().Bool("purl", false, "Print package URLs instead of JSON records")

	var validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate the format of the index",
		Args:  cobra.NoArgs,
		RunE:  commands.IndexValidate,
	}
	validateCmd.Flags().String("index", "", "Path to the index")
	validateCmd.Flags().String("crates", "", "Directory of .crate files to verify; {crate} and {version} are expanded")
	validateCmd.Flags().Bool("download", false, "Verify archives through the index's download URL")
	validateCmd.Flags().String("token", "", "Bearer token for --download")
	validateCmd.Flags().String("metrics-file", "", "Write a Prometheus text file with the results")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(yankCmd)
	rootCmd.AddCommand(unyankCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)

	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion(commands.Version),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(printError),
	); err != nil {
		os.Exit(1)
	}
}

// printError keeps error output plain so messages are never wrapped or restyled.
func printError(w io.Writer, _ fang.Styles, err error) {
	fmt.Fprintf(w, "Error: %s\n", err)
}
