package main

import (
	"github.com/spf13/cobra"
)

var onedriveCmd = &cobra.Command{
	Use:   "onedrive",
	Short: "Run a single drive operation outside a chain",
	Long: `Invoke one drive operation directly. The operation reads a record list
from stdin when piped and writes its record list to stdout:

  m365 onedrive find_files --query report | m365 onedrive download_files --dst out`,
}

func init() {
	for _, op := range []struct{ name, short string }{
		{"find_files", "Search drive items by name or content"},
		{"create_folder", "Create a folder under the drive root or a parent"},
		{"upload_files", "Upload local files to the drive"},
		{"download_files", "Download each input item to disk"},
		{"delete_files", "Delete each input item"},
	} {
		onedriveCmd.AddCommand(singleOpCommand(op.name, op.short))
	}
}
