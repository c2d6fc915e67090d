package cli

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long: `Print the chromasync version. With --verbose the Go version and the
VCS revision the binary was built from are printed too.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("chromasync version %s\n", version)
		if !verbose {
			return
		}
		cmd.Printf("  go       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if rev := revision(); rev != "" {
			cmd.Printf("  revision %s\n", rev)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// revision is the vcs.revision build setting, shortened, with a "+dirty"
// suffix for modified trees.
func revision() string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}
