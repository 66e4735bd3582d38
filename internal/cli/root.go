package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information, set by SetVersion from main.go's build-time
	// ldflags.
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	verbose bool
	noColor bool

	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)

	// colorOutput lets tests redirect Success/Error/Info/Warn output.
	colorOutput io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "wapm",
	Short: "wapm - a package manager for WebAssembly modules",
	Long: `wapm installs, publishes, and runs WebAssembly packages from a
remote registry. It resolves a project's wapm.toml into a pinned
wapm.lock, verifies publisher signatures on trust-on-first-use, and
dispatches named commands to an external WebAssembly runtime.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("WAPM_DISABLE_COLOR") != "" {
			color.NoColor = true
		}
	},
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version information shown by `wapm --version`.
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.SetEnvPrefix("WAPM")
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newInstallCmd(),
		newUninstallCmd(),
		newListCmd(),
		newRunCmd(),
		newExecuteCmd(),
		newValidateCmd(),
		newPublishCmd(),
		newSearchCmd(),
		newAuthCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newKeysCmd(),
		newConfigCmd(),
		newBinCmd(),
	)
}

// Success prints a success message.
func Success(format string, args ...interface{}) {
	fmt.Fprintln(colorOutput, successColor.Sprintf("✓ "+format, args...))
}

// Error prints an error message to stderr.
func Error(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, errorColor.Sprintf("✗ "+format, args...))
}

// Info prints an informational message.
func Info(format string, args ...interface{}) {
	fmt.Fprintln(colorOutput, infoColor.Sprintf("ℹ "+format, args...))
}

// Warn prints a warning message to stderr.
func Warn(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, warnColor.Sprintf("⚠ "+format, args...))
}

// Debug prints a message only when --verbose is set.
func Debug(format string, args ...interface{}) {
	if IsVerbose() {
		fmt.Fprintln(os.Stderr, color.New(color.FgMagenta).Sprintf("» "+format, args...))
	}
}

// PrintStep prints one step of a multi-step process.
func PrintStep(step, total int, message string) {
	fmt.Fprintf(colorOutput, "[%d/%d] %s\n", step, total, message)
}

// IsVerbose reports whether --verbose was passed.
func IsVerbose() bool {
	return viper.GetBool("verbose")
}
