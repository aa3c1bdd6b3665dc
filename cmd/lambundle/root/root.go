package root

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flarebyte/lambundle/cmd/lambundle/build"
	"github.com/flarebyte/lambundle/cmd/lambundle/diagnose"
	"github.com/flarebyte/lambundle/cmd/lambundle/version"
)

// NewRootCmd creates the root command for lambundle. Flags can also be set
// through LAMBUNDLE_* environment variables.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LAMBUNDLE")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "lambundle",
		Short: "Bundle, package and deploy a single AWS Lambda handler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), v.GetBool("debug"))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	_ = v.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))

	cmd.AddCommand(version.VersionCmd)
	cmd.AddCommand(build.NewCmd(v))
	cmd.AddCommand(diagnose.NewCmd(v))

	return cmd
}

// Execute runs the root command with provided args.
func Execute(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func setupLogging(w io.Writer, debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
