// Package cli parses wydy and wydyd command lines into a Parsed invocation.
package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandExchange Command = "exchange"
	CommandCheck    Command = "check"
	CommandServe    Command = "serve"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

type Parsed struct {
	Command    Command
	ConfigPath string
	Address    string
	Remote     bool
	// Phrase is empty when the requester should read phrases interactively.
	Phrase   string
	ShowHelp bool
}

// ParseClient parses `wydy [flags] [phrase...]`. Flags must precede the
// phrase so phrases may contain words starting with '-'.
func ParseClient(args []string) (Parsed, error) {
	var parsed Parsed
	return execute(newClientCommand(&parsed), args, &parsed)
}

// ParseDaemon parses `wydyd [flags] [doctor|version|help]`.
func ParseDaemon(args []string) (Parsed, error) {
	var parsed Parsed
	return execute(newDaemonCommand(&parsed), args, &parsed)
}

// HelpText renders usage for binaryName, "wydy" or "wydyd".
func HelpText(binaryName string) string {
	var parsed Parsed
	if binaryName == "wydyd" {
		return newDaemonCommand(&parsed).UsageString()
	}
	return newClientCommand(&parsed).UsageString()
}

func execute(root *cobra.Command, args []string, parsed *Parsed) (Parsed, error) {
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	executed, err := root.ExecuteC()
	if err != nil {
		return Parsed{}, err
	}
	if help, _ := executed.Flags().GetBool("help"); help {
		return Parsed{Command: CommandHelp, ShowHelp: true}, nil
	}
	return *parsed, nil
}

func newClientCommand(parsed *Parsed) *cobra.Command {
	var showVersion, check bool

	root := &cobra.Command{
		Use:   "wydy [flags] [phrase...]",
		Short: "Ask wydyd what to do with a phrase",
		Long: `Sends a phrase to the wydyd responder and runs the chosen action.
Without a phrase, reads phrases from stdin until EOF, "exit" or "quit".`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, args []string) error {
			switch {
			case showVersion:
				parsed.Command = CommandVersion
			case check:
				parsed.Command = CommandCheck
			default:
				parsed.Command = CommandExchange
				parsed.Phrase = strings.TrimSpace(strings.Join(args, " "))
			}
			return nil
		},
	}
	flags := root.Flags()
	flags.SetInterspersed(false)
	flags.StringVar(&parsed.ConfigPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/wydy/config.yaml)")
	flags.StringVar(&parsed.Address, "address", "", "responder address, host:port or unix:/path")
	flags.BoolVar(&parsed.Remote, "remote", false, "ask the responder to run actions itself")
	flags.BoolVar(&check, "check", false, "report whether a responder is running")
	flags.BoolVar(&showVersion, "version", false, "show version")
	return root
}

func newDaemonCommand(parsed *Parsed) *cobra.Command {
	root := &cobra.Command{
		Use:           "wydyd [flags]",
		Short:         "Resolve phrases from wydy requesters into actions",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(*cobra.Command, []string) error {
			parsed.Command = CommandServe
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&parsed.ConfigPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/wydy/config.yaml)")
	flags.StringVar(&parsed.Address, "address", "", "listen address, host:port or unix:/path")

	root.AddCommand(
		&cobra.Command{
			Use:   "doctor",
			Short: "Run configuration and environment checks",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				parsed.Command = CommandDoctor
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				parsed.Command = CommandVersion
				return nil
			},
		},
	)
	root.SetHelpCommand(&cobra.Command{
		Use:   "help",
		Short: "Show this help",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			parsed.Command = CommandHelp
			parsed.ShowHelp = true
			return nil
		},
	})
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}
