package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"anywhere-shell/pkg/client"
	"anywhere-shell/pkg/console"
	"anywhere-shell/pkg/socket"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Attach an interactive shell to a console",
	Long: `Log in, pick a console (the first existing one unless --console-id or
--new is given), connect to its socket and forward each typed line to it.

Type 'bye' or press Ctrl+D to leave; Ctrl+C interrupts immediately.
Startup commands given with -c (or session.startup_commands in the config)
are sent concurrently once the console is ready, so their order is not
guaranteed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Use global configuration loaded by PersistentPreRunE
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w (see 'anywhere-shell auth login')", err)
		}

		consoleID, _ := cmd.Flags().GetInt("console-id")
		forceNew, _ := cmd.Flags().GetBool("new")
		executable, _ := cmd.Flags().GetString("executable")

		commands := cfg.Session.StartupCommands
		if cmd.Flags().Changed("command") {
			commands, _ = cmd.Flags().GetStringArray("command")
		}

		password := cfg.Account.Password
		if password == "" {
			var err error
			password, err = readSecret("Password: ")
			if err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		browser, err := client.New(cfg)
		if err != nil {
			return err
		}
		dialer := &socket.Dialer{
			HandshakeTimeout: cfg.Session.HandshakeTimeout,
			Origin:           browser.Origin(),
		}

		fmt.Println("Account:", cfg.Account.Username)

		runner := console.New(browser, console.WebSocketDialer{Dialer: dialer})
		err = runner.Run(ctx, console.Options{
			Password:      password,
			ConsoleID:     consoleID,
			ForceNew:      forceNew,
			Executable:    executable,
			Commands:      commands,
			ReplayTimeout: cfg.Session.ReplayTimeout,
			Prompt:        cfg.Session.Prompt,
			ExitKeyword:   cfg.Session.ExitKeyword,
			Grace:         cfg.Session.CloseGrace,
		})
		if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
			// Interrupted before a socket was open.
			log.Debug().Err(err).Msg("Interrupted")
			fmt.Println("\n\nExiting....")
			return nil
		}
		return err
	},
}

func init() {
	shellCmd.Flags().StringArrayP("command", "c", nil, "Command to run once connected (repeatable)")
	shellCmd.Flags().Int("console-id", 0, "Attach to this console instead of the first one")
	shellCmd.Flags().Bool("new", false, "Always create a new console")
	shellCmd.Flags().String("executable", client.DefaultExecutable, "Executable for newly created consoles")
	shellCmd.Flags().Duration("replay-timeout", 0, "Give up waiting for a starting console after this long (0 waits forever)")

	viper.BindPFlag("session.replay_timeout", shellCmd.Flags().Lookup("replay-timeout"))

	rootCmd.AddCommand(shellCmd)
}
