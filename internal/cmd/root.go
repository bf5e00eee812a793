// Package cmd implements the CLI (Command Line Interface) of the application.
//
// inbox - Interactive notification inbox (default)
// list - Print the notification list
// watch - Follow the live notification stream
// read - Mark one notification as read
// read-all - Mark every notification as read
// delete - Delete one notification
// login - Sign in to Proof of Putt
// logout - Sign out and forget the cached inbox
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/puttnotify/internal/model"
)

// BuildVersion is set at link time.
var BuildVersion = "master"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "puttnotify",
	Short:         "Proof of Putt notifications in your terminal",
	Long:          `Keeps your Proof of Putt inbox live: duel challenges, league invitations and results as they happen.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runInbox,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	setupCLI()
	if errExecute := rootCmd.Execute(); errExecute != nil {
		os.Exit(1)
	}
}

func setupCLI() {
	rootCmd.Version = BuildVersion
	rootCmd.AddCommand(inboxCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(readAllCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", model.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}
