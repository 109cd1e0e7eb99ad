/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "siteapi",
	Short: "Backend for the ShieldLine marketing site and admin panel",
	Long: `siteapi serves the public site API (blog, contact and consultation
forms) and the admin CMS behind role-based permissions.

	siteapi migrate up
	siteapi seed
	siteapi server
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
