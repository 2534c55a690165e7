package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandboxd",
		Short: "Interactive code-execution sandbox server",
		Long: "sandboxd accepts untrusted C++ submissions over TCP, compiles and runs\n" +
			"them under OS-level resource limits, and streams a typed JSON session\n" +
			"back to the client.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox TCP listener and admin HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sandboxd %s\n", Version)
		},
	}
}
