package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-archiver/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Admin authentication helpers",
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long: `Hash an admin password with the configured BCRYPT_COST and PASSWORD_PEPPER.
The password is read from --password or, when omitted, from the first line of stdin.`,
	Args: cobra.NoArgs,
	RunE: runHashPassword,
}

var hashPasswordInput string

func init() {
	hashPasswordCmd.Flags().StringVar(&hashPasswordInput, "password", "", "Password to hash (default: read from stdin)")
	tokenCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	pw := hashPasswordInput
	if pw == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("no password given on stdin")
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if pw == "" {
		return fmt.Errorf("password must not be empty")
	}

	passwords, err := config.NewPasswordConfig(config.AuthConfig{})
	if err != nil {
		return err
	}
	hash, err := passwords.HashPassword(pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
