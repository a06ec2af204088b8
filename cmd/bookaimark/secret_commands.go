package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dastanaron/bookaimark/internal/secrets"
)

func newSecretCommand(ctx *commandContext) *cobra.Command {
	secretCmd := &cobra.Command{
		Use:         "secret",
		Short:       "Manage secrets stored in the OS keychain",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	secretCmd.AddCommand(&cobra.Command{
		Use:   "set-llm-key",
		Short: "Store the LLM API key (read from stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("read api key from stdin: no input")
			}
			if err := secrets.SetLLMKey(ctx.keychain, strings.TrimSpace(line)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "LLM API key stored in the keychain")
			return nil
		},
	})

	secretCmd.AddCommand(&cobra.Command{
		Use:   "delete-llm-key",
		Short: "Remove the stored LLM API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.DeleteLLMKey(ctx.keychain); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "LLM API key removed from the keychain")
			return nil
		},
	})
	return secretCmd
}
