package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satriahrh/tawa/internal/auth"
)

func newTokenCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token for --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user := c.v.GetString("user")
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			signer, err := auth.NewSigner(c.v.GetString("jwt-secret"), c.v.GetDuration("ttl"))
			if err != nil {
				return fmt.Errorf("%w (set --jwt-secret or TAWA_JWT_SECRET)", err)
			}
			token, err := signer.GenerateUserToken(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("jwt-secret", "", "secret shared with the server's JWT_SECRET")
	cmd.Flags().Duration("ttl", 0, "token lifetime (default 7 days)")
	return cmd
}
