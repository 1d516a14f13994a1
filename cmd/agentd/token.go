// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-a2a/agentd/auth"
	"github.com/go-a2a/agentd/config"
)

func newTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with AGENTD_AUTH_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			if env.AuthSecret == "" {
				return errors.New("AGENTD_AUTH_SECRET is not set")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}

			token, err := newVerifier(env).Issue(subject, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "token subject (the client's user name)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")

	return cmd
}

func newVerifier(env *config.Env) *auth.Verifier {
	var opts []auth.VerifierOption
	if env.AuthIssuer != "" {
		opts = append(opts, auth.WithIssuer(env.AuthIssuer))
	}
	return auth.NewVerifier([]byte(env.AuthSecret), opts...)
}
