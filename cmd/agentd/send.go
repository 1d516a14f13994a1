// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/go-a2a/agentd/a2a"
	"github.com/go-a2a/agentd/approval"
	"github.com/go-a2a/agentd/client"
)

type sendFlags struct {
	url      string
	token    string
	skill    string
	stream   bool
	interval time.Duration

	approvalChannel string
	approvalTo      string
}

func newSendCommand() *cobra.Command {
	var flags sendFlags

	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send a task to a running agent and wait for its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.token == "" {
				flags.token = os.Getenv("AGENTD_TOKEN")
			}
			c := client.New(flags.url, client.WithBearerToken(flags.token))

			params := &a2a.MessageSendParams{
				Message: a2a.NewUserTextMessage(strings.Join(args, " ")),
			}
			if flags.skill != "" {
				params.Configuration = &a2a.MessageSendConfiguration{Skill: flags.skill}
			}
			if md := flags.metadata(); len(md) > 0 {
				params.Metadata = md
			}

			if flags.stream {
				return streamTask(cmd.Context(), cmd.OutOrStdout(), c, params)
			}
			return pollTask(cmd.Context(), cmd.OutOrStdout(), c, params, flags.interval)
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", "http://localhost:41241", "agent endpoint")
	cmd.Flags().StringVar(&flags.token, "token", "", "bearer token (AGENTD_TOKEN)")
	cmd.Flags().StringVar(&flags.skill, "skill", "", "skill hint, e.g. research for a read-only run")
	cmd.Flags().BoolVar(&flags.stream, "stream", false, "use message/stream instead of polling")
	cmd.Flags().DurationVar(&flags.interval, "interval", 500*time.Millisecond, "polling interval")
	cmd.Flags().StringVar(&flags.approvalChannel, "approval-channel", "", "approval channel for sensitive tools (webhook or console)")
	cmd.Flags().StringVar(&flags.approvalTo, "approval-to", "", "approval destination within the channel")

	return cmd
}

func (f *sendFlags) metadata() map[string]any {
	md := make(map[string]any)
	if f.approvalChannel != "" {
		md[approval.MetadataChannel] = f.approvalChannel
	}
	if f.approvalTo != "" {
		md[approval.MetadataDestination] = f.approvalTo
	}
	return md
}

func pollTask(ctx context.Context, out io.Writer, c *client.Client, params *a2a.MessageSendParams, interval time.Duration) error {
	t, err := c.SendMessage(ctx, params)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s task %s\n", color.CyanString("accepted"), t.ID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for !t.Status.State.IsTerminal() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if t, err = c.GetTask(ctx, &a2a.TaskQueryParams{ID: t.ID}); err != nil {
			return err
		}
	}
	return printResult(out, t.Status, t.Artifacts)
}

func streamTask(ctx context.Context, out io.Writer, c *client.Client, params *a2a.MessageSendParams) error {
	stream, err := c.StreamMessage(ctx, params)
	if err != nil {
		return err
	}
	defer stream.Close()

	var artifacts []*a2a.Artifact
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return errors.New("stream ended without a final status")
		}
		if err != nil {
			return err
		}

		switch ev := ev.(type) {
		case *a2a.Task:
			fmt.Fprintf(out, "%s task %s\n", color.CyanString("accepted"), ev.ID)
		case *a2a.TaskArtifactUpdateEvent:
			artifacts = append(artifacts, ev.Artifact)
		case *a2a.TaskStatusUpdateEvent:
			if ev.Final {
				return printResult(out, ev.Status, artifacts)
			}
		}
	}
}

func printResult(out io.Writer, st a2a.TaskStatus, artifacts []*a2a.Artifact) error {
	for _, a := range artifacts {
		fmt.Fprintln(out, a2a.JoinText(a.Parts))
	}
	switch st.State {
	case a2a.TaskStateCompleted:
		fmt.Fprintln(out, color.GreenString(string(st.State)))
		return nil
	default:
		fmt.Fprintln(out, color.YellowString(string(st.State)))
		return fmt.Errorf("task %s: %s", st.State, st.Message.Text())
	}
}
