package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/wolfman30/sitelead-ai/cmd/mainconfig"
	"github.com/wolfman30/sitelead-ai/internal/app/bootstrap"
	"github.com/wolfman30/sitelead-ai/internal/business"
	appconfig "github.com/wolfman30/sitelead-ai/internal/config"
	"github.com/wolfman30/sitelead-ai/internal/conversation"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

type chatOptions struct {
	businessID string
	useLLM     bool
	verbose    bool
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session (one message per line)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.businessID, "business", "default", "business id for the session")
	cmd.Flags().BoolVar(&opts.useLLM, "llm", false, "use the language model configured in the environment")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print intent, stage and agent for each reply")
	return cmd
}

func runChat(cmd *cobra.Command, root *rootOptions, opts *chatOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := appconfig.Load()
	cfg.KeywordsPath = root.keywordsPath
	cfg.DefaultBusinessID = opts.businessID
	cfg.SessionBackend = "memory"
	logger := logging.NewWithWriter(root.logLevel, cmd.ErrOrStderr())

	deps := bootstrap.EngineDeps{
		Sessions:   bootstrap.BuildSessionStore(cfg, nil, nil, logger),
		Businesses: business.StaticProvider{},
		Logger:     logger,
	}
	if opts.useLLM {
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return err
		}
		if deps.LLM, err = bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger); err != nil {
			return err
		}
	}
	engine, err := bootstrap.BuildEngine(cfg, deps)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sessionID := ""
	scanner := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			break
		}
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		reply, err := engine.HandleMessage(ctx, conversation.Request{
			SessionID:  sessionID,
			BusinessID: opts.businessID,
			Message:    line,
		})
		if err != nil && !errors.Is(err, conversation.ErrEmptyMessage) {
			return err
		}
		if reply != nil {
			sessionID = reply.SessionID
			fmt.Fprintf(out, "%s\n", reply.Message)
			if opts.verbose {
				fmt.Fprintf(out, "  [agent=%s intent=%s stage=%s]\n", reply.AgentType, reply.Intent, reply.Stage)
			}
		}
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func loadAWS(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return mainconfig.LoadAWSConfig(ctx, cfg)
}
