package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/sitelead-ai/internal/conversation"
)

type rootOptions struct {
	keywordsPath string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "chatcli",
		Short:         "Exercise the SiteLead conversation engine locally",
		Long:          `chatcli runs chat turns, contact extraction and intent classification without the HTTP server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.keywordsPath, "keywords", "", "YAML keyword override file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(newChatCmd(opts), newExtractCmd(opts), newClassifyCmd(opts))
	return root
}

func (o *rootOptions) keywords() (*conversation.Keywords, error) {
	return conversation.LoadKeywords(o.keywordsPath)
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <text>",
		Short: "Print the name, email and phone found in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keywords, err := opts.keywords()
			if err != nil {
				return err
			}
			res := conversation.NewExtractor(keywords).Extract(strings.Join(args, " "))
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Print the intent flags for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keywords, err := opts.keywords()
			if err != nil {
				return err
			}
			cls := conversation.NewClassifier(keywords).Classify(strings.Join(args, " "), nil)
			return writeJSON(cmd.OutOrStdout(), cls)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
