package main

import (
	"context"
	"fmt"
	"time"

	"github.com/codecritic/codecritic/llm"
	"github.com/spf13/cobra"
)

var validateKeyCmd = &cobra.Command{
	Use:   "validate-key",
	Short: "Check that the configured model API key works",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if cfg.Model.Provider == llm.ProviderAnthropic {
			err = llm.ValidateAnthropicKey(ctx, cfg.Model.APIKey)
		} else {
			var client llm.Client
			client, err = llm.New(cfg.LLMConfig())
			if err == nil {
				err = llm.Validate(ctx, client)
			}
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s key %s is valid\n", cfg.Model.Provider, llm.KeyHint(cfg.Model.APIKey))
		return nil
	},
}
