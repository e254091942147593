package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/platform/config"
	"grunnlag/internal/platform/kafka"
	"grunnlag/internal/platform/logger"
)

func newWatchCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow published grunnlag envelopes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg config.Kafka
			if err := config.ParseEnv(&cfg); err != nil {
				return err
			}
			if !cfg.Enabled() {
				return errors.New("KAFKA_BROKERS is required")
			}
			consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers: cfg.Brokers,
				Topic:   cfg.Topic,
				Group:   group,
			}, logger.NewWithWriter(os.Stderr, logLevel, "text"))
			if err != nil {
				return err
			}
			defer consumer.Close()

			err = consumer.Run(cmd.Context(), envelopePrinter(cmd.OutOrStdout()))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Consumer group (default: read from the beginning)")
	return cmd
}

func envelopePrinter(w io.Writer) kafka.HandlerFunc {
	return func(_ context.Context, msg *kafka.Message) error {
		var env models.Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			fmt.Fprintf(w, "offset=%d key=%s undecodable: %v\n", msg.Offset, msg.Key, err)
			return nil
		}
		fmt.Fprintf(w, "%s case=%s kind=%s version=%d applicant_facts=%d relatives=%d actor=%s\n",
			env.PublishedAt.Format("2006-01-02T15:04:05Z07:00"),
			env.CaseID, env.Kind, env.Grunnlag.Metadata.LatestVersion,
			len(env.Grunnlag.Applicant), len(env.Grunnlag.Relatives), env.Actor)
		return nil
	}
}
