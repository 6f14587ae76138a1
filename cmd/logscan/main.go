// Command logscan hunts for an error string in a CloudWatch Logs group
// and prints the events around the first occurrence.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/urfave/cli/v3"

	"github.com/project-penguin/notify-console/internal/logscan"
)

func main() {
	cmd := &cli.Command{
		Name:  "logscan",
		Usage: "print the log context around an error string",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "group",
				Usage: "log group name",
				Value: "/ecs/worker/dev",
			},
			&cli.DurationFlag{
				Name:  "since",
				Usage: "look-back window",
				Value: 30 * time.Minute,
			},
			&cli.StringFlag{
				Name:  "match",
				Usage: "substring to locate",
				Value: "Parameter validation failed",
			},
			&cli.IntFlag{
				Name:  "before",
				Usage: "events to print before the match",
				Value: 50,
			},
			&cli.IntFlag{
				Name:  "after",
				Usage: "events to print after the match",
				Value: 10,
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	scanner := logscan.New(cloudwatchlogs.NewFromConfig(awsCfg))

	report, err := scanner.Scan(ctx, logscan.Params{
		Group:  cmd.String("group"),
		Since:  cmd.Duration("since"),
		Match:  cmd.String("match"),
		Before: cmd.Int("before"),
		After:  cmd.Int("after"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("fetched %d events\n", report.Total)
	if !report.Matched {
		fmt.Printf("no event matching %q found\n", cmd.String("match"))
		return nil
	}

	for _, e := range report.Context {
		fmt.Printf("[%s] %s\n", e.Timestamp.Format(time.RFC3339), e.Message)
	}
	return nil
}
