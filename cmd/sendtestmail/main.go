// Command sendtestmail sends a single test email through SES to verify
// sender identity and account setup.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "sendtestmail",
		Usage: "send a one-off test email via SES",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "from",
				Usage:    "verified sender address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "to",
				Usage:    "recipient address",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "subject",
				Value: "Test Subject",
			},
			&cli.StringFlag{
				Name:  "body",
				Value: "Test Body",
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

	client := sesv2.NewFromConfig(awsCfg)

	fmt.Printf("sending from %s to %s...\n", cmd.String("from"), cmd.String("to"))

	out, err := client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(cmd.String("from")),
		Destination: &sestypes.Destination{
			ToAddresses: []string{cmd.String("to")},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(cmd.String("subject"))},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(cmd.String("body"))},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	fmt.Printf("success, message id: %s\n", aws.ToString(out.MessageId))
	return nil
}
