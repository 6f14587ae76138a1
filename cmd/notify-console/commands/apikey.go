package commands

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/project-penguin/notify-console/internal/app"
	"github.com/project-penguin/notify-console/internal/credstore"
)

func apikeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apikey",
		Usage: "manage the API key in the OS keyring",
		Commands: []*cli.Command{
			{
				Name:   "set",
				Usage:  "store the API key in the OS keyring",
				Action: apikeySetAction,
			},
		},
	}
}

// apikeySetAction prompts for the key without echo and writes it to the
// keyring, so local setups can use auth.key_source = "keyring" instead
// of a key in a dotfile.
func apikeySetAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Keyring user defaults to the OS user when the active key source is
	// not the keyring and no user was configured.
	keyringUser := cfg.Auth.KeyringUser
	if keyringUser == "" {
		current, err := user.Current()
		if err != nil {
			return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
		}
		keyringUser = current.Username
	}

	source, err := credstore.NewKeyringKeySource(app.KeyringService, keyringUser)
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	fmt.Fprint(os.Stderr, "API key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading API key: %w", err)
	}
	if len(key) == 0 {
		return fmt.Errorf("empty API key")
	}

	if err := source.StoreKey(ctx, string(key)); err != nil {
		return fmt.Errorf("storing API key: %w", err)
	}

	fmt.Fprintf(os.Stderr, "API key stored for user %s\n", keyringUser)
	return nil
}
