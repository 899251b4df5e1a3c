package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sentineld/sentineld/internal/config"
	"github.com/sentineld/sentineld/internal/tokenstore"
)

// TokenCmd groups control-API credential management subcommands.
type TokenCmd struct {
	Bootstrap TokenBootstrapCmd `cmd:"" help:"Mint an initial bearer token without going through the HTTP invitation flow"`
}

// TokenBootstrapCmd mints and immediately redeems an invitation, printing the
// resulting bearer token. It exists for first-run setup: before any token
// exists, nothing can authenticate against the control API, so this path
// goes straight to the token store rather than through AccessGuard's
// local-network HTTP gate.
type TokenBootstrapCmd struct{}

func (t *TokenBootstrapCmd) Run(_ *Global, root *CLI) error {
	fleet, _, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load fleet config: %w", err)
	}

	store, err := tokenstore.Open(fleet.Access.SQLitePath, time.Duration(fleet.Access.InvitationTTLHours)*time.Hour)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	inv, err := store.CreateInvitation(ctx)
	if err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	tok, err := store.RedeemInvitation(ctx, inv.Code)
	if err != nil {
		return fmt.Errorf("redeem invitation: %w", err)
	}

	fmt.Println(tok.Value)
	return nil
}
