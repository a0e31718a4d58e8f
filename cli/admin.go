package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getfairai/sifter/admin"
	"github.com/getfairai/sifter/storage"
)

// errNotLoggedIn is returned by admin commands without a stored token.
var errNotLoggedIn = errors.New("not logged in (run 'sifter admin login')")

// AdminLogin authenticates and stores the token.
func (a *App) AdminLogin(ctx context.Context, password string, tokens storage.TokenStore) error {
	token, err := a.admin.Authenticate(ctx, password)
	if err != nil {
		return err
	}
	if err := tokens.SaveAdminToken(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

// AdminLogout forgets the stored token.
func (a *App) AdminLogout(ctx context.Context, tokens storage.TokenStore) error {
	if err := tokens.ClearAdminToken(ctx); err != nil {
		return err
	}
	a.admin.SetToken("")
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) loadAdminToken(ctx context.Context, tokens storage.TokenStore) error {
	token, err := tokens.AdminToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return errNotLoggedIn
	}
	a.admin.SetToken(token)
	return nil
}

// AdminLogs prints one page of a log source and the next offset.
func (a *App) AdminLogs(ctx context.Context, tokens storage.TokenStore, source string, offset, limit int64) error {
	if err := a.loadAdminToken(ctx, tokens); err != nil {
		return err
	}
	slice, err := a.admin.LogSlice(ctx, source, offset, limit)
	if err != nil {
		return err
	}
	text := slice.Text()
	fmt.Fprint(a.out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(a.out)
	}
	if slice.HasMore {
		fmt.Fprintf(a.errOut, "(more available: --offset %d)\n", slice.NextOffset)
	}
	return nil
}

// AdminStream follows a log source until ctx is cancelled.
func (a *App) AdminStream(ctx context.Context, tokens storage.TokenStore, source string) error {
	if err := a.loadAdminToken(ctx, tokens); err != nil {
		return err
	}
	err := a.admin.StreamLogs(ctx, source, func(chunk string) {
		fmt.Fprint(a.out, chunk)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// AdminExport prints exported conversation turns, one JSON object per line.
func (a *App) AdminExport(ctx context.Context, tokens storage.TokenStore, opts admin.ExportOptions) error {
	if err := a.loadAdminToken(ctx, tokens); err != nil {
		return err
	}
	turns, err := a.admin.ExportConversations(ctx, opts)
	if err != nil {
		return err
	}
	for _, turn := range turns {
		fmt.Fprintln(a.out, string(turn))
	}
	fmt.Fprintf(a.errOut, "(%d turns)\n", len(turns))
	return nil
}

// AdminFeedback prints one page of platform feedback.
func (a *App) AdminFeedback(ctx context.Context, tokens storage.TokenStore, limit, offset int) error {
	if err := a.loadAdminToken(ctx, tokens); err != nil {
		return err
	}
	page, err := a.admin.PlatformFeedback(ctx, limit, offset)
	if err != nil {
		return err
	}
	for _, entry := range page.Feedback {
		fmt.Fprintln(a.out, string(entry))
	}
	if page.HasMore {
		fmt.Fprintf(a.errOut, "(more available: --offset %d)\n", page.NextOffset)
	}
	return nil
}
