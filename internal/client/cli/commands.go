package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/domains"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

var errBackupDisabled = errors.New("backup is not configured")

// now is replaced in tests.
var now = time.Now

// List prints the cached records of a domain. A background refresh is
// started by the hook when the device is online.
func (a *App) List(ctx context.Context, domain, search string) error {
	b, err := a.domains.Get(domain)
	if err != nil {
		return err
	}
	rows, err := b.List(ctx, search)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.printf("No %s yet\n", domain)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tDETAIL\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Title, r.Detail, r.Status)
	}
	return w.Flush()
}

// Add prompts for the fields of a domain and creates a record locally.
func (a *App) Add(ctx context.Context, domain string) error {
	b, err := a.domains.Get(domain)
	if err != nil {
		return err
	}
	answers, err := GetAnswers(a.reader, b.Fields(), false, a.out)
	if err != nil {
		return err
	}
	body, err := domains.Payload(b.Fields(), answers, true, now())
	if err != nil {
		return err
	}
	row, err := b.Create(ctx, body)
	if err != nil {
		return err
	}
	a.printf("Created %s %s (%s)\n", domain, row.ID, row.Status)
	return nil
}

// Edit prompts for new field values. Empty answers keep the current value.
func (a *App) Edit(ctx context.Context, domain, id string) error {
	b, err := a.domains.Get(domain)
	if err != nil {
		return err
	}
	cur, err := b.Get(ctx, id)
	if err != nil {
		return err
	}
	a.printf("Editing %s: %s\n", cur.ID, cur.Title)

	answers, err := GetAnswers(a.reader, b.Fields(), true, a.out)
	if err != nil {
		return err
	}
	body, err := domains.Payload(b.Fields(), answers, false, now())
	if err != nil {
		return err
	}
	row, err := b.Update(ctx, id, body)
	if err != nil {
		return err
	}
	a.printf("Updated %s %s (%s)\n", domain, row.ID, row.Status)
	return nil
}

// Delete removes a record after confirmation.
func (a *App) Delete(ctx context.Context, domain, id string) error {
	b, err := a.domains.Get(domain)
	if err != nil {
		return err
	}
	cur, err := b.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Delete %q?", cur.Title), a.out)
	if err != nil {
		return err
	}
	if !ok {
		a.printf("Cancelled\n")
		return nil
	}
	if err := b.Delete(ctx, id); err != nil {
		return err
	}
	a.printf("Deleted %s %s\n", domain, id)
	return nil
}

// Complete runs the complete action of domains that support it.
func (a *App) Complete(ctx context.Context, domain, id string) error {
	b, err := a.domains.Get(domain)
	if err != nil {
		return err
	}
	row, err := b.Do(ctx, id, domains.ActionComplete)
	if err != nil {
		return err
	}
	a.printf("Completed %s (%s)\n", row.Title, row.Status)
	return nil
}

// Sync pushes the queues of every domain and refetches the caches.
func (a *App) Sync(ctx context.Context) error {
	if !a.net.Online() {
		return common.ErrOffline
	}
	results, err := a.domains.SyncAll(ctx)
	a.printResults(results)
	return err
}

func (a *App) printResults(results map[string]services.SyncResult) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := results[name]
		a.printf("%-12s replayed %d, failed %d (retained %d, dropped %d) in %s\n",
			name, r.Replayed, r.Failed, r.Retained, r.Dropped, r.Duration.Round(time.Millisecond))
	}
}

// Status prints connectivity and the pending operations per domain.
func (a *App) Status(ctx context.Context) error {
	a.printf("Mode: %s\n", a.mode())
	if a.userName != "" {
		a.printf("User: %s\n", a.userName)
	}
	pending, err := a.domains.Pending(ctx)
	if err != nil {
		return err
	}
	for _, name := range a.domains.Names() {
		state := services.StateIdle
		if b, err := a.domains.Get(name); err == nil {
			state = b.State()
		}
		a.printf("%-12s pending %d, %s\n", name, pending[name], state)
	}
	return nil
}

// SyncOnce logs in, probes the server once and runs a full sync. It backs
// the non-interactive sync command.
func (a *App) SyncOnce(ctx context.Context) error {
	if err := a.Login(ctx); err != nil {
		return err
	}
	if !a.net.Check(ctx) {
		return common.ErrOffline
	}
	return a.Sync(ctx)
}

// Backup uploads a snapshot of the local caches and queues.
func (a *App) Backup(ctx context.Context) error {
	if a.backups == nil {
		return errBackupDisabled
	}
	key, err := a.backups.Backup(ctx)
	if err != nil {
		return err
	}
	a.printf("Backup stored as %s\n", key)
	return nil
}

// Restore replaces the local caches and queues with a snapshot. An empty
// key restores the newest snapshot.
func (a *App) Restore(ctx context.Context, key string) error {
	if a.backups == nil {
		return errBackupDisabled
	}
	if key == "" {
		keys, err := a.backups.List(ctx)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return fmt.Errorf("no backups found")
		}
		key = keys[0]
	}
	n, err := a.backups.Restore(ctx, key)
	if err != nil {
		return err
	}
	a.printf("Restored %d entries from %s\n", n, key)
	return nil
}

// Backups lists stored snapshots, newest first.
func (a *App) Backups(ctx context.Context) error {
	if a.backups == nil {
		return errBackupDisabled
	}
	keys, err := a.backups.List(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		a.printf("No backups\n")
		return nil
	}
	a.printf("%s\n", strings.Join(keys, "\n"))
	return nil
}
