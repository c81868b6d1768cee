package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
)

var errUsage = errors.New("wrong number of arguments")

// Refresh runs a sync session and prints the resulting working list.
func (a *App) Refresh(ctx context.Context) error {
	list, err := a.service.Refresh(ctx)
	if sess := a.service.LastSession(); sess != nil {
		fmt.Fprintf(a.out, "Sync %s finished in %s mode\n", sess.ID, sess.Mode)
	}
	if err != nil {
		return err
	}
	a.printList(list)
	return nil
}

// List prints the working list without syncing.
func (a *App) List(ctx context.Context) error {
	a.printList(a.service.Devices())
	return nil
}

func (a *App) printList(list []*models.Device) {
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No devices.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDEVICE\tOS\tMANUFACTURER\tCHECKED OUT\tPENDING")
	for _, d := range list {
		out := "no"
		if d.IsCheckedOut {
			out = "yes"
		}
		pending := ""
		if d.IsPending() {
			pending = d.PendingOperation.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.OS, d.Manufacturer, out, pending)
	}
	_ = tw.Flush()
}

// Add asks for the descriptive fields and creates a device.
func (a *App) Add(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Device name:", a.out)
	if err != nil {
		return err
	}
	os, err := GetSimpleText(a.reader, "Operating system:", a.out)
	if err != nil {
		return err
	}
	mfr, err := GetSimpleText(a.reader, "Manufacturer:", a.out)
	if err != nil {
		return err
	}

	d, err := a.service.AddDevice(ctx, name, os, mfr)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device %d added%s\n", d.ID, pendingNote(d))
	return nil
}

// Show prints the detail view of one device.
func (a *App) Show(ctx context.Context, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	d, err := a.service.Device(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device: %s\nOS: %s\nManufacturer: %s\n", d.Name, d.OS, d.Manufacturer)
	if s := d.CheckoutSummary(); s != "" {
		fmt.Fprintln(a.out, s)
	}
	if d.IsPending() {
		fmt.Fprintf(a.out, "Pending: %s\n", d.PendingOperation)
	}
	return nil
}

func (a *App) CheckIn(ctx context.Context, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	d, err := a.service.CheckIn(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device %d checked in%s\n", d.ID, pendingNote(d))
	return nil
}

// CheckOut takes the borrower's name from the arguments or asks for it.
func (a *App) CheckOut(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	id, err := ParseID(args[0])
	if err != nil {
		return err
	}
	by := strings.Join(args[1:], " ")
	if by == "" {
		if by, err = GetSimpleText(a.reader, "Checked out by:", a.out); err != nil {
			return err
		}
	}

	d, err := a.service.CheckOut(ctx, id, by)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device %d checked out by %s%s\n", d.ID, by, pendingNote(d))
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	if err := a.service.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device %d deleted\n", id)
	return nil
}

// Status prints connectivity, the last session and the last online sync.
func (a *App) Status(ctx context.Context) error {
	fmt.Fprintf(a.out, "Server: %s %s\n", a.config.ServerURL, a.getStatus())

	if sess := a.service.LastSession(); sess != nil {
		fmt.Fprintf(a.out, "Last session: %s (%s), pulled %d, pushed %d, failed %d\n",
			sess.Finished.Format(time.DateTime), sess.Mode, sess.Report.Inserted+sess.Report.Refreshed,
			sess.Report.Pushed, sess.Report.Failed)
	}

	at, err := a.service.LastSyncAt(ctx)
	if err != nil {
		return err
	}
	if at.IsZero() {
		fmt.Fprintln(a.out, "Never synced with the server")
	} else {
		fmt.Fprintf(a.out, "Last online sync: %s\n", at.Local().Format(time.DateTime))
	}
	return nil
}

// Reset wipes the local store after confirmation.
func (a *App) Reset(ctx context.Context) error {
	answer, err := GetSimpleText(a.reader, "Discard all local data, including unsynced changes? (yes/no)", a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.service.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Local data cleared")
	return nil
}

func oneID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	return ParseID(args[0])
}

func pendingNote(d *models.Device) string {
	if d.IsPending() {
		return " (saved offline, will sync later)"
	}
	return ""
}
