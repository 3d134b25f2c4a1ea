// Package tui holds the small interactive pieces used by vmstate: the
// purge confirmation and the progress spinner shown while a pass runs.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("aborted by user")

// accessible switches huh into its screen-reader friendly mode.
func accessible() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

// ConfirmPurge asks before a VM and its discs are destroyed for good.
func ConfirmPurge(vmName, group string) (bool, error) {
	confirm := false
	field := huh.NewConfirm().
		Title(fmt.Sprintf("Purge %s from group %s?", vmName, group)).
		Description("The VM and all of its discs are destroyed. This cannot be undone.").
		Affirmative("Yes, purge").
		Negative("Cancel").
		Value(&confirm)

	if err := runForm(accessible(), huh.NewGroup(field)); err != nil {
		return false, err
	}
	return confirm, nil
}

// RunWithSpinner runs fn while a spinner titled title is drawn on out.
// fn's error is returned; a cancelled spinner yields ErrAborted.
func RunWithSpinner(ctx context.Context, title string, out io.Writer, fn func(ctx context.Context) error) error {
	var actionErr error
	err := spinner.New().
		Title(title).
		Accessible(accessible()).
		Output(out).
		Context(ctx).
		ActionWithErr(func(ctx context.Context) error {
			actionErr = fn(ctx)
			return nil
		}).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
			return ErrAborted
		}
		return err
	}
	return actionErr
}

func runForm(accessible bool, groups ...*huh.Group) error {
	err := huh.NewForm(groups...).WithAccessible(accessible).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}
