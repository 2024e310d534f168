package cli

import (
	"strings"

	"github.com/fatih/color"

	"imageref/internal/registration/models"
)

var (
	doneColor    = color.New(color.FgGreen)
	pendingColor = color.New(color.FgYellow)
	unknownColor = color.New(color.FgRed)
	headColor    = color.New(color.Bold)
)

func statusLabel(s models.Status) string {
	switch {
	case s.IsDone():
		return doneColor.Sprint(models.StatusDone)
	case isPending(s):
		return pendingColor.Sprint(models.StatusPending)
	default:
		return unknownColor.Sprintf("%q", string(s))
	}
}

// isPending accepts a blank status too: new ledger rows are often left empty.
func isPending(s models.Status) bool {
	raw := strings.TrimSpace(string(s))
	return raw == "" || strings.EqualFold(raw, string(models.StatusPending))
}
