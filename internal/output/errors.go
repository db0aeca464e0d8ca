package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
)

// FormatError prints the user-facing message for err, plus the cause when verbose
func FormatError(w io.Writer, err error, verbose bool) {
	red := color.New(color.FgRed, color.Bold)

	red.Fprint(w, "Error: ")
	fmt.Fprintln(w, apperrors.UserMessage(err))
	if verbose {
		fmt.Fprintf(w, "  %s: %v\n", apperrors.KindOf(err), err)
	}
}
