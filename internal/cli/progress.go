package cli

import (
	"os"

	"github.com/law-makers/pricecrawl/internal/app"
	"github.com/schollz/progressbar/v3"
)

// newProgressBar draws on stderr. It stays hidden in quiet or JSON-log mode
// so machine-readable output is not interleaved with bar redraws.
func newProgressBar(a *app.Application, total int, description string) *progressbar.ProgressBar {
	visible := a.Config.LogLevel != "error" && !a.Config.JSONLog
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
	)
}
