package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/law-makers/pricecrawl/internal/app"
	"github.com/law-makers/pricecrawl/internal/pagination"
	"github.com/law-makers/pricecrawl/internal/ui"
	"github.com/law-makers/pricecrawl/internal/utils/output"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	listingFlags outputFlags
	pagesSpec    string
	pageParam    string
)

var listingCmd = &cobra.Command{
	Use:   "listing <url>",
	Short: "Scrape one or more pages of a search or category listing",
	Long: `Fetches the requested listing pages one after another and extracts every
product card on them.

Pages are de-duplicated and visited in ascending order with a pause between
them (see --delay). A page that fails is reported and the run continues.`,
	Example: `  # First three pages of a search
  pricecrawl listing "https://www.amazon.in/s?k=desk+lamp" --pages 1-3

  # Selected pages to CSV
  pricecrawl listing "https://www.myntra.com/lamps" --pages 1,4,7 -o lamps.csv

  # A shop that numbers pages with ?pg=
  pricecrawl listing https://shop.example/c/lamps --site jsonld --page-param pg`,
	Args: cobra.ExactArgs(1),
	RunE: runListing,
}

func init() {
	rootCmd.AddCommand(listingCmd)

	listingFlags.register(listingCmd)
	listingCmd.Flags().StringVarP(&pagesSpec, "pages", "p", "1", "Pages to fetch: list and ranges, e.g. 1,3,5-7")
	listingCmd.Flags().StringVar(&pageParam, "page-param", "", "Query parameter carrying the page number (default from the site)")
}

func runListing(cmd *cobra.Command, args []string) error {
	a, hdrs, err := listingFlags.setup(cmd)
	if err != nil {
		return err
	}
	format, err := output.FormatFor(listingFlags.path, listingFlags.format)
	if err != nil {
		return err
	}
	pages, err := parsePages(pagesSpec)
	if err != nil {
		return err
	}

	bar := newProgressBar(a, len(pagination.UniquePages(pages)), "pages")
	svc, err := a.Service(app.ServiceOptions{
		Site:      listingFlags.site,
		Headers:   hdrs,
		PageParam: pageParam,
		OnPage: func(o models.PageOutcome, done, total int) {
			bar.Describe(fmt.Sprintf("page %d", o.Page))
			_ = bar.Add(1)
		},
	})
	if err != nil {
		return err
	}

	batch, err := svc.ScrapeListingPages(cmd.Context(), args[0], pages)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case listingFlags.path != "":
		if err := output.SaveBatch(listingFlags.path, format, batch); err != nil {
			return err
		}
		log.Info().Str("file", listingFlags.path).Msg("Output saved")
		printBatch(cmd.ErrOrStderr(), batch)
		fmt.Fprintf(out, "%s Saved %d records to %s\n", ui.Success(ui.MarkOK), len(batch.AllRecords), listingFlags.path)
	case listingFlags.format != "":
		if format == output.FormatCSV {
			err = output.WriteBatchCSV(out, batch)
		} else {
			err = output.WriteJSON(out, batch)
		}
		if err != nil {
			return err
		}
	default:
		printBatch(out, batch)
	}

	if batch.SuccessCount == 0 {
		return fmt.Errorf("all %d page(s) failed", batch.FailureCount)
	}
	return nil
}

func printBatch(w io.Writer, batch *models.BatchResult) {
	fmt.Fprintln(w, "\n"+ui.Bold("Pages:"))
	for i, o := range batch.Outcomes {
		prefix := fmt.Sprintf("[%d/%d] page %d", i+1, len(batch.Outcomes), o.Page)
		if o.Failed() {
			fmt.Fprintf(w, "%s %s\n  %s\n", ui.Error(ui.MarkFail), prefix, ui.Dim(o.Error))
			continue
		}
		fmt.Fprintf(w, "%s %s  %s\n", ui.Success(ui.MarkOK), prefix, ui.Dim(fmt.Sprintf("%d records", len(o.Records))))
	}

	fmt.Fprintf(w, "\n%s\n", ui.Bold("Summary:"))
	fmt.Fprintf(w, "  %-10s %d\n", "Pages:", len(batch.UniquePages))
	fmt.Fprintf(w, "  %-10s %s\n", "Success:", ui.Success(strconv.Itoa(batch.SuccessCount)))
	fmt.Fprintf(w, "  %-10s %s\n", "Failed:", ui.Error(strconv.Itoa(batch.FailureCount)))
	fmt.Fprintf(w, "  %-10s %d\n", "Records:", len(batch.AllRecords))
	if batch.RunID != "" {
		fmt.Fprintf(w, "  %-10s %s\n", "Run:", ui.Dim(batch.RunID))
	}
	fmt.Fprintln(w)
}

// maxPageSpan bounds a single range so a typo like 1-10000 is rejected
const maxPageSpan = 500

// parsePages reads "1,3,5-7" into page numbers. Duplicates are kept; the
// orchestrator removes them. Page numbers below 1 are left for the service
// to reject.
func parsePages(arg string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange || lo == "" {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid page %q", part)
			}
			pages = append(pages, n)
			continue
		}
		from, err1 := strconv.Atoi(strings.TrimSpace(lo))
		to, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || to < from {
			return nil, fmt.Errorf("invalid page range %q", part)
		}
		if to-from >= maxPageSpan {
			return nil, fmt.Errorf("page range %q spans more than %d pages", part, maxPageSpan)
		}
		for n := from; n <= to; n++ {
			pages = append(pages, n)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages given")
	}
	return pages, nil
}
