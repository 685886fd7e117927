package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/law-makers/pricecrawl/internal/app"
	"github.com/law-makers/pricecrawl/internal/downloader"
	"github.com/law-makers/pricecrawl/internal/extract"
	"github.com/law-makers/pricecrawl/internal/ui"
	headersutil "github.com/law-makers/pricecrawl/internal/utils/headers"
	"github.com/law-makers/pricecrawl/internal/utils/output"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// outputFlags are shared by product and listing
type outputFlags struct {
	path    string
	format  string
	site    string
	headers []string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.path, "output", "o", "", "File to save results to (.json or .csv)")
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "Output format: json or csv (default from --output extension)")
	cmd.Flags().StringVar(&o.site, "site", "", "Use this site's configuration instead of matching the URL host")
	cmd.Flags().StringArrayVarP(&o.headers, "header", "H", []string{}, "Custom headers (e.g., -H \"Accept-Language: en-IN\")")
}

// setup returns the application and the parsed -H headers
func (o *outputFlags) setup(cmd *cobra.Command) (*app.Application, map[string]string, error) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return nil, nil, fmt.Errorf("application not initialized")
	}
	hdrs, err := headersutil.Parse(o.headers)
	if err != nil {
		return nil, nil, err
	}
	return a, hdrs, nil
}

var productFlags outputFlags
var imagesDir string

var productCmd = &cobra.Command{
	Use:   "product <url>",
	Short: "Scrape one product page",
	Long: `Fetches a product page and extracts its canonical fields: title, brand,
prices, discount, images, description and attributes.

Fields that cannot be located are left out of the record. A missing title is
an error.`,
	Example: `  # Print a product summary
  pricecrawl product https://www.amazon.in/dp/B0CHX1W1XY

  # Save as JSON and download the images
  pricecrawl product https://www.flipkart.com/p/itm123 -o lamp.json --images ./img

  # Use the generic JSON-LD extractor for an unlisted shop
  pricecrawl product https://shop.example/p/1 --site jsonld`,
	Args: cobra.ExactArgs(1),
	RunE: runProduct,
}

func init() {
	rootCmd.AddCommand(productCmd)

	productFlags.register(productCmd)
	productCmd.Flags().StringVar(&imagesDir, "images", "", "Download the product's images into this directory")
}

func runProduct(cmd *cobra.Command, args []string) error {
	a, hdrs, err := productFlags.setup(cmd)
	if err != nil {
		return err
	}
	format, err := output.FormatFor(productFlags.path, productFlags.format)
	if err != nil {
		return err
	}

	svc, err := a.Service(app.ServiceOptions{Site: productFlags.site, Headers: hdrs})
	if err != nil {
		return err
	}

	rec, err := svc.ScrapeSingle(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case productFlags.path != "":
		if err := output.SaveRecords(productFlags.path, format, []*models.ProductRecord{rec}); err != nil {
			return err
		}
		log.Info().Str("file", productFlags.path).Msg("Output saved")
		fmt.Fprintf(out, "%s Saved to %s\n", ui.Success(ui.MarkOK), productFlags.path)
	case productFlags.format != "":
		if format == output.FormatCSV {
			err = output.WriteRecordsCSV(out, []*models.ProductRecord{rec})
		} else {
			err = output.WriteJSON(out, rec)
		}
		if err != nil {
			return err
		}
	default:
		printRecord(out, rec)
	}

	if imagesDir != "" {
		return downloadImages(cmd.Context(), a, rec, imagesDir, out)
	}
	return nil
}

// summaryOrder puts the headline fields first
var summaryOrder = []string{
	extract.FieldTitle,
	extract.FieldBrand,
	extract.FieldSellingPrice,
	extract.FieldMRP,
	extract.FieldDiscount,
	extract.FieldDiscountPercent,
	extract.FieldRating,
}

func printRecord(w io.Writer, rec *models.ProductRecord) {
	fmt.Fprintf(w, "\n%s %s\n", ui.Bold("Source:"), rec.Source)
	fmt.Fprintf(w, "%s %s\n\n", ui.Bold("URL:   "), rec.URL)

	shown := make(map[string]bool)
	row := func(name string) {
		v, ok := rec.Get(name)
		if !ok || shown[name] {
			return
		}
		shown[name] = true
		label := fmt.Sprintf("%-16s", name)
		if isLowConfidence(rec, name) {
			label = fmt.Sprintf("%-16s", name+"*")
		}
		fmt.Fprintf(w, "  %s %s\n", ui.Dim(label), preview(v))
	}

	for _, name := range summaryOrder {
		row(name)
	}
	rest := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		row(name)
	}

	if len(rec.LowConfidence) > 0 {
		fmt.Fprintf(w, "\n  %s\n", ui.Info("* derived, not located on the page"))
	}
	fmt.Fprintln(w)
}

func isLowConfidence(rec *models.ProductRecord, name string) bool {
	for _, f := range rec.LowConfidence {
		if f == name {
			return true
		}
	}
	return false
}

// preview renders a field value on one line
func preview(v any) string {
	switch x := v.(type) {
	case []string:
		switch len(x) {
		case 0:
			return "-"
		case 1:
			return x[0]
		}
		return fmt.Sprintf("%s (+%d more)", x[0], len(x)-1)
	case map[string]string:
		return fmt.Sprintf("%d entries", len(x))
	case map[string]any:
		return fmt.Sprintf("%d entries", len(x))
	case float64:
		return fmt.Sprintf("%.2f", x)
	case string:
		s := strings.Join(strings.Fields(x), " ")
		if len(s) > 100 {
			s = s[:100] + "..."
		}
		return s
	}
	return fmt.Sprint(v)
}

func downloadImages(ctx context.Context, a *app.Application, rec *models.ProductRecord, dir string, w io.Writer) error {
	jobs := downloader.ImageJobs(rec)
	if len(jobs) == 0 {
		fmt.Fprintln(w, ui.Info("No images found on this product."))
		return nil
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}

	d := downloader.New(a.HTTPClient, a.RateLimiter, a.Config.UserAgent)
	pool := downloader.NewWorkerPool(a.Config.DownloadWorkers, d)

	bar := newProgressBar(a, len(jobs), "images")
	start := time.Now()
	results := pool.Run(ctx, jobs, downloader.Options{
		OutputDir: absDir,
		Headers:   map[string]string{"Referer": rec.URL},
	}, func(*downloader.Result) { _ = bar.Add(1) })
	_ = bar.Finish()

	failed := 0
	var total int64
	for _, r := range results {
		if !r.OK() {
			failed++
			fmt.Fprintf(w, "%s %s\n  %s\n", ui.Error(ui.MarkFail), r.URL, ui.Dim(r.Err.Error()))
			continue
		}
		total += r.Size
	}

	fmt.Fprintf(w, "%s %d/%d images, %s in %v -> %s\n",
		ui.Bold("Downloaded"), len(results)-failed, len(results),
		formatBytes(total), time.Since(start).Round(time.Millisecond), absDir)

	if failed > 0 {
		return fmt.Errorf("%d image download(s) failed", failed)
	}
	return nil
}

// formatBytes formats byte count as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
