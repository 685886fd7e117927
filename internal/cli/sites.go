package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/law-makers/pricecrawl/internal/extract"
	"github.com/law-makers/pricecrawl/internal/site"
	"github.com/law-makers/pricecrawl/internal/ui"
	"github.com/spf13/cobra"
)

var sitesCmd = &cobra.Command{
	Use:   "sites [name]",
	Short: "List configured sites, or show how one site is read",
	Example: `  # Built-in sites plus any loaded with --sites
  pricecrawl sites --sites ./shops.yaml

  # Field locators for one site, in priority order
  pricecrawl sites amazon`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return fmt.Errorf("application not initialized")
		}
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			printSites(out, a.Sites.Sites(), a.Config.Strategies)
			return nil
		}
		s, ok := a.Sites.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown site %q", args[0])
		}
		printSite(out, s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

func printSites(w io.Writer, sites []*site.Site, defaults []string) {
	width := 0
	for _, s := range sites {
		width = max(width, len(s.Name))
	}

	fmt.Fprintln(w)
	for _, s := range sites {
		hosts := strings.Join(s.Hosts, ", ")
		if hosts == "" {
			hosts = "(use with --site)"
		}
		var modes []string
		if s.Product != nil {
			modes = append(modes, "product")
		}
		if s.Listing != nil {
			modes = append(modes, "listing")
		}
		strategies := s.Strategies
		if len(strategies) == 0 {
			strategies = defaults
		}
		fmt.Fprintf(w, "  %s%s  %s\n", ui.ColorCyan+s.Name+ui.ColorReset, strings.Repeat(" ", width-len(s.Name)), hosts)
		fmt.Fprintf(w, "  %s  %s\n", strings.Repeat(" ", width),
			ui.Dim(fmt.Sprintf("%s | strategies: %s", strings.Join(modes, ", "), strings.Join(strategies, " > "))))
	}
	fmt.Fprintln(w)
}

func printSite(w io.Writer, s *site.Site) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold(s.Name))
	if len(s.Hosts) > 0 {
		fmt.Fprintf(w, "  hosts:       %s\n", strings.Join(s.Hosts, ", "))
	}
	if s.ProductPattern != nil {
		fmt.Fprintf(w, "  product URL: %s\n", s.ProductPattern)
	}
	if s.PageParam != "" {
		fmt.Fprintf(w, "  page param:  %s\n", s.PageParam)
	}
	for _, isl := range s.Islands {
		switch {
		case isl.Variable != "":
			fmt.Fprintf(w, "  data island: window.%s\n", isl.Variable)
		case isl.Selector != "":
			fmt.Fprintf(w, "  data island: %s\n", isl.Selector)
		}
	}

	if s.Product != nil {
		section(w, "Product fields")
		printSchema(w, s.Product)
	}
	if s.Listing != nil {
		section(w, "Listing items")
		if s.Listing.ItemsPath != "" {
			fmt.Fprintf(w, "  json: %s\n", s.Listing.ItemsPath)
		}
		if s.Listing.ItemSelector != "" {
			fmt.Fprintf(w, "  css:  %s\n", s.Listing.ItemSelector)
		}
		printSchema(w, s.Listing.Schema)
	}
	fmt.Fprintln(w)
}

func printSchema(w io.Writer, schema *extract.Schema) {
	for _, f := range schema.Fields() {
		name := f.Name
		if f.Required {
			name += " " + ui.Warn("(required)")
		}
		fmt.Fprintf(w, "  %s\n", ui.ColorCyan+name+ui.ColorReset)
		for i, l := range f.Locators {
			fmt.Fprintf(w, "    %d. %s\n", i+1, ui.Dim(describeLocator(l)))
		}
	}
}

func describeLocator(l extract.Locator) string {
	switch l.Kind {
	case extract.KindPattern:
		if l.InHTML {
			return "regex (html) " + l.Pattern.String()
		}
		return "regex " + l.Pattern.String()
	case extract.KindStructured:
		return "json " + l.Path
	}

	desc := "css " + l.Selector
	if l.Selector == "" {
		desc = "css (item)"
	}
	switch {
	case l.Key != "":
		desc += fmt.Sprintf(" rows [%s => %s]", l.Key, l.Value)
	case l.Attr != "":
		desc += " @" + l.Attr
	case l.InnerHTML:
		desc += " html"
	}
	if l.All {
		desc += " (all)"
	}
	return desc
}
