package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terra-clan/dungeon-engine/internal/catalog"
)

// CatalogCommand creates the catalog command group
func CatalogCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect dungeon template files",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "./templates", "Catalog directory")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate every template file in the catalog directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := ValidateCatalog(dir)
			if err != nil {
				return err
			}

			failed := 0
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", r.File, r.Err)
					continue
				}
				fmt.Fprintf(out, "ok   %s\n", r.File)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d template file(s) invalid", failed, len(results))
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the templates that load from the catalog directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := catalog.NewLoader()
			if err := loader.LoadFromDir(dir); err != nil {
				return err
			}
			return printCatalog(cmd, loader.List())
		},
	}

	cmd.AddCommand(validate, list)
	return cmd
}

// FileResult is the validation outcome of one template file
type FileResult struct {
	File string
	Err  error
}

// ValidateCatalog loads each template file of dir on its own and reports the
// outcome per file. Duplicate ids are reported as errors.
func ValidateCatalog(dir string) ([]FileResult, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml", "*/*.yaml", "*/*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no template files in %s", dir)
	}

	seen := make(map[string]string)
	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		loader := catalog.NewLoader()
		err := loader.LoadFromFile(file)
		if err == nil {
			for _, tmpl := range loader.List() {
				if prev, ok := seen[tmpl.ID]; ok {
					err = fmt.Errorf("duplicate template id %q (also in %s)", tmpl.ID, prev)
					break
				}
				seen[tmpl.ID] = file
			}
		}
		results = append(results, FileResult{File: file, Err: err})
	}
	return results, nil
}

func printCatalog(cmd *cobra.Command, templates []*catalog.Template) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMIN LEVEL\tCOST\tDAILY\tDIFFICULTIES\tUNLOCKED")
	for _, t := range templates {
		difficulties := make([]string, 0, len(t.Difficulties))
		for _, d := range t.Difficulties {
			difficulties = append(difficulties, fmt.Sprintf("%s(%d)", d, len(t.Waves[d])))
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%t\n",
			t.ID, t.Name, t.MinLevel, t.EntryCost, t.DailyLimit,
			strings.Join(difficulties, ","), t.IsUnlocked())
	}
	return w.Flush()
}
