package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newModelsCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models and routes of the models file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.load(cmd)
			if err != nil {
				return err
			}
			file, err := e.models()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.jsonMode {
				return writeJSON(out, file)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, name := range file.ModelNames() {
				fmt.Fprintf(tw, "%s\n", name)
				def := file.Models[name].WithDefaults()
				for _, attr := range def.Names() {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", attr, def[attr].Type, flagsOf(def[attr]))
				}
			}
			if len(file.Routes) > 0 {
				fmt.Fprintln(tw, "\nroutes")
				for _, r := range file.Routes {
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", r.Method, r.Path, r.Handler, r.Model)
				}
			}
			return tw.Flush()
		},
	}
}

func flagsOf(a types.Attribute) string {
	var fl []string
	if a.PrimaryKey {
		fl = append(fl, "primaryKey")
	}
	if a.AutoIncrement {
		fl = append(fl, "autoIncrement")
	}
	if a.Unique {
		fl = append(fl, "unique")
	}
	if a.Required {
		fl = append(fl, "required")
	}
	sort.Strings(fl)
	return strings.Join(fl, ",")
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exitError(exitSysError, "marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
