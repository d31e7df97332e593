package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/example/cdo-batch/internal/events"
	"github.com/example/cdo-batch/internal/ncfile"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print NetCDF header information of converted files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var emitter *events.Emitter
			if output == "ndjson" {
				emitter = events.NewEmitter(cmd.OutOrStdout())
			}

			var failed []string
			for _, path := range args {
				info, err := ncfile.Inspect(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed = append(failed, path)
					continue
				}

				if emitter != nil {
					if err := emitter.Emit(events.Event{Type: events.TypeInspect, Message: path, Fields: inspectFields(info)}); err != nil {
						return err
					}
					continue
				}
				printInfo(cmd.OutOrStdout(), info)
			}

			if len(failed) > 0 {
				return errors.New("cannot inspect " + strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "text", "Output format: text or ndjson")

	return cmd
}

func inspectFields(info ncfile.Info) map[string]any {
	return map[string]any{
		"kind":       string(info.Kind),
		"size":       info.Size,
		"variables":  info.Variables,
		"dimensions": info.Dimensions,
		"attributes": info.Attributes,
	}
}

func printInfo(w io.Writer, info ncfile.Info) {
	fmt.Fprintf(w, "%s (%s, %d bytes)\n", info.Path, info.Kind, info.Size)

	dims := make([]string, 0, len(info.Dimensions))
	for name := range info.Dimensions {
		dims = append(dims, name)
	}
	sort.Strings(dims)
	for _, name := range dims {
		fmt.Fprintf(w, "  dim %s = %d\n", name, info.Dimensions[name])
	}

	for _, name := range info.Variables {
		fmt.Fprintf(w, "  var %s\n", name)
	}

	if len(info.Attributes) > 0 {
		fmt.Fprintf(w, "  attributes: %s\n", strings.Join(info.Attributes, ", "))
	}
}
