package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/nci/lulcagg/catalogue"
	"github.com/nci/lulcagg/gdalio"
	"github.com/nci/lulcagg/metrics"
	"github.com/nci/lulcagg/processor"
)

type rasterInfo struct {
	Path         string                 `json:"path"`
	Width        int                    `json:"width"`
	Height       int                    `json:"height"`
	Bands        int                    `json:"bands"`
	DataType     string                 `json:"data_type"`
	GeoTransform processor.GeoTransform `json:"geotransform"`
	CRS          string                 `json:"crs,omitempty"`
	NoData       string                 `json:"nodata,omitempty"`
	Geometry     string                 `json:"geometry"`
	Job          string                 `json:"job,omitempty"`
	Source       string                 `json:"source,omitempty"`
	Operation    string                 `json:"operation,omitempty"`
	ClassName    string                 `json:"class_name,omitempty"`
}

// outputLookup finds the catalogue record of a produced raster.
type outputLookup interface {
	Lookup(ctx context.Context, path string) (*processor.OutputRecord, error)
}

var infoCmd = &cobra.Command{
	Use:   "info [path...]",
	Short: "Print the grid, georeferencing and no-data value of rasters as JSON",
	Long: `Prints one JSON document per raster. A single '-' reads the paths from
stdin, one per line. With --catalogue, rasters produced by a job also
show the job, operation, class and source they were registered with.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		paths := args
		if len(args) == 1 && args[0] == "-" {
			paths = nil
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					paths = append(paths, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}
		}

		var lookup outputLookup
		if catalogueDSN != "" {
			cat, cerr := catalogue.Open(cmd.Context(), catalogueDSN)
			if cerr != nil {
				return cerr
			}
			defer func() { err = multierr.Append(err, cat.Close()) }()
			lookup = cat
		}
		return printInfo(cmd.Context(), cmd.OutOrStdout(), gdalio.NewReader(), lookup, paths)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// printInfo encodes one document per path. lookup may be nil.
func printInfo(ctx context.Context, w io.Writer, reader processor.RasterReader, lookup outputLookup, paths []string) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, path := range paths {
		ri, err := reader.Info(path)
		if err != nil {
			return err
		}
		info := &rasterInfo{
			Path:         path,
			Width:        ri.Width,
			Height:       ri.Height,
			Bands:        ri.Bands,
			DataType:     ri.DataType,
			GeoTransform: ri.GeoTransform,
			CRS:          ri.CRS,
			Geometry:     metrics.BBoxToWkt(processor.Footprint(ri.GeoTransform, ri.Height, ri.Width)),
		}
		// nodata is a string so NaN survives JSON
		if ri.NoData != nil {
			info.NoData = strconv.FormatFloat(*ri.NoData, 'g', -1, 64)
		}
		if lookup != nil {
			rec, err := lookup.Lookup(ctx, path)
			if err != nil {
				return err
			}
			if rec != nil {
				info.Job, info.Source, info.Operation, info.ClassName = rec.Job, rec.Source, rec.Operation, rec.ClassName
			}
		}
		if err := enc.Encode(info); err != nil {
			return err
		}
	}
	return nil
}

