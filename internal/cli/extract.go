package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/blotch/internal/colour"
	"github.com/jmylchreest/blotch/internal/image"
	"github.com/jmylchreest/blotch/internal/store"
	"github.com/jmylchreest/blotch/internal/util/imagecache"
	"github.com/jmylchreest/blotch/internal/watch"
)

type extractOptions struct {
	*globalOptions

	cfg       colour.Config
	fixed     []string
	format    outputFormat
	output    string
	preview   bool
	maxDim    int
	rawWidth  int
	cache     bool
	cacheDir  string
	overwrite bool
	match     string
	store     bool
	storePath string
	watch     bool
}

func newExtractCmd(global *globalOptions) *cobra.Command {
	opts := &extractOptions{
		globalOptions: global,
		cfg:           colour.DefaultConfig(),
		format:        formatHex,
	}

	cmd := &cobra.Command{
		Use:   "extract <image|url|directory>",
		Short: "Extract the significant colours of an image",
		Long: `Extract a palette of significant colours from an image.

The image is clustered into at most --colors colours, then every colour is
scored by population and by the size of its connected regions. Colours
scoring at or below --threshold are dropped. Fixed colours are always
part of the clustering and are listed first when they survive.

Supported image formats: JPEG, PNG, GIF, WebP, AVIF. A directory picks a random
image inside it, optionally filtered with --match. With --raw-width the
input is read as raw RGBA bytes (optionally .xz compressed) with the given
row width.

Examples:
  # Extract up to 16 colours (default) from an image
  blotch extract wallpaper.jpg

  # Keep black and white in the palette
  blotch extract --fixed '#000000,#ffffff' wallpaper.png

  # Cluster in RGB and emit JSON with the significance data
  blotch extract --colorspace rgb -f json wallpaper.png

  # Downscale large images before extraction
  blotch extract --max-dimension 512 photo.jpg

  # Random wallpaper from a directory
  blotch extract --match '*dark*' ~/Pictures/wallpapers

  # Re-extract every time the wallpaper is rewritten
  blotch extract --watch --store wallpaper.png

  # Raw RGBA dump, 640 pixels wide
  blotch extract --raw-width 640 frame.rgba.xz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.fixed, "fixed", nil, "comma separated hex colours always kept in the palette")
	f.IntVarP(&opts.cfg.QtyMax, "colors", "c", opts.cfg.QtyMax, "maximum number of colours")
	f.Var(newColorSpaceValue(opts.cfg.ColorSpace, &opts.cfg.ColorSpace), "colorspace", "clustering colour space (rgb, xyz, lab)")
	f.Float64Var(&opts.cfg.Threshold, "threshold", opts.cfg.Threshold, "minimum significance factor a colour needs to be kept (0 uses the default; a negative value keeps every colour)")
	f.IntVar(&opts.cfg.StopIncQty, "stop", opts.cfg.StopIncQty, "stop after this many iterations without improvement")
	f.IntVar(&opts.cfg.MaxIterations, "steps", opts.cfg.MaxIterations, "maximum refinement iterations")
	f.Float64Var(&opts.cfg.RFactor, "r-factor", opts.cfg.RFactor, "weight of population against distance when ordering (0-1)")
	f.Float64Var(&opts.cfg.RThreshold, "r-threshold", opts.cfg.RThreshold, "reserved distance threshold")
	f.VarP(&opts.format, "format", "f", "output format (hex, text, rgb, json, table)")
	f.StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	f.BoolVar(&opts.preview, "preview", false, "show colour swatches when writing to a terminal")
	f.IntVar(&opts.maxDim, "max-dimension", 0, "downscale so the longer side is at most this many pixels (0 = off)")
	f.IntVar(&opts.rawWidth, "raw-width", 0, "read the input as raw RGBA with this row width")
	f.StringVar(&opts.match, "match", "", "glob a file name must match when the input is a directory")
	f.BoolVar(&opts.cache, "cache", false, "cache remote images on disk")
	f.StringVar(&opts.cacheDir, "cache-dir", "", "image cache directory (default: user cache dir)")
	f.BoolVar(&opts.overwrite, "cache-overwrite", false, "re-download remote images that are already cached")

	f.BoolVar(&opts.store, "store", false, "reuse and record palettes in the palette store")
	f.StringVar(&opts.storePath, "store-path", "", "palette store database (default: user cache dir)")
	f.BoolVarP(&opts.watch, "watch", "w", false, "extract again whenever the image file changes")

	return cmd
}

func runExtract(cmd *cobra.Command, opts *extractOptions, input string) error {
	logger := opts.newLogger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	fixed, err := colour.ParseHexList(opts.fixed)
	if err != nil {
		return fmt.Errorf("invalid --fixed: %w", err)
	}
	cfg := opts.cfg
	cfg.Fixed = fixed
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := input
	if opts.rawWidth == 0 {
		path, err = image.ResolveImagePath(input, opts.match)
		if err != nil {
			return fmt.Errorf("invalid image path: %w", err)
		}
		if path != input {
			logger.Info("selected image from directory", "path", path)
		}
	}
	if opts.watch && image.IsURL(path) {
		return fmt.Errorf("cannot watch a remote image: %s", path)
	}

	var st *store.Store
	if opts.store {
		st, err = openStore(ctx, opts.storePath, logger)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	extract := func() error {
		pixels, width, err := loadPixels(ctx, opts, path, logger)
		if err != nil {
			return err
		}
		palette, err := extractPalette(ctx, st, path, pixels, width, cfg, logger)
		if err != nil {
			return err
		}
		return writePalette(cmd, opts, palette, logger)
	}

	if err := extract(); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	logger.Info("watching for changes, interrupt to stop", "path", path)
	return watch.File(ctx, path, extract, watch.Options{Logger: logger.Named("watch")})
}

// extractPalette runs the extractor, going through the palette store when one is open.
func extractPalette(ctx context.Context, st *store.Store, source string, pixels []uint8, width int, cfg colour.Config, logger hclog.Logger) (*colour.Palette, error) {
	var key string
	if st != nil {
		key = store.Key(pixels, width, cfg)
		palette, ok, err := st.Get(ctx, key)
		if err != nil {
			logger.Warn("palette store lookup failed", "error", err)
		} else if ok {
			logger.Debug("palette loaded from store", "key", key[:12])
			return palette, nil
		}
	}

	palette, err := colour.NewExtractor(logger.Named("extract")).Extract(pixels, width, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract colours: %w", err)
	}
	logger.Debug("palette extracted", "colors", palette.Len())

	if st != nil {
		if err := st.Put(ctx, key, source, palette); err != nil {
			logger.Warn("failed to store palette", "error", err)
		} else if _, err := st.Prune(ctx, 0); err != nil {
			logger.Warn("failed to prune palette store", "error", err)
		}
	}
	return palette, nil
}

// writePalette formats the palette and writes it to the output file or stdout.
func writePalette(cmd *cobra.Command, opts *extractOptions, palette *colour.Palette, logger hclog.Logger) error {
	// Swatches only make sense on an interactive stdout.
	preview := opts.preview && opts.output == "" && colour.IsTerminal(cmd.OutOrStdout())
	out, err := formatPalette(palette, opts.format, preview)
	if err != nil {
		return err
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(out), 0o644); err != nil { // #nosec G306 - Palette output is not sensitive
			return fmt.Errorf("failed to write output file: %w", err)
		}
		logger.Info("wrote palette", "path", opts.output)
		return nil
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

// loadPixels reads path as an RGBA buffer and returns it with its row width.
func loadPixels(ctx context.Context, opts *extractOptions, path string, logger hclog.Logger) ([]uint8, int, error) {
	if opts.rawWidth > 0 {
		raw, err := image.LoadRaw(path, opts.rawWidth)
		if err != nil {
			return nil, 0, err
		}
		logger.Debug("raw image loaded", "path", path, "width", raw.Width, "height", raw.Height)
		return raw.Pix, raw.Width, nil
	}

	var cache *imagecache.Cache
	if opts.cache {
		c, err := imagecache.New(imagecache.Options{Dir: opts.cacheDir, Overwrite: opts.overwrite})
		if err != nil {
			return nil, 0, err
		}
		cache = c
	}

	var loader image.Loader = image.NewSmartLoader(cache)
	img, err := loader.Load(ctx, path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load image: %w", err)
	}
	b := img.Bounds()
	logger.Debug("image loaded", "path", path, "width", b.Dx(), "height", b.Dy())

	if opts.maxDim > 0 {
		img = image.Downscale(img, opts.maxDim)
		if nb := img.Bounds(); nb != b {
			logger.Debug("image downscaled", "width", nb.Dx(), "height", nb.Dy())
		}
	}

	pixels, width := colour.ToNRGBA(img)
	return pixels, width, nil
}

// formatPalette renders the palette in the requested format.
func formatPalette(palette *colour.Palette, format outputFormat, preview bool) (string, error) {
	var sb strings.Builder
	switch format {
	case formatHex:
		for _, e := range palette.Entries {
			if preview {
				sb.WriteString(colour.FormatColourWithPreview(e.RGB, 8))
			} else {
				sb.WriteString(e.Hex)
			}
			sb.WriteByte('\n')
		}
	case formatRGB:
		for _, e := range palette.Entries {
			if preview {
				sb.WriteString(colour.ColourPreview(e.RGB, 8) + "  ")
			}
			sb.WriteString(e.RGB.String())
			sb.WriteByte('\n')
		}
	case formatText:
		sb.WriteString(palette.String())
	case formatJSON:
		data, err := palette.ToJSON()
		if err != nil {
			return "", fmt.Errorf("failed to convert to JSON: %w", err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	case formatTable:
		sb.WriteString(paletteTable(palette, preview).Render())
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
	return sb.String(), nil
}

// paletteTable lays out each entry with its significance data.
func paletteTable(palette *colour.Palette, preview bool) *Table {
	headers := []string{"#", "HEX", "RGB", "QTY", "BLOB MAX", "BLOB AVG", "BLOBS", "FACTOR", "FIXED"}
	if preview {
		headers = append([]string{""}, headers...)
	}
	table := NewTable(headers)
	numeric := []int{0, 3, 4, 5, 6, 7}
	if preview {
		for i := range numeric {
			numeric[i]++
		}
	}
	table.AlignRight(numeric...)
	for i, e := range palette.Entries {
		fixed := ""
		if e.IsFixed {
			fixed = "yes"
		}
		row := []string{
			strconv.Itoa(i + 1),
			e.Hex,
			fmt.Sprintf("%d,%d,%d", e.RGB.R, e.RGB.G, e.RGB.B),
			strconv.Itoa(e.Qty),
			strconv.Itoa(e.DimMax),
			strconv.FormatFloat(e.DimAvg, 'f', 1, 64),
			strconv.Itoa(e.DimQty),
			strconv.FormatFloat(e.Factor, 'f', 3, 64),
			fixed,
		}
		if preview {
			mark := ""
			if e.IsFixed {
				mark = "*"
			}
			row = append([]string{colour.ColourPreviewWithText(e.RGB, mark, 4)}, row...)
		}
		table.AddRow(row)
	}
	return table
}
