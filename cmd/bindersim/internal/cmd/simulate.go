package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nuttx-binder/binderalloc"
	"github.com/nuttx-binder/binderalloc/cmd/bindersim/internal/config"
	"github.com/nuttx-binder/binderalloc/cmd/bindersim/internal/tui"
)

func newSimulateCmd() *cobra.Command {
	var (
		pageSizeFlag   int
		regionSizeFlag int
		scriptFlag     string
		watchFlag      bool
	)

	simulate := &cobra.Command{
		Use:   "simulate",
		Short: "Run a sequence of allocator operations against a fresh region",
		Long: "simulate maps a fresh region and replays a script of operations " +
			"(alloc SIZE, free OFFSET, stats) read from --script or stdin, one per line.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pageSize := cfg.PageSize
			if pageSizeFlag > 0 {
				pageSize = pageSizeFlag
			}
			regionSize := cfg.RegionSize
			if regionSizeFlag > 0 {
				regionSize = regionSizeFlag
			}

			region := binderalloc.NewRegion(binderalloc.NewOSPageAllocator(pageSize), binderalloc.NewLogrusLogger(log))
			region.Init(os.Getpid())
			if err := region.Mmap(binderalloc.AreaRequest{Size: regionSize}); err != nil {
				return err
			}

			var src *os.File
			if scriptFlag != "" {
				f, err := os.Open(scriptFlag)
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			} else {
				src = os.Stdin
			}

			if err := runScript(cmd, region, src); err != nil {
				return err
			}

			if watchFlag {
				return tui.Run(region)
			}
			return nil
		},
	}

	simulate.Flags().IntVar(&pageSizeFlag, "page-size", 0, "Override the configured page size")
	simulate.Flags().IntVar(&regionSizeFlag, "region-size", 0, "Override the configured region size")
	simulate.Flags().StringVar(&scriptFlag, "script", "", "Path to a script file (default: read from stdin)")
	simulate.Flags().BoolVar(&watchFlag, "watch", false, "Launch the live inspector after the script finishes")

	return simulate
}

// runScript replays one operation per non-blank, non-comment line:
//
//	alloc <data_size> [offsets_size] [secctx_size]   -> prints the offset allocated
//	free <offset>                                    -> frees the live buffer at offset
//	stats                                             -> prints a Stats snapshot
//
// live holds the *binderalloc.Buffer handle for every currently-allocated
// offset, the script's equivalent of what a transaction layer would track.
func runScript(cmd *cobra.Command, region *binderalloc.Region, src *os.File) error {
	out := cmd.OutOrStdout()
	live := map[int]*binderalloc.Buffer{}

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "alloc":
			sizes, err := parseUints(fields[1:], 3)
			if err != nil {
				return err
			}
			buf, err := region.NewBuf(sizes[0], sizes[1], sizes[2], false)
			if err != nil {
				return fmt.Errorf("alloc: %w", err)
			}
			buf.SetAllowUserFree(true)
			live[buf.UserData()] = buf
			fmt.Fprintf(out, "alloc -> offset=%d size=%d\n", buf.UserData(), buf.Size())

		case "free":
			if len(fields) != 2 {
				return fmt.Errorf("free requires exactly one offset argument")
			}
			off, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("free: bad offset %q: %w", fields[1], err)
			}
			if _, ok := live[off]; !ok {
				return fmt.Errorf("free: no live buffer tracked at offset %d", off)
			}
			buf := region.PrepareToFree(off)
			region.FreeBuf(buf)
			delete(live, off)
			fmt.Fprintf(out, "free -> offset=%d\n", off)

		case "stats":
			s := region.Stats()
			fmt.Fprintf(out, "stats -> live=%d free=%d pages=%d bytes_allocated=%d bytes_free=%d\n",
				s.LiveBuffers, s.FreeBuffers, s.MaterialisedPages, s.BytesAllocated, s.BytesFree)

		default:
			return fmt.Errorf("unknown operation %q", fields[0])
		}
	}
	return scanner.Err()
}

func parseUints(fields []string, want int) ([]uint64, error) {
	out := make([]uint64, want)
	for i := 0; i < want && i < len(fields); i++ {
		n, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad size argument %q: %w", fields[i], err)
		}
		out[i] = n
	}
	return out, nil
}
