package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rpcpool/dartidx/dartidx"
	"github.com/rpcpool/dartidx/trie"
	"github.com/rpcpool/dartidx/valuecodec"
)

func newCmd_Build() *cli.Command {
	return &cli.Command{
		Name:        "build",
		Description: "Build an index from a newline-delimited key\\tvalue source file.",
		ArgsUsage:   "<source-file> <index-path>",
		Flags: []cli.Flag{
			codecFlag,
		},
		Action: func(c *cli.Context) error {
			sourcePath := c.Args().Get(0)
			indexPath := c.Args().Get(1)
			if sourcePath == "" || indexPath == "" {
				return fmt.Errorf("usage: dartidx build [--codec=bytes|varint] <source-file> <index-path>")
			}

			switch c.String("codec") {
			case "bytes":
				return buildBytesIndex(sourcePath, indexPath)
			case "varint":
				return buildUint64Index(sourcePath, indexPath)
			default:
				return fmt.Errorf("unknown codec %q (want bytes or varint)", c.String("codec"))
			}
		},
	}
}

// readSourceLines parses "key\tvalue" pairs from path, one per line. Blank
// lines and lines starting with '#' are skipped. A key may repeat to
// accumulate multiple values, in file order.
func readSourceLines(path string, onPair func(key, value string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: opening source: %v", dartidx.ErrIoFailure, err)
	}
	defer f.Close()

	n := 0
	lineNo := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "\t")
		if !ok {
			return n, fmt.Errorf("source line %d: missing tab separator", lineNo)
		}
		if err := onPair(key, value); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("%w: scanning source: %v", dartidx.ErrIoFailure, err)
	}
	return n, nil
}

func buildBytesIndex(sourcePath, indexPath string) error {
	t := trie.New[[]byte]()
	n, err := readSourceLines(sourcePath, func(key, value string) error {
		return t.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return err
	}
	klog.Infof("read %d associations from %s", n, sourcePath)

	idx, err := dartidx.Build[[]byte](t, valuecodec.BytesVarint{})
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	return dumpAndReport[[]byte](idx, indexPath, valuecodec.BytesVarint{})
}

func buildUint64Index(sourcePath, indexPath string) error {
	t := trie.New[uint64]()
	n, err := readSourceLines(sourcePath, func(key, value string) error {
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("value %q is not a uint64: %w", value, err)
		}
		return t.Set([]byte(key), v)
	})
	if err != nil {
		return err
	}
	klog.Infof("read %d associations from %s", n, sourcePath)

	idx, err := dartidx.Build[uint64](t, valuecodec.Uint64Varint{})
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	return dumpAndReport[uint64](idx, indexPath, valuecodec.Uint64Varint{})
}

func dumpAndReport[V any](idx *dartidx.Index[V], indexPath string, codec valuecodec.Codec[V]) error {
	out, err := dartidx.Dump[V](idx, indexPath, codec)
	if err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	defer out.Close()

	stats, err := out.Stats()
	if err != nil {
		return fmt.Errorf("reading back stats: %w", err)
	}
	klog.Infof("wrote %s: array_len=%d occupied=%d data_bytes=%d", indexPath, stats.ArrayLen, stats.OccupiedSlot, stats.DataLen)
	return nil
}
