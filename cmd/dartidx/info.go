package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rpcpool/dartidx/dartidx"
	"github.com/rpcpool/dartidx/valuecodec"
)

func newCmd_Info() *cli.Command {
	return &cli.Command{
		Name:        "info",
		Description: "Print header and array statistics for an index file.",
		ArgsUsage:   "<index-path>",
		Flags: []cli.Flag{
			codecFlag,
		},
		Action: func(c *cli.Context) error {
			indexPath := c.Args().Get(0)
			if indexPath == "" {
				return fmt.Errorf("usage: dartidx info [--codec=bytes|varint] <index-path>")
			}

			switch c.String("codec") {
			case "bytes":
				idx, err := dartidx.FromFile[[]byte](indexPath, valuecodec.BytesVarint{})
				if err != nil {
					return err
				}
				defer idx.Close()
				return printStats(idx)
			case "varint":
				idx, err := dartidx.FromFile[uint64](indexPath, valuecodec.Uint64Varint{})
				if err != nil {
					return err
				}
				defer idx.Close()
				return printStats(idx)
			default:
				return errors.New("unknown codec (want bytes or varint)")
			}
		},
	}
}

func printStats[V any](idx *dartidx.Index[V]) error {
	stats, err := idx.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("array_len=%d\n", stats.ArrayLen)
	fmt.Printf("occupied_slots=%d\n", stats.OccupiedSlot)
	fmt.Printf("data_bytes=%d\n", stats.DataLen)
	return nil
}
