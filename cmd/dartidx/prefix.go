package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rpcpool/dartidx/dartidx"
	"github.com/rpcpool/dartidx/valuecodec"
)

func newCmd_Prefix() *cli.Command {
	return &cli.Command{
		Name:        "prefix",
		Description: "Find every prefix of a query key that has associated values, shortest first.",
		ArgsUsage:   "<index-path> <key>",
		Flags: []cli.Flag{
			codecFlag,
		},
		Action: func(c *cli.Context) error {
			indexPath := c.Args().Get(0)
			key := c.Args().Get(1)
			if indexPath == "" || key == "" {
				return fmt.Errorf("usage: dartidx prefix [--codec=bytes|varint] <index-path> <key>")
			}

			switch c.String("codec") {
			case "bytes":
				idx, err := dartidx.FromFile[[]byte](indexPath, valuecodec.BytesVarint{})
				if err != nil {
					return err
				}
				defer idx.Close()
				matches, err := idx.PrefixSearch([]byte(key))
				if err != nil {
					return err
				}
				for _, m := range matches {
					fmt.Printf("%s\t%s\n", m.Prefix, m.Values)
				}
				return nil
			case "varint":
				idx, err := dartidx.FromFile[uint64](indexPath, valuecodec.Uint64Varint{})
				if err != nil {
					return err
				}
				defer idx.Close()
				matches, err := idx.PrefixSearch([]byte(key))
				if err != nil {
					return err
				}
				for _, m := range matches {
					fmt.Printf("%s\t%v\n", m.Prefix, m.Values)
				}
				return nil
			default:
				return errors.New("unknown codec (want bytes or varint)")
			}
		},
	}
}
