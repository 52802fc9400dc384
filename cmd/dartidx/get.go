package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rpcpool/dartidx/dartidx"
	"github.com/rpcpool/dartidx/valuecodec"
)

func newCmd_Get() *cli.Command {
	return &cli.Command{
		Name:        "get",
		Description: "Look up a single key in an index and print its values.",
		ArgsUsage:   "<index-path> <key>",
		Flags: []cli.Flag{
			codecFlag,
		},
		Action: func(c *cli.Context) error {
			indexPath := c.Args().Get(0)
			key := c.Args().Get(1)
			if indexPath == "" || key == "" {
				return fmt.Errorf("usage: dartidx get [--codec=bytes|varint] <index-path> <key>")
			}

			switch c.String("codec") {
			case "bytes":
				idx, err := dartidx.FromFile[[]byte](indexPath, valuecodec.BytesVarint{})
				if err != nil {
					return err
				}
				defer idx.Close()
				values, ok, err := idx.Get([]byte(key))
				if err != nil {
					return err
				}
				if !ok {
					return cli.Exit(fmt.Sprintf("key %q not found", key), 1)
				}
				for _, v := range values {
					fmt.Printf("%s\n", v)
				}
				return nil
			case "varint":
				idx, err := dartidx.FromFile[uint64](indexPath, valuecodec.Uint64Varint{})
				if err != nil {
					return err
				}
				defer idx.Close()
				values, ok, err := idx.Get([]byte(key))
				if err != nil {
					return err
				}
				if !ok {
					return cli.Exit(fmt.Sprintf("key %q not found", key), 1)
				}
				for _, v := range values {
					fmt.Println(v)
				}
				return nil
			default:
				return errors.New("unknown codec (want bytes or varint)")
			}
		},
	}
}
