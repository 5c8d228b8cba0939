package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/vipnode/nodehealth/internal/pretty"
	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/status"
)

var statusTimeout = time.Minute

func runStatus(options Options) error {
	rt, err := setup(options, options.Status.Args.Networks, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	logger.Infof("Probing %d networks...", len(rt.Networks))
	if err := rt.RefreshAll(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tID\tORIGIN\tSTATUS\tPING\tHEIGHT\tVERSION\tWS")
	for _, n := range rt.Networks {
		printNodes(w, n.Name, n.Set.Nodes())
	}
	return w.Flush()
}

// printNodes writes one tab-separated row per node.
func printNodes(w io.Writer, network string, nodes []node.Node) {
	for _, n := range nodes {
		origin := n.Main.String()
		if n.Alt != nil && n.Origins()[0] == *n.Alt {
			origin = n.Alt.String() + " (alt)"
		}
		ws := "-"
		if n.WSEnabled {
			ws = "yes"
		}
		var version fmt.Stringer
		if n.Version != nil {
			version = *n.Version
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			network,
			status.ShortID(n.ID),
			pretty.Abbrev(origin, 48),
			n.Status,
			pretty.Ping(n.Ping),
			pretty.Uint(n.Height),
			pretty.String(version, n.Version != nil),
			ws,
		)
	}
}
