package commands

import (
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/incremental"
	"git.home.luguber.info/inful/incremental/internal/state"
)

// StatusCmd implements the 'status' command. It reads the tracking file directly and
// does not require a namespace.
type StatusCmd struct{}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	kind, err := state.ParseStoreKind(cfg.Store)
	if err != nil {
		return err
	}
	dir, err := incremental.ResolveRoot(cfg.Root)
	if err != nil {
		return err
	}
	store, err := state.Open(kind, dir, cfg.TrackingFile)
	if err != nil {
		return err
	}
	records, err := store.Load()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	for _, r := range records.Records() {
		if cfg.Namespace != "" && r.Namespace != cfg.Namespace {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Namespace, r.Kind, r.Value)
	}
	return tw.Flush()
}
