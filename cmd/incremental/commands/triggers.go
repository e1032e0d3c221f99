package commands

import (
	"fmt"
	"slices"
	"text/tabwriter"
)

// TriggersCmd implements the 'triggers' command.
type TriggersCmd struct{}

func (t *TriggersCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(cfg.Triggers))
	for name := range cfg.Triggers {
		names = append(names, name)
	}
	slices.Sort(names)

	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	for _, name := range names {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", name, cfg.Triggers[name])
	}
	return tw.Flush()
}
