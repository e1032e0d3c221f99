package commands

// FinalizeCmd implements the 'finalize' command.
type FinalizeCmd struct{}

func (f *FinalizeCmd) Run(g *Global, root *CLI) error {
	s, err := openSession(g, root)
	if err != nil {
		return err
	}
	defer s.flushMetrics()
	return s.tracker.Finalize()
}
