package main

import (
	"os"

	flags "github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

func main() {
	parser := flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	addCmd(parser, "serve", "Run the background sync task", `
Run the background sync task against a local badger-backed volume store,
pulling from and pushing to a remote metastore/pagestore pair until
signaled to exit (SIGINT/SIGTERM).
`, &cmdServe{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.WithError(err).Fatal("graft-agent: failed")
	}
}

func addCmd(to *flags.Parser, name, short, long string, iface interface{}) *flags.Command {
	cmd, err := to.AddCommand(name, short, long, iface)
	if err != nil {
		log.WithError(err).Fatal("graft-agent: failed to register command")
	}
	return cmd
}
