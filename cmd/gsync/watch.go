package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/events"
	"github.com/alfredjeanlab/graphsync/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream pipeline events from NATS",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		if cfg.NATSURL == "" {
			return errors.New("GRAPHSYNC_NATS_URL is required")
		}

		sub, err := events.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("NATS disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return err
		}
		defer cancel()
		logger.Info("watching events", "topic", topic)

		st := styler()
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				if jsonOutput {
					fmt.Printf("%s\n", msg.Data)
					continue
				}
				printEvent(os.Stdout, msg, st)
			}
		}
	},
}

func init() {
	watchCmd.Flags().String("topic", events.TopicAll, "subject to subscribe to (NATS wildcards allowed)")
}

// printEvent writes one human readable line per event.
func printEvent(w io.Writer, msg events.Message, st ui.Styler) {
	ev, err := events.Decode(msg)
	if err != nil {
		fmt.Fprintf(w, "%s %s\n", st.Muted(msg.Topic), msg.Data)
		return
	}
	stamp := st.Muted(time.Now().Format(time.TimeOnly))
	switch e := ev.(type) {
	case *events.FetchCompleted:
		fmt.Fprintf(w, "%s %s fetched %d %s\n", stamp, e.RunID, e.Count, e.Collection)
	case *events.SyncCompleted:
		fmt.Fprintf(w, "%s %s synchronized %s: %s applied, %d unchanged (%s)\n",
			stamp, e.RunID, e.Collection, st.Created(fmt.Sprint(e.Summary.Total())), e.Summary.Unchanged, e.Duration.Round(time.Millisecond))
	case *events.SyncFailed:
		fmt.Fprintf(w, "%s %s %s %s: %s\n", stamp, e.RunID, st.Deleted("failed"), e.Collection, e.Error)
	case *events.ActionCompleted:
		fmt.Fprintf(w, "%s action %s: %d applied\n", stamp, e.Action, e.Summary.Total())
	}
}
