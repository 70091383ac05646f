package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skobkin/advchat/internal/app"
	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/config"
	"github.com/skobkin/advchat/internal/connectors"
	"github.com/skobkin/advchat/internal/domain"
	"github.com/skobkin/advchat/internal/radio"
)

func main() {
	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, os.Stdout); err != nil {
		slog.Error("run advchat", "command", cmd.Name, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd command, out io.Writer) error {
	switch cmd.Name {
	case cmdVersion:
		fmt.Fprintf(out, "%s %s\n", app.Name, app.CurrentBuild())
		return nil
	case cmdPorts:
		ports, err := radio.SerialPorts()
		if err != nil {
			return err
		}
		for _, port := range ports {
			fmt.Fprintln(out, port)
		}
		return nil
	}

	rt, err := app.Initialize(ctx, app.Options{})
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			slog.Warn("close runtime", "error", closeErr)
		}
	}()

	switch cmd.Name {
	case cmdListen:
		return listen(ctx, rt, cmd, out)
	case cmdSend:
		if err := rt.Start(false); err != nil {
			return err
		}
		n, err := rt.SendText(cmd.Text)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "sent %d bytes as %s\n", n, rt.Callsign())
	case cmdMessage:
		if err := rt.Start(false); err != nil {
			return err
		}
		parcels, err := rt.SendMessage(cmd.To, cmd.Text)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "sent %d parcels from %s to %s\n", parcels, rt.Callsign(), cmd.To)
	case cmdHistory:
		msgs, err := rt.History(ctx, cmd.Filter, cmd.Limit)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			fmt.Fprintln(out, formatMessage(msg))
		}
	case cmdPeers:
		now := time.Now()
		for _, peer := range rt.PeerStore.SnapshotSorted() {
			fmt.Fprintln(out, formatPeer(peer, rt.PeerStore.Outdated(peer), now))
		}
	case cmdClear:
		if err := rt.ClearDatabase(cmd.ResetSequence); err != nil {
			return err
		}
		fmt.Fprintln(out, "message log cleared")
	}

	return nil
}

func listen(ctx context.Context, rt *app.Runtime, cmd command, out io.Writer) error {
	rt.Override(func(cfg *config.AppConfig) {
		cfg.Radio.AllowDuplicates = cfg.Radio.AllowDuplicates || cmd.AllowDuplicates
		cfg.Beacon.Enabled = cfg.Beacon.Enabled && !cmd.NoPing
	})

	topics := []string{connectors.TopicText, connectors.TopicMessage, connectors.TopicPeerDiscovered}
	sub := rt.Bus.Subscribe(topics...)
	defer rt.Bus.Unsubscribe(sub, topics...)

	if err := rt.Start(true); err != nil {
		return err
	}
	fmt.Fprintf(out, "listening as %s, press Ctrl+C to stop\n", rt.Callsign())

	var deadline <-chan time.Time
	if cmd.ListenFor > 0 {
		deadline = time.After(cmd.ListenFor)
	}

	return printEvents(ctx, sub, deadline, out)
}

func printEvents(ctx context.Context, sub bus.Subscription, deadline <-chan time.Time, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case raw, ok := <-sub:
			if !ok {
				return nil
			}
			switch v := raw.(type) {
			case domain.Message:
				fmt.Fprintln(out, formatMessage(v))
			case domain.PeerDiscovered:
				fmt.Fprintf(out, "new peer %s\n", formatPeer(v.Peer, v.Outdated, v.DiscoveredAt))
			}
		}
	}
}
