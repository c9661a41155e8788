package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"tradeexec/internal/og"
	"tradeexec/internal/recorder"
	"tradeexec/internal/schema"
	"tradeexec/internal/state"
	"tradeexec/internal/strategy"
	"tradeexec/internal/strategy/macross"
)

func main() {
	dir := flag.String("dir", "data/journal", "Journal directory")
	prefix := flag.String("prefix", "", "Journal file prefix (default: journal)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	decode := flag.Bool("decode", false, "Decode known payload types")
	quiet := flag.Bool("quiet", false, "Skip the per-record listing")
	snapshotPath := flag.String("snapshot", "", "Position snapshot to verify (default: <dir>/positions.json)")
	verify := flag.Bool("verify", false, "Verify replayed positions against the snapshot")
	flag.Parse()

	ctx := context.Background()
	cfg := recorder.PlaybackConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	}
	counts := make(map[schema.EventType]int)
	if err := list(ctx, cfg, *quiet, *decode, counts); err != nil {
		log.Fatalf("playback run failed: %v", err)
	}

	res, err := state.ReplayFills(ctx, state.ReplayConfig{
		JournalDir:      *dir,
		FilePrefix:      *prefix,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	})
	if err != nil {
		log.Fatalf("replay fills failed: %v", err)
	}
	log.Printf("replay completed: counts=%v fills=%d last_seq=%d positions=%d", counts, res.Fills, res.LastSeq, res.Ledger.Count())
	for _, pos := range res.Ledger.Snapshot() {
		log.Printf("  position %s size=%g entry=%g", pos.Instrument, pos.Size, pos.EntryPrice)
	}

	if !*verify {
		return
	}
	path := *snapshotPath
	if path == "" {
		path = filepath.Join(*dir, "positions.json")
	}
	expected, err := state.ReadSnapshot(path)
	if err != nil {
		log.Fatalf("read snapshot failed: %v", err)
	}
	if err := state.CompareSnapshots(expected, res.Ledger.SnapshotWithMeta(res.LastSeq, res.LastEventTs)); err != nil {
		log.Fatalf("snapshot mismatch: %v", err)
	}
	log.Printf("snapshot verified: positions=%d", len(expected.Positions))
}

func list(ctx context.Context, cfg recorder.PlaybackConfig, quiet, decode bool, counts map[schema.EventType]int) error {
	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		return err
	}
	var index int
	return pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		index++
		counts[header.Type]++
		if quiet {
			return nil
		}
		fmt.Printf("%06d seq=%d type=%s ts_event=%d trace=%d len=%d\n", index, header.Seq, header.Type, header.TsEvent, header.TraceID, len(payload))
		if decode {
			printDecoded(header.Type, payload)
		}
		return nil
	})
}

func printDecoded(t schema.EventType, payload []byte) {
	switch t {
	case schema.EventMarketData:
		var ev schema.MarketEvent
		if err := recorder.DecodeRecord(payload, &ev); err != nil {
			fmt.Println("  decode MarketData failed")
			return
		}
		switch {
		case ev.Candle != nil:
			fmt.Printf("  candle %s %s close=%g at=%s\n", ev.Candle.Instrument, ev.Candle.Interval, ev.Candle.Close, ev.Candle.Timestamp)
		case ev.Trade != nil:
			fmt.Printf("  trade %s price=%g size=%g at=%s\n", ev.Trade.Instrument, ev.Trade.Price, ev.Trade.Size, ev.Trade.Timestamp)
		}
	case schema.EventOrderIntent:
		var intent strategy.SubmittedIntent
		if err := recorder.DecodeRecord(payload, &intent); err != nil {
			fmt.Println("  decode OrderIntent failed")
			return
		}
		fmt.Printf("  intent id=%s %s tif=%s reduce_only=%t token=%s\n",
			intent.OrderID, intent.Describe(), intent.TimeInForce, intent.ReduceOnly, intent.Token)
	case schema.EventOrderAck:
		var ack og.Ack
		if err := recorder.DecodeRecord(payload, &ack); err != nil {
			fmt.Println("  decode OrderAck failed")
			return
		}
		fmt.Printf("  ack id=%s %s %s state=%s filled=%g reason=%s\n",
			ack.OrderID, ack.Instrument, ack.Side, ack.State, ack.Filled, ack.Reason)
	case schema.EventFill:
		var fill schema.FillEvent
		if err := recorder.DecodeRecord(payload, &fill); err != nil {
			fmt.Println("  decode Fill failed")
			return
		}
		fmt.Printf("  fill %s buy=%t price=%g size=%g client_id=%s\n",
			fill.Instrument, fill.IsBuy, fill.Price, fill.Size, fill.ClientOrderID)
	case schema.EventStrategyDecision:
		var d macross.Decision
		if err := recorder.DecodeRecord(payload, &d); err != nil {
			fmt.Println("  decode StrategyDecision failed")
			return
		}
		fmt.Printf("  decision %s %s %s->%s price=%g short=%g long=%g net=%g intent=%s\n",
			d.Strategy, d.Asset, d.From, d.To, d.Price, d.Short, d.Long, d.Net, d.Intent)
	default:
		return
	}
}
