/*
Recorder is the append-only journal of the execution core.

# Module
  - writer: buffered, non-blocking segment appender
  - reader: sequential record decoder with checksum validation
  - playback: replays segments in file order, optionally paced
  - journal: typed, timestamped JSON records on top of the writer

# Source
  - order intents and submission ids from the strategy context
  - fills applied by the engine
  - order acks from the paper gateway
  - strategy decisions
  - market data, when recording is enabled or via cmd/tools/record

# Produce
  - audit trail read by cmd/tools/replay; the running engine never reads it back
  - market data recordings served by the playback source
*/
package recorder
