/*
Engine is the single-strategy execution loop.

# Inputs
  - market events from one feed subscription
  - fill confirmations from the order gateway (optional, the engine runs fill-blind without them)
  - an optional interval ticker driving Strategy.OnInterval

# Loop
  - select on whichever input is ready, one event per iteration
  - market event: OnEvent, then submit intents in emission order
  - lag report: log, count, continue
  - fill: apply to the ledger, journal, OnFill, then submit intents
  - fill channel closed: drop it from the select set and keep going

# Exit
  - market stream closed: clean return
  - strategy, persistence or submission error: returned as is
  - Strategy.Shutdown runs on every exit and the subscription is released
*/
package engine
