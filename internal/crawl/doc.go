// Package crawl implements the ingestion engine: the retry/backoff state
// machine, identity rotation policy hooks, content-fingerprint change
// detection, resumable checkpoints, and the two crawl drivers (the paginated
// scan-then-fetch scheduler and the sequential single-key processor).
//
// The package owns the shared types and the collaborator interfaces; the
// concrete fetchers, extractors, stores, and the Tor-backed identity rotator
// live in sibling packages and are injected at construction time.
//
// A single logical worker drives each run. The Scheduler and Sequencer
// assume exclusive ownership of their checkpoint or cursor; running two
// processes against the same stored state is undefined.
package crawl
