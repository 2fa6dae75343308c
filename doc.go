// Package acuaponia is a telemetry ingestion and alerting pipeline for
// recirculating aquaculture tanks.
//
// # Architecture
//
// Readings flow through the pipeline in one direction:
//
//	┌─────────────────────────────────────┐
//	│           Broker Client             │  Managed pub-sub connection,
//	│    (connect, resubscribe, retry)    │  bounded reconnect budget
//	└─────────────────────────────────────┘
//	           ↓ delivers raw messages
//	┌─────────────────────────────────────┐
//	│         Ingestion Processor         │  Topic routing, payload
//	│   (route, decode, persist, cache)   │  decoding, worker pool
//	└─────────────────────────────────────┘
//	           ↓ persisted readings
//	┌─────────────────────────────────────┐
//	│           Alert Engine              │  Stateless four-band
//	│  (criticalLow < low < high < crit)  │  threshold evaluation
//	└─────────────────────────────────────┘
//	           ↓ readings and alerts
//	┌──────────────────┐  ┌───────────────┐
//	│  Realtime Fanout │  │   Notifier    │  Authenticated websocket
//	│ (admin + user ch)│  │ (best effort) │  channels; admin mail
//	└──────────────────┘  └───────────────┘
//
// Synthetic emitters publish fabricated readings through the same broker
// so the full pipeline can be exercised without hardware attached.
//
// Each concern lives in its own package: broker, ingest, alerting,
// fanout, emitter, notify, store, directory. The service package
// assembles them and cmd/acuaponiad is the runnable entry point.
package acuaponia
