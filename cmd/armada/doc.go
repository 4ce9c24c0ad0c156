// Package main hosts the wallpaper armada entrypoint.
//
// Architecture overview:
//   - Fleet: internal/fleet.Fleet cycles over every configured source, one after another (or in parallel with
//     armada.concurrent), and sleeps armada.poll_interval_seconds between cycles.
//   - Sources: each subreddit source polls its listing through the Reddit feed, skips items it has seen in its
//     bounded FIFO dedup cache, resolves the image (direct, or one hop through an indirect host page), derives
//     keywords from the title, and hands the artifact to the persistence coordinator.
//   - Persistence: full image and thumbnail go to the blob store (local, GCS, or memory); the wallpaper row and its
//     keyword rows go to the metadata store (SQLite, Postgres, or memory) in one transaction. Blobs written by a
//     failed store are rolled back. Stored wallpapers are announced on Pub/Sub when configured.
//   - Plumbing: Viper loads config from file and ARMADA_* env vars; zap logs; Prometheus metrics and health routes
//     are served by the ops server; OpenTelemetry spans cover cycles, crawls, and stores.
//
// Quick checklist:
//   - Validate a config: armada validate --config armada.yaml
//   - Run: armada run --config armada.yaml (SIGINT/SIGTERM finish the in-flight item then stop).
package main
