// Package core provides the change-detection and publication engine for
// the Sutel masterfiles.
//
// This package holds the domain logic independent of storage, transport and
// delivery. Web handlers, the CLI and tests drive it through [Service]; the
// outside world is reached through the [ArtifactStore], [CounterStore],
// [TabularCodec] and [Notifier] interfaces.
//
// # Architecture
//
//   - Snapshots: immutable captures of a tabular dataset ([Snapshot], [Value]).
//   - Identity: synthetic row keys attached at load time ([AttachRowKeys]) or a
//     natural ID column, chosen per comparison ([DiffOptions.Policy]).
//   - Normalization: phantom column removal and cell canonicalization
//     ([Normalizer]) so storage round-trips do not show up as edits.
//   - Diff: cell-level change records keyed by row identity ([Diff]).
//   - Versioning: a per-day publication counter ([VersionCounter]).
//   - Publication: backup, overwrite, notify, commit ([Service.Publish]).
//
// # Dataset Registry
//
// Datasets are registered at startup using [Register]:
//
//	core.Register(core.DatasetDefinition{
//	    Info:           core.DatasetInfo{Key: "Fijo", FileName: "MasterfileSutel.xlsx", Order: 1},
//	    SyntheticKeys:  true,
//	    KeyColumn:      "ID SONDA",
//	    DisplayColumns: []string{"STM"},
//	    Codec:          codec.XLSX{},
//	})
//
// # Publication
//
// One call to [Service.Publish] covers every edited dataset:
//
//  1. Each dataset is loaded, diffed, backed up under a timestamped name and
//     overwritten. A failing dataset stops without affecting the others.
//  2. If at least one dataset was published, today's counter is read and the
//     subject "{title} {ddmmyyyy}" (or "... V{n}") is computed.
//  3. One combined report is sent with every backup attached.
//  4. Only after delivery is confirmed is the counter advanced, so a failed
//     notification can be retried under the same version.
//
// # Error Handling
//
// Technical errors are mapped to operator messages using [MapError]. Each
// category has a code for support reference:
//
//   - LOAD001-LOAD002, KEY001, DS001: loading and configuration
//   - BAK001, PUB001-PUB002: writing artifacts
//   - CNT001-CNT002, NTF001: counter and notification
//   - CODEC001, BUSY001, REQ001-REQ002: format, concurrency and request errors
package core
