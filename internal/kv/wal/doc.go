// Package wal implements the write-ahead log (C1): an append-only durable
// log of put/delete records that the KV engine replays on open.
//
// Every log_put/log_del call is durable (fsync'd, per the configured
// fsync policy) before the corresponding MemTable mutation becomes
// visible to readers. Replay yields records in append order; a
// partially written trailing record is silently discarded up to the
// last intact record boundary.
//
// Wire format (§6): a stream of framed records
//
//	{type:u8 (PUT=1|DEL=2), seq:varint, key_len:varint, key:bytes, [value_len:varint, value:bytes]}
//
// each followed by a CRC32 trailer over the frame body, prefixed by a
// uvarint frame length so the reader knows how many bytes to expect
// before validating the trailer.
package wal
