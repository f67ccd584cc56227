// Package sstable implements the immutable on-disk sorted table (C3):
// an SST writer takes an ordered stream of InternalKeys and emits
// blocks of bounded size, a sparse index of first-key-per-block, a
// bloom filter, and a footer.
//
// File layout (§6): [blocks][index][bloom][footer{index_offset,
// bloom_offset, magic}]. The footer's magic identifies the format
// version so future readers can reject incompatible files outright.
package sstable
