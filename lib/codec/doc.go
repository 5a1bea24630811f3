// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides clawbridge's standard CBOR configuration:
// deterministic encoding, tolerant decoding. The bridge's cursor
// checkpoint file is the primary consumer. Centralizing the mode
// configuration keeps every call site byte-compatible with every
// other.
package codec
