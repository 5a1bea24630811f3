// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import "strings"

// StripReplyMarker removes a single leading reply-control marker from
// agent output. Recognized markers:
//
//   - a backtick-space prefix ("` text")
//   - the literal tag [[reply_to_current]]
//   - a targeted tag [[reply_to:<anything>]]
//
// At most one marker is stripped, and only at the start of the string.
// Other bracketed text ("[[note]] ...") passes through unchanged.
func StripReplyMarker(content string) string {
	if rest, ok := strings.CutPrefix(content, "` "); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(content, "[[reply_to_current]]"); ok {
		return strings.TrimLeft(rest, " ")
	}
	if rest, ok := strings.CutPrefix(content, "[[reply_to:"); ok {
		if _, after, found := strings.Cut(rest, "]]"); found {
			return strings.TrimLeft(after, " ")
		}
	}
	return content
}

// IsMarkerOnly reports whether content is empty once a leading reply
// marker and surrounding whitespace are removed. The chat bridge uses
// this to detect a wait response that carried only a control tag.
func IsMarkerOnly(content string) bool {
	return strings.TrimSpace(StripReplyMarker(content)) == ""
}
