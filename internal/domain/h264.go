//go:build !noh264

package domain

// H264Available reports whether this build may negotiate H.264.
const H264Available = true
