//go:build noh264

package domain

const H264Available = false
