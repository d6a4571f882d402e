// Package sdpedit rewrites session descriptions before they are sent or applied.
// Every function parses and re-marshals, so output stays syntactically valid.
package sdpedit

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dkeye/Publisher/internal/domain"
)

// Editor applies the publish policy of one session to offers and answers.
type Editor struct {
	Video     domain.VideoCodec
	Audio     domain.AudioCodec
	MaxKbps   int
	MinKbps   int
	AudioKbps int
	Stereo    bool
	H264      H264Params
	Log       zerolog.Logger
}

// NewEditor builds the editor for cfg with the video codec already resolved.
func NewEditor(cfg domain.SessionConfig, log zerolog.Logger) Editor {
	return Editor{
		Video:     ResolveVideoCodec(cfg.VideoCodec),
		Audio:     cfg.EffectiveAudioCodec(),
		MaxKbps:   cfg.VideoBitrateKbps,
		MinKbps:   cfg.VideoMinKbps,
		AudioKbps: cfg.AudioBitrateKbps,
		Stereo:    cfg.Stereo,
		H264:      DefaultH264,
		Log:       log.With().Str("module", "sdpedit").Logger(),
	}
}

// RewriteOffer forces payloads, then clamps video bitrate, then applies audio settings.
func (e Editor) RewriteOffer(raw string) (string, error) {
	out, res, err := ForcePayloads(raw, e.Audio.EncodingName(), e.Video.EncodingName(), e.H264)
	if err != nil {
		return raw, err
	}
	if len(res.Video) == 0 {
		e.Log.Warn().Str("codec", e.Video.String()).Msg("no matching video payload, offer left unforced")
	}
	if out, err = ClampVideoBitrate(out, e.MaxKbps, e.MinKbps); err != nil {
		return raw, err
	}
	if out, err = ApplyAudio(out, e.Stereo, e.AudioKbps); err != nil {
		return raw, err
	}
	e.Log.Debug().Str("sdp", out).Msg("offer rewritten")
	return out, nil
}

// RewriteAnswer clamps video bitrate and applies audio settings.
func (e Editor) RewriteAnswer(raw string) (string, error) {
	out, err := ClampVideoBitrate(raw, e.MaxKbps, e.MinKbps)
	if err != nil {
		return raw, fmt.Errorf("answer: %w", err)
	}
	if out, err = ApplyAudio(out, e.Stereo, e.AudioKbps); err != nil {
		return raw, fmt.Errorf("answer: %w", err)
	}
	e.Log.Debug().Str("sdp", out).Msg("answer rewritten")
	return out, nil
}
