package genconfig

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// Kind distinguishes decoder-only from encoder-decoder models.
type Kind string

const (
	KindCausal  Kind = "causal"
	KindSeq2Seq Kind = "seq2seq"
)

// Meta is the subset of the model's config.json the generator cares about.
type Meta struct {
	Kind       Kind
	ModelType  string
	EOSTokenID int
	PadTokenID int
	BOSTokenID int
	// PadFromEOS records that the pad token was missing and the EOS token
	// was substituted.
	PadFromEOS bool
	// KindAssumed records that is_encoder_decoder was absent from the config
	// and causal was assumed.
	KindAssumed bool
}

type rawModelConfig struct {
	ModelType        string `json:"model_type"`
	IsEncoderDecoder *bool  `json:"is_encoder_decoder"`
	EOSTokenID       any    `json:"eos_token_id"`
	PadTokenID       any    `json:"pad_token_id"`
	BOSTokenID       *int   `json:"bos_token_id"`
}

// seq2seqModelTypes lists model_type values that are encoder-decoder even
// when the config omits is_encoder_decoder.
var seq2seqModelTypes = map[string]bool{
	"t5":              true,
	"mt5":             true,
	"longt5":          true,
	"bart":            true,
	"mbart":           true,
	"pegasus":         true,
	"led":             true,
	"bigbird_pegasus": true,
}

// LoadMeta reads config.json from modelDir and derives the model kind plus
// special token ids. A missing config yields a causal-by-assumption Meta
// rather than an error.
func LoadMeta(modelDir string) (Meta, error) {
	b, err := os.ReadFile(filepath.Join(modelDir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{Kind: KindCausal, KindAssumed: true}, nil
		}
		return Meta{}, fmt.Errorf("read config.json: %w", err)
	}
	var raw rawModelConfig
	if err := json.Unmarshal(b, &raw); err != nil {
		return Meta{}, fmt.Errorf("parse config.json: %w", err)
	}

	meta := Meta{ModelType: raw.ModelType, Kind: KindCausal}
	switch {
	case raw.IsEncoderDecoder != nil:
		if *raw.IsEncoderDecoder {
			meta.Kind = KindSeq2Seq
		}
	case seq2seqModelTypes[raw.ModelType]:
		meta.Kind = KindSeq2Seq
	default:
		meta.KindAssumed = raw.IsEncoderDecoder == nil
	}

	if id, ok := tokenID(raw.EOSTokenID); ok {
		meta.EOSTokenID = id
	}
	if raw.BOSTokenID != nil {
		meta.BOSTokenID = *raw.BOSTokenID
	}
	if id, ok := tokenID(raw.PadTokenID); ok {
		meta.PadTokenID = id
	} else {
		// No pad token published: pad with EOS for open-end generation.
		meta.PadTokenID = meta.EOSTokenID
		meta.PadFromEOS = true
	}
	return meta, nil
}
