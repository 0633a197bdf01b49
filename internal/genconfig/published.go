package genconfig

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// Published holds the generation defaults a model ships alongside its
// weights. Fields are pointers so that "absent" and "zero" stay distinct
// during the precedence merge.
type Published struct {
	MaxNewTokens  *int
	MaxLength     *int // legacy name, converted to MaxNewTokens on merge
	Temperature   *float64
	TopP          *float64
	TopK          *int
	RepeatPenalty *float64
	DoSample      *bool
	NumBeams      *int
	EOSTokenID    *int
	PadTokenID    *int
	BOSTokenID    *int
}

// rawGenerationConfig mirrors the generation_config.json layout. Field names
// vary across model exports, so legacy aliases are included.
type rawGenerationConfig struct {
	MaxNewTokens      *int     `json:"max_new_tokens"`
	MaxLength         *int     `json:"max_length"`
	Temperature       *float64 `json:"temperature"`
	TopP              *float64 `json:"top_p"`
	TopK              *int     `json:"top_k"`
	RepetitionPenalty *float64 `json:"repetition_penalty"`
	DoSample          *bool    `json:"do_sample"`
	NumBeams          *int     `json:"num_beams"`
	EOSTokenID        any      `json:"eos_token_id"` // int or []int
	PadTokenID        any      `json:"pad_token_id"` // int or null
	BOSTokenID        *int     `json:"bos_token_id"`
}

// LoadPublished reads the model's published generation defaults from
// generation_config.json in modelDir, falling back to the generation keys of
// config.json. A missing file is not an error: models without published
// defaults simply run on the built-in fallbacks.
func LoadPublished(modelDir string) (*Published, error) {
	for _, name := range []string{"generation_config.json", "config.json"} {
		b, err := os.ReadFile(filepath.Join(modelDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var raw rawGenerationConfig
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		return raw.toPublished(), nil
	}
	return nil, nil
}

func (r *rawGenerationConfig) toPublished() *Published {
	p := &Published{
		MaxNewTokens:  r.MaxNewTokens,
		MaxLength:     r.MaxLength,
		Temperature:   r.Temperature,
		TopP:          r.TopP,
		TopK:          r.TopK,
		RepeatPenalty: r.RepetitionPenalty,
		DoSample:      r.DoSample,
		NumBeams:      r.NumBeams,
		BOSTokenID:    r.BOSTokenID,
	}
	if id, ok := tokenID(r.EOSTokenID); ok {
		p.EOSTokenID = &id
	}
	if id, ok := tokenID(r.PadTokenID); ok {
		p.PadTokenID = &id
	}
	return p
}

// tokenID normalizes eos/pad token id fields, which exports write as an int,
// a list of ints, or null.
func tokenID(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case []any:
		if len(t) == 0 {
			return 0, false
		}
		if f, ok := t[0].(float64); ok {
			return int(f), true
		}
	}
	return 0, false
}

// apply overlays the published values onto p. The max token count follows
// the open-end rename: the legacy MaxLength value replaces max_new_tokens
// outright, and a config publishing only MaxNewTokens keeps the built-in
// fallback instead.
func (pub *Published) apply(p *Params) {
	if pub.MaxLength != nil {
		p.MaxNewTokens = *pub.MaxLength
	}
	if pub.Temperature != nil {
		p.Temperature = *pub.Temperature
	}
	if pub.TopP != nil {
		p.TopP = *pub.TopP
	}
	if pub.TopK != nil {
		p.TopK = *pub.TopK
	}
	if pub.RepeatPenalty != nil {
		p.RepeatPenalty = *pub.RepeatPenalty
	}
	if pub.DoSample != nil {
		p.DoSample = *pub.DoSample
	}
	if pub.NumBeams != nil {
		p.NumBeams = *pub.NumBeams
	}
}
