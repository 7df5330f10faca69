package domain

import "time"

// AudioExtension is appended to the digest when audio is persisted by name.
const AudioExtension = ".mp3"

// AudioMIME is the content type of synthesized audio.
const AudioMIME = "audio/mpeg"

// CacheEntry is one synthesized utterance keyed by the digest of its text.
type CacheEntry struct {
	Key       string    `json:"key"`
	Audio     []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// AudioSource tags where audio came from.
type AudioSource int

const (
	CacheHit AudioSource = iota
	CacheMiss
)

func (s AudioSource) String() string {
	if s == CacheHit {
		return "hit"
	}
	return "miss"
}

// AudioResult is returned by the audio cache on success. A failed synthesis is
// reported as ErrSynthesisFailed instead.
type AudioResult struct {
	Source AudioSource
	Key    string
	Audio  []byte
}

// FileName is the persisted name of the audio for this key.
func (r AudioResult) FileName() string {
	return r.Key + AudioExtension
}

// AudioFormat selects how direct synthesis is returned.
type AudioFormat string

const (
	AudioFormatBase64 AudioFormat = "base64"
	AudioFormatURL    AudioFormat = "url"
)

// SynthesisResponse is the result of direct text-to-speech. Exactly one of
// Audio or URL is set, depending on the requested format.
type SynthesisResponse struct {
	Text      string    `json:"text"`
	Audio     []byte    `json:"-"`
	URL       string    `json:"audio_url,omitempty"`
	Cached    bool      `json:"cached"`
	Timestamp time.Time `json:"timestamp"`
}
