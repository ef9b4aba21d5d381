package wire

import (
	"encoding/json"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
)

// RecordingLine is one newline-delimited unit of a recorded session:
// the capture timestamp, the source tag, and the raw line-protocol
// message that was observed.
type RecordingLine struct {
	TS   int64           `json:"ts"`
	Src  string          `json:"src"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RecordingMeta is the optional first line of a recording. It is ignored
// for playback purposes.
type RecordingMeta struct {
	Meta json.RawMessage `json:"_meta"`
}

// ParseRecordingLine decodes one recording line into an envelope. The
// second return value is true when the line is a metadata line that
// should be skipped without error.
func ParseRecordingLine(line []byte, seq int) (model.Envelope, bool, error) {
	var meta RecordingMeta
	if err := json.Unmarshal(line, &meta); err == nil && meta.Meta != nil {
		return model.Envelope{}, true, nil
	}

	var rec RecordingLine
	if err := json.Unmarshal(line, &rec); err != nil {
		return model.Envelope{}, false, provider.NewParseError("malformed recording line", err)
	}
	if len(rec.Data) == 0 {
		return model.Envelope{}, false, provider.NewParseError("recording line missing data", nil)
	}

	env, err := ParseMessage(rec.Data, rec.TS, rec.Src, seq)
	if err != nil {
		return model.Envelope{}, false, err
	}
	return env, false, nil
}
