package acrcloud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Response is the identify reply.
type Response struct {
	Status     Status    `json:"status"`
	Metadata   *Metadata `json:"metadata,omitempty"`
	CostTime   float64   `json:"cost_time,omitempty"`
	ResultType int       `json:"result_type,omitempty"`
}

// Status carries the service result code.
type Status struct {
	Msg     string `json:"msg"`
	Code    int    `json:"code"`
	Version string `json:"version,omitempty"`
}

// Metadata holds the ranked result lists. The first entry of each list is
// the primary match.
type Metadata struct {
	Music        []Music      `json:"music,omitempty"`
	CustomFiles  []CustomFile `json:"custom_files,omitempty"`
	TimestampUTC string       `json:"timestamp_utc,omitempty"`
}

// Offsets are the sample and database positions shared by both result kinds.
type Offsets struct {
	SampleBeginMs *Millis `json:"sample_begin_time_offset_ms,omitempty"`
	SampleEndMs   *Millis `json:"sample_end_time_offset_ms,omitempty"`
	DBBeginMs     *Millis `json:"db_begin_time_offset_ms,omitempty"`
	DBEndMs       *Millis `json:"db_end_time_offset_ms,omitempty"`
	PlayOffsetMs  *Millis `json:"play_offset_ms,omitempty"`
}

// Music is one entry of the music result list.
type Music struct {
	Offsets
	ACRID            string           `json:"acrid"`
	Title            string           `json:"title"`
	Score            Score            `json:"score"`
	DurationMs       Millis           `json:"duration_ms,omitempty"`
	Label            string           `json:"label,omitempty"`
	ReleaseDate      string           `json:"release_date,omitempty"`
	Language         string           `json:"language,omitempty"`
	Album            *Named           `json:"album,omitempty"`
	Artists          []Named          `json:"artists,omitempty"`
	Genres           []Named          `json:"genres,omitempty"`
	ExternalIDs      ExternalIDs      `json:"external_ids,omitempty"`
	ExternalMetadata ExternalMetadata `json:"external_metadata,omitempty"`
	ResultFrom       int              `json:"result_from,omitempty"`
}

// CustomFile is one entry of the custom-file (bucket) result list.
type CustomFile struct {
	Offsets
	ACRID      string `json:"acrid"`
	Title      string `json:"title"`
	Score      Score  `json:"score"`
	DurationMs Millis `json:"duration_ms,omitempty"`
	AudioID    Text   `json:"audio_id,omitempty"`
	BucketID   Text   `json:"bucket_id,omitempty"`
}

// Named is an object carrying only a display name.
type Named struct {
	Name string `json:"name"`
}

// ExternalIDs are the industry identifiers of a recording.
type ExternalIDs struct {
	ISRC Text `json:"isrc,omitempty"`
	UPC  Text `json:"upc,omitempty"`
}

// ExternalMetadata links a recording to streaming services.
type ExternalMetadata struct {
	Spotify *struct {
		Track struct {
			ID Text `json:"id"`
		} `json:"track"`
	} `json:"spotify,omitempty"`
	YouTube *struct {
		VID Text `json:"vid"`
	} `json:"youtube,omitempty"`
	Deezer *struct {
		Track struct {
			ID Text `json:"id"`
		} `json:"track"`
	} `json:"deezer,omitempty"`
}

// Decode parses an identify reply.
func Decode(payload []byte) (Response, error) {
	var resp Response
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Millis accepts integer, float or quoted millisecond values.
type Millis int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(data []byte) error {
	value, err := parseNumber(data)
	if err != nil {
		return fmt.Errorf("milliseconds: %w", err)
	}
	*m = Millis(value)
	return nil
}

// Score accepts integer, float or quoted scores.
type Score int

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	value, err := parseNumber(data)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*s = Score(value)
	return nil
}

// Text accepts string or numeric identifiers.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*t = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("identifier: %w", err)
	}
	*t = Text(n.String())
	return nil
}

func parseNumber(data []byte) (int64, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return 0, nil
	}
	raw := string(trimmed)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return 0, err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return 0, nil
		}
	}
	if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return int64(f - 0.5), nil
	}
	return int64(f + 0.5), nil
}
