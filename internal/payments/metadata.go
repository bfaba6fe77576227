package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Provider metadata limits: ~500 chars per value, so long student-ID lists
// are chunked across studentIds_0..N keys with a studentIdsChunks count.
const (
	metadataMaxValueLen = 480

	metaKeyStudentIDs       = "studentIds"
	metaKeyStudentIDChunks  = "studentIdsChunks"
	metaKeyStudentIDChunkN  = "studentIds_"
	metaKeyCountry          = "country"
	metaKeySportID          = "sportId"
	metaKeyEventID          = "eventId"
	metaKeyIncludeCert      = "includeCertification"
	metaKeyRegistrationType = "registrationType"
)

// ErrMetadataStudentIDs means no student-ID encoding could be decoded.
var ErrMetadataStudentIDs = errors.New("metadata has no decodable student id list")

// RegistrationContext is the checkout context carried through provider metadata.
type RegistrationContext struct {
	StudentIDs           []string
	SportID              string
	EventID              string
	Country              string
	IncludeCertification bool
}

// EncodeMetadata flattens a registration context into provider metadata.
func EncodeMetadata(rc RegistrationContext) map[string]string {
	meta := map[string]string{
		metaKeyCountry:     rc.Country,
		metaKeySportID:     rc.SportID,
		metaKeyIncludeCert: strconv.FormatBool(rc.IncludeCertification),
	}
	if rc.EventID != "" {
		meta[metaKeyEventID] = rc.EventID
	}
	for k, v := range EncodeStudentIDs(rc.StudentIDs) {
		meta[k] = v
	}
	return meta
}

// DecodeMetadata rebuilds a registration context from provider metadata.
// Student IDs are decoded via DecodeStudentIDs; the caller validates that the
// list and sport ID are non-empty before acting on it.
func DecodeMetadata(meta map[string]string) (RegistrationContext, error) {
	ids, err := DecodeStudentIDs(meta)
	if err != nil {
		return RegistrationContext{}, err
	}
	include, _ := strconv.ParseBool(meta[metaKeyIncludeCert])
	return RegistrationContext{
		StudentIDs:           ids,
		SportID:              meta[metaKeySportID],
		EventID:              meta[metaKeyEventID],
		Country:              meta[metaKeyCountry],
		IncludeCertification: include,
	}, nil
}

// EncodeStudentIDs encodes the ID list as a comma-joined string, chunked
// across studentIds_0..N keys when it would exceed the per-value limit.
func EncodeStudentIDs(ids []string) map[string]string {
	joined := strings.Join(ids, ",")
	if len(joined) <= metadataMaxValueLen {
		return map[string]string{metaKeyStudentIDs: joined}
	}
	chunks := chunkJoined(ids, metadataMaxValueLen)
	out := make(map[string]string, len(chunks)+1)
	out[metaKeyStudentIDChunks] = strconv.Itoa(len(chunks))
	for i, chunk := range chunks {
		out[fmt.Sprintf("%s%d", metaKeyStudentIDChunkN, i)] = chunk
	}
	return out
}

// DecodeStudentIDs tries the three historical encodings in order: JSON array
// (legacy), comma-joined string, then chunked comma-joined strings. It errors
// only when none of the encodings is present.
func DecodeStudentIDs(meta map[string]string) ([]string, error) {
	if raw, ok := meta[metaKeyStudentIDs]; ok {
		if trimmed := strings.TrimSpace(raw); strings.HasPrefix(trimmed, "[") {
			var ids []string
			if err := json.Unmarshal([]byte(trimmed), &ids); err == nil {
				return ids, nil
			}
			// fall through to comma parsing for malformed JSON
		}
		return splitIDs(raw), nil
	}

	if countStr, ok := meta[metaKeyStudentIDChunks]; ok {
		count, err := strconv.Atoi(countStr)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("%w: bad chunk count %q", ErrMetadataStudentIDs, countStr)
		}
		var ids []string
		for i := 0; i < count; i++ {
			chunk, ok := meta[fmt.Sprintf("%s%d", metaKeyStudentIDChunkN, i)]
			if !ok {
				return nil, fmt.Errorf("%w: missing chunk %d of %d", ErrMetadataStudentIDs, i, count)
			}
			ids = append(ids, splitIDs(chunk)...)
		}
		return ids, nil
	}

	return nil, ErrMetadataStudentIDs
}

func splitIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			ids = append(ids, t)
		}
	}
	return ids
}

// chunkJoined splits ids into comma-joined chunks each at most maxLen long,
// never splitting an ID across chunks.
func chunkJoined(ids []string, maxLen int) []string {
	var chunks []string
	var b strings.Builder
	for _, id := range ids {
		need := len(id)
		if b.Len() > 0 {
			need++ // separator
		}
		if b.Len()+need > maxLen && b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(id)
	}
	if b.Len() > 0 || len(chunks) == 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
