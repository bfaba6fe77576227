package payments

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func sampleIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("64a7f1e2b3c4d5e6f7a8b9%02d", i)
	}
	return ids
}

func TestStudentIDsRoundTripSingleKey(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		ids := sampleIDs(n)
		meta := EncodeStudentIDs(ids)
		if _, ok := meta[metaKeyStudentIDs]; !ok {
			t.Fatalf("n=%d: expected single-key encoding, got %v", n, meta)
		}
		got, err := DecodeStudentIDs(meta)
		if err != nil {
			t.Fatalf("n=%d: decode error: %v", n, err)
		}
		if !reflect.DeepEqual(got, ids) {
			t.Errorf("n=%d: round trip = %v, want %v", n, got, ids)
		}
	}
}

func TestStudentIDsRoundTripChunked(t *testing.T) {
	ids := sampleIDs(50) // 50 × 24-char IDs exceeds one metadata value
	meta := EncodeStudentIDs(ids)
	if _, ok := meta[metaKeyStudentIDChunks]; !ok {
		t.Fatalf("expected chunked encoding, got keys %v", keys(meta))
	}
	for k, v := range meta {
		if len(v) > metadataMaxValueLen {
			t.Errorf("chunk %s is %d chars, exceeds limit %d", k, len(v), metadataMaxValueLen)
		}
	}
	got, err := DecodeStudentIDs(meta)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(got, ids) {
		t.Errorf("round trip lost order or elements: got %d ids", len(got))
	}
}

func TestDecodeStudentIDsLegacyJSON(t *testing.T) {
	meta := map[string]string{metaKeyStudentIDs: `["a","b","c"]`}
	got, err := DecodeStudentIDs(meta)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("decoded = %v", got)
	}
}

func TestDecodeStudentIDsCommaString(t *testing.T) {
	meta := map[string]string{metaKeyStudentIDs: "a,b, c"}
	got, err := DecodeStudentIDs(meta)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("decoded = %v", got)
	}
}

func TestDecodeStudentIDsChunkedSpecOrder(t *testing.T) {
	meta := map[string]string{
		metaKeyStudentIDChunks: "2",
		"studentIds_0":         "a,b,c",
		"studentIds_1":         "d,e",
	}
	got, err := DecodeStudentIDs(meta)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c", "d", "e"}) {
		t.Errorf("decoded = %v, want [a b c d e]", got)
	}
}

func TestDecodeStudentIDsMissingEncodings(t *testing.T) {
	_, err := DecodeStudentIDs(map[string]string{"country": "dubai"})
	if !errors.Is(err, ErrMetadataStudentIDs) {
		t.Errorf("err = %v, want ErrMetadataStudentIDs", err)
	}
}

func TestDecodeStudentIDsMissingChunk(t *testing.T) {
	meta := map[string]string{
		metaKeyStudentIDChunks: "2",
		"studentIds_0":         "a,b",
	}
	if _, err := DecodeStudentIDs(meta); !errors.Is(err, ErrMetadataStudentIDs) {
		t.Errorf("err = %v, want ErrMetadataStudentIDs", err)
	}
}

func TestMetadataRoundTripContext(t *testing.T) {
	rc := RegistrationContext{
		StudentIDs:           sampleIDs(3),
		SportID:              "sport-1",
		EventID:              "event-9",
		Country:              "dubai",
		IncludeCertification: true,
	}
	got, err := DecodeMetadata(EncodeMetadata(rc))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(got, rc) {
		t.Errorf("round trip = %+v, want %+v", got, rc)
	}
}

func TestChunkJoinedNeverSplitsIDs(t *testing.T) {
	ids := sampleIDs(40)
	chunks := chunkJoined(ids, 100)
	var reassembled []string
	for _, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk too long: %d", len(c))
		}
		reassembled = append(reassembled, strings.Split(c, ",")...)
	}
	if !reflect.DeepEqual(reassembled, ids) {
		t.Errorf("reassembly mismatch: %d ids", len(reassembled))
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
